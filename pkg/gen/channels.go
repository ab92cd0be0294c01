package gen

// TrySend sends v without blocking. Returns false if the channel is full,
// in which case v is dropped. Used by producers that must never stall on a
// slow consumer.
func TrySend[T any](ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}

// RecvNewest blocks until at least one item is available, then drains any
// backlog and returns the most recent item. The second return is false when
// the channel has been closed and emptied. dropped, if non-nil, is
// incremented by the number of stale items discarded.
func RecvNewest[T any](ch <-chan T, dropped *int64) (T, bool) {
	v, ok := <-ch
	if !ok {
		var zero T
		return zero, false
	}
	for {
		select {
		case next, ok := <-ch:
			if !ok {
				return v, true
			}
			if dropped != nil {
				*dropped++
			}
			v = next
		default:
			return v, true
		}
	}
}

// SendReplaceOldest delivers v on a channel with small capacity, evicting
// the oldest queued item if the channel is full. Returns true if an item
// was evicted. With a competing reader this can loop briefly, but it always
// terminates because somebody is making room.
func SendReplaceOldest[T any](ch chan T, v T) (evicted bool) {
	for {
		select {
		case ch <- v:
			return evicted
		default:
		}
		select {
		case <-ch:
			evicted = true
		default:
		}
	}
}
