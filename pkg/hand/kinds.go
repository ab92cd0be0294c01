package hand

// GestureKind is the primary classification of a hand pose.
type GestureKind int

const (
	GestureUnknown GestureKind = iota
	GestureOpenPalm
	GestureFist
	GesturePoint
	GestureVictory
	GestureThree
	GestureFour
	GestureThumbUp
	GestureThumbDown
	GestureOk
	GesturePinch
	GestureFingerHeart
	GestureILoveYou
	GestureRock
)

func (g GestureKind) String() string {
	switch g {
	case GestureOpenPalm:
		return "open palm"
	case GestureFist:
		return "fist"
	case GesturePoint:
		return "point"
	case GestureVictory:
		return "victory"
	case GestureThree:
		return "three"
	case GestureFour:
		return "four"
	case GestureThumbUp:
		return "thumb up"
	case GestureThumbDown:
		return "thumb down"
	case GestureOk:
		return "ok"
	case GesturePinch:
		return "pinch"
	case GestureFingerHeart:
		return "finger heart"
	case GestureILoveYou:
		return "i love you"
	case GestureRock:
		return "rock"
	}
	return "unknown"
}

// FingerState is the per-finger flex classification, recomputed every cycle.
type FingerState int

const (
	FingerExtended FingerState = iota
	FingerHalfBent
	FingerFolded
)

func (f FingerState) String() string {
	switch f {
	case FingerExtended:
		return "extended"
	case FingerHalfBent:
		return "half-bent"
	}
	return "folded"
}

// GestureMotion is the temporal motion classification, an independent axis
// from GestureKind.
type GestureMotion int

const (
	MotionSteady GestureMotion = iota
	MotionFanning
	MotionVerticalWave
	MotionMoving
)

func (m GestureMotion) String() string {
	switch m {
	case MotionFanning:
		return "fanning"
	case MotionVerticalWave:
		return "vertical wave"
	case MotionMoving:
		return "moving"
	}
	return "steady"
}

type Handedness int

const (
	HandednessUnknown Handedness = iota
	HandednessLeft
	HandednessRight
)

func (h Handedness) String() string {
	switch h {
	case HandednessLeft:
		return "left"
	case HandednessRight:
		return "right"
	}
	return "unknown"
}

// HandednessFromScore maps the model's handedness score to a label.
// Pure step function by convention (not measurement): score >= 0.5 is a
// right hand, anything above zero is a left hand, exactly zero is unknown.
func HandednessFromScore(score float32) Handedness {
	if score >= 0.5 {
		return HandednessRight
	} else if score > 0 {
		return HandednessLeft
	}
	return HandednessUnknown
}

// GestureDetail is the full classification of a single recognized hand pose.
// Secondary is a low-confidence fallback guess, only ever populated when
// Primary is GestureUnknown; GestureUnknown in Secondary means "no guess".
type GestureDetail struct {
	Primary      GestureKind    `json:"primary"`
	Secondary    GestureKind    `json:"secondary"`
	Handedness   Handedness     `json:"handedness"`
	FingerStates [5]FingerState `json:"fingerStates"` // thumb, index, middle, ring, pinky
	Motion       GestureMotion  `json:"motion"`
}
