package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn/ort"
	"github.com/cyclopcam/handcam/pkg/palm"
	"github.com/cyclopcam/handcam/server/camera"
	"github.com/cyclopcam/handcam/server/compositor"
	"github.com/cyclopcam/handcam/server/perfstats"
	"github.com/cyclopcam/handcam/server/recognizer"
	"github.com/cyclopcam/handcam/server/www"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("handcam", "Real-time hand gesture recognition pipeline")
	palmModel := parser.String("", "palm-model", &argparse.Options{Help: "Palm detection ONNX model", Default: "models/palm_detection.onnx"})
	handModel := parser.String("", "hand-model", &argparse.Options{Help: "Hand landmark ONNX model", Default: "models/hand_landmark.onnx"})
	ortLib := parser.String("", "ort-lib", &argparse.Options{Help: "Path to the onnxruntime shared library", Default: "libonnxruntime.so"})
	listen := parser.String("", "listen", &argparse.Options{Help: "HTTP listen address", Default: ":8095"})
	width := parser.Int("", "width", &argparse.Options{Help: "Synthetic source frame width", Default: 640})
	height := parser.Int("", "height", &argparse.Options{Help: "Synthetic source frame height", Default: 480})
	fps := parser.Int("", "fps", &argparse.Options{Help: "Synthetic source frame rate", Default: 30})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := ort.Initialize(*ortLib); err != nil {
		logger.Errorf("Failed to initialize onnxruntime from %v: %v", *ortLib, err)
		os.Exit(1)
	}

	stats := &perfstats.Pipeline{}

	source := camera.NewSyntheticSource(logger, *width, *height, *fps)

	results := make(chan *hand.RecognizedFrame, 1)
	recognizer.Start(logger, recognizer.Options{
		PalmModelPath:     *palmModel,
		HandposeModelPath: *handModel,
		Palm:              palm.DefaultConfig(),
	}, source.Frames(), results, stats)

	comp := compositor.NewCompositor(logger, stats, results)
	comp.Start()

	server := www.NewServer(logger, stats)
	go server.Run(comp.Output())
	go func() {
		if err := server.ListenAndServe(*listen); err != nil {
			logger.Errorf("HTTP server failed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Infof("handcam running. Press Ctrl+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Infof("Shutting down")
	source.Stop()
	logger.Infof("Goodbye")
}
