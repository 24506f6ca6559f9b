package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"vessel-extractor/internal/cli"
	"vessel-extractor/internal/debug/timing"
	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/memory"
	"vessel-extractor/internal/pipeline"
	"vessel-extractor/internal/preview"
	"vessel-extractor/internal/shutdown"
	"vessel-extractor/internal/vessel"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"
)

const (
	AppName    = "vessel-extractor"
	AppID      = "org.retina.vessel-extractor"
	AppVersion = "1.0.0"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// work runs the pipeline with an optional display and returns the exit code.
type work func(display vessel.DisplayFunc) int

// launcher decides where work runs. Preview mode needs the fyne event loop on
// the main goroutine.
type launcher func(log logger.Logger, sm *shutdown.Manager, fn work) int

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr, withPreview))
}

func run(args []string, stdout, stderr io.Writer, launch launcher) int {
	program := AppName
	if len(args) > 0 {
		program = filepath.Base(args[0])
		args = args[1:]
	}

	opts, err := cli.ParseArgs(args)
	if err != nil {
		fmt.Fprint(stderr, cli.Usage(program))
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if opts.Help {
		fmt.Fprint(stdout, cli.Usage(program))
	}

	level := logger.LevelFromEnv()
	log := logger.NewConsoleLogger(stderr, level)
	log.Debug("Main", "starting", map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"pairs":      len(opts.Pairs),
		"show":       opts.Show,
	})

	memManager := memory.NewManager(log)
	sm := shutdown.NewManager(context.Background(), log)
	sm.Register(memManager)
	sm.Listen()
	defer sm.Shutdown()

	tracker := timing.NewTracker()
	tracker.SetEnabled(level <= zerolog.DebugLevel)

	process := func(display vessel.DisplayFunc) int {
		vopts := []vessel.Option{vessel.WithLogger(log), vessel.WithTiming(tracker)}
		if display != nil {
			vopts = append(vopts, vessel.WithDisplay(display))
		}

		extractor, err := vessel.New(vessel.DefaultConfig(), vopts...)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		defer extractor.Close()

		runner := pipeline.NewRunner(extractor, memManager, tracker, log)
		return exitCode(runner.Run(sm.Context(), opts.Pairs), program, stderr)
	}

	if opts.Show && len(opts.Pairs) > 0 {
		return launch(log, sm, process)
	}
	return process(nil)
}

func exitCode(err error, program string, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}

	var pairErr *pipeline.PairError
	errors.As(err, &pairErr)

	switch {
	case errors.Is(err, pipeline.ErrInputMissing) && pairErr != nil:
		fmt.Fprint(stderr, cli.Usage(program))
		fmt.Fprintf(stderr, "%s input does not exist\n", pairErr.Pair.Input)
	case errors.Is(err, pipeline.ErrWriteFailed) && pairErr != nil:
		fmt.Fprintf(stderr, "Error: Failed to write %s\n", pairErr.Pair.Output)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitFailure
}

func withPreview(log logger.Logger, sm *shutdown.Manager, fn work) int {
	fyneApp := app.NewWithID(AppID)
	code := make(chan int, 1)

	go func() {
		viewer := preview.NewViewer(fyneApp, log)
		sm.Register(viewer)

		code <- fn(viewer.Show)
		fyne.Do(fyneApp.Quit)
	}()

	go func() {
		select {
		case <-sm.Context().Done():
			fyne.Do(fyneApp.Quit)
		case <-sm.Done():
		}
	}()

	fyneApp.Run()

	select {
	case c := <-code:
		return c
	default:
		return exitFailure
	}
}
