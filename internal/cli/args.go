// Package cli parses the vessel-extractor command line.
//
// The grammar is `[-h] [-s] [<input_img> <output_img>]*`. Flags may be
// interleaved with paths; paths are paired in the order they appear.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"vessel-extractor/internal/pipeline"
)

var ErrUsage = errors.New("usage error")

// ArgCountError reports an unpaired path. Argc counts the program name.
type ArgCountError struct {
	Argc int
}

func (e *ArgCountError) Error() string {
	return fmt.Sprintf("Wrong number of arguments, argc=%d", e.Argc)
}

func (e *ArgCountError) Unwrap() error {
	return ErrUsage
}

// Options is the parsed command line.
type Options struct {
	Help  bool
	Show  bool
	Pairs []pipeline.Pair
}

// ParseArgs parses args without the program name. The returned error wraps
// ErrUsage for unknown flags and for an odd number of paths.
func ParseArgs(args []string) (Options, error) {
	var opts Options
	var paths []string

	for _, arg := range args {
		switch {
		case arg == "-h":
			opts.Help = true
		case arg == "-s":
			opts.Show = true
		case len(arg) > 1 && strings.HasPrefix(arg, "-"):
			return opts, fmt.Errorf("unknown option %q: %w", arg, ErrUsage)
		default:
			paths = append(paths, arg)
		}
	}

	if len(paths)%2 != 0 {
		return opts, &ArgCountError{Argc: len(args) + 1}
	}

	for i := 0; i < len(paths); i += 2 {
		opts.Pairs = append(opts.Pairs, pipeline.Pair{Input: paths[i], Output: paths[i+1]})
	}
	return opts, nil
}

func Usage(program string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [-h] [-s] [<input_img> <output_img>]*\n", program)
	b.WriteString("\t-h : print help\n")
	b.WriteString("\t-s : show images. Press 'q', SPACE, or ESC to close window.\n")
	b.WriteString("\t<input_img> input image that is read and processed.\n")
	b.WriteString("\t<output_img> path where output image is written\n")
	return b.String()
}
