package main

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"vessel-extractor/internal/logger"
	"vessel-extractor/internal/opencv/safe"
	"vessel-extractor/internal/shutdown"
	"vessel-extractor/internal/vessel"
)

func noPreview(t *testing.T) launcher {
	return func(logger.Logger, *shutdown.Manager, work) int {
		t.Fatal("preview launched unexpectedly")
		return exitFailure
	}
}

func writeFundus(t *testing.T, dir string) string {
	t.Helper()
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(190, 190, 190, 0), 80, 80, gocv.MatTypeCV8UC3)
	defer m.Close()
	gocv.Circle(&m, image.Pt(40, 40), 8, color.RGBA{R: 40, G: 40, B: 40}, -1)

	path := filepath.Join(dir, "fundus.png")
	require.True(t, gocv.IMWrite(path, m))
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunOddArgumentsWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeFundus(t, dir)
	before := listDir(t, dir)

	var stdout, stderr bytes.Buffer
	code := run([]string{"vessel-extractor", in, filepath.Join(dir, "a.png"), in}, &stdout, &stderr, noPreview(t))

	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "vessel-extractor [-h] [-s] [<input_img> <output_img>]*")
	assert.Contains(t, stderr.String(), "Wrong number of arguments, argc=4")
	assert.Equal(t, before, listDir(t, dir))
}

func TestRunUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"vessel-extractor", "-z"}, &stdout, &stderr, noPreview(t))
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "[-h] [-s]")
}

func TestRunHelpOnly(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"/usr/bin/vessel-extractor", "-h"}, &stdout, &stderr, noPreview(t))

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "vessel-extractor [-h] [-s] [<input_img> <output_img>]*")
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.png")

	var stdout, stderr bytes.Buffer
	code := run([]string{"vessel-extractor", missing, filepath.Join(dir, "out.png")}, &stdout, &stderr, noPreview(t))

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "[-h] [-s]")
	assert.Contains(t, stderr.String(), missing+" input does not exist")
	assert.NoFileExists(t, filepath.Join(dir, "out.png"))
}

func TestRunWriteFailure(t *testing.T) {
	dir := t.TempDir()
	in := writeFundus(t, dir)
	out := filepath.Join(dir, "no-such-dir", "out.png")

	var stdout, stderr bytes.Buffer
	code := run([]string{"vessel-extractor", in, out}, &stdout, &stderr, noPreview(t))

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "Error: Failed to write "+out)
}

func TestRunProcessesPairs(t *testing.T) {
	dir := t.TempDir()
	in := writeFundus(t, dir)
	out := filepath.Join(dir, "mask.png")

	var stdout, stderr bytes.Buffer
	code := run([]string{"vessel-extractor", in, out}, &stdout, &stderr, noPreview(t))
	require.Equal(t, exitOK, code, stderr.String())

	written := gocv.IMRead(out, gocv.IMReadColor)
	defer written.Close()
	assert.Equal(t, 80, written.Rows())
	assert.Equal(t, 160, written.Cols())
}

func TestRunShowUsesLauncherDisplay(t *testing.T) {
	dir := t.TempDir()
	in := writeFundus(t, dir)
	out := filepath.Join(dir, "mask.png")

	var titles []string
	fake := func(_ logger.Logger, _ *shutdown.Manager, fn work) int {
		return fn(func(title string, img *safe.Mat) error {
			titles = append(titles, title)
			return nil
		})
	}

	var stdout, stderr bytes.Buffer
	code := run([]string{"vessel-extractor", "-s", in, out}, &stdout, &stderr, fake)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Equal(t, []string{
		vessel.TitleLargeArteries,
		vessel.TitleThreshold,
		vessel.TitleCleaned,
		"output_path",
	}, titles)
	assert.FileExists(t, out)
}
