package screenshot

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/droidagent/internal/uitree"
)

func fileCapturer(t *testing.T) Capturer {
	t.Helper()
	return CapturerFunc(func(_ context.Context, path string) error {
		return os.WriteFile(path, []byte("png"), 0o644)
	})
}

func TestCapture_BoundedHistory(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPipeline(fileCapturer(t), dir, 3)
	require.NoError(t, err)

	var entries []Entry
	for i := 0; i < 5; i++ {
		e, err := p.Capture(context.Background())
		require.NoError(t, err)
		entries = append(entries, e)
	}

	history := p.History()
	require.Len(t, history, 3)
	assert.Equal(t, entries[2].Path, history[0].Path)
	assert.Equal(t, entries[4].Path, history[2].Path)

	// evicted files are gone from disk, kept ones remain
	for _, e := range entries[:2] {
		_, err := os.Stat(e.Path)
		assert.True(t, os.IsNotExist(err), "expected %s to be evicted", e.Path)
	}
	for _, e := range entries[2:] {
		_, err := os.Stat(e.Path)
		assert.NoError(t, err)
	}
}

func TestLatest(t *testing.T) {
	p, err := NewPipeline(fileCapturer(t), t.TempDir(), 2)
	require.NoError(t, err)

	_, ok := p.Latest()
	assert.False(t, ok)

	e, err := p.Capture(context.Background())
	require.NoError(t, err)

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, e.Path, latest.Path)
}

func TestClear(t *testing.T) {
	p, err := NewPipeline(fileCapturer(t), t.TempDir(), 5)
	require.NoError(t, err)

	e, err := p.Capture(context.Background())
	require.NoError(t, err)

	p.Clear()
	assert.Empty(t, p.History())
	_, statErr := os.Stat(e.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCapture_CapturerFailure(t *testing.T) {
	failing := CapturerFunc(func(context.Context, string) error {
		return fmt.Errorf("device offline")
	})
	p, err := NewPipeline(failing, t.TempDir(), 5)
	require.NoError(t, err)

	_, err = p.Capture(context.Background())
	assert.Error(t, err)
	assert.Empty(t, p.History())
}

func TestAnnotate_DrawsBoxes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	els := []uitree.Element{
		{Index: 0, Text: "ok", Bounds: uitree.Rect{Left: 20, Top: 20, Right: 120, Bottom: 80}},
	}

	out := Annotate(img, els)

	// box edges take the box color
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(20, 20))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(119, 79))
	// a corner far from any element stays untouched
	assert.Equal(t, color.RGBA{}, out.RGBAAt(199, 199))
}

func TestAnnotateFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	out := filepath.Join(dir, "out.png")

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	f, err := os.Create(in)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	els := []uitree.Element{{Index: 3, Bounds: uitree.Rect{Left: 10, Top: 10, Right: 90, Bottom: 90}}}
	require.NoError(t, AnnotateFile(in, out, els))

	g, err := os.Open(out)
	require.NoError(t, err)
	defer g.Close()
	decoded, err := png.Decode(g)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), decoded.Bounds())
}
