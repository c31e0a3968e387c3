package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faissen/signatures-recognition/internal/imageprocessor"
	"github.com/Faissen/signatures-recognition/internal/signature"
)

func inkImage(w, h int, blocks ...image.Rectangle) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, r := range blocks {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{})
			}
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func signatureImage() *image.Gray {
	return inkImage(240, 100,
		image.Rect(20, 20, 60, 80),
		image.Rect(90, 20, 130, 80),
		image.Rect(160, 20, 200, 80),
		image.Rect(210, 30, 230, 70),
	)
}

func newEngine(t *testing.T) *signature.Engine {
	t.Helper()
	e, err := signature.NewEngine(signature.DefaultOptions())
	require.NoError(t, err)
	return e
}

func TestNameMapResolve(t *testing.T) {
	m := NameMap{"sig_001.png": "Ada Lovelace", "blank.png": ""}
	assert.Equal(t, "Ada Lovelace", m.Resolve("sig_001.png"))
	assert.Equal(t, UnknownIdentity, m.Resolve("sig_999.png"))
	assert.Equal(t, UnknownIdentity, m.Resolve("blank.png"))
}

func TestLoadNameMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a.png": "Alice", "b.png": "Bob"}`), 0o600))

	m, err := LoadNameMap(path)
	require.NoError(t, err)
	assert.Equal(t, "Bob", m.Resolve("b.png"))

	empty, err := LoadNameMap("")
	require.NoError(t, err)
	assert.Equal(t, UnknownIdentity, empty.Resolve("a.png"))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`["a.png"]`), 0o600))
	_, err = LoadNameMap(bad)
	assert.Error(t, err)

	_, err = LoadNameMap(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestScanFiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.jpeg", "a.png", "B.JPG", "notes.txt", "d.gif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o700))

	files, err := Scan(dir)
	require.NoError(t, err)
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"B.JPG", "a.png", "c.jpeg"}, names)
	assert.Equal(t, filepath.Join(dir, "a.png"), files[1].Path)

	_, err = Scan(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestDirectoryProviderEntries(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "alice.png"), signatureImage())
	writeJPEG(t, filepath.Join(dir, "bob.jpg"), signatureImage())
	writePNG(t, filepath.Join(dir, "blank.png"), inkImage(200, 80))
	writePNG(t, filepath.Join(dir, "zed.png"), signatureImage())

	core, logs := observer.New(zapcore.WarnLevel)
	names := NameMap{"alice.png": "Alice", "bob.jpg": "Bob"}
	p := NewDirectoryProvider(dir, imageprocessor.FileSource{}, newEngine(t), names, zap.New(core))

	entries, err := p.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Alice", entries[0].Identity)
	assert.Equal(t, "Bob", entries[1].Identity)
	assert.Equal(t, UnknownIdentity, entries[2].Identity)

	opts := signature.DefaultOptions()
	for _, e := range entries {
		assert.Equal(t, opts.CanvasWidth, e.Canvas.Width())
		assert.Equal(t, opts.CanvasHeight, e.Canvas.Height())
	}
	assert.Equal(t, 1, logs.Len(), "the blank file is reported")
}

func TestDirectoryProviderFailsOnUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), signatureImage())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("not a png"), 0o600))
	writePNG(t, filepath.Join(dir, "c.png"), signatureImage())

	names := NameMap{"a.png": "A", "b.png": "B", "c.png": "C"}
	p := NewDirectoryProvider(dir, imageprocessor.FileSource{}, newEngine(t), names, zap.NewNop())

	entries, err := p.Entries(context.Background())
	assert.Nil(t, entries)
	require.ErrorIs(t, err, signature.ErrImageDecode)

	var entryErr *signature.EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, "B", entryErr.Identity)
	assert.Equal(t, 1, entryErr.Index)
}

type failingSource struct{ err error }

func (f failingSource) Load(context.Context, string) (*image.Gray, error) { return nil, f.err }

func TestDirectoryProviderPropagatesUnexpectedErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), signatureImage())
	boom := errors.New("disk on fire")

	p := NewDirectoryProvider(dir, failingSource{err: boom}, newEngine(t), nil, zap.NewNop())
	_, err := p.Entries(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDirectoryProviderHonorsContext(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), signatureImage())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewDirectoryProvider(dir, imageprocessor.FileSource{}, newEngine(t), nil, zap.NewNop())
	_, err := p.Entries(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticEntriesCopies(t *testing.T) {
	s := Static{{Identity: "A"}, {Identity: "B"}}
	got, err := s.Entries(context.Background())
	require.NoError(t, err)
	got[0].Identity = "changed"
	assert.Equal(t, "A", s[0].Identity)
}
