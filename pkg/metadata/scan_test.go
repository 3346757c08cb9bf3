package metadata_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/curator/pkg/metadata"
	"github.com/m-mizutani/curator/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "notes.txt", "c.heic", ".hidden"} {
		writeFile(t, dir, name, []byte("x"))
	}
	gt.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0755))

	candidates, err := metadata.Scan(context.Background(), dir, nil)
	gt.NoError(t, err)
	gt.A(t, candidates).Length(2)
	gt.Equal(t, filepath.Base(candidates[0].Path), "a.png")
	gt.Equal(t, filepath.Base(candidates[1].Path), "b.JPG")
	gt.False(t, candidates[0].ModTime.IsZero())
}

func TestScanCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", []byte("x"))
	writeFile(t, dir, "b.webp", []byte("x"))

	candidates, err := metadata.Scan(context.Background(), dir, []string{"WEBP"})
	gt.NoError(t, err)
	gt.A(t, candidates).Length(1)
	gt.Equal(t, filepath.Base(candidates[0].Path), "b.webp")
}

func TestScanMissingDirectory(t *testing.T) {
	_, err := metadata.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	gt.Error(t, err)
}

// heicFile returns the leading ftyp box of an iPhone HEIC photo followed by an
// empty meta box
func heicFile() []byte {
	var buf bytes.Buffer
	ftyp := []byte("ftypheic\x00\x00\x00\x00mif1heicmiaf")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ftyp)+4))
	buf.Write(ftyp)
	_ = binary.Write(&buf, binary.BigEndian, uint32(12))
	buf.WriteString("meta")
	buf.Write([]byte{0, 0, 0, 0})
	return buf.Bytes()
}

func TestScanSkipsHEIFWithOneWarning(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", []byte("x"))
	writeFile(t, dir, "IMG_0001.HEIC", heicFile())
	writeFile(t, dir, "IMG_0002.heic", heicFile())
	writeFile(t, dir, "IMG_0003.heif", heicFile())

	var logs bytes.Buffer
	ctx := logging.With(context.Background(), logging.New(slog.LevelWarn, &logs))

	// configured explicitly, still skipped because nothing can decode them
	candidates, err := metadata.Scan(ctx, dir, []string{".jpg", ".heic", ".heif"})
	gt.NoError(t, err)
	gt.A(t, candidates).Length(1)
	gt.Equal(t, filepath.Base(candidates[0].Path), "a.jpg")

	gt.Equal(t, strings.Count(logs.String(), "HEIF/HEIC photos are not supported"), 1)
	gt.S(t, logs.String()).Contains("3")
}

func TestScanDefaultsExcludeHEIF(t *testing.T) {
	for _, ext := range metadata.DefaultExtensions {
		gt.NotEqual(t, ext, ".heic")
		gt.NotEqual(t, ext, ".heif")
	}
}
