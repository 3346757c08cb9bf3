package metadata

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/curator/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultExtensions lists the media types picked up from the input directory
var DefaultExtensions = []string{".jpg", ".jpeg", ".png"}

// undecodableExtensions are photo formats that neither the EXIF reader nor any
// registered image decoder can open. They are skipped even when configured.
var undecodableExtensions = map[string]struct{}{
	".heic": {},
	".heif": {},
}

// Candidate is a discovered input file with its filesystem modification time
type Candidate struct {
	Path    string
	ModTime time.Time
}

// Scan lists supported media files directly under dir, ordered by lowercase name.
// Entries that cannot be stat'ed are skipped. HEIF photos are skipped with a
// single warning per scan.
func Scan(ctx context.Context, dir string, extensions []string) ([]Candidate, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	supported := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		supported[normalizeExt(ext)] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read input directory", goerr.V("dir", dir))
	}

	logger := logging.From(ctx)
	var candidates []Candidate
	var undecodable []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := undecodableExtensions[ext]; ok {
			undecodable = append(undecodable, entry.Name())
			continue
		}
		if _, ok := supported[ext]; !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logger.Warn("skip unreadable file", "name", entry.Name(), "error", err)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		candidates = append(candidates, Candidate{
			Path:    filepath.Join(dir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}

	if len(undecodable) > 0 {
		logger.Warn("HEIF/HEIC photos are not supported and were skipped, convert them to JPEG first",
			"count", len(undecodable),
			"first", undecodable[0])
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return strings.ToLower(filepath.Base(candidates[i].Path)) < strings.ToLower(filepath.Base(candidates[j].Path))
	})

	return candidates, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
