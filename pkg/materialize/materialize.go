package materialize

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/m-mizutani/curator/pkg/adapter"
	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/curator/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// SummaryFileName is written at the output root and replaced on every run
const SummaryFileName = "summary.md"

//go:embed templates/summary.md
var summaryTemplateRaw string

var summaryTemplate = template.Must(template.New("summary").Parse(summaryTemplateRaw))

// Summary is the outcome of one run in presentation order
type Summary struct {
	RunID       model.RunID
	RunDate     time.Time
	TotalPhotos int
	Events      []*EventSummary
}

// EventSummary describes one materialized event folder
type EventSummary struct {
	Name   string
	Date   string
	Folder string
	Reason string
	Ranks  []RankedAsset
}

// Best returns the ranked entry of the designated best asset
func (e *EventSummary) Best() *RankedAsset {
	for i := range e.Ranks {
		if e.Ranks[i].Best {
			return &e.Ranks[i]
		}
	}
	return nil
}

// Render writes the summary document as markdown
func (s *Summary) Render(w io.Writer) error {
	if err := summaryTemplate.Execute(w, s); err != nil {
		return goerr.Wrap(err, "failed to render summary")
	}
	return nil
}

type Materializer struct {
	nameLength  int
	runID       model.RunID
	now         func() time.Time
	storage     adapter.Storage
	storePrefix string
	onCopied    func()
}

type Option func(*Materializer)

// WithNameLength bounds the event name part of folder names
func WithNameLength(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.nameLength = n
		}
	}
}

func WithRunID(id model.RunID) Option {
	return func(m *Materializer) {
		m.runID = id
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Materializer) {
		m.now = now
	}
}

// WithStorage mirrors the rendered summary to <prefix>/<run id>/summary.md
func WithStorage(storage adapter.Storage, prefix string) Option {
	return func(m *Materializer) {
		m.storage = storage
		m.storePrefix = prefix
	}
}

// WithCopyHook is called after every copied asset
func WithCopyHook(fn func()) Option {
	return func(m *Materializer) {
		m.onCopied = fn
	}
}

func New(opts ...Option) *Materializer {
	m := &Materializer{
		nameLength: DefaultNameLength,
		runID:      model.NewRunID(),
		now:        time.Now,
		onCopied:   func() {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan computes folder names and rankings without touching the filesystem
func (m *Materializer) Plan(groups []*model.EventGroup, results []*model.AnalysisResult) (*Summary, error) {
	if len(groups) != len(results) {
		return nil, goerr.New("number of groups and analysis results differ",
			goerr.V("groups", len(groups)),
			goerr.V("results", len(results)))
	}

	summary := &Summary{
		RunID:   m.runID,
		RunDate: m.now(),
		Events:  make([]*EventSummary, 0, len(groups)),
	}
	for i, group := range groups {
		result := results[i]
		if result == nil {
			return nil, goerr.New("missing analysis result", goerr.V("group", i))
		}
		summary.TotalPhotos += group.Len()
		summary.Events = append(summary.Events, &EventSummary{
			Name:   result.EventName,
			Date:   group.Start().Format("2006-01-02"),
			Folder: FolderName(group, result, m.nameLength),
			Reason: result.Reason,
			Ranks:  Rank(group, result),
		})
	}
	return summary, nil
}

// Materialize copies every group member into its event folder under outDir
// and writes the run summary. Existing folders and files from earlier runs
// are never removed; only the summary document is replaced.
func (m *Materializer) Materialize(ctx context.Context, groups []*model.EventGroup, results []*model.AnalysisResult, outDir string) (*Summary, error) {
	summary, err := m.Plan(groups, results)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create output directory", goerr.V("path", outDir))
	}

	logger := logging.From(ctx)
	for _, event := range summary.Events {
		folder := filepath.Join(outDir, event.Folder)
		if err := os.MkdirAll(folder, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create event folder", goerr.V("path", folder))
		}

		for _, ranked := range event.Ranks {
			dst := filepath.Join(folder, ranked.FileName())
			if err := copyFile(ranked.Asset.Path, dst); err != nil {
				return nil, err
			}
			m.onCopied()
			logger.Debug("copied asset", "src", ranked.Asset.Path, "dst", dst)
		}
		logger.Info("event materialized", "folder", event.Folder, "photos", len(event.Ranks))
	}

	var buf bytes.Buffer
	if err := summary.Render(&buf); err != nil {
		return nil, err
	}

	summaryPath := filepath.Join(outDir, SummaryFileName)
	if err := os.WriteFile(summaryPath, buf.Bytes(), 0644); err != nil {
		return nil, goerr.Wrap(err, "failed to write summary", goerr.V("path", summaryPath))
	}

	if m.storage != nil {
		if err := m.mirror(ctx, summary.RunID, buf.Bytes()); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// SummaryKey is the object key of the mirrored summary
func SummaryKey(prefix string, runID model.RunID) string {
	key := string(runID) + "/" + SummaryFileName
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func (m *Materializer) mirror(ctx context.Context, runID model.RunID, data []byte) error {
	key := SummaryKey(m.storePrefix, runID)
	w, err := m.storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to open summary object", goerr.V("key", key))
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to upload summary", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize summary upload", goerr.V("key", key))
	}
	logging.From(ctx).Info("summary mirrored", "key", key)
	return nil
}

// copyFile duplicates src to dst keeping the source modification time.
// An existing dst is replaced.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return goerr.Wrap(err, "failed to open source asset", goerr.V("path", src))
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return goerr.Wrap(err, "failed to stat source asset", goerr.V("path", src))
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return goerr.Wrap(err, "failed to create destination file", goerr.V("path", dst))
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return goerr.Wrap(err, "failed to copy asset", goerr.V("src", src), goerr.V("dst", dst))
	}
	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to close destination file", goerr.V("path", dst))
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return goerr.Wrap(err, "failed to preserve modification time", goerr.V("path", dst))
	}
	return nil
}
