package curate_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/curator/pkg/analysis"
	"github.com/m-mizutani/curator/pkg/materialize"
	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/curator/pkg/policy"
	"github.com/m-mizutani/curator/pkg/usecase/curate"
	"github.com/m-mizutani/gt"
)

// evaluatorFunc adapts a function to analysis.Evaluator
type evaluatorFunc func(ctx context.Context, req *analysis.Request) (string, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, req *analysis.Request) (string, error) {
	return f(ctx, req)
}

type stubThumbnailer struct{}

func (stubThumbnailer) Render(path string) ([]byte, error) {
	return []byte(path), nil
}

var morning = time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)

// setupInput creates plain files whose mtimes are the capture times
func setupInput(t *testing.T, offsets map[string]time.Duration) string {
	t.Helper()
	dir := t.TempDir()
	for name, offset := range offsets {
		path := filepath.Join(dir, name)
		gt.NoError(t, os.WriteFile(path, []byte(name), 0644))
		ts := morning.Add(offset)
		gt.NoError(t, os.Chtimes(path, ts, ts))
	}
	return dir
}

func morningInput(t *testing.T) string {
	return setupInput(t, map[string]time.Duration{
		"a.jpg":     0,
		"b.jpg":     5 * time.Minute,
		"c.jpg":     6 * time.Minute,
		"d.jpg":     60 * time.Minute,
		"e.jpg":     62 * time.Minute,
		"notes.txt": 0,
	})
}

func morningEvaluator() analysis.Evaluator {
	return evaluatorFunc(func(ctx context.Context, req *analysis.Request) (string, error) {
		if len(req.Images) == 3 {
			return `{"event_name":"Morning Walk","scores":[80,60,90],"best_index":3,"reason":"Pure joy."}`, nil
		}
		return "```json\n{\"event_name\":\"Coffee Break\",\"scores\":[70,75],\"best_index\":2,\"reason\":\"Warm.\"}\n```", nil
	})
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	inDir := morningInput(t)
	outDir := filepath.Join(t.TempDir(), "output")

	uc := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{}))
	report, err := uc.Run(ctx, curate.Input{
		InputDir:  inDir,
		OutputDir: outDir,
		Gap:       30 * time.Minute,
	})
	gt.NoError(t, err)

	gt.Equal(t, report.Discovered, 5)
	gt.A(t, report.Groups).Length(2)
	gt.Equal(t, report.Groups[0].Len(), 3)
	gt.Equal(t, report.Groups[1].Len(), 2)
	gt.Equal(t, report.Results[0].BestIndex, 2)
	gt.Equal(t, report.Fallbacks(), 0)

	folder := filepath.Join(outDir, "2024-05-01_Morning_Walk")
	entries, err := os.ReadDir(folder)
	gt.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	gt.Equal(t, strings.Join(names, ","), "No.1_c_score90.jpg,No.2_a_score80.jpg,No.3_b_score60.jpg")

	_, err = os.Stat(filepath.Join(outDir, "2024-05-01_Coffee_Break", "No.1_e_score75.jpg"))
	gt.NoError(t, err)

	doc, err := os.ReadFile(filepath.Join(outDir, materialize.SummaryFileName))
	gt.NoError(t, err)
	gt.S(t, string(doc)).Contains("| 1 | c.jpg | 90 **BEST** |")
	gt.S(t, string(doc)).Contains("**Events identified:** 2")

	// sources are untouched
	_, err = os.Stat(filepath.Join(inDir, "c.jpg"))
	gt.NoError(t, err)
}

func TestRunFailingCollaboratorKeepsGoing(t *testing.T) {
	inDir := morningInput(t)
	outDir := t.TempDir()

	var calls int
	evaluator := evaluatorFunc(func(ctx context.Context, req *analysis.Request) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("service unavailable")
		}
		return "not json", nil
	})

	report, err := curate.New(analysis.New(evaluator, stubThumbnailer{})).Run(context.Background(), curate.Input{
		InputDir:  inDir,
		OutputDir: outDir,
	})
	gt.NoError(t, err)
	gt.Equal(t, calls, 2)
	gt.Equal(t, report.Fallbacks(), 2)

	// both defaults land in the same placeholder folder for the day
	entries, err := os.ReadDir(filepath.Join(outDir, "2024-05-01_Unknown_Event"))
	gt.NoError(t, err)
	gt.A(t, entries).Length(5)
}

func TestRunNoAssets(t *testing.T) {
	uc := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{}))

	_, err := uc.Run(context.Background(), curate.Input{
		InputDir:  setupInput(t, map[string]time.Duration{"readme.md": 0}),
		OutputDir: t.TempDir(),
	})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, curate.ErrNoAssets))
}

func TestRunMissingInputDir(t *testing.T) {
	uc := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{}))

	_, err := uc.Run(context.Background(), curate.Input{
		InputDir:  filepath.Join(t.TempDir(), "missing"),
		OutputDir: t.TempDir(),
	})
	gt.Error(t, err)
	gt.False(t, errors.Is(err, curate.ErrNoAssets))
}

func TestRunDryRunWritesNothing(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "output")
	uc := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{}))

	report, err := uc.Run(context.Background(), curate.Input{
		InputDir:  morningInput(t),
		OutputDir: outDir,
		DryRun:    true,
	})
	gt.NoError(t, err)
	gt.True(t, report.DryRun)
	gt.Equal(t, report.Summary.Events[0].Folder, "2024-05-01_Morning_Walk")

	_, err = os.Stat(outDir)
	gt.True(t, os.IsNotExist(err))
}

func TestRunPolicyExcludesEverything(t *testing.T) {
	policyDir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(policyDir, "all.rego"), []byte("package curate\n\nexclude := true\n"), 0644))
	filter, err := policy.Load(context.Background(), policyDir)
	gt.NoError(t, err)

	uc := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{}), curate.WithFilter(filter))
	_, err = uc.Run(context.Background(), curate.Input{
		InputDir:  morningInput(t),
		OutputDir: t.TempDir(),
	})
	gt.True(t, errors.Is(err, curate.ErrNoAssets))
}

func TestRunParallelKeepsGroupOrder(t *testing.T) {
	offsets := map[string]time.Duration{}
	for i := 0; i < 8; i++ {
		offsets[fmt.Sprintf("img_%d.jpg", i)] = time.Duration(i) * 2 * time.Hour
	}
	inDir := setupInput(t, offsets)

	var mu sync.Mutex
	inflight, peak := 0, 0
	evaluator := evaluatorFunc(func(ctx context.Context, req *analysis.Request) (string, error) {
		mu.Lock()
		inflight++
		peak = max(peak, inflight)
		mu.Unlock()

		// later events answer sooner so completion order differs from event order
		idx := strings.TrimSuffix(strings.TrimPrefix(req.Images[0].Name, "img_"), ".jpg")
		var n int
		_, _ = fmt.Sscanf(idx, "%d", &n)
		time.Sleep(time.Duration(8-n) * 5 * time.Millisecond)

		mu.Lock()
		inflight--
		mu.Unlock()
		return fmt.Sprintf(`{"event_name":"Event %d","scores":[60],"best_index":1}`, n), nil
	})

	uc := curate.New(analysis.New(evaluator, stubThumbnailer{}), curate.WithParallelism(3))
	report, err := uc.Run(context.Background(), curate.Input{
		InputDir:  inDir,
		OutputDir: t.TempDir(),
		DryRun:    true,
	})
	gt.NoError(t, err)
	gt.A(t, report.Results).Length(8)
	for i, result := range report.Results {
		gt.Equal(t, result.EventName, fmt.Sprintf("Event %d", i))
		gt.Equal(t, report.Summary.Events[i].Name, fmt.Sprintf("Event %d", i))
	}
	gt.True(t, peak <= 3)
}

func TestRunRerunIsAdditive(t *testing.T) {
	inDir := morningInput(t)
	outDir := t.TempDir()

	_, err := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{})).Run(context.Background(), curate.Input{
		InputDir:  inDir,
		OutputDir: outDir,
	})
	gt.NoError(t, err)

	renamed := evaluatorFunc(func(ctx context.Context, req *analysis.Request) (string, error) {
		return `{"event_name":"Sunday Stroll","scores":[50,50,50,50,50],"best_index":1}`, nil
	})
	_, err = curate.New(analysis.New(renamed, stubThumbnailer{})).Run(context.Background(), curate.Input{
		InputDir:  inDir,
		OutputDir: outDir,
	})
	gt.NoError(t, err)

	for _, folder := range []string{"2024-05-01_Morning_Walk", "2024-05-01_Coffee_Break", "2024-05-01_Sunday_Stroll"} {
		_, err := os.Stat(filepath.Join(outDir, folder))
		gt.NoError(t, err)
	}
	_, err = os.Stat(filepath.Join(outDir, "2024-05-01_Morning_Walk", "No.1_c_score90.jpg"))
	gt.NoError(t, err)
}

type renameReviewer struct {
	names []string
	seen  int
}

func (r *renameReviewer) Review(ctx context.Context, group *model.EventGroup, result *model.AnalysisResult) (string, error) {
	name := r.names[r.seen]
	r.seen++
	return name, nil
}

func TestRunReviewOverridesNames(t *testing.T) {
	outDir := t.TempDir()
	reviewer := &renameReviewer{names: []string{"Dog Walk", ""}}

	report, err := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{}), curate.WithReviewer(reviewer)).
		Run(context.Background(), curate.Input{
			InputDir:  morningInput(t),
			OutputDir: outDir,
		})
	gt.NoError(t, err)
	gt.Equal(t, reviewer.seen, 2)
	gt.Equal(t, report.Results[0].EventName, "Dog Walk")
	gt.Equal(t, report.Results[1].EventName, "Coffee Break")

	_, err = os.Stat(filepath.Join(outDir, "2024-05-01_Dog_Walk"))
	gt.NoError(t, err)
}

type countingProgress struct {
	started, stopped int
}

func (p *countingProgress) Start(string) { p.started++ }
func (p *countingProgress) Stop()        { p.stopped++ }

func TestRunReportsProgress(t *testing.T) {
	progress := &countingProgress{}
	_, err := curate.New(analysis.New(morningEvaluator(), stubThumbnailer{}), curate.WithProgress(progress)).
		Run(context.Background(), curate.Input{
			InputDir: morningInput(t),
			DryRun:   true,
		})
	gt.NoError(t, err)
	gt.Equal(t, progress.started, 2)
	gt.Equal(t, progress.stopped, 2)
}
