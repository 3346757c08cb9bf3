package curate

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/curator/pkg/cluster"
	"github.com/m-mizutani/curator/pkg/materialize"
	"github.com/m-mizutani/curator/pkg/metadata"
	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/curator/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Input describes one run
type Input struct {
	InputDir   string
	OutputDir  string
	Extensions []string
	Gap        time.Duration
	DryRun     bool
}

// Report is what a run produced. Groups and Results are aligned by index.
type Report struct {
	Discovered int
	Excluded   int
	Groups     []*model.EventGroup
	Results    []*model.AnalysisResult
	Summary    *materialize.Summary
	DryRun     bool
}

// Fallbacks counts groups whose result was replaced with defaults
func (r *Report) Fallbacks() int {
	n := 0
	for _, result := range r.Results {
		if result.Fallback {
			n++
		}
	}
	return n
}

func (u *UseCase) Run(ctx context.Context, input Input) (*Report, error) {
	gap := input.Gap
	if gap <= 0 {
		gap = cluster.DefaultGap
	}

	scanCtx := logging.WithStage(ctx, "discover")
	candidates, err := metadata.Scan(scanCtx, input.InputDir, input.Extensions)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, goerr.Wrap(ErrNoAssets, "input directory is empty", goerr.V("dir", input.InputDir))
	}
	logging.From(scanCtx).Info("assets discovered", "count", len(candidates), "dir", input.InputDir)

	records := make([]*model.AssetRecord, 0, len(candidates))
	for _, c := range candidates {
		record := u.extractor.Extract(c.Path, c.ModTime)
		u.recorder.ObserveAsset(record)
		records = append(records, record)
	}

	kept, excluded, err := u.filter.Apply(logging.WithStage(ctx, "filter"), records)
	if err != nil {
		return nil, err
	}
	u.recorder.AddExcluded(excluded)
	if len(kept) == 0 {
		return nil, goerr.Wrap(ErrNoAssets, "every asset was excluded by policy", goerr.V("excluded", excluded))
	}

	groups := cluster.Cluster(kept, gap)
	u.recorder.AddEvents(len(groups))
	logging.From(ctx).Info("assets clustered into events", "assets", len(kept), "events", len(groups), "gap", gap.String())

	results, err := u.analyzeAll(logging.WithStage(ctx, "analyze"), groups)
	if err != nil {
		return nil, err
	}

	if u.reviewer != nil {
		if err := u.review(ctx, groups, results); err != nil {
			return nil, err
		}
	}

	report := &Report{
		Discovered: len(candidates),
		Excluded:   excluded,
		Groups:     groups,
		Results:    results,
		DryRun:     input.DryRun,
	}

	if input.DryRun {
		summary, err := u.materializer.Plan(groups, results)
		if err != nil {
			return nil, err
		}
		report.Summary = summary
		return report, nil
	}

	summary, err := u.materializer.Materialize(logging.WithStage(ctx, "materialize"), groups, results, input.OutputDir)
	if err != nil {
		return nil, err
	}
	report.Summary = summary
	return report, nil
}

func (u *UseCase) analyzeAll(ctx context.Context, groups []*model.EventGroup) ([]*model.AnalysisResult, error) {
	results := make([]*model.AnalysisResult, len(groups))

	if u.parallelism < 2 || len(groups) < 2 {
		for i, group := range groups {
			u.progress.Start(fmt.Sprintf("Analyzing event %d/%d (%d photos)", i+1, len(groups), group.Len()))
			results[i] = u.analyzer.Analyze(ctx, group)
			u.progress.Stop()
			logAnalysis(ctx, i, group, results[i])
		}
		return results, nil
	}

	u.progress.Start(fmt.Sprintf("Analyzing %d events", len(groups)))
	defer u.progress.Stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(u.parallelism)
	for i, group := range groups {
		eg.Go(func() error {
			// each goroutine owns results[i]
			results[i] = u.analyzer.Analyze(egCtx, group)
			logAnalysis(egCtx, i, group, results[i])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, goerr.Wrap(err, "failed to analyze events")
	}
	return results, nil
}

func logAnalysis(ctx context.Context, index int, group *model.EventGroup, result *model.AnalysisResult) {
	logging.From(ctx).Info("event analyzed",
		"event", index+1,
		"name", result.EventName,
		"photos", group.Len(),
		"best", group.Assets[result.BestIndex].Name(),
		"score", result.ScoreAt(result.BestIndex),
		"fallback", result.Fallback,
	)
}

func (u *UseCase) review(ctx context.Context, groups []*model.EventGroup, results []*model.AnalysisResult) error {
	for i, group := range groups {
		name, err := u.reviewer.Review(ctx, group, results[i])
		if err != nil {
			return goerr.Wrap(err, "failed to review event", goerr.V("event", i+1))
		}
		if name != "" && name != results[i].EventName {
			logging.From(ctx).Info("event renamed", "event", i+1, "from", results[i].EventName, "to", name)
			results[i] = results[i].WithEventName(name)
		}
	}
	return nil
}
