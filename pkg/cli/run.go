package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/curator/pkg/analysis"
	"github.com/m-mizutani/curator/pkg/materialize"
	"github.com/m-mizutani/curator/pkg/metadata"
	"github.com/m-mizutani/curator/pkg/metrics"
	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/curator/pkg/policy"
	"github.com/m-mizutani/curator/pkg/thumbnail"
	"github.com/m-mizutani/curator/pkg/usecase/curate"
	"github.com/m-mizutani/curator/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func curateCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "curator",
		Usage:     "Group photos into events and pick the best shots of each",
		ArgsUsage: " ",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Present() {
				return goerr.Wrap(errConfig, "unexpected argument, options must be given as flags",
					goerr.V("args", c.Args().Slice()))
			}
			if err := cfg.loadFile(c); err != nil {
				return err
			}

			level, err := logging.ParseLevel(cfg.logLevel)
			if err != nil {
				return goerr.Wrap(errConfig, "invalid log level", goerr.V("level", cfg.logLevel))
			}
			logger := logging.New(level, c.Root().ErrWriter)
			logging.SetDefault(logger)
			ctx = logging.With(ctx, logger)

			// Credentials are checked before touching any file
			if err := cfg.validate(); err != nil {
				return err
			}

			return runCuration(ctx, c, &cfg)
		},
	}
}

func runCuration(ctx context.Context, c *cli.Command, cfg *config) error {
	evaluator, err := cfg.newEvaluator(ctx)
	if err != nil {
		return err
	}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return err
	}

	filter, err := policy.Load(ctx, cfg.policyDir)
	if err != nil {
		return goerr.Wrap(errConfig, "failed to load policy", goerr.V("dir", cfg.policyDir), goerr.V("error", err.Error()))
	}

	recorder, err := metrics.New()
	if err != nil {
		return err
	}
	if cfg.metricsFile != "" {
		defer func() {
			if err := recorder.WriteTextfile(cfg.metricsFile); err != nil {
				logging.From(ctx).Error("failed to write metrics", "error", err)
			}
		}()
	}

	runID := model.NewRunID()
	ctx = logging.With(ctx, logging.From(ctx).With("run_id", runID))

	analyzer := analysis.New(evaluator,
		thumbnail.New(thumbnail.WithMaxDimension(uint(cfg.thumbnailSize))),
		analysis.WithFallbackHook(recorder.Fallback),
		analysis.WithDurationHook(recorder.ObserveAnalysis),
	)

	matOpts := []materialize.Option{
		materialize.WithRunID(runID),
		materialize.WithNameLength(int(cfg.nameLength)),
		materialize.WithCopyHook(recorder.Copied),
	}
	if storage != nil {
		matOpts = append(matOpts, materialize.WithStorage(storage, cfg.summaryPrefix))
	}

	opts := []curate.Option{
		curate.WithExtractor(metadata.New()),
		curate.WithMaterializer(materialize.New(matOpts...)),
		curate.WithFilter(filter),
		curate.WithRecorder(recorder),
		curate.WithParallelism(int(cfg.parallel)),
		curate.WithProgress(newSpinnerProgress(c.Root().ErrWriter)),
	}
	if cfg.review {
		reviewer, err := newReadlineReviewer(os.Stdin, c.Root().Writer)
		if err != nil {
			return err
		}
		defer reviewer.Close()
		opts = append(opts, curate.WithReviewer(reviewer))
	}

	report, err := curate.New(analyzer, opts...).Run(ctx, curate.Input{
		InputDir:   cfg.inputDir,
		OutputDir:  cfg.outputDir,
		Extensions: cfg.extensions,
		Gap:        cfg.gap,
		DryRun:     cfg.dryRun,
	})
	if err != nil {
		return err
	}

	return printReport(c.Root().Writer, report, cfg.outputDir)
}

func printReport(w io.Writer, report *curate.Report, outDir string) error {
	if report.DryRun {
		fmt.Fprintf(w, "Dry run, nothing was written. Planned summary:\n\n")
		return report.Summary.Render(w)
	}

	copied := 0
	for _, event := range report.Summary.Events {
		best := event.Best()
		fmt.Fprintf(w, "%s: %d photo(s), best %s (score %d)\n",
			event.Folder, len(event.Ranks), best.Asset.Name(), best.Score)
		copied += len(event.Ranks)
	}
	fmt.Fprintf(w, "\n%d photo(s) organized into %d event(s)", copied, len(report.Summary.Events))
	if report.Excluded > 0 {
		fmt.Fprintf(w, ", %d excluded by policy", report.Excluded)
	}
	if n := report.Fallbacks(); n > 0 {
		fmt.Fprintf(w, ", %d event(s) without analysis", n)
	}
	fmt.Fprintf(w, "\nOutput: %s\n", outDir)
	return nil
}
