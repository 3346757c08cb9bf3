package cli

import (
	"context"
	"math"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/curator/pkg/adapter"
	"github.com/m-mizutani/curator/pkg/analysis"
	"github.com/m-mizutani/curator/pkg/cluster"
	"github.com/m-mizutani/curator/pkg/materialize"
	"github.com/m-mizutani/curator/pkg/metadata"
	"github.com/m-mizutani/curator/pkg/thumbnail"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// errConfig marks failures that must stop the run before any work starts
var errConfig = goerr.New("configuration error")

const (
	providerGemini = "gemini"
	providerOpenAI = "openai"
)

// config holds configuration values
type config struct {
	configFile string
	logLevel   string

	// Pipeline
	inputDir      string
	outputDir     string
	gap           time.Duration
	extensions    []string
	thumbnailSize int64
	nameLength    int64
	parallel      int64
	review        bool
	dryRun        bool
	policyDir     string
	metricsFile   string

	// Analysis service
	provider       string
	model          string
	geminiAPIKey   string
	geminiProject  string
	geminiLocation string
	// geminiThinking is only used when thinkingSet, otherwise the model decides
	geminiThinking int64
	thinkingSet    bool
	openAIAPIKey   string
	openAIBaseURL  string

	// Summary mirror
	summaryBucket  string
	summaryPrefix  string
	gcsCredentials string
}

// fileConfig is the YAML form of config. Keys match flag names.
type fileConfig struct {
	Input          *string  `yaml:"input"`
	Output         *string  `yaml:"output"`
	Gap            *string  `yaml:"gap"`
	Extensions     []string `yaml:"extensions"`
	ThumbnailSize  *int64   `yaml:"thumbnail-size"`
	NameLength     *int64   `yaml:"name-length"`
	Parallel       *int64   `yaml:"parallel"`
	PolicyDir      *string  `yaml:"policy-dir"`
	MetricsFile    *string  `yaml:"metrics-file"`
	Provider       *string  `yaml:"provider"`
	Model          *string  `yaml:"model"`
	OpenAIBaseURL  *string  `yaml:"openai-base-url"`
	GeminiProject  *string  `yaml:"gemini-project"`
	GeminiLocation *string  `yaml:"gemini-location"`
	GeminiThinking *int64   `yaml:"gemini-thinking-budget"`
	SummaryBucket  *string  `yaml:"summary-bucket"`
	SummaryPrefix  *string  `yaml:"summary-prefix"`
	GCSCredentials *string  `yaml:"gcs-credentials"`
	LogLevel       *string  `yaml:"log-level"`
}

// globalFlags returns flags shared by every command
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "YAML file with default values for unset flags",
			Sources:     cli.EnvVars("CURATOR_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("CURATOR_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// pipelineFlags returns flags controlling discovery, clustering and output
func pipelineFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Directory holding the photos to curate",
			Value:       "input",
			Sources:     cli.EnvVars("CURATOR_INPUT"),
			Destination: &cfg.inputDir,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Directory receiving event folders and summary.md",
			Value:       "output",
			Sources:     cli.EnvVars("CURATOR_OUTPUT"),
			Destination: &cfg.outputDir,
		},
		&cli.DurationFlag{
			Name:        "gap",
			Usage:       "Largest time gap between photos of the same event",
			Value:       cluster.DefaultGap,
			Sources:     cli.EnvVars("CURATOR_GAP"),
			Destination: &cfg.gap,
		},
		&cli.StringSliceFlag{
			Name:        "extensions",
			Usage:       "File extensions treated as photos",
			Value:       metadata.DefaultExtensions,
			Sources:     cli.EnvVars("CURATOR_EXTENSIONS"),
			Destination: &cfg.extensions,
		},
		&cli.IntFlag{
			Name:        "thumbnail-size",
			Usage:       "Longest side in pixels of previews sent for analysis",
			Value:       thumbnail.DefaultMaxDimension,
			Sources:     cli.EnvVars("CURATOR_THUMBNAIL_SIZE"),
			Destination: &cfg.thumbnailSize,
		},
		&cli.IntFlag{
			Name:        "name-length",
			Usage:       "Maximum length of the event part of folder names",
			Value:       materialize.DefaultNameLength,
			Sources:     cli.EnvVars("CURATOR_NAME_LENGTH"),
			Destination: &cfg.nameLength,
		},
		&cli.IntFlag{
			Name:        "parallel",
			Usage:       "Number of events analyzed concurrently",
			Value:       1,
			Sources:     cli.EnvVars("CURATOR_PARALLEL"),
			Destination: &cfg.parallel,
		},
		&cli.BoolFlag{
			Name:        "review",
			Usage:       "Confirm or rename every event before copying",
			Destination: &cfg.review,
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Analyze and print the plan without writing output",
			Destination: &cfg.dryRun,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies excluding assets (data.curate.exclude)",
			Sources:     cli.EnvVars("CURATOR_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "metrics-file",
			Usage:       "Write run metrics in Prometheus text format to this file",
			Sources:     cli.EnvVars("CURATOR_METRICS_FILE"),
			Destination: &cfg.metricsFile,
		},
	}
}

// llmFlags returns flags for the analysis service
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "Analysis service (gemini or openai)",
			Value:       providerGemini,
			Sources:     cli.EnvVars("CURATOR_PROVIDER"),
			Destination: &cfg.provider,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Model name, provider default when empty",
			Sources:     cli.EnvVars("CURATOR_MODEL"),
			Destination: &cfg.model,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini Developer API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.IntFlag{
			Name:        "gemini-thinking-budget",
			Usage:       "Gemini thinking token budget, negative for the model default (default: 0 for flash models)",
			Sources:     cli.EnvVars("GEMINI_THINKING_BUDGET"),
			Destination: &cfg.geminiThinking,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openAIAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible endpoint",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &cfg.openAIBaseURL,
		},
	}
}

// storageFlags returns flags for mirroring the summary to Cloud Storage
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "summary-bucket",
			Usage:       "Cloud Storage bucket receiving a copy of summary.md",
			Sources:     cli.EnvVars("CURATOR_SUMMARY_BUCKET"),
			Destination: &cfg.summaryBucket,
		},
		&cli.StringFlag{
			Name:        "summary-prefix",
			Usage:       "Object prefix for the mirrored summary",
			Value:       "curator",
			Sources:     cli.EnvVars("CURATOR_SUMMARY_PREFIX"),
			Destination: &cfg.summaryPrefix,
		},
		&cli.StringFlag{
			Name:        "gcs-credentials",
			Usage:       "Service account key file for Cloud Storage",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.gcsCredentials,
		},
	}
}

// loadFile fills every flag the user did not set from the YAML config file
func (cfg *config) loadFile(c *cli.Command) error {
	cfg.thinkingSet = c.IsSet("gemini-thinking-budget")
	if cfg.configFile == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.configFile)
	if err != nil {
		return goerr.Wrap(errConfig, "failed to read config file", goerr.V("path", cfg.configFile), goerr.V("error", err.Error()))
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return goerr.Wrap(errConfig, "failed to parse config file", goerr.V("path", cfg.configFile), goerr.V("error", err.Error()))
	}

	setString := func(name string, src *string, dst *string) {
		if src != nil && !c.IsSet(name) {
			*dst = *src
		}
	}
	setInt := func(name string, src *int64, dst *int64) {
		if src != nil && !c.IsSet(name) {
			*dst = *src
		}
	}

	setString("input", file.Input, &cfg.inputDir)
	setString("output", file.Output, &cfg.outputDir)
	setString("policy-dir", file.PolicyDir, &cfg.policyDir)
	setString("metrics-file", file.MetricsFile, &cfg.metricsFile)
	setString("provider", file.Provider, &cfg.provider)
	setString("model", file.Model, &cfg.model)
	setString("openai-base-url", file.OpenAIBaseURL, &cfg.openAIBaseURL)
	setString("gemini-project", file.GeminiProject, &cfg.geminiProject)
	setString("gemini-location", file.GeminiLocation, &cfg.geminiLocation)
	setString("summary-bucket", file.SummaryBucket, &cfg.summaryBucket)
	setString("summary-prefix", file.SummaryPrefix, &cfg.summaryPrefix)
	setString("gcs-credentials", file.GCSCredentials, &cfg.gcsCredentials)
	setString("log-level", file.LogLevel, &cfg.logLevel)
	setInt("thumbnail-size", file.ThumbnailSize, &cfg.thumbnailSize)
	setInt("name-length", file.NameLength, &cfg.nameLength)
	setInt("parallel", file.Parallel, &cfg.parallel)
	if file.GeminiThinking != nil && !cfg.thinkingSet {
		cfg.geminiThinking = *file.GeminiThinking
		cfg.thinkingSet = true
	}

	if len(file.Extensions) > 0 && !c.IsSet("extensions") {
		cfg.extensions = file.Extensions
	}
	if file.Gap != nil && !c.IsSet("gap") {
		gap, err := time.ParseDuration(*file.Gap)
		if err != nil {
			return goerr.Wrap(errConfig, "invalid gap in config file", goerr.V("gap", *file.Gap))
		}
		cfg.gap = gap
	}

	return nil
}

// validate checks values and credentials before any processing starts
func (cfg *config) validate() error {
	if cfg.gap <= 0 {
		return goerr.Wrap(errConfig, "gap must be positive", goerr.V("gap", cfg.gap.String()))
	}
	if cfg.thumbnailSize <= 0 {
		return goerr.Wrap(errConfig, "thumbnail-size must be positive", goerr.V("thumbnail-size", cfg.thumbnailSize))
	}
	if cfg.nameLength <= 0 {
		return goerr.Wrap(errConfig, "name-length must be positive", goerr.V("name-length", cfg.nameLength))
	}

	switch strings.ToLower(cfg.provider) {
	case providerGemini:
		if cfg.geminiAPIKey == "" && cfg.geminiProject == "" {
			return goerr.Wrap(errConfig, "gemini-api-key or gemini-project is required")
		}
		if cfg.geminiAPIKey == "" && cfg.geminiLocation == "" {
			return goerr.Wrap(errConfig, "gemini-location is required")
		}
	case providerOpenAI:
		if cfg.openAIAPIKey == "" {
			return goerr.Wrap(errConfig, "openai-api-key is required")
		}
	default:
		return goerr.Wrap(errConfig, "unknown provider", goerr.V("provider", cfg.provider))
	}
	return nil
}

// newEvaluator creates the analysis service client selected by provider
func (cfg *config) newEvaluator(ctx context.Context) (analysis.Evaluator, error) {
	switch strings.ToLower(cfg.provider) {
	case providerOpenAI:
		client := adapter.NewOpenAI(cfg.openAIAPIKey,
			adapter.WithOpenAIModel(cfg.model),
			adapter.WithOpenAIBaseURL(cfg.openAIBaseURL),
		)
		return analysis.NewOpenAIEvaluator(client), nil

	default:
		gemini, err := adapter.NewGemini(ctx, adapter.GeminiConfig{
			APIKey:   cfg.geminiAPIKey,
			Project:  cfg.geminiProject,
			Location: cfg.geminiLocation,
		}, adapter.WithGenerativeModel(cfg.model))
		if err != nil {
			return nil, goerr.Wrap(errConfig, "failed to create gemini client", goerr.V("error", err.Error()))
		}
		return analysis.NewGeminiEvaluator(gemini, analysis.WithThinkingBudget(cfg.thinkingBudget()))
	}
}

// newStorage creates the summary mirror, nil when no bucket is configured
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.summaryBucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.summaryBucket, cfg.gcsCredentials)
	if err != nil {
		return nil, goerr.Wrap(errConfig, "failed to create storage", goerr.V("error", err.Error()))
	}
	return storage, nil
}

// thinkingBudget returns the explicit budget when one was given, otherwise
// the default for the selected model
func (cfg *config) thinkingBudget() *int32 {
	if !cfg.thinkingSet {
		return analysis.DefaultThinkingBudget(cfg.model)
	}
	if cfg.geminiThinking < 0 {
		return nil
	}
	budget := int32(min(cfg.geminiThinking, math.MaxInt32))
	return &budget
}
