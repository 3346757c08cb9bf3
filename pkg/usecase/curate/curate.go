package curate

import (
	"context"

	"github.com/m-mizutani/curator/pkg/materialize"
	"github.com/m-mizutani/curator/pkg/metadata"
	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/curator/pkg/policy"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNoAssets is returned when the input directory holds nothing to curate
var ErrNoAssets = goerr.New("no supported assets found")

// Analyzer labels and scores one event group. It must not fail.
type Analyzer interface {
	Analyze(ctx context.Context, group *model.EventGroup) *model.AnalysisResult
}

// Progress is notified around every blocking analysis call
type Progress interface {
	Start(message string)
	Stop()
}

// Reviewer may replace the event name of an analyzed group before
// materialization. An empty answer keeps the current name.
type Reviewer interface {
	Review(ctx context.Context, group *model.EventGroup, result *model.AnalysisResult) (string, error)
}

// Recorder receives run statistics
type Recorder interface {
	ObserveAsset(asset *model.AssetRecord)
	AddExcluded(n int)
	AddEvents(n int)
}

type nopProgress struct{}

func (nopProgress) Start(string) {}
func (nopProgress) Stop()        {}

type nopRecorder struct{}

func (nopRecorder) ObserveAsset(*model.AssetRecord) {}
func (nopRecorder) AddExcluded(int)                 {}
func (nopRecorder) AddEvents(int)                   {}

// UseCase runs the curation pipeline: discover, extract, filter, cluster,
// analyze, review and materialize
type UseCase struct {
	analyzer     Analyzer
	extractor    *metadata.Extractor
	materializer *materialize.Materializer
	filter       *policy.Filter
	progress     Progress
	reviewer     Reviewer
	recorder     Recorder
	parallelism  int
}

type Option func(*UseCase)

func WithExtractor(e *metadata.Extractor) Option {
	return func(uc *UseCase) {
		uc.extractor = e
	}
}

func WithMaterializer(m *materialize.Materializer) Option {
	return func(uc *UseCase) {
		uc.materializer = m
	}
}

func WithFilter(f *policy.Filter) Option {
	return func(uc *UseCase) {
		uc.filter = f
	}
}

func WithProgress(p Progress) Option {
	return func(uc *UseCase) {
		uc.progress = p
	}
}

func WithReviewer(r Reviewer) Option {
	return func(uc *UseCase) {
		uc.reviewer = r
	}
}

func WithRecorder(r Recorder) Option {
	return func(uc *UseCase) {
		uc.recorder = r
	}
}

// WithParallelism sets how many groups are analyzed at the same time.
// Values below 2 keep analysis sequential.
func WithParallelism(n int) Option {
	return func(uc *UseCase) {
		uc.parallelism = n
	}
}

func New(analyzer Analyzer, opts ...Option) *UseCase {
	uc := &UseCase{
		analyzer:     analyzer,
		extractor:    metadata.New(),
		materializer: materialize.New(),
		filter:       &policy.Filter{},
		progress:     nopProgress{},
		recorder:     nopRecorder{},
		parallelism:  1,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
