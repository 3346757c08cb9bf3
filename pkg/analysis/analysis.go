package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/curator/pkg/utils/logging"
)

// Evaluator sends one rendered request to the analysis service and returns
// its raw text answer
type Evaluator interface {
	Evaluate(ctx context.Context, req *Request) (string, error)
}

// Thumbnailer renders a transmittable JPEG preview of an asset
type Thumbnailer interface {
	Render(path string) ([]byte, error)
}

// Request is the provider independent form of one group evaluation
type Request struct {
	Rubric string
	Images []Image
}

// Image is one group member as presented to the analysis service
type Image struct {
	Position int // 1-based
	Name     string
	Caption  string
	Data     []byte // nil when no preview could be rendered
	MIMEType string
}

type FallbackReason string

const (
	FallbackTransport FallbackReason = "transport"
	FallbackParse     FallbackReason = "parse"
	FallbackPreview   FallbackReason = "preview"
)

// Analyzer turns an event group into an AnalysisResult
type Analyzer struct {
	evaluator   Evaluator
	thumbnailer Thumbnailer
	onFallback  func(FallbackReason)
	onEvaluated func(time.Duration)
}

type Option func(*Analyzer)

// WithFallbackHook is called every time a group result is replaced with defaults
func WithFallbackHook(fn func(FallbackReason)) Option {
	return func(a *Analyzer) {
		a.onFallback = fn
	}
}

// WithDurationHook is called with the round trip time of every evaluation
func WithDurationHook(fn func(time.Duration)) Option {
	return func(a *Analyzer) {
		a.onEvaluated = fn
	}
}

func New(evaluator Evaluator, thumbnailer Thumbnailer, opts ...Option) *Analyzer {
	a := &Analyzer{
		evaluator:   evaluator,
		thumbnailer: thumbnailer,
		onFallback:  func(FallbackReason) {},
		onEvaluated: func(time.Duration) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze evaluates group exactly once. It never fails: any service,
// transport or parse problem yields the default result for the group.
func (a *Analyzer) Analyze(ctx context.Context, group *model.EventGroup) *model.AnalysisResult {
	logger := logging.From(ctx)
	n := group.Len()
	if n == 0 {
		return Default(0, "empty event group")
	}

	rubric, err := Rubric(n)
	if err != nil {
		a.onFallback(FallbackParse)
		return Default(n, "failed to build rubric: "+err.Error())
	}

	req := &Request{
		Rubric: rubric,
		Images: make([]Image, 0, n),
	}
	rendered := 0
	for i, asset := range group.Assets {
		img := Image{
			Position: i + 1,
			Name:     asset.Name(),
			MIMEType: "image/jpeg",
		}

		data, err := a.thumbnailer.Render(asset.Path)
		if err != nil {
			logger.Warn("preview unavailable", "path", asset.Path, "error", err)
		} else {
			img.Data = data
			rendered++
		}
		img.Caption = caption(img.Position, asset, img.Data != nil)
		req.Images = append(req.Images, img)
	}

	if rendered == 0 {
		a.onFallback(FallbackPreview)
		logger.Warn("no preview could be rendered, using defaults", "photos", n)
		return Default(n, "no preview could be rendered for this event")
	}

	logger.Debug("sending event group for analysis", "photos", n, "previews", rendered)
	started := time.Now()
	text, err := a.evaluator.Evaluate(ctx, req)
	a.onEvaluated(time.Since(started))
	if err != nil {
		a.onFallback(FallbackTransport)
		logger.Warn("analysis request failed, using defaults", "error", err)
		return Default(n, "analysis request failed: "+err.Error())
	}

	result := ParseResponse(text, n)
	if result.Fallback {
		a.onFallback(FallbackParse)
		logger.Warn("analysis response is not valid JSON, using defaults", "response", truncate(text, 200))
	}
	return result
}

func caption(position int, asset *model.AssetRecord, hasPreview bool) string {
	text := fmt.Sprintf("(Photo %d: %s, captured %s", position, asset.Name(), asset.Timestamp.Format("2006-01-02 15:04"))
	if asset.Geo != nil {
		text += fmt.Sprintf(", near %.4f,%.4f", asset.Geo.Latitude, asset.Geo.Longitude)
	}
	if !hasPreview {
		text += ", preview unavailable"
	}
	return text + ")"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
