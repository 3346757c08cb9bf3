package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/curator/pkg/model"
	"github.com/m-mizutani/curator/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// ExcludeQuery is evaluated once per asset; a true result drops the asset
const ExcludeQuery = "data.curate.exclude"

// Filter decides which assets take part in a run
type Filter struct {
	exclude *rego.PreparedEvalQuery
}

// regoPrintHook forwards Rego print() output to the context logger
type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Load reads every .rego file in policyDir. An empty policyDir or a directory
// without policy files gives a Filter that keeps everything.
func Load(ctx context.Context, policyDir string) (*Filter, error) {
	if policyDir == "" {
		return &Filter{}, nil
	}

	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
	}
	if len(files) == 0 {
		return &Filter{}, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+2)
	options = append(options, rego.Query(ExcludeQuery), rego.EnablePrintStatements(true))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare query", goerr.V("query", ExcludeQuery))
	}

	logging.From(ctx).Debug("policy loaded", "dir", policyDir, "files", len(files))
	return &Filter{exclude: &prepared}, nil
}

// Enabled reports whether any policy was loaded
func (f *Filter) Enabled() bool {
	return f != nil && f.exclude != nil
}

// Excluded evaluates the policy for one asset
func (f *Filter) Excluded(ctx context.Context, asset *model.AssetRecord) (bool, error) {
	if !f.Enabled() {
		return false, nil
	}

	rs, err := f.exclude.Eval(ctx, rego.EvalInput(Input(asset)), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate policy", goerr.V("path", asset.Path))
	}

	// exclude is undefined
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}

	excluded, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, goerr.New("exclude must be a boolean",
			goerr.V("path", asset.Path),
			goerr.V("value", rs[0].Expressions[0].Value))
	}
	return excluded, nil
}

// Apply returns the assets the policy keeps, in their original order
func (f *Filter) Apply(ctx context.Context, assets []*model.AssetRecord) (kept []*model.AssetRecord, excluded int, err error) {
	if !f.Enabled() {
		return assets, 0, nil
	}

	logger := logging.From(ctx)
	kept = make([]*model.AssetRecord, 0, len(assets))
	for _, asset := range assets {
		drop, err := f.Excluded(ctx, asset)
		if err != nil {
			return nil, 0, err
		}
		if drop {
			logger.Info("asset excluded by policy", "path", asset.Path)
			excluded++
			continue
		}
		kept = append(kept, asset)
	}
	return kept, excluded, nil
}

// Input is the document an exclusion policy sees as `input`
func Input(asset *model.AssetRecord) map[string]any {
	input := map[string]any{
		"path":             asset.Path,
		"name":             asset.Name(),
		"ext":              strings.ToLower(asset.Ext()),
		"timestamp":        asset.Timestamp.Format(time.RFC3339),
		"timestamp_source": string(asset.TimestampSource),
		"geo":              nil,
	}
	if asset.Geo != nil {
		input["geo"] = map[string]any{
			"latitude":  asset.Geo.Latitude,
			"longitude": asset.Geo.Longitude,
		}
	}
	return input
}
