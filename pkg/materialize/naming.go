package materialize

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/m-mizutani/curator/pkg/model"
)

const (
	// DefaultNameLength bounds the event name part of a folder name, in runes
	DefaultNameLength = 60
	// PlaceholderName is used when nothing of the event name survives sanitization
	PlaceholderName = "Unknown_Event"
)

// SanitizeName turns an event label into a folder-safe name. Letters, digits,
// spaces, hyphens and underscores are kept, whitespace runs become a single
// underscore and the result is cut to maxLen runes.
func SanitizeName(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultNameLength
	}

	var kept strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' || r == '_' {
			kept.WriteRune(r)
		}
	}

	clean := strings.Join(strings.Fields(kept.String()), "_")
	if clean == "" {
		return PlaceholderName
	}

	if runes := []rune(clean); len(runes) > maxLen {
		clean = string(runes[:maxLen])
	}
	return clean
}

// FolderName returns <date of first member>_<sanitized event name>
func FolderName(group *model.EventGroup, result *model.AnalysisResult, maxLen int) string {
	return group.Start().Format("2006-01-02") + "_" + SanitizeName(result.EventName, maxLen)
}

// RankedAsset is one group member placed by its score
type RankedAsset struct {
	Rank  int // 1-based, highest score first
	Index int // position in the event group
	Asset *model.AssetRecord
	Score int
	Best  bool
}

// FileName is the destination name of the copied asset
func (r RankedAsset) FileName() string {
	return RankedName(r)
}

// RankedName encodes rank, original stem and score into a file name
func RankedName(r RankedAsset) string {
	return fmt.Sprintf("No.%d_%s_score%d%s", r.Rank, r.Asset.Stem(), r.Score, r.Asset.Ext())
}

// Rank orders group members by score, highest first. Ties keep group order.
func Rank(group *model.EventGroup, result *model.AnalysisResult) []RankedAsset {
	ranked := make([]RankedAsset, len(group.Assets))
	for i, asset := range group.Assets {
		ranked[i] = RankedAsset{
			Index: i,
			Asset: asset,
			Score: result.ScoreAt(i),
			Best:  i == result.BestIndex,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
