// Package classifier routes a sheet to a category. The Anthropic backed
// classifier degrades to the sheet name heuristic on any failure, so callers
// always get an answer.
package classifier

import (
	"context"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/sheet"
)

// Source tells where a Classification came from
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

// Classification is the routing decision for one sheet
type Classification struct {
	Category   category.Category
	Confidence float64
	Reasoning  string
	Advisory   map[string]string // sheet header -> canonical field, advisory only
	Source     Source
}

// Classifier routes sheets
type Classifier interface {
	Classify(ctx context.Context, sheetName string, headers []string, sample []sheet.RawRow) (Classification, error)
}

// Heuristic matches category sheet keywords against the sheet name
type Heuristic struct {
	Table *category.Table
}

const (
	keywordConfidence  = 0.5
	fallbackConfidence = 0.3
)

// Classify never fails; unmatched sheets go to cctv_management
func (h Heuristic) Classify(_ context.Context, sheetName string, _ []string, _ []sheet.RawRow) (Classification, error) {
	return h.classify(sheetName), nil
}

func (h Heuristic) classify(sheetName string) Classification {
	if c, ok := h.Table.MatchKeyword(sheetName); ok {
		return Classification{
			Category:   c,
			Confidence: keywordConfidence,
			Reasoning:  "sheet name matches a " + c.String() + " keyword",
			Source:     SourceHeuristic,
		}
	}
	return Classification{
		Category:   category.CCTVManagement,
		Confidence: fallbackConfidence,
		Reasoning:  "no keyword matched, default category",
		Source:     SourceHeuristic,
	}
}
