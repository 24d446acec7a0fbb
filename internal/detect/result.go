package detect

import (
	"github.com/mide-olaore/watertrack/constants"
	"github.com/mide-olaore/watertrack/internal/rules"
)

// Result is the outcome of dataset type detection. Immutable once produced.
type Result struct {
	DatasetType     string             `json:"dataset_type"`
	Confidence      float64            `json:"confidence"`
	Strategy        string             `json:"strategy"`
	StrategyScores  map[string]float64 `json:"strategy_scores,omitempty"`
	DetectedColumns map[string]string  `json:"detected_columns,omitempty"`
	Details         map[string]any     `json:"details,omitempty"`
}

// Sentinel strategy names for non-strategy outcomes.
const (
	StrategyFallback = "fallback"
	StrategyError    = "error"
	// StrategyWeightedBlend marks results aggregated across strategies.
	StrategyWeightedBlend = "weighted_blend"
)

// Confidence level buckets.
const (
	LevelHigh    = "high"
	LevelMedium  = "medium"
	LevelLow     = "low"
	LevelVeryLow = "very_low"
)

// LevelFor buckets a confidence value using the configured thresholds.
func LevelFor(confidence float64, t rules.LevelThresholds) string {
	switch {
	case confidence >= t.High:
		return LevelHigh
	case confidence >= t.Medium:
		return LevelMedium
	case confidence >= t.Low:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// Required-action messages surfaced to the uploader.
const (
	ActionManualReview  = "Manual review required"
	ActionDatasetType   = "User input required for dataset type"
	ActionColumnMapping = "Column mapping required"
)

// RequiredActions returns the checklist a result implies. Pure function
// of the result and thresholds; no side effects.
func RequiredActions(r Result, t rules.LevelThresholds) []string {
	var actions []string
	if r.Confidence < t.Medium {
		actions = append(actions, ActionManualReview)
	}
	if r.DatasetType == constants.DatasetUnknown {
		actions = append(actions, ActionDatasetType)
	}
	if len(r.DetectedColumns) == 0 {
		actions = append(actions, ActionColumnMapping)
	}
	return actions
}

// Suggest maps a result to the dataset type a caller should assume:
// the detected type at high confidence, a hedged "likely_" form at
// moderate confidence, unknown otherwise.
func Suggest(r Result) string {
	switch {
	case r.Confidence >= 0.7:
		return r.DatasetType
	case r.Confidence >= 0.4 && r.DatasetType != constants.DatasetUnknown && r.DatasetType != constants.DatasetError:
		return "likely_" + r.DatasetType
	default:
		return constants.DatasetUnknown
	}
}

func fallbackResult(columns []string, rows int) Result {
	return Result{
		DatasetType: constants.DatasetUnknown,
		Confidence:  0.0,
		Strategy:    StrategyFallback,
		Details: map[string]any{
			"columns": columns,
			"rows":    rows,
		},
	}
}

func errorResult(msg string) Result {
	return Result{
		DatasetType: constants.DatasetError,
		Confidence:  0.0,
		Strategy:    StrategyError,
		Details:     map[string]any{"error": msg},
	}
}
