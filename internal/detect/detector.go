package detect

import (
	"log/slog"

	"github.com/mide-olaore/watertrack/constants"
	"github.com/mide-olaore/watertrack/internal/rules"
	"github.com/mide-olaore/watertrack/internal/tabular"
)

// Aggregation selects how strategy opinions combine into one decision.
type Aggregation int

const (
	// BestOf takes the single highest-confidence candidate across
	// strategies, breaking ties by strategy priority order.
	BestOf Aggregation = iota
	// WeightedBlend averages per-type scores using configured strategy
	// weights and applies the winning type's confidence threshold.
	WeightedBlend
)

// Detector classifies tabular files against the loaded rules. It is pure
// with respect to process state; Classify never returns an error.
type Detector struct {
	rules      *rules.ClassificationRules
	logger     *slog.Logger
	strategies []strategy
	mode       Aggregation
}

// NewDetector builds the best-of-strategies detector.
func NewDetector(r *rules.ClassificationRules, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		rules:  r,
		logger: logger,
		mode:   BestOf,
		strategies: []strategy{
			strictMatch{},
			patternMatch{},
			contentAnalysis{},
			heuristic{},
		},
	}
}

// NewWeightedDetector builds the weighted-blend detector, which also
// consults file metadata.
func NewWeightedDetector(r *rules.ClassificationRules, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		rules:  r,
		logger: logger,
		mode:   WeightedBlend,
		strategies: []strategy{
			strictMatch{},
			patternMatch{},
			contentAnalysis{},
			heuristic{},
			fileMetadata{},
		},
	}
}

// Rules exposes the loaded rule set (read-only).
func (d *Detector) Rules() *rules.ClassificationRules { return d.rules }

// LevelFor buckets a confidence value using the loaded thresholds.
func (d *Detector) LevelFor(confidence float64) string {
	return LevelFor(confidence, d.rules.Thresholds)
}

// Actions returns the checklist implied by a result.
func (d *Detector) Actions(r Result) []string {
	return RequiredActions(r, d.rules.Thresholds)
}

// ClassifyFile reads a file and classifies it. An unreadable or
// unsupported file yields the error result, never a returned error.
func (d *Detector) ClassifyFile(path string) Result {
	t, err := tabular.ReadFile(path)
	if err != nil {
		d.logger.Error("dataset detection failed", "path", path, "error", err)
		return errorResult(err.Error())
	}
	return d.Classify(t, path)
}

// opinion pairs a strategy with one of its candidates.
type opinion struct {
	strategy string
	cand     candidate
}

// Classify runs every strategy and aggregates their opinions.
func (d *Detector) Classify(t *tabular.Table, filename string) Result {
	var opinions []opinion
	for _, s := range d.strategies {
		for _, cand := range d.safeEvaluate(s, t, filename) {
			cand.confidence = clamp01(cand.confidence)
			opinions = append(opinions, opinion{strategy: s.name(), cand: cand})
		}
	}

	if len(opinions) == 0 {
		return fallbackResult(t.Columns, t.RowCount())
	}

	var result Result
	if d.mode == WeightedBlend {
		result = d.blend(opinions, t)
	} else {
		best := opinions[0]
		for _, o := range opinions[1:] {
			if o.cand.confidence > best.cand.confidence {
				best = o
			}
		}
		scores := make(map[string]float64)
		for _, o := range opinions {
			if o.cand.confidence > scores[o.strategy] {
				scores[o.strategy] = o.cand.confidence
			}
		}
		result = Result{
			DatasetType:     best.cand.datasetType,
			Confidence:      best.cand.confidence,
			Strategy:        best.strategy,
			StrategyScores:  scores,
			DetectedColumns: best.cand.detectedColumns,
			Details:         best.cand.details,
		}
	}

	d.logger.Info("dataset type detected",
		"dataset_type", result.DatasetType,
		"confidence", result.Confidence,
		"strategy", result.Strategy,
		"file", filename,
	)
	return result
}

// blend computes per-type weighted averages across the strategies that
// produced an opinion for that type, then applies the winning type's
// configured threshold.
func (d *Detector) blend(opinions []opinion, t *tabular.Table) Result {
	perType := make(map[string]map[string]float64)
	detectedByStrategy := make(map[string]map[string]string)
	for _, o := range opinions {
		byStrategy, ok := perType[o.cand.datasetType]
		if !ok {
			byStrategy = make(map[string]float64)
			perType[o.cand.datasetType] = byStrategy
		}
		if o.cand.confidence > byStrategy[o.strategy] {
			byStrategy[o.strategy] = o.cand.confidence
		}
		if len(o.cand.detectedColumns) > 0 {
			if _, ok := detectedByStrategy[o.strategy]; !ok {
				detectedByStrategy[o.strategy] = o.cand.detectedColumns
			}
		}
	}

	bestType := ""
	bestScore := -1.0
	for _, typeName := range d.rules.TypeOrder {
		byStrategy, ok := perType[typeName]
		if !ok {
			continue
		}
		num, den := 0.0, 0.0
		for strategyName, score := range byStrategy {
			w := d.rules.Weight(strategyName)
			num += score * w
			den += w
		}
		if den == 0 {
			continue
		}
		if blended := num / den; blended > bestScore {
			bestScore = blended
			bestType = typeName
		}
	}

	if bestType == "" {
		return fallbackResult(t.Columns, t.RowCount())
	}
	if bestScore < d.rules.Threshold(bestType) {
		return Result{
			DatasetType:    constants.DatasetUnknown,
			Confidence:     0.0,
			Strategy:       StrategyFallback,
			StrategyScores: perType[bestType],
			Details: map[string]any{
				"best_type":     bestType,
				"blended_score": bestScore,
				"threshold":     d.rules.Threshold(bestType),
			},
		}
	}

	// Merge detected columns by strategy priority; earlier wins.
	detected := make(map[string]string)
	for _, s := range d.strategies {
		for role, col := range detectedByStrategy[s.name()] {
			if _, ok := detected[role]; !ok {
				detected[role] = col
			}
		}
	}

	return Result{
		DatasetType:     bestType,
		Confidence:      clamp01(bestScore),
		Strategy:        StrategyWeightedBlend,
		StrategyScores:  perType[bestType],
		DetectedColumns: detected,
		Details: map[string]any{
			"rows":    t.RowCount(),
			"columns": len(t.Columns),
		},
	}
}

// safeEvaluate runs one strategy, converting a panic on malformed input
// into "no opinion" so the remaining strategies proceed.
func (d *Detector) safeEvaluate(s strategy, t *tabular.Table, filename string) (out []candidate) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("detection strategy failed", "strategy", s.name(), "panic", r)
			out = nil
		}
	}()
	return s.evaluate(t, filename, d.rules)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
