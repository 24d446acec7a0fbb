package detect

import (
	"sort"
	"strings"

	"github.com/mide-olaore/watertrack/internal/rules"
	"github.com/mide-olaore/watertrack/internal/tabular"
)

// candidate is one strategy's opinion about one dataset type.
type candidate struct {
	datasetType     string
	confidence      float64
	detectedColumns map[string]string
	details         map[string]any
}

// strategy produces zero or more candidates for a table. A strategy that
// cannot form an opinion returns nothing; it must never abort detection.
type strategy interface {
	name() string
	evaluate(t *tabular.Table, filename string, r *rules.ClassificationRules) []candidate
}

// strictMatch tests required column names for normalized equality.
type strictMatch struct{}

func (strictMatch) name() string { return rules.StrategyStrictMatch }

func (strictMatch) evaluate(t *tabular.Table, _ string, r *rules.ClassificationRules) []candidate {
	var out []candidate
	for _, typeName := range r.TypeOrder {
		dt := r.DatasetTypes[typeName]
		if len(dt.RequiredColumns) == 0 {
			continue
		}
		matches := 0
		detected := make(map[string]string)
		for _, req := range dt.RequiredColumns {
			for _, col := range t.Columns {
				if normalizeColumn(col) == normalizeColumn(req) {
					matches++
					detected[req] = col
					break
				}
			}
		}

		var confidence float64
		switch {
		case matches == len(dt.RequiredColumns):
			confidence = 1.0
		case float64(matches) >= float64(len(dt.RequiredColumns))*0.75:
			confidence = 0.8
		default:
			continue
		}
		out = append(out, candidate{
			datasetType:     typeName,
			confidence:      confidence,
			detectedColumns: detected,
			details: map[string]any{
				"matched_columns": matches,
				"total_required":  len(dt.RequiredColumns),
				"match_ratio":     float64(matches) / float64(len(dt.RequiredColumns)),
			},
		})
	}
	return out
}

// patternDampening reflects the lower certainty of substring matching
// relative to exact matching.
const patternDampening = 0.8

// patternMatch scans column names for role keywords and scores each role
// by keyword-length over column-name-length.
type patternMatch struct{}

func (patternMatch) name() string { return rules.StrategyPatternMatch }

func (patternMatch) evaluate(t *tabular.Table, _ string, r *rules.ClassificationRules) []candidate {
	detected := make(map[string]string)
	var scores []float64

	for _, role := range roleOrder(r.Patterns) {
		bestScore := 0.0
		bestCol := ""
		for _, keyword := range r.Patterns[role] {
			for _, col := range t.Columns {
				name := normalizeColumn(col)
				if name == "" || !strings.Contains(name, keyword) {
					continue
				}
				score := float64(len(keyword)) / float64(len(name))
				if score > bestScore {
					bestScore = score
					bestCol = col
				}
			}
		}
		if bestCol != "" {
			detected[role] = bestCol
			scores = append(scores, bestScore)
		}
	}

	if len(detected) < 3 {
		return nil
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	confidence := sum / float64(len(scores)) * patternDampening

	var out []candidate
	for _, typeName := range r.TypeOrder {
		out = append(out, candidate{
			datasetType:     typeName,
			confidence:      confidence,
			detectedColumns: detected,
			details: map[string]any{
				"detected_patterns": len(detected),
				"avg_score":         sum / float64(len(scores)),
			},
		})
	}
	return out
}

// contentAnalysis classifies columns by inferred type and awards partial
// confidence for the presence of numeric, datetime, and categorical data.
type contentAnalysis struct{}

func (contentAnalysis) name() string { return rules.StrategyContentAnalysis }

func (contentAnalysis) evaluate(t *tabular.Table, _ string, r *rules.ClassificationRules) []candidate {
	var numericCols, datetimeCols, categoricalCols []string
	for i, col := range t.Columns {
		switch {
		case t.IsNumeric(i):
			numericCols = append(numericCols, col)
		case t.IsDateTime(i):
			datetimeCols = append(datetimeCols, col)
		default:
			if ratio := t.UniqueRatio(i); ratio > 0.01 && ratio < 0.5 {
				categoricalCols = append(categoricalCols, col)
			}
		}
	}

	confidence := 0.0
	detected := make(map[string]string)
	if len(numericCols) >= 1 {
		confidence += 0.3
		detected[rules.RoleResult] = numericCols[0]
	}
	if len(datetimeCols) >= 1 {
		confidence += 0.3
		detected[rules.RoleDate] = datetimeCols[0]
	}
	if len(categoricalCols) >= 1 {
		confidence += 0.2
		detected[rules.RoleStation] = categoricalCols[0]
	}
	if len(categoricalCols) >= 2 {
		confidence += 0.2
		detected[rules.RolePCode] = categoricalCols[1]
	}

	if confidence < 0.5 {
		return nil
	}
	details := map[string]any{
		"numeric_columns":     len(numericCols),
		"datetime_columns":    len(datetimeCols),
		"categorical_columns": len(categoricalCols),
		"total_columns":       len(t.Columns),
	}
	var out []candidate
	for _, typeName := range r.TypeOrder {
		out = append(out, candidate{
			datasetType:     typeName,
			confidence:      confidence,
			detectedColumns: detected,
			details:         details,
		})
	}
	return out
}

// heuristic awards small additive bonuses for cheap structural signals.
type heuristic struct{}

func (heuristic) name() string { return rules.StrategyHeuristic }

func (heuristic) evaluate(t *tabular.Table, _ string, r *rules.ClassificationRules) []candidate {
	confidence := 0.0
	detected := make(map[string]string)
	details := map[string]any{}

	if len(t.Columns) >= 4 {
		confidence += 0.2
		details["sufficient_columns"] = true
	}
	if t.RowCount() > 10 {
		confidence += 0.2
		details["sufficient_rows"] = true
	}
	for i, col := range t.Columns {
		if t.IsNumeric(i) {
			confidence += 0.3
			detected[rules.RoleResult] = col
			details["has_numeric_data"] = true
			break
		}
	}
	for _, col := range t.Columns {
		name := normalizeColumn(col)
		if strings.Contains(name, "id") || strings.Contains(name, "station") || strings.Contains(name, "sensor") {
			confidence += 0.2
			detected[rules.RoleStation] = col
			details["has_id_column"] = true
			break
		}
	}
	for _, col := range t.Columns {
		name := normalizeColumn(col)
		if strings.Contains(name, "date") || strings.Contains(name, "time") || strings.Contains(name, "timestamp") {
			confidence += 0.1
			detected[rules.RoleDate] = col
			details["has_date_column"] = true
			break
		}
	}

	if confidence < 0.4 {
		return nil
	}
	var out []candidate
	for _, typeName := range r.TypeOrder {
		out = append(out, candidate{
			datasetType:     typeName,
			confidence:      confidence,
			detectedColumns: detected,
			details:         details,
		})
	}
	return out
}

// fileMetadata inspects the file name for per-type keywords. A match is
// a strong signal; no match contributes a low uniform opinion so the
// weighted blend always has a denominator for this strategy.
type fileMetadata struct{}

func (fileMetadata) name() string { return rules.StrategyFileMetadata }

func (fileMetadata) evaluate(_ *tabular.Table, filename string, r *rules.ClassificationRules) []candidate {
	name := strings.ToLower(filename)
	var matched []candidate
	for _, typeName := range r.TypeOrder {
		for _, keyword := range r.DatasetTypes[typeName].FilenameKeywords {
			if keyword != "" && strings.Contains(name, strings.ToLower(keyword)) {
				matched = append(matched, candidate{
					datasetType: typeName,
					confidence:  0.8,
					details:     map[string]any{"filename": filename, "keyword": keyword},
				})
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched
	}
	var out []candidate
	for _, typeName := range r.TypeOrder {
		out = append(out, candidate{
			datasetType: typeName,
			confidence:  0.1,
			details:     map[string]any{"filename": filename, "uniform": true},
		})
	}
	return out
}

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// roleOrder returns the canonical roles first, then any extra configured
// roles in sorted order, so scoring is deterministic.
func roleOrder(patterns map[string][]string) []string {
	canonical := []string{rules.RoleDate, rules.RoleStation, rules.RoleResult, rules.RolePCode}
	seen := make(map[string]struct{}, len(canonical))
	var out []string
	for _, role := range canonical {
		if _, ok := patterns[role]; ok {
			out = append(out, role)
			seen[role] = struct{}{}
		}
	}
	var extra []string
	for role := range patterns {
		if _, ok := seen[role]; !ok {
			extra = append(extra, role)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
