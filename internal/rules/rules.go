package rules

// ClassificationRules configure the dataset classifier: per-strategy
// weights, per-type column expectations, role keyword patterns, and the
// thresholds used to bucket confidence values. Loaded once at startup and
// read-only afterwards.
type ClassificationRules struct {
	Strategies   map[string]Strategy    `json:"strategies"`
	DatasetTypes map[string]DatasetType `json:"dataset_types"`
	// TypeOrder preserves the document order of dataset_types keys; ties
	// between types are broken by declaring the earlier type the winner.
	TypeOrder  []string            `json:"-"`
	Patterns   map[string][]string `json:"column_patterns"`
	Thresholds LevelThresholds     `json:"confidence_thresholds"`
}

// Strategy is the configured weight of one detection strategy.
type Strategy struct {
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

// DatasetType describes one known record layout.
type DatasetType struct {
	RequiredColumns     []string     `json:"required_columns"`
	OptionalColumns     []string     `json:"optional_columns,omitempty"`
	DataPatterns        DataPatterns `json:"data_patterns,omitempty"`
	FilenameKeywords    []string     `json:"filename_keywords,omitempty"`
	ConfidenceThreshold float64      `json:"confidence_threshold"`
}

// DataPatterns holds content expectations for a dataset type.
type DataPatterns struct {
	StationValue        string `json:"station_value,omitempty"`
	DateFormat          string `json:"date_format,omitempty"`
	NumericResult       bool   `json:"numeric_result,omitempty"`
	MultipleDataColumns bool   `json:"multiple_data_columns,omitempty"`
}

// LevelThresholds bucket a confidence value into high/medium/low/very_low.
type LevelThresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Low    float64 `json:"low"`
}

// Strategy names shared by the classifier and the rules document.
const (
	StrategyStrictMatch     = "strict_match"
	StrategyPatternMatch    = "pattern_match"
	StrategyContentAnalysis = "content_analysis"
	StrategyHeuristic       = "heuristic"
	StrategyFileMetadata    = "file_metadata"
)

// Logical column roles used by the pattern and content strategies.
const (
	RoleDate    = "date"
	RoleStation = "station"
	RoleResult  = "result"
	RolePCode   = "pcode"
)

// Weight returns the configured weight for a strategy, or the uniform
// share when the document does not mention it.
func (r *ClassificationRules) Weight(strategy string) float64 {
	if s, ok := r.Strategies[strategy]; ok {
		return s.Weight
	}
	return 0.25
}

// Threshold returns the confidence threshold for a dataset type, or 0.5.
func (r *ClassificationRules) Threshold(datasetType string) float64 {
	if t, ok := r.DatasetTypes[datasetType]; ok && t.ConfidenceThreshold > 0 {
		return t.ConfidenceThreshold
	}
	return 0.5
}

// Default returns the hard-coded rule set used when no document exists.
func Default() *ClassificationRules {
	return &ClassificationRules{
		Strategies: map[string]Strategy{
			StrategyStrictMatch:     {Weight: 0.35, Description: "Exact column name matching"},
			StrategyPatternMatch:    {Weight: 0.25, Description: "Column name keyword matching"},
			StrategyContentAnalysis: {Weight: 0.2, Description: "Analyze inferred column types"},
			StrategyHeuristic:       {Weight: 0.1, Description: "Cheap structural signals"},
			StrategyFileMetadata:    {Weight: 0.1, Description: "Analyze file name and structure"},
		},
		DatasetTypes: map[string]DatasetType{
			"sensor_data": {
				RequiredColumns: []string{"Station_ID", "Date_Time", "PCode", "Result"},
				OptionalColumns: []string{"Quality_Flag", "Unit", "Method"},
				DataPatterns: DataPatterns{
					DateFormat:    "2006-01-02 15:04:05",
					NumericResult: true,
				},
				FilenameKeywords:    []string{"raw", "sensor"},
				ConfidenceThreshold: 0.7,
			},
		},
		TypeOrder: []string{"sensor_data"},
		Patterns: map[string][]string{
			RoleDate:    {"date", "time", "timestamp", "datetime"},
			RoleStation: {"station", "id", "branch", "location"},
			RoleResult:  {"value", "amount", "result", "reading"},
			RolePCode:   {"pcode", "parameter", "param", "type"},
		},
		Thresholds: LevelThresholds{High: 0.9, Medium: 0.7, Low: 0.5},
	}
}
