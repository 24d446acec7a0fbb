package rules

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadMissingFileSynthesizesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")

	loaded, err := Load(path, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := loaded.DatasetTypes["sensor_data"]; !ok {
		t.Error("defaults should define sensor_data")
	}
	if len(loaded.TypeOrder) != 1 || loaded.TypeOrder[0] != "sensor_data" {
		t.Errorf("type order: expected [sensor_data], got %v", loaded.TypeOrder)
	}
	if loaded.Thresholds.High != 0.9 || loaded.Thresholds.Medium != 0.7 || loaded.Thresholds.Low != 0.5 {
		t.Errorf("unexpected default thresholds: %+v", loaded.Thresholds)
	}

	// The defaults are persisted back for the operator to edit.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected defaults to be written to %s: %v", path, err)
	}

	// A second load round-trips the persisted document.
	again, err := Load(path, testLogger())
	if err != nil {
		t.Fatalf("reloading persisted defaults: %v", err)
	}
	if len(again.DatasetTypes) != len(loaded.DatasetTypes) {
		t.Errorf("persisted defaults differ: %d vs %d types", len(again.DatasetTypes), len(loaded.DatasetTypes))
	}
}

func TestLoadValidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	doc := `{
		"strategies": {
			"strict_match": {"weight": 0.5},
			"pattern_match": {"weight": 0.5}
		},
		"dataset_types": {
			"lab_results": {
				"required_columns": ["Sample_ID", "Analyte", "Value"],
				"confidence_threshold": 0.8
			},
			"sensor_data": {
				"required_columns": ["Station_ID", "Date_Time", "PCode", "Result"]
			}
		},
		"column_patterns": {
			"date": ["date", "time"],
			"station": ["station"],
			"result": ["value"]
		},
		"confidence_thresholds": {"high": 0.85, "medium": 0.6, "low": 0.4}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := loaded.Weight("strict_match"); got != 0.5 {
		t.Errorf("strict weight: expected 0.5, got %v", got)
	}
	if got := loaded.Weight("never_configured"); got != 0.25 {
		t.Errorf("unconfigured weight: expected 0.25 fallback, got %v", got)
	}
	if got := loaded.Threshold("lab_results"); got != 0.8 {
		t.Errorf("lab threshold: expected 0.8, got %v", got)
	}
	if got := loaded.Threshold("sensor_data"); got != 0.5 {
		t.Errorf("unset threshold: expected 0.5 fallback, got %v", got)
	}
	if loaded.Thresholds.High != 0.85 {
		t.Errorf("high threshold: expected 0.85, got %v", loaded.Thresholds.High)
	}

	want := []string{"lab_results", "sensor_data"}
	if len(loaded.TypeOrder) != len(want) {
		t.Fatalf("type order: expected %v, got %v", want, loaded.TypeOrder)
	}
	for i, name := range want {
		if loaded.TypeOrder[i] != name {
			t.Errorf("type order[%d]: expected %s, got %s", i, name, loaded.TypeOrder[i])
		}
	}
}

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{{{{`},
		{"missing dataset_types", `{"strategies": {}}`},
		{"empty dataset_types", `{"strategies": {}, "dataset_types": {}}`},
		{"missing required_columns", `{"strategies": {}, "dataset_types": {"x": {}}}`},
		{"bad threshold", `{
			"strategies": {},
			"dataset_types": {"x": {"required_columns": ["A"], "confidence_threshold": 1.5}}
		}`},
		{"strategy without weight", `{
			"strategies": {"strict_match": {"description": "no weight"}},
			"dataset_types": {"x": {"required_columns": ["A"]}}
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.json")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path, testLogger()); err == nil {
				t.Error("expected a startup error for a malformed rules file")
			}
		})
	}
}

func TestDefaultRoleKeywords(t *testing.T) {
	defaults := Default()
	for _, role := range []string{RoleDate, RoleStation, RoleResult, RolePCode} {
		if len(defaults.Patterns[role]) == 0 {
			t.Errorf("default patterns missing role %s", role)
		}
	}
	dt := defaults.DatasetTypes["sensor_data"]
	if len(dt.RequiredColumns) != 4 {
		t.Errorf("sensor_data required columns: expected 4, got %v", dt.RequiredColumns)
	}
}
