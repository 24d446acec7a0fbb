package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mide-olaore/watertrack/internal/common"
)

// Load reads the classification rules document at path. A missing file
// synthesizes the default rule set and persists it back; a present but
// malformed document is a startup error, never a silent fallback.
func Load(path string, logger *slog.Logger) (*ClassificationRules, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		defaults := Default()
		if werr := save(path, defaults); werr != nil {
			logger.Warn("failed to persist default detection rules", "path", path, "error", werr)
		} else {
			logger.Info("created default detection rules", "path", path)
		}
		return defaults, nil
	}
	if err != nil {
		return nil, common.NewAppError("RULES_READ", fmt.Sprintf("reading rules file %s", path), err)
	}

	if err := validate(data); err != nil {
		return nil, common.NewAppError("RULES_INVALID", fmt.Sprintf("rules file %s failed schema validation", path), err)
	}

	var loaded ClassificationRules
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, common.NewAppError("RULES_PARSE", fmt.Sprintf("parsing rules file %s", path), err)
	}
	order, err := orderedTypeKeys(data)
	if err != nil {
		return nil, common.NewAppError("RULES_PARSE", "reading dataset_types order", err)
	}
	loaded.TypeOrder = order
	if loaded.Patterns == nil {
		loaded.Patterns = Default().Patterns
	}
	if loaded.Thresholds == (LevelThresholds{}) {
		loaded.Thresholds = Default().Thresholds
	}

	logger.Info("loaded detection rules", "path", path, "dataset_types", len(loaded.DatasetTypes))
	return &loaded, nil
}

func save(path string, r *ClassificationRules) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// validate checks the raw document against the rules schema.
func validate(data []byte) error {
	b, err := json.Marshal(buildRulesJSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}
	return nil
}

// buildRulesJSONSchema returns the schema constraining a rules document.
func buildRulesJSONSchema() map[string]any {
	stringArray := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	confidence := map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}

	return map[string]any{
		"type":     "object",
		"required": []string{"strategies", "dataset_types"},
		"properties": map[string]any{
			"strategies": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type":     "object",
					"required": []string{"weight"},
					"properties": map[string]any{
						"weight":      map[string]any{"type": "number", "minimum": 0.0},
						"description": map[string]any{"type": "string"},
					},
				},
			},
			"dataset_types": map[string]any{
				"type":          "object",
				"minProperties": 1,
				"additionalProperties": map[string]any{
					"type":     "object",
					"required": []string{"required_columns"},
					"properties": map[string]any{
						"required_columns":     stringArray,
						"optional_columns":     stringArray,
						"filename_keywords":    stringArray,
						"data_patterns":        map[string]any{"type": "object"},
						"confidence_threshold": confidence,
					},
				},
			},
			"column_patterns": map[string]any{
				"type":                 "object",
				"additionalProperties": stringArray,
			},
			"confidence_thresholds": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"high":   confidence,
					"medium": confidence,
					"low":    confidence,
				},
			},
		},
	}
}

// orderedTypeKeys extracts dataset_types keys in document order. Go maps
// do not preserve it, and the strict-match tie-break depends on it.
func orderedTypeKeys(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	// Walk to the top-level "dataset_types" object.
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("rules document is not an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		if key != "dataset_types" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}
		open, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := open.(json.Delim); !ok || d != '{' {
			return nil, fmt.Errorf("dataset_types is not an object")
		}
		var keys []string
		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, _ := nameTok.(string)
			keys = append(keys, name)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
		return keys, nil
	}
	return nil, fmt.Errorf("dataset_types not found")
}
