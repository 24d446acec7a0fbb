package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/mide-olaore/watertrack/internal/common"
	"github.com/mide-olaore/watertrack/internal/detect"
	"github.com/mide-olaore/watertrack/internal/rules"
)

// classifyfile runs the dataset classifier over one file and prints the
// result as JSON. It never touches the database or the job queue.
func main() {
	_ = godotenv.Load()

	var (
		rulesPath = flag.String("rules", "", "detection rules file (defaults to DETECTION_RULES_FILE)")
		weighted  = flag.Bool("weighted", false, "use weighted strategy blending instead of best-of")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: classifyfile [--rules FILE] [--weighted] <data-file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	if *rulesPath == "" {
		cfg := common.LoadConfig()
		*rulesPath = cfg.Paths.RulesPath
	}

	classRules, err := rules.Load(*rulesPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading rules: %v\n", err)
		os.Exit(1)
	}

	var detector *detect.Detector
	if *weighted {
		detector = detect.NewWeightedDetector(classRules, logger)
	} else {
		detector = detect.NewDetector(classRules, logger)
	}

	result := detector.ClassifyFile(path)
	out := struct {
		detect.Result
		ConfidenceLevel string   `json:"confidence_level"`
		RequiredActions []string `json:"required_actions,omitempty"`
		SuggestedType   string   `json:"suggested_type"`
	}{
		Result:          result,
		ConfidenceLevel: detector.LevelFor(result.Confidence),
		RequiredActions: detector.Actions(result),
		SuggestedType:   detect.Suggest(result),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encoding result: %v\n", err)
		os.Exit(1)
	}
}
