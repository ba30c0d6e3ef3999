// Command seed fills the run history with sample runs built from the shipped
// example and reference code, so the /v1/runs endpoints have data to show.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/reliability-forge/internal/store"
	"github.com/nulzo/reliability-forge/internal/store/model"
	"github.com/nulzo/reliability-forge/internal/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	dsn := flag.String("dsn", "file:forge.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000", "SQLite DSN")
	dir := flag.String("testdata", "testdata", "Directory holding examples/ and reference_code/")
	flag.Parse()

	repo, err := sqlite.NewSQLiteStorage(*dsn, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	runs, err := sampleRuns(*dir, time.Now().UTC())
	if err != nil {
		log.Fatal(err)
	}

	if err := repo.WithTx(context.Background(), func(tx store.Repository) error {
		for _, run := range runs {
			if err := tx.Runs().Log(context.Background(), run); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seeded %d runs into %s\n", len(runs), *dsn)
}

// sampleRuns pairs each example with its reference implementation, one run
// per pattern, spread over the last few days.
func sampleRuns(dir string, now time.Time) ([]*model.Run, error) {
	examples, err := filepath.Glob(filepath.Join(dir, "examples", "*.cs"))
	if err != nil {
		return nil, err
	}

	runs := make([]*model.Run, 0, len(examples)+1)
	for i, path := range examples {
		pattern := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		input, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		code, err := os.ReadFile(filepath.Join(dir, "reference_code", pattern+".cs"))
		if err != nil {
			return nil, fmt.Errorf("missing reference for %s: %w", pattern, err)
		}

		runs = append(runs, &model.Run{
			ID:               uuid.NewString(),
			Source:           model.SourceCLI,
			Input:            "Apply the " + strings.ReplaceAll(pattern, "_", " ") + " pattern to:\n" + string(input),
			RequestedPattern: strings.ReplaceAll(pattern, "_", " "),
			Pattern:          pattern,
			Code:             string(code),
			Models:           "localai",
			Status:           model.RunSucceeded,
			LatencyMS:        int64(1500 + 250*i),
			CreatedAt:        now.Add(-time.Duration(i) * 24 * time.Hour),
		})
	}

	runs = append(runs, &model.Run{
		ID:               uuid.NewString(),
		Source:           model.SourceAgent,
		Input:            "Make this saga-based please",
		RequestedPattern: "saga",
		Pattern:          "saga",
		Code:             "// No template found for saga",
		Models:           "localai",
		Status:           model.RunNoTemplate,
		LatencyMS:        900,
		CreatedAt:        now,
	})

	return runs, nil
}
