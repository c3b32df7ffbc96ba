package consolidator

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/saudedigital/siasus-pa/internal/models"
)

// Consolidate merges the decoded tables of one run into a single table,
// preserving the given order. All tables must share an identical ordered
// field set; files of the same competence always do, but the check guards
// against a malformed split slipping through.
func Consolidate(tables []*models.Table) (*models.Table, error) {
	if len(tables) == 0 {
		return nil, models.NewAppError(models.ErrNoDataAvailable, fmt.Errorf("no decoded tables to consolidate"))
	}

	merged := &models.Table{Fields: tables[0].Fields}
	reference := tables[0].FieldNames()

	for _, table := range tables {
		if err := checkSchema(reference, table.FieldNames()); err != nil {
			return nil, err
		}
		merged.Rows = append(merged.Rows, table.Rows...)
		merged.DroppedRows += table.DroppedRows
	}

	return merged, nil
}

func checkSchema(reference, names []string) error {
	if len(reference) != len(names) {
		return models.NewAppError(models.ErrSchemaMismatch,
			fmt.Errorf("field count differs: %d vs %d", len(reference), len(names)))
	}
	for i := range reference {
		if reference[i] != names[i] {
			return models.NewAppError(models.ErrSchemaMismatch,
				fmt.Errorf("field %d differs: %q vs %q", i, reference[i], names[i]))
		}
	}
	return nil
}

// Write persists the consolidated table as <outputDir>/<stateCode><period>.csv,
// creating the directory if needed and overwriting any previous output for
// the same state and period.
func Write(table *models.Table, outputDir, stateCode, period string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", models.NewAppError(models.ErrOutputWrite, fmt.Errorf("failed to create output directory %s: %w", outputDir, err))
	}

	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s%s.csv", stateCode, period))
	file, err := os.Create(outputPath)
	if err != nil {
		return "", models.NewAppError(models.ErrOutputWrite, fmt.Errorf("failed to create output file %s: %w", outputPath, err))
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(table.FieldNames()); err != nil {
		return "", models.NewAppError(models.ErrOutputWrite, fmt.Errorf("failed to write header: %w", err))
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return "", models.NewAppError(models.ErrOutputWrite, fmt.Errorf("failed to write row: %w", err))
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", models.NewAppError(models.ErrOutputWrite, fmt.Errorf("failed to flush output file %s: %w", outputPath, err))
	}

	return outputPath, nil
}
