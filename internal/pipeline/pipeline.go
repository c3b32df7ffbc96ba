package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saudedigital/siasus-pa/internal/consolidator"
	"github.com/saudedigital/siasus-pa/internal/dbc"
	"github.com/saudedigital/siasus-pa/internal/fetcher"
	"github.com/saudedigital/siasus-pa/internal/locator"
	"github.com/saudedigital/siasus-pa/internal/models"
	"github.com/saudedigital/siasus-pa/internal/transform"
)

// State names the stages of one extraction run.
type State string

const (
	StateStart         State = "Start"
	StateLocating      State = "Locating"
	StateFetching      State = "Fetching"
	StateDecoding      State = "Decoding"
	StateConsolidating State = "Consolidating"
	StateDone          State = "Done"
	StateFailed        State = "Failed"
)

// Request carries the caller's extraction parameters.
type Request struct {
	StateCode   string
	PeriodStart time.Time
	OutputDir   string
}

// Pipeline drives one locate → fetch → decode → consolidate cycle per
// request. Runs share no mutable state, so concurrent requests need no
// coordination.
type Pipeline struct {
	locator      *locator.Locator
	dial         fetcher.Dialer
	numWorkers   int
	fetchTimeout time.Duration
}

func New(loc *locator.Locator, dial fetcher.Dialer, numWorkers int, fetchTimeout time.Duration) *Pipeline {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pipeline{locator: loc, dial: dial, numWorkers: numWorkers, fetchTimeout: fetchTimeout}
}

// Run executes one extraction request and always returns a RunResult;
// failures are reported through its status and error kind.
func (p *Pipeline) Run(ctx context.Context, req Request) models.RunResult {
	result := models.RunResult{
		RunID:  newRunID(),
		Status: models.RunStatusError,
	}

	state := StateLocating
	log.Printf("[%s] %s: locating candidate files for %s %s", result.RunID, state, req.StateCode, req.PeriodStart.Format("2006-01"))

	stateCode, err := locator.NormalizeStateCode(req.StateCode)
	if err != nil {
		return failed(result, err)
	}
	result.StateCode = stateCode

	period, err := locator.Period(req.PeriodStart)
	if err != nil {
		return failed(result, err)
	}
	result.Period = period

	candidates, err := p.locator.Candidates(req.StateCode, req.PeriodStart)
	if err != nil {
		return failed(result, err)
	}

	tempDir, err := os.MkdirTemp("", "siasus_pa_")
	if err != nil {
		return failed(result, models.NewAppError(models.ErrFetchFailed, fmt.Errorf("failed to create temp dir: %w", err)))
	}
	defer os.RemoveAll(tempDir)

	state = StateFetching
	log.Printf("[%s] %s: trying %d candidates with %d workers", result.RunID, state, len(candidates), p.numWorkers)

	files := p.fetchAll(ctx, candidates, tempDir)
	fetched := p.collectFetched(files, &result)
	if len(fetched) == 0 {
		log.Printf("[%s] no candidate yielded data for %s%s", result.RunID, stateCode, period)
		return failed(result, models.NewAppError(models.ErrNoDataAvailable, fmt.Errorf("no remote file available for %s%s", stateCode, period)))
	}

	state = StateDecoding
	log.Printf("[%s] %s: decoding %d fetched files", result.RunID, state, len(fetched))

	tables, used := decodeAll(fetched, &result)
	if len(tables) == 0 {
		return failed(result, models.NewAppError(models.ErrNoDataAvailable, fmt.Errorf("no fetched file decoded successfully")))
	}

	state = StateConsolidating
	log.Printf("[%s] %s: merging %d tables", result.RunID, state, len(tables))

	merged, err := consolidator.Consolidate(tables)
	if err != nil {
		return failed(result, err)
	}
	result.DroppedRows = merged.DroppedRows

	outputPath, err := consolidator.Write(merged, req.OutputDir, stateCode, period)
	if err != nil {
		return failed(result, err)
	}

	state = StateDone
	result.Status = models.RunStatusOK
	result.SourceFilesUsed = used
	result.OutputPath = outputPath
	log.Printf("[%s] %s: wrote %d rows (%d dropped) to %s", result.RunID, state, len(merged.Rows), merged.DroppedRows, outputPath)
	return result
}

// fetchAll downloads every candidate on a bounded worker pool. Each worker
// owns its own remote session; results land in the slot of their candidate
// index, so the merge order stays ascending regardless of completion order.
func (p *Pipeline) fetchAll(ctx context.Context, candidates []string, tempDir string) []*models.SourceFile {
	files := make([]*models.SourceFile, len(candidates))
	for i, identifier := range candidates {
		files[i] = &models.SourceFile{Identifier: identifier, Index: i, Status: models.StatusNotFetched}
	}

	jobs := make(chan *models.SourceFile, len(files))
	var wg sync.WaitGroup

	for w := 0; w < p.numWorkers; w++ {
		wg.Add(1)
		go p.fetchWorker(ctx, w+1, jobs, &wg, tempDir)
	}

	for _, file := range files {
		jobs <- file
	}
	close(jobs)
	wg.Wait()

	return files
}

func (p *Pipeline) fetchWorker(ctx context.Context, workerID int, jobs <-chan *models.SourceFile, wg *sync.WaitGroup, tempDir string) {
	defer wg.Done()

	client, dialErr := p.dial(ctx)
	if dialErr == nil {
		defer client.Quit()
	}

	for file := range jobs {
		if dialErr != nil {
			file.Status = models.StatusFailed
			file.Err = models.NewFileError(models.ErrFetchFailed, file.Identifier, dialErr)
			continue
		}

		log.Printf("Fetch worker %d: downloading %s", workerID, file.Identifier)
		res := fetcher.Fetch(client, file.Identifier, tempDir, p.fetchTimeout)
		file.Status = res.Status
		file.LocalPath = res.LocalPath
		file.SizeBytes = res.SizeBytes
		file.Checksum = res.Checksum
		file.Err = res.Err
	}
}

// collectFetched reduces the per-candidate outcomes: not-found candidates
// are dropped silently, failures become warnings, and later candidates whose
// content duplicates an earlier one are skipped.
func (p *Pipeline) collectFetched(files []*models.SourceFile, result *models.RunResult) []*models.SourceFile {
	var fetched []*models.SourceFile
	seen := make(map[string]string)

	for _, file := range files {
		switch file.Status {
		case models.StatusFetched:
			if first, dup := seen[file.Checksum]; dup {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("%s: identical content to %s, skipped", file.Identifier, first))
				continue
			}
			seen[file.Checksum] = file.Identifier
			fetched = append(fetched, file)
		case models.StatusFailed:
			if file.Err != nil {
				result.Warnings = append(result.Warnings, file.Err.Error())
			}
		}
	}

	return fetched
}

func decodeAll(fetched []*models.SourceFile, result *models.RunResult) ([]*models.Table, []string) {
	var tables []*models.Table
	var used []string

	for _, file := range fetched {
		table, err := dbc.Decode(file.LocalPath)
		if err != nil {
			file.Status = models.StatusCorrupt
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", file.Identifier, err))
			log.Printf("WARN: dropping corrupt file %s: %v", file.Identifier, err)
			continue
		}

		file.Status = models.StatusDecoded
		file.RowCount = len(table.Rows)
		file.Table = transform.Apply(table)
		tables = append(tables, file.Table)
		used = append(used, file.Identifier)
	}

	return tables, used
}

func failed(result models.RunResult, err error) models.RunResult {
	result.Status = models.RunStatusError

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		result.Error = appErr.Kind
	} else {
		result.Error = models.ErrFetchFailed
	}

	log.Printf("[%s] %s: %v", result.RunID, StateFailed, err)
	return result
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
