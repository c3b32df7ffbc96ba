package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/saudedigital/siasus-pa/internal/models"
	"github.com/saudedigital/siasus-pa/internal/pipeline"
)

// Runner abstracts the extraction pipeline for the HTTP layer.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) models.RunResult
}

type ExtractionService struct {
	Pipeline Runner
}

func NewExtractionService(p Runner) *ExtractionService {
	return &ExtractionService{Pipeline: p}
}

type extractionRequest struct {
	UF        string `json:"UF"`
	Data      string `json:"data"`
	Diretorio string `json:"diretorio"`
}

// ExtractPA handles POST /pa: runs one extraction for the requested state,
// competence month and output directory, and returns the RunResult as JSON.
func (s *ExtractionService) ExtractPA(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	var req extractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	periodStart, err := time.Parse("2006-01-02", req.Data)
	if err != nil {
		http.Error(w, "Invalid 'data' format. Use YYYY-MM-DD.", http.StatusBadRequest)
		return
	}
	if req.Diretorio == "" {
		http.Error(w, "'diretorio' is required", http.StatusBadRequest)
		return
	}

	result := s.Pipeline.Run(r.Context(), pipeline.Request{
		StateCode:   req.UF,
		PeriodStart: periodStart,
		OutputDir:   req.Diretorio,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCodeFor(result))
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func statusCodeFor(result models.RunResult) int {
	if result.Status == models.RunStatusOK {
		return http.StatusOK
	}
	switch result.Error {
	case models.ErrInvalidStateCode, models.ErrInvalidPeriod:
		return http.StatusBadRequest
	case models.ErrNoDataAvailable:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
