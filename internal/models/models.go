package models

import (
	"fmt"
	"strings"
)

// ErrorKind classifies pipeline failures. File- and row-scoped kinds degrade
// the run; request-scoped kinds abort it.
type ErrorKind string

const (
	ErrInvalidStateCode ErrorKind = "InvalidStateCode"
	ErrInvalidPeriod    ErrorKind = "InvalidPeriod"
	ErrFetchFailed      ErrorKind = "FetchFailed"
	ErrNoDataAvailable  ErrorKind = "NoDataAvailable"
	ErrCorruptArchive   ErrorKind = "CorruptArchive"
	ErrTruncatedRecord  ErrorKind = "TruncatedRecord"
	ErrSchemaMismatch   ErrorKind = "SchemaMismatch"
	ErrOutputWrite      ErrorKind = "OutputWriteFailed"
)

// AppError carries an error kind plus the candidate file it relates to, when
// the failure is scoped to a single remote file.
type AppError struct {
	Kind ErrorKind
	File string
	Err  error
}

func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.File != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", e.File))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds a request-scoped error.
func NewAppError(kind ErrorKind, err error) *AppError {
	return &AppError{Kind: kind, Err: err}
}

// NewFileError builds an error scoped to one candidate file.
func NewFileError(kind ErrorKind, file string, err error) *AppError {
	return &AppError{Kind: kind, File: file, Err: err}
}

// Field describes one column of a decoded dissemination file: its name, the
// DBF type tag ('C', 'N', 'D' or 'L'), the fixed byte width and the declared
// number of decimal places for numeric columns.
type Field struct {
	Name     string
	Type     byte
	Width    int
	Decimals int
}

// Table holds the decoded rows of one file. Every row has exactly one value
// per field, already coerced to its UTF-8 text representation.
type Table struct {
	Fields      []Field
	Rows        [][]string
	DroppedRows int
}

func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// FetchStatus tracks a candidate through the fetch/decode stages.
type FetchStatus string

const (
	StatusNotFetched FetchStatus = "NOT_FETCHED"
	StatusFetched    FetchStatus = "FETCHED"
	StatusNotFound   FetchStatus = "NOT_FOUND"
	StatusFailed     FetchStatus = "FAILED"
	StatusCorrupt    FetchStatus = "CORRUPT"
	StatusDecoded    FetchStatus = "DECODED"
)

// SourceFile is the handle for one candidate remote file. Created by the
// locator, mutated by the fetcher and the decoder, discarded after the run.
type SourceFile struct {
	Identifier string
	Index      int
	Status     FetchStatus
	LocalPath  string
	SizeBytes  int64
	Checksum   string
	RowCount   int
	Table      *Table
	Err        *AppError
}

// RunResult summarizes one pipeline execution. JSON field names follow the
// response contract of the /pa endpoint.
type RunResult struct {
	RunID           string    `json:"id_execucao"`
	Status          string    `json:"status"`
	StateCode       string    `json:"estado"`
	Period          string    `json:"periodo"`
	SourceFilesUsed []string  `json:"arquivos_origem_dbc"`
	OutputPath      string    `json:"local,omitempty"`
	Error           ErrorKind `json:"erro,omitempty"`
	DroppedRows     int       `json:"linhas_descartadas"`
	Warnings        []string  `json:"avisos,omitempty"`
}

const (
	RunStatusOK    = "OK"
	RunStatusError = "ERROR"
)
