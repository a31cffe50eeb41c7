package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/docsheet/docsheet/internal/literal"
	"github.com/docsheet/docsheet/internal/mru"
	"github.com/docsheet/docsheet/internal/observability"
	"github.com/docsheet/docsheet/internal/query"
)

var (
	ErrNothingToRun  = errors.New("nothing to run")
	ErrRunInProgress = errors.New("a run is already in progress")
)

// InvalidFieldError reports a partition key or parameter whose raw value
// is not a literal.
type InvalidFieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Raw, e.Err)
}

func (e *InvalidFieldError) Unwrap() error {
	return e.Err
}

const partitionKeyField = "partition key"

// RunRequest says which part of the sheet to run.
type RunRequest struct {
	Cursor    int
	Selection Span
	// Continuation resumes a paged query from a token returned by an
	// earlier run of the same statement.
	Continuation string
}

type Run struct {
	Statement string
	// Span is the statement's range in the sheet text. Callers that track
	// a selection can adopt it.
	Span   Span
	Result query.Result
}

// Runner executes statements of a sheet one at a time.
type Runner struct {
	Executor *query.Executor
	Logger   *slog.Logger

	running atomic.Bool
}

func NewRunner(executor *query.Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Executor: executor, Logger: logger}
}

func (r *Runner) Running() bool {
	return r.running.Load()
}

// Validate checks the partition key and every named parameter.
func Validate(s *Sheet) error {
	if _, err := literal.ParseValue(s.PartitionKey); err != nil {
		return &InvalidFieldError{Field: partitionKeyField, Raw: s.PartitionKey, Err: err}
	}
	for _, param := range s.Parameters {
		if nakedName(param.Name) == "" {
			continue
		}
		if _, err := literal.ParseValue(param.RawValue); err != nil {
			return &InvalidFieldError{Field: "parameter " + NormalizeParameterName(param.Name), Raw: param.RawValue, Err: err}
		}
	}
	return nil
}

// CanExecute reports whether Execute would reach the source.
func (r *Runner) CanExecute(s *Sheet, request RunRequest) bool {
	return r.check(s, request) == nil
}

func (r *Runner) check(s *Sheet, request RunRequest) error {
	if r.running.Load() {
		return ErrRunInProgress
	}
	if r.Executor == nil {
		return fmt.Errorf("query executor is not configured")
	}
	if err := Validate(s); err != nil {
		return err
	}
	if Resolve(s.Text, request.Cursor, request.Selection).Empty() {
		return ErrNothingToRun
	}
	return nil
}

// Execute runs the statement picked by request. Errors returned here mean
// nothing was sent to the source; failures during the run are on
// Run.Result. MRU lists are updated after the run has finished.
func (r *Runner) Execute(ctx context.Context, s *Sheet, request RunRequest) (Run, error) {
	if !r.running.CompareAndSwap(false, true) {
		runsRejected.WithLabelValues("in_progress").Inc()
		return Run{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	if r.Executor == nil {
		return Run{}, fmt.Errorf("query executor is not configured")
	}
	if err := Validate(s); err != nil {
		literalParseFailures.WithLabelValues(fieldLabel(err)).Inc()
		runsRejected.WithLabelValues("invalid_field").Inc()
		return Run{}, err
	}
	span := Resolve(s.Text, request.Cursor, request.Selection)
	if span.Empty() {
		runsRejected.WithLabelValues("nothing_to_run").Inc()
		return Run{}, ErrNothingToRun
	}
	statement := span.Slice(s.Text)

	binding := Bind(statement, s.Parameters)
	partitionKey, _ := literal.Parse(s.PartitionKey)

	runID := observability.NewRunID()
	ctx = observability.ContextWithRunID(ctx, runID)
	r.Logger.DebugContext(ctx, "sheet_run_started",
		"run_id", runID,
		"sheet", s.Title,
		"span_start", span.Start,
		"span_end", span.End,
		"parameters", binding.Parameters.Names(),
		"resumed", request.Continuation != "",
	)

	result := r.Executor.Execute(ctx, query.Query{
		SQL:          statement,
		Parameters:   binding.Parameters,
		PartitionKey: partitionKey,
	}, request.Continuation)

	if strings.TrimSpace(s.PartitionKey) != "" {
		s.PartitionKeyMRU = mru.Push(s.PartitionKeyMRU, s.PartitionKey)
	}
	for _, i := range binding.Used {
		s.Parameters[i].MRU = mru.Push(s.Parameters[i].MRU, s.Parameters[i].RawValue)
	}

	return Run{Statement: statement, Span: span, Result: result}, nil
}

func fieldLabel(err error) string {
	var fieldErr *InvalidFieldError
	if errors.As(err, &fieldErr) && fieldErr.Field == partitionKeyField {
		return "partition_key"
	}
	return "parameter"
}
