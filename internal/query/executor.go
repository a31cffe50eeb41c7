package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docsheet/docsheet/internal/observability"
)

const DefaultMaxItemCount = 100

// Executor drains a Source page by page. Pages are read one at a time, in
// order; cancellation is checked between reads.
type Executor struct {
	Source       Source
	MaxItemCount int
	Logger       *slog.Logger
	Clock        func() time.Time
}

func NewExecutor(source Source, maxItemCount int, logger *slog.Logger) *Executor {
	return &Executor{Source: source, MaxItemCount: maxItemCount, Logger: logger}
}

// Execute never returns an error: every failure is recorded on the Result,
// together with every item and charge from pages read before it.
func (e *Executor) Execute(ctx context.Context, q Query, continuationToken string) Result {
	e.ensureDefaults()

	result := Result{
		Query:             q,
		Items:             []Document{},
		ContinuationToken: continuationToken,
	}
	start := e.Clock()

	if e.Source == nil {
		result.Err = fmt.Errorf("query source is not configured")
		return e.finish(ctx, result, start)
	}
	if err := ctx.Err(); err != nil {
		result.Err = cancelledError(err)
		return e.finish(ctx, result, start)
	}

	iterator, err := e.Source.Open(ctx, Request{
		SQL:               q.SQL,
		Parameters:        q.Parameters,
		PartitionKey:      q.PartitionKey,
		ContinuationToken: continuationToken,
		MaxItemCount:      e.MaxItemCount,
	})
	if err != nil {
		result.Err = readError(ctx, 0, err)
		return e.finish(ctx, result, start)
	}

	for page := 1; iterator.HasMore(); page++ {
		if err := ctx.Err(); err != nil {
			result.Err = cancelledError(err)
			break
		}

		response, err := iterator.ReadNext(ctx)
		if err != nil {
			result.Err = readError(ctx, page, err)
			break
		}

		result.Pages++
		result.RequestCharge += response.RequestCharge
		if response.ContinuationErr != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("continuation token unavailable after page %d: %v", page, response.ContinuationErr))
			e.Logger.WarnContext(ctx, "continuation_warning",
				slog.String("run_id", observability.RunIDFromContext(ctx)),
				slog.Int("page", page),
				slog.Any("error", response.ContinuationErr),
			)
		} else {
			result.ContinuationToken = response.ContinuationToken
		}
		result.Items = append(result.Items, response.Items...)

		e.Logger.DebugContext(ctx, "query_page_read",
			slog.String("run_id", observability.RunIDFromContext(ctx)),
			slog.Int("page", page),
			slog.Int("items", len(response.Items)),
			slog.Float64("request_charge", response.RequestCharge),
		)
	}

	if err := iterator.Close(); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("close query iterator: %v", err))
	}
	return e.finish(ctx, result, start)
}

// finish is the single place where elapsed time is taken.
func (e *Executor) finish(ctx context.Context, result Result, start time.Time) Result {
	result.Elapsed = e.Clock().Sub(start)
	if result.Elapsed < 0 {
		result.Elapsed = 0
	}
	observeResult(result)

	attrs := []any{
		slog.String("run_id", observability.RunIDFromContext(ctx)),
		slog.Int("pages", result.Pages),
		slog.Int("items", len(result.Items)),
		slog.Float64("request_charge", result.RequestCharge),
		slog.String("duration", result.Elapsed.String()),
		slog.Int("warnings", len(result.Warnings)),
	}
	if result.Err != nil {
		attrs = append(attrs, slog.String("kind", string(Classify(result.Err))), slog.Any("error", result.Err))
		e.Logger.WarnContext(ctx, "query_failed", attrs...)
		return result
	}
	e.Logger.InfoContext(ctx, "query_completed", attrs...)
	return result
}

func (e *Executor) ensureDefaults() {
	if e.MaxItemCount <= 0 {
		e.MaxItemCount = DefaultMaxItemCount
	}
	if e.Logger == nil {
		e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.Clock == nil {
		e.Clock = time.Now
	}
}

func cancelledError(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// readError reports a failure that happened after the caller's context was
// done as a cancellation rather than a remote fault.
func readError(ctx context.Context, page int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelledError(ctxErr)
	}
	return &PageReadError{Page: page, Err: err}
}
