package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsheet/docsheet/internal/literal"
	"github.com/docsheet/docsheet/internal/query"
)

func TestExecuteEndToEnd(t *testing.T) {
	source := &stubSource{pages: []query.Page{{
		Items:         []query.Document{json.RawMessage(`"a"`), json.RawMessage(`"b"`), json.RawMessage(`"c"`)},
		RequestCharge: 2.1,
	}}}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)
	sh := &Sheet{Text: "select value c.id from c", PartitionKey: `"tenant-42"`}

	run, err := runner.Execute(context.Background(), sh, RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, "select value c.id from c", run.Statement)
	assert.NoError(t, run.Result.Err)
	assert.Len(t, run.Result.Items, 3)
	assert.InDelta(t, 2.1, run.Result.RequestCharge, 1e-9)
	assert.True(t, literal.StringValue("tenant-42").Equal(source.request.PartitionKey))
	assert.True(t, literal.StringValue("tenant-42").Equal(run.Result.Query.PartitionKey))
	assert.Equal(t, []string{`"tenant-42"`}, sh.PartitionKeyMRU)
}

func TestExecuteBindsReferencedParametersAndRecordsMRU(t *testing.T) {
	source := &stubSource{pages: []query.Page{{Items: []query.Document{json.RawMessage(`{}`)}}}}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)
	sh := &Sheet{
		Text: "select * from c where c.id = @id\n\nselect * from c where c.kind = @kind",
		Parameters: []Parameter{
			{Name: "@id", RawValue: "123", MRU: []string{"7"}},
			{Name: "@kind", RawValue: `"order"`},
		},
	}

	run, err := runner.Execute(context.Background(), sh, RunRequest{Cursor: 3})
	require.NoError(t, err)

	assert.Equal(t, "select * from c where c.id = @id", run.Statement)
	assert.Equal(t, []string{"@id"}, source.request.Parameters.Names())
	assert.Equal(t, []string{"123", "7"}, sh.Parameters[0].MRU)
	assert.Empty(t, sh.Parameters[1].MRU)
	assert.Empty(t, sh.PartitionKeyMRU)
}

func TestExecuteRecordsMRUAfterFailedRun(t *testing.T) {
	source := &stubSource{
		pages:   []query.Page{{Items: []query.Document{json.RawMessage(`1`)}, RequestCharge: 1}},
		failAt:  2,
		failErr: errors.New("throttled"),
		more:    true,
	}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)
	sh := &Sheet{Text: "select * from c", PartitionKey: "42"}

	run, err := runner.Execute(context.Background(), sh, RunRequest{})
	require.NoError(t, err)

	assert.Error(t, run.Result.Err)
	assert.Len(t, run.Result.Items, 1)
	assert.Equal(t, []string{"42"}, sh.PartitionKeyMRU)
}

func TestExecuteRecordsUndefinedPartitionKey(t *testing.T) {
	source := &stubSource{pages: []query.Page{{Items: []query.Document{json.RawMessage(`1`)}}}}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)
	sh := &Sheet{Text: "select * from c", PartitionKey: "undefined"}

	_, err := runner.Execute(context.Background(), sh, RunRequest{})
	require.NoError(t, err)

	assert.True(t, source.request.PartitionKey.IsAbsent())
	assert.Equal(t, []string{"undefined"}, sh.PartitionKeyMRU)

	sh.PartitionKey = "   "
	_, err = runner.Execute(context.Background(), sh, RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"undefined"}, sh.PartitionKeyMRU)
}

func TestExecuteRejectsInvalidFields(t *testing.T) {
	source := &stubSource{}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)

	sh := &Sheet{Text: "select * from c", PartitionKey: "tenant-42"}
	_, err := runner.Execute(context.Background(), sh, RunRequest{})
	var fieldErr *InvalidFieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "partition key", fieldErr.Field)
	assert.False(t, runner.CanExecute(sh, RunRequest{}))

	sh = &Sheet{Text: "select * from c", Parameters: []Parameter{{Name: "p", RawValue: "{oops"}}}
	_, err = runner.Execute(context.Background(), sh, RunRequest{})
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "parameter @p", fieldErr.Field)
	var parseErr *literal.ParseError
	assert.ErrorAs(t, err, &parseErr)

	assert.Equal(t, 0, source.opened)
}

func TestExecuteNothingToRun(t *testing.T) {
	source := &stubSource{}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)
	sh := &Sheet{Text: "select 1\n\nselect 2"}

	_, err := runner.Execute(context.Background(), sh, RunRequest{Cursor: 9})
	assert.ErrorIs(t, err, ErrNothingToRun)
	assert.False(t, runner.CanExecute(sh, RunRequest{Cursor: 9}))
	assert.True(t, runner.CanExecute(sh, RunRequest{Cursor: 0}))
	assert.Equal(t, 0, source.opened)
}

func TestExecuteIsSingleFlight(t *testing.T) {
	source := &stubSource{
		pages:   []query.Page{{Items: []query.Document{json.RawMessage(`1`)}}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)
	first := &Sheet{Text: "select * from c"}
	second := &Sheet{Text: "select * from c"}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = runner.Execute(context.Background(), first, RunRequest{})
	}()

	<-source.started
	assert.True(t, runner.Running())
	assert.False(t, runner.CanExecute(second, RunRequest{}))
	_, err := runner.Execute(context.Background(), second, RunRequest{})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(source.release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, runner.Running())
	assert.True(t, runner.CanExecute(second, RunRequest{}))
}

func TestExecutePassesContinuation(t *testing.T) {
	source := &stubSource{}
	runner := NewRunner(query.NewExecutor(source, 0, nil), nil)
	sh := &Sheet{Text: "select * from c"}

	run, err := runner.Execute(context.Background(), sh, RunRequest{Continuation: "token-1"})
	require.NoError(t, err)
	assert.Equal(t, "token-1", source.request.ContinuationToken)
	assert.Equal(t, "token-1", run.Result.ContinuationToken)
}

func TestValidateIgnoresUnnamedParameters(t *testing.T) {
	sh := &Sheet{Parameters: []Parameter{{Name: "", RawValue: "not json"}}}
	assert.NoError(t, Validate(sh))
}

type stubSource struct {
	pages   []query.Page
	failAt  int
	failErr error
	more    bool

	started chan struct{}
	release chan struct{}

	opened  int
	request query.Request
}

func (s *stubSource) Open(_ context.Context, request query.Request) (query.PageIterator, error) {
	s.opened++
	s.request = request
	return &stubIterator{source: s}, nil
}

type stubIterator struct {
	source *stubSource
	read   int
}

func (it *stubIterator) HasMore() bool {
	return it.read < len(it.source.pages) || (it.source.more && it.read < it.source.failAt)
}

func (it *stubIterator) ReadNext(context.Context) (query.Page, error) {
	if it.source.started != nil && it.read == 0 {
		close(it.source.started)
		<-it.source.release
	}
	it.read++
	if it.read == it.source.failAt {
		return query.Page{}, it.source.failErr
	}
	return it.source.pages[it.read-1], nil
}

func (it *stubIterator) Close() error {
	return nil
}
