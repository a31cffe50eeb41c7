package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docsheet/docsheet/internal/literal"
)

// Document is one result item exactly as returned by the source.
type Document = json.RawMessage

type Parameter struct {
	Name  string
	Value literal.Value
}

// Parameters is an ordered name -> value mapping.
type Parameters []Parameter

func (p Parameters) Get(name string) (literal.Value, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return literal.Value{}, false
}

// Set replaces the value of an existing name in place or appends a new one.
func (p Parameters) Set(name string, value literal.Value) Parameters {
	for i := range p {
		if p[i].Name == name {
			p[i].Value = value
			return p
		}
	}
	return append(p, Parameter{Name: name, Value: value})
}

func (p Parameters) Names() []string {
	names := make([]string, 0, len(p))
	for _, param := range p {
		names = append(names, param.Name)
	}
	return names
}

// Query is built once per run and not modified afterwards.
type Query struct {
	SQL          string
	Parameters   Parameters
	PartitionKey literal.Value
}

type Result struct {
	Query             Query
	Items             []Document
	RequestCharge     float64
	ContinuationToken string
	Pages             int
	Elapsed           time.Duration
	Err               error
	Warnings          []string
}

func (r Result) Failed() bool {
	return r.Err != nil
}

func (r Result) Cancelled() bool {
	return errors.Is(r.Err, ErrCancelled)
}

// Request is what a Source receives to open a paged query.
type Request struct {
	SQL               string
	Parameters        Parameters
	PartitionKey      literal.Value
	ContinuationToken string
	MaxItemCount      int
}

type Page struct {
	Items             []Document
	RequestCharge     float64
	ContinuationToken string
	// ContinuationErr is set when the page was read but its continuation
	// token could not be obtained.
	ContinuationErr error
}

type PageIterator interface {
	HasMore() bool
	ReadNext(ctx context.Context) (Page, error)
	Close() error
}

// Source is a remote container that answers paged queries.
type Source interface {
	Open(ctx context.Context, request Request) (PageIterator, error)
}

var ErrCancelled = errors.New("query cancelled")

// PageReadError is a failed remote fetch. Page 0 means opening the query
// failed before any page was requested.
type PageReadError struct {
	Page int
	Err  error
}

func (e *PageReadError) Error() string {
	if e.Page == 0 {
		return fmt.Sprintf("open query: %v", e.Err)
	}
	return fmt.Sprintf("read page %d: %v", e.Page, e.Err)
}

func (e *PageReadError) Unwrap() error {
	return e.Err
}

type ErrorKind string

const (
	ErrorKindNone      ErrorKind = "none"
	ErrorKindCancelled ErrorKind = "cancelled"
	ErrorKindPageRead  ErrorKind = "page_read"
	ErrorKindOther     ErrorKind = "other"
)

func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	if errors.Is(err, ErrCancelled) {
		return ErrorKindCancelled
	}
	var readErr *PageReadError
	if errors.As(err, &readErr) {
		return ErrorKindPageRead
	}
	return ErrorKindOther
}

// ChargeModel prices pages for sources that do not report a request cost.
type ChargeModel struct {
	PerPage float64
	PerItem float64
}

func (m ChargeModel) Charge(items int) float64 {
	return m.PerPage + m.PerItem*float64(items)
}
