package query

import (
	"context"
	"fmt"
)

// FetchFunc returns up to limit documents starting at offset.
type FetchFunc func(ctx context.Context, limit, offset int64) ([]Document, error)

// OffsetPager pages through a query with LIMIT/OFFSET. Each read asks for one
// extra row to learn whether another page exists.
type OffsetPager struct {
	fetch    FetchFunc
	pageSize int64
	offset   int64
	charges  ChargeModel
	closer   func() error
	done     bool
}

// NewOffsetPager resumes at the offset carried by continuationToken.
func NewOffsetPager(fetch FetchFunc, pageSize int, continuationToken string, charges ChargeModel, closer func() error) (*OffsetPager, error) {
	if fetch == nil {
		return nil, fmt.Errorf("fetch function is required")
	}
	if pageSize <= 0 {
		pageSize = DefaultMaxItemCount
	}
	offset, err := DecodeOffsetToken(continuationToken)
	if err != nil {
		return nil, err
	}
	return &OffsetPager{
		fetch:    fetch,
		pageSize: int64(pageSize),
		offset:   offset,
		charges:  charges,
		closer:   closer,
	}, nil
}

func (p *OffsetPager) HasMore() bool {
	return !p.done
}

func (p *OffsetPager) ReadNext(ctx context.Context) (Page, error) {
	if p.done {
		return Page{}, fmt.Errorf("no more pages")
	}
	items, err := p.fetch(ctx, p.pageSize+1, p.offset)
	if err != nil {
		return Page{}, err
	}

	page := Page{}
	if int64(len(items)) > p.pageSize {
		items = items[:p.pageSize]
		p.offset += p.pageSize
		page.ContinuationToken = EncodeOffsetToken(p.offset)
	} else {
		p.done = true
	}
	page.Items = items
	page.RequestCharge = p.charges.Charge(len(items))
	return page, nil
}

func (p *OffsetPager) Close() error {
	p.done = true
	if p.closer == nil {
		return nil
	}
	closer := p.closer
	p.closer = nil
	return closer()
}
