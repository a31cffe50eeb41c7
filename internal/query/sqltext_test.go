package query

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/docsheet/docsheet/internal/literal"
)

func TestBindPositionalRewritesBoundNames(t *testing.T) {
	params := Parameters{}.
		Set("@id", literal.NumberValue(7)).
		Set("@kind", literal.StringValue("order"))

	sqlText, args := BindPositional(
		"select * from c where c.id = @id and c.kind = @kind and c.parent = @id and c.other = @other",
		params, 5)

	want := "select * from c where c.id = $5 and c.kind = $6 and c.parent = $5 and c.other = @other"
	if sqlText != want {
		t.Fatalf("BindPositional() sql = %q, want %q", sqlText, want)
	}
	if !reflect.DeepEqual(args, []any{int64(7), "order"}) {
		t.Fatalf("BindPositional() args = %#v", args)
	}
}

func TestBindPositionalSkipsQuotedText(t *testing.T) {
	params := Parameters{}.Set("@id", literal.StringValue("x"))

	sqlText, args := BindPositional(`select '@id', "@id", user@id, @id from c`, params, 1)

	want := `select '@id', "@id", user@id, $1 from c`
	if sqlText != want {
		t.Fatalf("BindPositional() sql = %q, want %q", sqlText, want)
	}
	if len(args) != 1 {
		t.Fatalf("len(args) = %d", len(args))
	}
}

func TestBindPositionalSkipsComments(t *testing.T) {
	params := Parameters{}.Set("@id", literal.StringValue("x"))

	sqlText, args := BindPositional("/* @id */ select 1 -- where id = @id", params, 1)
	if sqlText != "/* @id */ select 1 -- where id = @id" || len(args) != 0 {
		t.Fatalf("BindPositional() = %q, %#v", sqlText, args)
	}

	sqlText, args = BindPositional("select * from c -- by @id\nwhere c.id = @id /* @id */", params, 1)
	want := "select * from c -- by @id\nwhere c.id = $1 /* @id */"
	if sqlText != want {
		t.Fatalf("BindPositional() sql = %q, want %q", sqlText, want)
	}
	if !reflect.DeepEqual(args, []any{"x"}) {
		t.Fatalf("BindPositional() args = %#v", args)
	}
}

func TestArgValueKeepsIntegerPrecision(t *testing.T) {
	big, err := literal.Parse("9007199254740993")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := ArgValue(big); got != int64(9007199254740993) {
		t.Fatalf("ArgValue(big) = %#v", got)
	}
	if got := ArgValue(literal.NumberValue(2.5)); got != 2.5 {
		t.Fatalf("ArgValue(2.5) = %#v", got)
	}
}

func TestArgValue(t *testing.T) {
	object, _ := literal.Parse(`{"a":1}`)
	if got := ArgValue(object); got != `{"a":1}` {
		t.Fatalf("ArgValue(object) = %#v", got)
	}
	if got := ArgValue(literal.AbsentValue()); got != nil {
		t.Fatalf("ArgValue(absent) = %#v", got)
	}
	if got := ArgValue(literal.BoolValue(true)); got != true {
		t.Fatalf("ArgValue(bool) = %#v", got)
	}
	if got := JSONArg(literal.StringValue("t-1")); got != `"t-1"` {
		t.Fatalf("JSONArg(string) = %#v", got)
	}
}

func TestStripTrailingSemicolons(t *testing.T) {
	if got := StripTrailingSemicolons(" select 1 ; ;"); got != "select 1" {
		t.Fatalf("StripTrailingSemicolons() = %q", got)
	}
}

func TestOffsetPagerPages(t *testing.T) {
	all := docs(`1`, `2`, `3`, `4`, `5`)
	var calls [][2]int64
	fetch := func(_ context.Context, limit, offset int64) ([]Document, error) {
		calls = append(calls, [2]int64{limit, offset})
		end := min(offset+limit, int64(len(all)))
		return all[offset:end], nil
	}
	closed := false
	pager, err := NewOffsetPager(fetch, 2, "", ChargeModel{PerPage: 1, PerItem: 0.5}, func() error {
		closed = true
		return nil
	})
	if err != nil {
		t.Fatalf("NewOffsetPager() error = %v", err)
	}

	var pages []Page
	for pager.HasMore() {
		page, err := pager.ReadNext(context.Background())
		if err != nil {
			t.Fatalf("ReadNext() error = %v", err)
		}
		pages = append(pages, page)
	}
	if len(pages) != 3 {
		t.Fatalf("pages = %d", len(pages))
	}
	if len(pages[0].Items) != 2 || pages[0].RequestCharge != 2 {
		t.Fatalf("pages[0] = %#v", pages[0])
	}
	if pages[2].ContinuationToken != "" || len(pages[2].Items) != 1 {
		t.Fatalf("pages[2] = %#v", pages[2])
	}
	if !reflect.DeepEqual(calls, [][2]int64{{3, 0}, {3, 2}, {3, 4}}) {
		t.Fatalf("fetch calls = %v", calls)
	}

	offset, err := DecodeOffsetToken(pages[1].ContinuationToken)
	if err != nil || offset != 4 {
		t.Fatalf("token offset = %d, %v", offset, err)
	}
	if err := pager.Close(); err != nil || !closed {
		t.Fatalf("Close() = %v, closed = %v", err, closed)
	}
}

func TestOffsetPagerResumesFromToken(t *testing.T) {
	var gotOffset int64 = -1
	fetch := func(_ context.Context, _, offset int64) ([]Document, error) {
		gotOffset = offset
		return nil, errors.New("boom")
	}
	pager, err := NewOffsetPager(fetch, 10, EncodeOffsetToken(30), ChargeModel{}, nil)
	if err != nil {
		t.Fatalf("NewOffsetPager() error = %v", err)
	}
	if _, err := pager.ReadNext(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if gotOffset != 30 {
		t.Fatalf("offset = %d", gotOffset)
	}
	if !pager.HasMore() {
		t.Fatal("a failed read should not end the pager")
	}

	if _, err := NewOffsetPager(fetch, 10, "!!", ChargeModel{}, nil); err == nil {
		t.Fatal("expected invalid token error")
	}
}
