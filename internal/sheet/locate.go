package sheet

import (
	"strings"
	"unicode"
)

// Separator delimits statements within a sheet.
const Separator = "\n\n"

// Span is an inclusive rune range into a sheet's text. A span whose End is
// before its Start is empty.
type Span struct {
	Start int
	End   int
}

var EmptySpan = Span{Start: 0, End: -1}

func (s Span) Empty() bool {
	return s.End < s.Start
}

func (s Span) Len() int {
	if s.Empty() {
		return 0
	}
	return s.End - s.Start + 1
}

// Slice returns the text covered by the span, or "" when the span is empty
// or out of range.
func (s Span) Slice(text string) string {
	runes := []rune(text)
	if s.Empty() || s.Start < 0 || s.End >= len(runes) {
		return ""
	}
	return string(runes[s.Start : s.End+1])
}

// Locate finds the statement around cursor. The result is empty when the
// text around the cursor is blank or the cursor sits inside a separator.
func Locate(text string, cursor int) Span {
	runes := []rune(text)
	sep := []rune(Separator)
	if len(runes) == 0 {
		return EmptySpan
	}
	cursor = clamp(cursor, 0, len(runes))

	start := 0
	if i := lastSeparatorAtOrBefore(runes, sep, cursor); i >= 0 {
		start = i
	}
	end := len(runes) - 1
	if i := firstSeparatorReaching(runes, sep, cursor); i >= 0 {
		end = i
	}
	start = clamp(start, 0, len(runes)-1)
	end = clamp(end, 0, len(runes)-1)

	span := trim(runes, Span{Start: start, End: end})
	if span.Empty() {
		return EmptySpan
	}
	if strings.Contains(string(runes[span.Start:span.End+1]), Separator) {
		return EmptySpan
	}
	return span
}

// Resolve returns the explicit selection, trimmed, when it covers any
// non-blank text, and otherwise the statement located around cursor.
func Resolve(text string, cursor int, selection Span) Span {
	runes := []rune(text)
	if !selection.Empty() && len(runes) > 0 {
		selected := trim(runes, Span{
			Start: clamp(selection.Start, 0, len(runes)-1),
			End:   clamp(selection.End, 0, len(runes)-1),
		})
		if !selected.Empty() {
			return selected
		}
	}
	return Locate(text, cursor)
}

// lastSeparatorAtOrBefore returns the start of the last separator that
// begins at or before cursor.
func lastSeparatorAtOrBefore(runes, sep []rune, cursor int) int {
	for i := min(cursor, len(runes)-len(sep)); i >= 0; i-- {
		if hasRunesAt(runes, sep, i) {
			return i
		}
	}
	return -1
}

// firstSeparatorReaching returns the start of the first separator that ends
// at or after cursor.
func firstSeparatorReaching(runes, sep []rune, cursor int) int {
	for i := max(cursor-len(sep)+1, 0); i+len(sep) <= len(runes); i++ {
		if hasRunesAt(runes, sep, i) {
			return i
		}
	}
	return -1
}

func hasRunesAt(runes, sub []rune, at int) bool {
	if at < 0 || at+len(sub) > len(runes) {
		return false
	}
	for i, r := range sub {
		if runes[at+i] != r {
			return false
		}
	}
	return true
}

func trim(runes []rune, span Span) Span {
	start, end := span.Start, span.End
	for start <= end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end >= start && unicode.IsSpace(runes[end]) {
		end--
	}
	if start > end {
		return EmptySpan
	}
	return Span{Start: start, End: end}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
