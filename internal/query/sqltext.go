package query

import (
	"fmt"
	"strings"

	"github.com/docsheet/docsheet/internal/literal"
)

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// BindPositional rewrites @name references of bound parameters to $n
// placeholders numbered from first, and returns the matching arguments.
// References inside quoted strings or identifiers, inside -- and /* */
// comments, and names that are not bound are left untouched.
func BindPositional(sqlText string, params Parameters, first int) (string, []any) {
	runes := []rune(sqlText)
	var out strings.Builder
	out.Grow(len(sqlText))

	var args []any
	positions := map[string]int{}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if skip := skipLiteral(runes, i); skip > i {
			out.WriteString(string(runes[i:skip]))
			i = skip - 1
			continue
		}
		if r != '@' || (i > 0 && isNameRune(runes[i-1])) {
			out.WriteRune(r)
			continue
		}
		end := i + 1
		for end < len(runes) && isNameRune(runes[end]) {
			end++
		}
		name := "@" + string(runes[i+1:end])
		value, ok := params.Get(name)
		if end == i+1 || !ok {
			out.WriteRune(r)
			continue
		}
		position, seen := positions[name]
		if !seen {
			position = first + len(args)
			positions[name] = position
			args = append(args, ArgValue(value))
		}
		fmt.Fprintf(&out, "$%d", position)
		i = end - 1
	}
	return out.String(), args
}

// skipLiteral returns the index just past a quoted string, quoted identifier
// or comment starting at i, or i when none starts there. Unterminated ones
// run to the end of the text.
func skipLiteral(runes []rune, i int) int {
	switch {
	case runes[i] == '\'' || runes[i] == '"':
		quote := runes[i]
		for j := i + 1; j < len(runes); j++ {
			if runes[j] == quote {
				return j + 1
			}
		}
		return len(runes)
	case hasPrefixAt(runes, i, "--"):
		for j := i + 2; j < len(runes); j++ {
			if runes[j] == '\n' {
				return j
			}
		}
		return len(runes)
	case hasPrefixAt(runes, i, "/*"):
		for j := i + 2; j+1 < len(runes); j++ {
			if runes[j] == '*' && runes[j+1] == '/' {
				return j + 2
			}
		}
		return len(runes)
	default:
		return i
	}
}

func hasPrefixAt(runes []rune, i int, prefix string) bool {
	p := []rune(prefix)
	if i+len(p) > len(runes) {
		return false
	}
	for k, r := range p {
		if runes[i+k] != r {
			return false
		}
	}
	return true
}

// ArgValue converts a literal into a database/sql argument. Integral numbers
// are int64 and other numbers float64. Objects and arrays are passed as JSON
// text; absent and null become NULL.
func ArgValue(value literal.Value) any {
	switch value.Kind() {
	case literal.Absent, literal.Null:
		return nil
	case literal.Number:
		if i, ok := value.Int64(); ok {
			return i
		}
		f, _ := value.Float64()
		return f
	case literal.Object, literal.Array:
		return value.String()
	default:
		return value.Interface()
	}
}

// JSONArg renders a literal as JSON text for comparison against JSON
// columns, or nil when it is absent.
func JSONArg(value literal.Value) any {
	if value.IsAbsent() {
		return nil
	}
	return value.String()
}

func isNameRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
