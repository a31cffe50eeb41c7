package sheet

import (
	"regexp"

	"github.com/docsheet/docsheet/internal/literal"
	"github.com/docsheet/docsheet/internal/query"
)

// Binding is the outcome of matching declared parameters against one
// statement.
type Binding struct {
	Parameters query.Parameters
	// Used holds the indices of the declared parameters whose raw values
	// should be recorded in their MRU lists once the statement has run.
	Used []int
	// Invalid lists referenced parameters whose raw value is not a literal.
	Invalid []string
}

// Bind keeps the declared parameters that statement references as
// @name tokens and parses their raw values. Unnamed, unreferenced and
// unparsable parameters are left out.
func Bind(statement string, declared []Parameter) Binding {
	binding := Binding{Parameters: query.Parameters{}}
	for i, param := range declared {
		naked := nakedName(param.Name)
		if naked == "" {
			continue
		}
		if !referencesParameter(statement, naked) {
			continue
		}
		name := "@" + naked
		value, ok := literal.Parse(param.RawValue)
		if !ok {
			literalParseFailures.WithLabelValues("parameter").Inc()
			binding.Invalid = append(binding.Invalid, name)
			continue
		}
		binding.Parameters = binding.Parameters.Set(name, value)
		binding.Used = append(binding.Used, i)
	}
	return binding
}

func referencesParameter(statement, naked string) bool {
	pattern, err := regexp.Compile(`@\b` + regexp.QuoteMeta(naked) + `\b`)
	if err != nil {
		return false
	}
	return pattern.MatchString(statement)
}
