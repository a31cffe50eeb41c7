// Package mru keeps bounded most-recently-used lists of raw field values.
package mru

// MaxEntries bounds every list.
const MaxEntries = 10

// Push returns list with value moved (or inserted) at the front and the
// tail trimmed to MaxEntries. The input slice is not modified.
func Push(list []string, value string) []string {
	out := make([]string, 0, min(len(list)+1, MaxEntries))
	out = append(out, value)
	for _, existing := range list {
		if existing == value {
			continue
		}
		if len(out) == MaxEntries {
			break
		}
		out = append(out, existing)
	}
	return out
}

// Contains reports whether value is present in list.
func Contains(list []string, value string) bool {
	for _, existing := range list {
		if existing == value {
			return true
		}
	}
	return false
}
