package sheet

import (
	"fmt"
	"strings"
	"sync/atomic"
)

const DefaultText = "select distinct value c.docType from c"

// Parameter is a declared named parameter together with the values it was
// last run with.
type Parameter struct {
	Name     string   `json:"name"`
	RawValue string   `json:"rawValue"`
	MRU      []string `json:"mru,omitempty"`
}

// Sheet is a text buffer of blank-line separated statements plus the
// partition key and parameters shared by all of them.
type Sheet struct {
	Title           string      `json:"-"`
	Text            string      `json:"text"`
	PartitionKey    string      `json:"partitionKey"`
	PartitionKeyMRU []string    `json:"partitionKeyMru,omitempty"`
	Parameters      []Parameter `json:"parameters"`
}

var untitledCounter atomic.Int64

func New() *Sheet {
	return &Sheet{
		Title: fmt.Sprintf("Untitled %d", untitledCounter.Add(1)),
		Text:  DefaultText,
	}
}

// NormalizeText rewrites CRLF and lone CR line breaks to LF.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func (s *Sheet) SetText(text string) {
	s.Text = NormalizeText(text)
}

// AppendLine adds line to the end of the text and returns the cursor
// position just past it.
func (s *Sheet) AppendLine(line string) int {
	line = NormalizeText(line)
	if s.Text == "" {
		s.Text = line
	} else {
		s.Text += "\n" + line
	}
	return len([]rune(s.Text))
}

// NormalizeParameterName trims name and gives it a leading @. A name with
// nothing after the marker normalizes to "".
func NormalizeParameterName(name string) string {
	naked := nakedName(name)
	if naked == "" {
		return ""
	}
	return "@" + naked
}

func nakedName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

func (s *Sheet) Parameter(name string) (*Parameter, bool) {
	name = NormalizeParameterName(name)
	for i := range s.Parameters {
		if NormalizeParameterName(s.Parameters[i].Name) == name {
			return &s.Parameters[i], true
		}
	}
	return nil, false
}

// SetParameter declares name or replaces its raw value.
func (s *Sheet) SetParameter(name, rawValue string) error {
	normalized := NormalizeParameterName(name)
	if normalized == "" {
		return fmt.Errorf("parameter name is required")
	}
	if existing, ok := s.Parameter(normalized); ok {
		existing.RawValue = rawValue
		return nil
	}
	s.Parameters = append(s.Parameters, Parameter{Name: normalized, RawValue: rawValue})
	return nil
}

func (s *Sheet) RemoveParameter(name string) bool {
	name = NormalizeParameterName(name)
	for i := range s.Parameters {
		if NormalizeParameterName(s.Parameters[i].Name) == name {
			s.Parameters = append(s.Parameters[:i], s.Parameters[i+1:]...)
			return true
		}
	}
	return false
}
