package tracker

import (
	"fmt"
	"strings"
)

// DefaultFirstSection is the section of the rows above the first header, the
// table never spells it out.
const DefaultFirstSection = "laboratory confirmed cases"

// DefaultHeaders are the section headers of the county table in the order they
// appear. They need to be checked against the page whenever it changes layout.
var DefaultHeaders = []string{
	"deaths",
	"age group",
	"gender",
	"hospitalization",
	"city/community",
	"under investigation",
}

// Vocabulary is the ordered list of section names the classifier walks through.
type Vocabulary struct {
	First   string
	Headers []string
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		First:   DefaultFirstSection,
		Headers: append([]string(nil), DefaultHeaders...),
	}
}

// NormalizeSectionName lower-cases a section name and collapses "a / b" into "a/b".
func NormalizeSectionName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " / ", "/")
}

// NewVocabulary normalizes the given names and checks that the vocabulary is usable.
func NewVocabulary(first string, headers []string) (Vocabulary, error) {
	v := Vocabulary{First: NormalizeSectionName(first)}
	if v.First == "" {
		return Vocabulary{}, fmt.Errorf("first section name is empty")
	}
	if len(headers) == 0 {
		return Vocabulary{}, fmt.Errorf("vocabulary has no headers")
	}
	for i, h := range headers {
		h = NormalizeSectionName(h)
		if h == "" {
			return Vocabulary{}, fmt.Errorf("header %d is empty", i)
		}
		v.Headers = append(v.Headers, h)
	}
	return v, nil
}

// Final returns the last header, the section that has no header after it.
func (v Vocabulary) Final() string {
	return v.Headers[len(v.Headers)-1]
}

// sectionBefore returns the section that is open while the classifier waits
// for header i.
func (v Vocabulary) sectionBefore(i int) string {
	if i == 0 {
		return v.First
	}
	return v.Headers[i-1]
}

func (v Vocabulary) isTerminal(i int) bool {
	return i == len(v.Headers)-1
}
