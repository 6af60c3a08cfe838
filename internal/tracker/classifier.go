package tracker

import (
	"dph-tracker/internal/telemetry"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	report_classifier_missing_header = "classifier.missing-header"
)

// Pair is a label cell of the county table together with the cell after it.
// HasCount is false when the label is the last cell of the table.
type Pair struct {
	Label    string
	Count    string
	HasCount bool
}

// Row is a pair that was assigned to a section, its text is still raw.
type Row struct {
	Section  string
	Label    string
	Count    string
	HasCount bool
}

type SkipReason string

const (
	// SkipHeader is a header row that opened a new section.
	SkipHeader SkipReason = "header"
	// SkipCollision is a pair that was already assigned to an earlier section,
	// the county repeats some summary rows under a different grouping.
	SkipCollision SkipReason = "collision"
)

// Skip is a pair that was not emitted as a row.
type Skip struct {
	Pair   Pair
	Reason SkipReason
	// Section is the header that was matched for SkipHeader, and the section
	// the pair was first assigned to for SkipCollision.
	Section string
}

type Classification struct {
	Rows  []Row
	Skips []Skip
	// Missing lists headers that never showed up, the rows after the last
	// header found all stay in its section.
	Missing []string
}

type pairKey struct {
	label    string
	count    string
	hasCount bool
}

func keyOf(p Pair) pairKey {
	return pairKey{label: p.Label, count: p.Count, hasCount: p.HasCount}
}

// seenSet maps every pair assigned so far to the section it was assigned to.
// It only ever holds pairs of sections that were already closed.
type seenSet map[pairKey]string

// classifier is a state machine with one state per header, state i means
// "waiting for header i", during which rows go to the section before it.
// The last header has a terminal state of its own since nothing closes it.
type classifier struct {
	vocab  Vocabulary
	pairs  []Pair
	cursor int
	seen   seenSet
	out    Classification
}

// Classify assigns each pair to a section of the vocabulary.
//
// A section is only known to be over once the next header is found, so the
// rows collected while waiting for header i belong to header i-1 (or the
// implicit first section). Header rows themselves are not emitted. The last
// header never ends a section: it takes over at its last occurrence and keeps
// that row as data.
//
// Pairs already assigned to an earlier section are skipped, duplicates within
// the section being collected are not.
func Classify(vocab Vocabulary, pairs []Pair, tel telemetry.API) Classification {
	c := classifier{
		vocab: vocab,
		pairs: pairs,
		seen:  seenSet{},
	}

	if len(vocab.Headers) == 0 {
		rows := make([]Row, 0, len(pairs))
		for _, p := range pairs {
			rows = append(rows, newRow(vocab.First, p))
		}
		c.commit(rows)
		return c.out
	}

	for state := range vocab.Headers {
		if vocab.isTerminal(state) {
			c.terminal(state)
			break
		}
		c.beforeHeader(state)
	}

	for _, header := range c.out.Missing {
		label, similarity := closestLabel(header, pairs)
		tel.ReportWarning(
			report_classifier_missing_header,
			header,
			label,
			similarity,
		)
	}

	return c.out
}

func (c *classifier) skip(p Pair, reason SkipReason, section string) {
	c.out.Skips = append(c.out.Skips, Skip{Pair: p, Reason: reason, Section: section})
}

// commit closes a section, its rows become visible to collision checks.
func (c *classifier) commit(rows []Row) {
	for _, r := range rows {
		key := pairKey{label: r.Label, count: r.Count, hasCount: r.HasCount}
		if _, ok := c.seen[key]; !ok {
			c.seen[key] = r.Section
		}
	}
	c.out.Rows = append(c.out.Rows, rows...)
}

func newRow(section string, p Pair) Row {
	return Row{
		Section:  section,
		Label:    p.Label,
		Count:    p.Count,
		HasCount: p.HasCount,
	}
}

// matchesHeader checks if the label mentions the header, "a / b" and "a/b" are
// treated the same.
func matchesHeader(label, header string) bool {
	return strings.Contains(NormalizeSectionName(label), header)
}

func (c *classifier) beforeHeader(state int) {
	header := c.vocab.Headers[state]
	section := c.vocab.sectionBefore(state)

	var rows []Row
	found := false
	for c.cursor < len(c.pairs) {
		p := c.pairs[c.cursor]
		c.cursor++

		if previous, ok := c.seen[keyOf(p)]; ok {
			c.skip(p, SkipCollision, previous)
			continue
		}
		if matchesHeader(p.Label, header) {
			c.skip(p, SkipHeader, header)
			found = true
			break
		}
		rows = append(rows, newRow(section, p))
	}

	c.commit(rows)
	if !found {
		c.out.Missing = append(c.out.Missing, header)
	}
}

func (c *classifier) terminal(state int) {
	final := c.vocab.Headers[state]
	section := c.vocab.sectionBefore(state)

	var tail []Pair
	for ; c.cursor < len(c.pairs); c.cursor++ {
		p := c.pairs[c.cursor]
		if previous, ok := c.seen[keyOf(p)]; ok {
			c.skip(p, SkipCollision, previous)
			continue
		}
		tail = append(tail, p)
	}

	start := -1
	for i := len(tail) - 1; i >= 0; i-- {
		if matchesHeader(tail[i].Label, final) {
			start = i
			break
		}
	}
	if start < 0 {
		c.out.Missing = append(c.out.Missing, final)
		start = len(tail)
	}

	rows := make([]Row, 0, len(tail))
	for i, p := range tail {
		if i >= start {
			rows = append(rows, newRow(final, p))
			continue
		}
		rows = append(rows, newRow(section, p))
	}
	c.commit(rows)
}

// closestLabel finds the label most similar to a header that could not be
// found, usually the county renamed the header.
func closestLabel(header string, pairs []Pair) (string, float64) {
	var best string
	var bestSimilarity float64
	for _, p := range pairs {
		similarity := matchr.JaroWinkler(header, p.Label, false)
		if similarity > bestSimilarity {
			best = p.Label
			bestSimilarity = similarity
		}
	}
	return best, bestSimilarity
}
