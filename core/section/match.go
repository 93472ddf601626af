package section

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
)

// MatchError reports a copied item that could not be traced back to exactly
// one source item.
type MatchError struct {
	Item       graph.Ref
	Key        string
	Candidates int
	Copies     int
}

func (e *MatchError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("%s: no source item matches %q", e.Item, e.Key)
	}
	return fmt.Sprintf("%s: %d source and %d copied items share %q", e.Item, e.Candidates, e.Copies, e.Key)
}

func formatFloat(rec graph.Record, field string) string {
	v, ok := rec.Float(field)
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// matchKey is the state, title and kind-specific secondary key of an item.
func matchKey(rec graph.Record) string {
	parts := []string{rec.State(), rec.String("title")}
	switch rec.Kind {
	case lms.Assignment:
		parts = append(parts, formatFloat(rec, "points_possible"))
	case lms.Quiz:
		parts = append(parts, formatFloat(rec, "points_possible"), formatFloat(rec, "question_count"))
	case lms.DiscussionTopic:
		parts = append(parts, rec.String("type"))
	}
	return strings.Join(parts, "|")
}

// matcher pairs copied items with the source items they came from.
type matcher struct {
	source map[string][]graph.Record
	target map[string]int
}

func newMatcher(source, target []graph.Record) *matcher {
	m := &matcher{
		source: make(map[string][]graph.Record, len(source)),
		target: make(map[string]int, len(target)),
	}
	for _, rec := range source {
		k := matchKey(rec)
		m.source[k] = append(m.source[k], rec)
	}
	for _, rec := range target {
		m.target[matchKey(rec)]++
	}
	return m
}

// match returns the single source counterpart of item. Keys shared by more
// than one item on either side are never resolved.
func (m *matcher) match(item graph.Record) (graph.Record, error) {
	k := matchKey(item)
	candidates := m.source[k]
	if len(candidates) == 1 && m.target[k] == 1 {
		return candidates[0], nil
	}
	return graph.Record{}, &MatchError{Item: item.Ref(), Key: k, Candidates: len(candidates), Copies: m.target[k]}
}
