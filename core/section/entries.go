package section

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
)

// chain is a top-level entry with every reply below it.
type chain struct {
	root    lms.EntryRow
	ids     []int64
	authors []int64
}

// chains groups the entries of one topic into reply chains. Entries whose
// parent is missing start a chain of their own.
func chains(entries []graph.Record) []chain {
	rows := make(map[int64]lms.EntryRow, len(entries))
	children := make(map[int64][]int64)
	var roots []int64
	for _, rec := range entries {
		row := lms.EntryOf(rec)
		rows[row.ID] = row
	}
	for _, rec := range entries {
		row := rows[rec.ID]
		if row.ParentID.Valid {
			if _, ok := rows[row.ParentID.Int64]; ok {
				children[row.ParentID.Int64] = append(children[row.ParentID.Int64], row.ID)
				continue
			}
		}
		roots = append(roots, row.ID)
	}

	out := make([]chain, 0, len(roots))
	for _, id := range roots {
		c := chain{root: rows[id]}
		seen := map[int64]bool{id: true}
		queue := []int64{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			c.ids = append(c.ids, cur)
			c.authors = append(c.authors, rows[cur].UserID)
			for _, child := range children[cur] {
				if !seen[child] {
					seen[child] = true
					queue = append(queue, child)
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// moveDiscussions moves every reply chain written only by the section's users
// to the copied topic. Chains mixing users of several sections stay where
// they are.
func (m *migration) moveDiscussions(ctx context.Context) error {
	moved, mixed := 0, 0
	for _, srcID := range m.sourceIDs(lms.DiscussionTopic) {
		dstID := m.pairs[lms.DiscussionTopic][srcID]
		entries, err := m.store.Select(ctx, lms.DiscussionEntry, graph.Eq("discussion_topic_id", srcID))
		if err != nil {
			return errors.Wrapf(err, "loading entries of topic %d", srcID)
		}
		for _, c := range chains(entries) {
			inside := 0
			for _, userID := range c.authors {
				if m.inSet[userID] {
					inside++
				}
			}
			switch {
			case inside == 0:
				continue
			case inside < len(c.authors):
				mixed++
				m.log.Error("discussion chain has participants from other sections, left in place",
					zap.Int64("topic_id", srcID),
					zap.Int64("entry_id", c.root.ID),
					zap.Int("entries", len(c.ids)))
				continue
			}
			if _, err := m.store.Update(ctx, lms.DiscussionEntry,
				graph.Fields{"discussion_topic_id": dstID},
				graph.In("id", c.ids)); err != nil {
				return errors.Wrapf(err, "moving entry chain %d", c.root.ID)
			}
			moved++
		}
	}
	m.log.Debug("moved discussion chains", zap.Int("moved", moved), zap.Int("mixed", mixed))
	return nil
}
