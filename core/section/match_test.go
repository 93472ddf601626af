package section

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
)

func item(kind graph.Kind, id int64, fields graph.Fields) graph.Record {
	if _, ok := fields[lms.ColWorkflow]; !ok {
		fields[lms.ColWorkflow] = lms.StatePublished
	}
	return graph.Record{Kind: kind, ID: id, Fields: fields}
}

func TestMatchKey(t *testing.T) {
	tests := []struct {
		name string
		rec  graph.Record
		want string
	}{
		{
			name: "assignment",
			rec:  item(lms.Assignment, 1, graph.Fields{"title": "Essay", "points_possible": 10.5}),
			want: "published|Essay|10.5",
		},
		{
			name: "quiz",
			rec:  item(lms.Quiz, 1, graph.Fields{"title": "Q", "points_possible": 3, "question_count": 4}),
			want: "published|Q|3|4",
		},
		{
			name: "quiz without points",
			rec:  item(lms.Quiz, 1, graph.Fields{"title": "Q", "question_count": 4}),
			want: "published|Q|-|4",
		},
		{
			name: "announcement",
			rec:  item(lms.DiscussionTopic, 1, graph.Fields{"title": "Hi", "type": lms.TopicAnnouncement}),
			want: "published|Hi|Announcement",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchKey(tt.rec))
		})
	}
}

func TestMatcher_match(t *testing.T) {
	sources := []graph.Record{
		item(lms.Assignment, 1, graph.Fields{"title": "Essay", "points_possible": 10}),
		item(lms.Assignment, 2, graph.Fields{"title": "Essay", "points_possible": 20}),
		item(lms.Assignment, 3, graph.Fields{"title": "Twin", "points_possible": 5}),
		item(lms.Assignment, 4, graph.Fields{"title": "Twin", "points_possible": 5}),
		item(lms.Assignment, 5, graph.Fields{"title": "Draft", "points_possible": 1, lms.ColWorkflow: "unpublished"}),
	}
	copies := []graph.Record{
		item(lms.Assignment, 11, graph.Fields{"title": "Essay", "points_possible": 10}),
		item(lms.Assignment, 12, graph.Fields{"title": "Essay", "points_possible": 20}),
		item(lms.Assignment, 13, graph.Fields{"title": "Twin", "points_possible": 5}),
		item(lms.Assignment, 15, graph.Fields{"title": "Draft", "points_possible": 1}),
	}
	m := newMatcher(sources, copies)

	tests := []struct {
		name           string
		copy           graph.Record
		wantID         int64
		wantCandidates int
	}{
		{name: "same title, points tell apart", copy: copies[0], wantID: 1},
		{name: "second of a title", copy: copies[1], wantID: 2},
		{name: "ambiguous", copy: copies[2], wantCandidates: 2},
		{name: "state differs", copy: copies[3], wantCandidates: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.match(tt.copy)
			if tt.wantID != 0 {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantID, got.ID)
				return
			}
			var merr *MatchError
			if assert.True(t, errors.As(err, &merr)) {
				assert.Equal(t, tt.wantCandidates, merr.Candidates)
				assert.Equal(t, tt.copy.Ref(), merr.Item)
			}
		})
	}
}

func TestMatcher_match_duplicateCopies(t *testing.T) {
	src := item(lms.Quiz, 1, graph.Fields{"title": "Q", "points_possible": 1, "question_count": 1})
	a := item(lms.Quiz, 2, graph.Fields{"title": "Q", "points_possible": 1, "question_count": 1})
	b := item(lms.Quiz, 3, graph.Fields{"title": "Q", "points_possible": 1, "question_count": 1})

	_, err := newMatcher([]graph.Record{src}, []graph.Record{a, b}).match(a)
	var merr *MatchError
	if assert.True(t, errors.As(err, &merr)) {
		assert.Equal(t, 1, merr.Candidates)
		assert.Equal(t, 2, merr.Copies)
		assert.Contains(t, merr.Error(), "1 source and 2 copied items")
	}
}

func TestMigration_sourceIDs(t *testing.T) {
	m := &migration{pairs: map[graph.Kind]map[int64]int64{
		lms.Assignment: {42: 7, 3: 9, 17: 8, 5: 10},
	}}
	for i := 0; i < 10; i++ {
		assert.Equal(t, []int64{3, 5, 17, 42}, m.sourceIDs(lms.Assignment))
	}
	assert.Empty(t, m.sourceIDs(lms.Quiz))
}

func TestChains(t *testing.T) {
	entry := func(id, parent, user int64) graph.Record {
		fields := graph.Fields{"discussion_topic_id": int64(1), "user_id": user}
		if parent != 0 {
			fields["parent_id"] = parent
		}
		return graph.Record{Kind: lms.DiscussionEntry, ID: id, Fields: fields}
	}
	got := chains([]graph.Record{
		entry(1, 0, 10),
		entry(2, 1, 11),
		entry(3, 2, 10),
		entry(4, 0, 12),
		entry(5, 99, 13), // parent in another topic
	})
	if assert.Len(t, got, 3) {
		assert.Equal(t, []int64{1, 2, 3}, got[0].ids)
		assert.Equal(t, []int64{10, 11, 10}, got[0].authors)
		assert.Equal(t, []int64{4}, got[1].ids)
		assert.Equal(t, []int64{5}, got[2].ids)
	}
}
