package coursecopy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/tests"
)

func TestInlineRunner(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB()
	f := testutil.NewFixtures(t, db)

	root := f.RootAccount("Root")
	source := f.Course(root, "Biology")
	target := f.Course(root, "Biology S1")
	teacher := f.User("Teacher")

	hw := f.Assignment(source, "Homework", 10)
	f.Quiz(source, "Quiz 1", 10, 5, hw.ID)
	f.Topic(source, "Welcome", lms.TopicAnnouncement)
	f.Insert(lms.Assignment, graph.Fields{"course_id": source.ID, "title": "Gone", lms.ColWorkflow: lms.StateDeleted})

	r := NewInlineRunner(db, nil)
	jobID, err := r.Start(ctx, source.ID, target.ID, teacher.ID)
	require.NoError(t, err)

	status, err := r.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusImported, status)

	assignments, err := db.Select(ctx, lms.Assignment, graph.Eq("course_id", target.ID))
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "Homework", assignments[0].String("title"))

	quizzes, err := db.Select(ctx, lms.Quiz, graph.Eq("course_id", target.ID))
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	aid, ok := quizzes[0].Int("assignment_id")
	assert.True(t, ok)
	assert.Equal(t, assignments[0].ID, aid)

	assert.Equal(t, 1, db.Count(lms.DiscussionTopic, graph.Eq("course_id", target.ID), graph.Eq("type", lms.TopicAnnouncement)))
	assert.Equal(t, 2, db.Count(lms.Assignment, graph.Eq("course_id", source.ID)), "source untouched")

	job, err := db.Find(ctx, lms.ContentMigration, jobID)
	require.NoError(t, err)
	assert.Equal(t, MigrationType, job.String("migration_type"))
	sid, _ := job.Int("source_course_id")
	assert.Equal(t, source.ID, sid)
}

func TestQueueRunner(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB()
	f := testutil.NewFixtures(t, db)

	root := f.RootAccount("Root")
	source := f.Course(root, "Biology")
	target := f.Course(root, "Biology S1")

	r := NewQueueRunner(db)
	jobID, err := r.Start(ctx, source.ID, target.ID, 0)
	require.NoError(t, err)

	status, err := r.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, status)
	assert.Equal(t, 0, db.Count(lms.Assignment, graph.Eq("course_id", target.ID)))

	require.NoError(t, r.setStatus(ctx, jobID, StatusImported))
	status, err = r.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusImported, status)
}
