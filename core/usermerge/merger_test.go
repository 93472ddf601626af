package usermerge

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/storage/database/inmem"
	"github.com/HotChalk/canvas-lms-sub000/tests"
)

func setup(t *testing.T) (*Merger, *inmemdb.DB, *testutil.Fixtures) {
	db := testutil.NewDB()
	m, err := NewMerger(db, nil)
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	return m, db, testutil.NewFixtures(t, db)
}

func TestNewMerger(t *testing.T) {
	_, err := NewMerger(nil, nil)
	assert.Error(t, err)
}

func TestMerger_MergeUsers_noop(t *testing.T) {
	m, _, f := setup(t)
	usr := f.User("ann")
	ctx := context.Background()

	assert.NoError(t, m.MergeUsers(ctx, usr.ID, usr.ID))
	assert.NoError(t, m.MergeUsers(ctx, usr.ID, 999))
	got, _ := f.Reload(usr)
	assert.Equal(t, "registered", got.State())

	err := m.MergeUsers(ctx, 999, usr.ID)
	assert.Equal(t, graph.ErrNotFound, errors.Cause(err))
}

func TestMerger_MergeUsers_enrollments(t *testing.T) {
	tests := []struct {
		name        string
		fromState   string
		targetState string
		fromFirst   bool
		wantKept    string // "from" or "target"
		wantRows    int
	}{
		{name: "active beats deleted", fromState: lms.StateActive, targetState: lms.StateDeleted, wantKept: "from", wantRows: 1},
		{name: "invited loses to active", fromState: lms.StateInvited, targetState: lms.StateActive, wantKept: "target", wantRows: 1},
		{name: "newer active wins", fromState: lms.StateActive, targetState: lms.StateActive, fromFirst: true, wantKept: "target", wantRows: 2},
		{name: "completed beats rejected", fromState: lms.StateCompleted, targetState: lms.StateRejected, wantKept: "from", wantRows: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, db, f := setup(t)
			course := f.Course(f.RootAccount("A"), "Bio")
			section := f.Section(course, "S1")
			from, target := f.User("from"), f.User("target")

			var fe, te graph.Record
			if tt.fromFirst {
				fe = f.Enroll(from, section, testutil.Student, tt.fromState)
				te = f.Enroll(target, section, testutil.Student, tt.targetState)
			} else {
				te = f.Enroll(target, section, testutil.Student, tt.targetState)
				fe = f.Enroll(from, section, testutil.Student, tt.fromState)
			}

			require.NoError(t, m.MergeUsers(context.Background(), from.ID, target.ID))

			rows := f.Select(lms.Enrollment, graph.Eq("user_id", target.ID))
			assert.Len(t, rows, tt.wantRows)
			assert.Zero(t, db.Count(lms.Enrollment, graph.Eq("user_id", from.ID)))

			kept, loser := fe, te
			if tt.wantKept == "target" {
				kept, loser = te, fe
			}
			got, ok := f.Reload(kept)
			if assert.True(t, ok) {
				assert.Equal(t, kept.State(), got.State())
				userID, _ := got.Int("user_id")
				assert.Equal(t, target.ID, userID)
			}
			got, ok = f.Reload(loser)
			if loser.State() == lms.StateActive {
				if assert.True(t, ok) {
					assert.Equal(t, lms.StateDeleted, got.State())
				}
			} else {
				assert.False(t, ok)
			}
		})
	}
}

func TestMerger_MergeUsers_observedEnrollments(t *testing.T) {
	m, db, f := setup(t)
	course := f.Course(f.RootAccount("A"), "Bio")
	section := f.Section(course, "S1")
	from, target := f.User("from"), f.User("target")
	parent, tutor := f.User("parent"), f.User("tutor")

	observe := func(observer, student graph.Record, state string) graph.Record {
		rec := f.Enroll(observer, section, testutil.Observer, state)
		_, err := db.Update(context.Background(), lms.Enrollment, graph.Fields{"associated_user_id": student.ID}, graph.Eq("id", rec.ID))
		require.NoError(t, err)
		return rec
	}
	kept := observe(parent, target, lms.StateActive)
	dropped := observe(parent, from, lms.StateInvited)
	moved := observe(tutor, from, lms.StateActive)

	require.NoError(t, m.MergeUsers(context.Background(), from.ID, target.ID))

	_, ok := f.Reload(dropped)
	assert.False(t, ok)
	for _, rec := range []graph.Record{kept, moved} {
		got, ok := f.Reload(rec)
		if assert.True(t, ok) {
			assert.Equal(t, lms.StateActive, got.State())
			assert.Equal(t, null.Int64From(target.ID), got.NullInt("associated_user_id"))
		}
	}
	assert.Equal(t, 1, db.Count(lms.Enrollment, graph.Eq("user_id", parent.ID)))
	assert.Zero(t, db.Count(lms.Enrollment, graph.Eq("associated_user_id", from.ID)))
}

func TestMerger_MergeUsers_differentSlots(t *testing.T) {
	m, _, f := setup(t)
	course := f.Course(f.RootAccount("A"), "Bio")
	s1, s2 := f.Section(course, "S1"), f.Section(course, "S2")
	from, target := f.User("from"), f.User("target")
	f.Enroll(target, s1, testutil.Student, lms.StateActive)
	f.Enroll(from, s2, testutil.Student, lms.StateActive)
	f.Enroll(from, s1, testutil.Teacher, lms.StateActive)

	require.NoError(t, m.MergeUsers(context.Background(), from.ID, target.ID))
	rows := f.Select(lms.Enrollment, graph.Eq("user_id", target.ID), graph.Eq(lms.ColWorkflow, lms.StateActive))
	assert.Len(t, rows, 3)
}

func TestMerger_MergeUsers_channels(t *testing.T) {
	m, db, f := setup(t)
	from, target := f.User("from"), f.User("target")
	retired := f.Channel(from, "ann@example.com", lms.StateRetired)
	kept := f.Channel(target, "Ann@Example.com", lms.StateActive)
	better := f.Channel(from, "ann@school.edu", lms.StateActive)
	worse := f.Channel(target, "ann@school.edu", lms.StateUnconfirmed)
	tie := f.Channel(from, "ann@home.net", lms.StateActive)
	tieKept := f.Channel(target, "ann@home.net", lms.StateActive)
	lonely := f.Channel(from, "ann@other.org", lms.StateUnconfirmed)

	require.NoError(t, m.MergeUsers(context.Background(), from.ID, target.ID))

	for _, tt := range []struct {
		name      string
		rec       graph.Record
		wantState string
		wantUser  int64
	}{
		{name: "target active kept", rec: kept, wantState: lms.StateActive, wantUser: target.ID},
		{name: "already retired untouched", rec: retired, wantState: lms.StateRetired, wantUser: from.ID},
		{name: "active replaces unconfirmed", rec: better, wantState: lms.StateActive, wantUser: target.ID},
		{name: "unconfirmed retired", rec: worse, wantState: lms.StateRetired, wantUser: target.ID},
		{name: "tie keeps target", rec: tieKept, wantState: lms.StateActive, wantUser: target.ID},
		{name: "tie retires from", rec: tie, wantState: lms.StateRetired, wantUser: from.ID},
		{name: "unmatched left on from", rec: lonely, wantState: lms.StateUnconfirmed, wantUser: from.ID},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := f.Reload(tt.rec)
			require.True(t, ok)
			assert.Equal(t, tt.wantState, got.State())
			userID, _ := got.Int("user_id")
			assert.Equal(t, tt.wantUser, userID)
		})
	}

	copies := f.Select(lms.CommunicationChannel, graph.Eq("user_id", target.ID), graph.Eq("path", "ann@other.org"))
	if assert.Len(t, copies, 1) {
		assert.Equal(t, lms.StateUnconfirmed, copies[0].State())
		assert.NotEqual(t, lonely.ID, copies[0].ID)
	}
	assert.Equal(t, 5, db.Count(lms.CommunicationChannel, graph.Eq("user_id", target.ID)))
}

func TestMerger_MergeUsers_progressions(t *testing.T) {
	m, _, f := setup(t)
	course := f.Course(f.RootAccount("A"), "Bio")
	week1, week2, week3 := f.Module(course, "Week 1"), f.Module(course, "Week 2"), f.Module(course, "Week 3")
	from, target := f.User("from"), f.User("target")
	f.Progression(week1, from, ProgressionCompleted)
	f.Progression(week1, target, ProgressionStarted)
	f.Progression(week2, from, ProgressionLocked)
	f.Progression(week2, target, ProgressionUnlocked)
	f.Progression(week3, from, ProgressionStarted)

	require.NoError(t, m.MergeUsers(context.Background(), from.ID, target.ID))

	want := map[int64]string{
		week1.ID: ProgressionCompleted,
		week2.ID: ProgressionUnlocked,
		week3.ID: ProgressionStarted,
	}
	rows := f.Select(lms.ContextModuleProgression, graph.Eq("user_id", target.ID))
	require.Len(t, rows, 3)
	for _, rec := range rows {
		row := lms.ProgressionOf(rec)
		assert.Equal(t, want[row.ContextModuleID], row.WorkflowState)
	}
}

func TestMerger_MergeUsers_relocates(t *testing.T) {
	m, db, f := setup(t)
	account := f.RootAccount("A")
	course := f.Course(account, "Bio")
	from, target := f.User("from"), f.User("target")
	login := f.Pseudonym(from, account)
	assignment := f.Assignment(course, "Essay", 10)
	sub := f.Submission(assignment, from)
	comment := f.Insert(lms.SubmissionComment, graph.Fields{"submission_id": sub.ID, "author_id": from.ID})
	view := f.Contextual(lms.PageView, course, from, nil)
	topic := f.Topic(course, "Intro", lms.TopicDiscussion)
	entry := f.Entry(topic, from, 0)

	require.NoError(t, m.MergeUsers(context.Background(), from.ID, target.ID))

	for _, tt := range []struct {
		rec    graph.Record
		column string
	}{
		{login, "user_id"},
		{sub, "user_id"},
		{comment, "author_id"},
		{view, "user_id"},
		{entry, "user_id"},
	} {
		got, ok := f.Reload(tt.rec)
		require.True(t, ok)
		userID, _ := got.Int(tt.column)
		assert.Equal(t, target.ID, userID, tt.rec.Ref().String())
	}

	gone, ok := f.Reload(from)
	if assert.True(t, ok) {
		assert.Equal(t, lms.StateDeleted, gone.State())
	}
	assert.Empty(t, db.Dangling())
}

func TestPreferEnrollment(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	row := func(state string, updated time.Time, sis bool) lms.EnrollmentRow {
		e := lms.EnrollmentRow{WorkflowState: state, UpdatedAt: updated}
		if sis {
			e.SISBatchID = null.Int64From(7)
		}
		return e
	}
	tests := []struct {
		name string
		a, b lms.EnrollmentRow
		want bool
	}{
		{name: "state order", a: row(lms.StateInvited, now, false), b: row(lms.StateCreationPending, now, false), want: true},
		{name: "sis beats completed", a: row(lms.StateCompleted, now, true), b: row(lms.StateCompleted, now, false), want: true},
		{name: "sis below creation pending", a: row(lms.StateInactive, now, true), b: row(lms.StateCreationPending, now, false), want: false},
		{name: "rejected over inactive", a: row(lms.StateRejected, now, false), b: row(lms.StateInactive, now, false), want: true},
		{name: "newer wins", a: row(lms.StateActive, now.Add(time.Hour), false), b: row(lms.StateActive, now, false), want: true},
		{name: "sis breaks time tie", a: row(lms.StateActive, now, true), b: row(lms.StateActive, now, false), want: true},
		{name: "full tie keeps b", a: row(lms.StateActive, now, false), b: row(lms.StateActive, now, false), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preferEnrollment(tt.a, tt.b))
		})
	}
}
