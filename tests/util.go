package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/storage/database/inmem"
)

// Enrollment types.
const (
	Student  = "StudentEnrollment"
	Teacher  = "TeacherEnrollment"
	Observer = "ObserverEnrollment"
)

// NewDB returns an empty in-memory store over the LMS schema.
func NewDB() *inmemdb.DB {
	return inmemdb.Open(lms.Schema())
}

// Fixtures inserts LMS rows and fails the test on any store error.
type Fixtures struct {
	t     *testing.T
	store graph.Store
	clock time.Time
}

func NewFixtures(t *testing.T, store graph.Store) *Fixtures {
	return &Fixtures{
		t:     t,
		store: store,
		clock: time.Date(2020, time.September, 1, 8, 0, 0, 0, time.UTC),
	}
}

// now advances one second per call so updated_at values are ordered by
// creation.
func (f *Fixtures) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *Fixtures) Insert(kind graph.Kind, fields graph.Fields) graph.Record {
	f.t.Helper()
	rec, err := f.store.Insert(context.Background(), graph.Record{Kind: kind, Fields: fields})
	if err != nil {
		f.t.Fatalf("Insert(%s) failed: %v", kind, err)
	}
	return rec
}

// Reload re-reads rec; ok is false when it no longer exists.
func (f *Fixtures) Reload(rec graph.Record) (graph.Record, bool) {
	f.t.Helper()
	got, err := f.store.Find(context.Background(), rec.Kind, rec.ID)
	if err == graph.ErrNotFound {
		return graph.Record{}, false
	}
	if err != nil {
		f.t.Fatalf("Find(%s) failed: %v", rec.Ref(), err)
	}
	return got, true
}

func (f *Fixtures) Select(kind graph.Kind, conds ...graph.Cond) []graph.Record {
	f.t.Helper()
	recs, err := f.store.Select(context.Background(), kind, conds...)
	if err != nil {
		f.t.Fatalf("Select(%s) failed: %v", kind, err)
	}
	return recs
}

func rootOf(account graph.Record) int64 {
	if id, ok := account.Int("root_account_id"); ok {
		return id
	}
	return account.ID
}

func (f *Fixtures) RootAccount(name string) graph.Record {
	return f.Insert(lms.Account, graph.Fields{
		"name":          name,
		lms.ColWorkflow: lms.StateActive,
	})
}

func (f *Fixtures) SubAccount(parent graph.Record, name string) graph.Record {
	return f.Insert(lms.Account, graph.Fields{
		"name":              name,
		"parent_account_id": parent.ID,
		"root_account_id":   rootOf(parent),
		lms.ColWorkflow:     lms.StateActive,
	})
}

func (f *Fixtures) User(name string) graph.Record {
	ts := f.now()
	return f.Insert(lms.User, graph.Fields{
		"name":          name,
		lms.ColWorkflow: "registered",
		"created_at":    ts,
		"updated_at":    ts,
	})
}

func (f *Fixtures) Pseudonym(user, account graph.Record) graph.Record {
	return f.Insert(lms.Pseudonym, graph.Fields{
		"user_id":       user.ID,
		"account_id":    account.ID,
		"unique_id":     user.String("name"),
		lms.ColWorkflow: lms.StateActive,
	})
}

func (f *Fixtures) Channel(user graph.Record, path, state string) graph.Record {
	return f.Insert(lms.CommunicationChannel, graph.Fields{
		"user_id":       user.ID,
		"path":          path,
		"path_type":     "email",
		lms.ColWorkflow: state,
	})
}

// Role adds a custom role; built-in roles have no account.
func (f *Fixtures) Role(account *graph.Record, name string) graph.Record {
	fields := graph.Fields{
		"name":           name,
		"base_role_type": Student,
		"built_in":       account == nil,
		lms.ColWorkflow:  lms.StateActive,
	}
	if account != nil {
		fields["account_id"] = account.ID
	}
	return f.Insert(lms.Role, fields)
}

func (f *Fixtures) Notification(name string) graph.Record {
	return f.Insert(lms.Notification, graph.Fields{"name": name})
}

func (f *Fixtures) Course(account graph.Record, name string) graph.Record {
	ts := f.now()
	return f.Insert(lms.Course, graph.Fields{
		"name":               name,
		"course_code":        name,
		"account_id":         account.ID,
		"root_account_id":    rootOf(account),
		"enrollment_term_id": int64(1),
		"start_at":           ts,
		"conclude_at":        ts.AddDate(0, 4, 0),
		"time_zone":          "America/Denver",
		lms.ColWorkflow:      lms.StateAvailable,
		"created_at":         ts,
		"updated_at":         ts,
	})
}

func (f *Fixtures) Section(course graph.Record, name string) graph.Record {
	return f.Insert(lms.CourseSection, graph.Fields{
		"course_id":     course.ID,
		"name":          name,
		lms.ColWorkflow: lms.StateActive,
	})
}

// Enroll enrolls user in the section's course.
func (f *Fixtures) Enroll(user, section graph.Record, typ, state string) graph.Record {
	f.t.Helper()
	courseID, _ := section.Int("course_id")
	course, ok := f.Reload(graph.Record{Kind: lms.Course, ID: courseID})
	if !ok {
		f.t.Fatalf("Enroll(): course %d not found", courseID)
	}
	ts := f.now()
	return f.Insert(lms.Enrollment, graph.Fields{
		"user_id":           user.ID,
		"course_id":         courseID,
		"course_section_id": section.ID,
		"root_account_id":   course.Fields["root_account_id"],
		"type":              typ,
		lms.ColWorkflow:     state,
		"created_at":        ts,
		"updated_at":        ts,
	})
}

func (f *Fixtures) Assignment(course graph.Record, title string, points float64) graph.Record {
	return f.Insert(lms.Assignment, graph.Fields{
		"course_id":       course.ID,
		"title":           title,
		"points_possible": points,
		lms.ColWorkflow:   lms.StatePublished,
	})
}

// Quiz adds a quiz; assignmentID 0 leaves it ungraded.
func (f *Fixtures) Quiz(course graph.Record, title string, points float64, questions int, assignmentID int64) graph.Record {
	fields := graph.Fields{
		"course_id":       course.ID,
		"title":           title,
		"points_possible": points,
		"question_count":  questions,
		lms.ColWorkflow:   lms.StateAvailable,
	}
	if assignmentID != 0 {
		fields["assignment_id"] = assignmentID
	}
	return f.Insert(lms.Quiz, fields)
}

func (f *Fixtures) Topic(course graph.Record, title, typ string) graph.Record {
	return f.Insert(lms.DiscussionTopic, graph.Fields{
		"course_id":     course.ID,
		"title":         title,
		"type":          typ,
		lms.ColWorkflow: lms.StateActive,
	})
}

// Entry adds a discussion entry; parentID 0 makes it top-level.
func (f *Fixtures) Entry(topic, user graph.Record, parentID int64) graph.Record {
	fields := graph.Fields{
		"discussion_topic_id": topic.ID,
		"user_id":             user.ID,
		"message":             "post by " + user.String("name"),
		lms.ColWorkflow:       lms.StateActive,
	}
	if parentID != 0 {
		fields["parent_id"] = parentID
	}
	return f.Insert(lms.DiscussionEntry, fields)
}

func overrideKey(item graph.Record) string {
	switch item.Kind {
	case lms.Quiz:
		return "quiz_id"
	case lms.DiscussionTopic:
		return "discussion_topic_id"
	}
	return "assignment_id"
}

// SectionOverride scopes item (assignment, quiz or topic) to section.
func (f *Fixtures) SectionOverride(item, section graph.Record) graph.Record {
	return f.Insert(lms.AssignmentOverride, graph.Fields{
		overrideKey(item): item.ID,
		"set_type":        lms.SetCourseSection,
		"set_id":          section.ID,
		"title":           section.String("name"),
		lms.ColWorkflow:   lms.StateActive,
	})
}

// AdhocOverride scopes item to an explicit list of students.
func (f *Fixtures) AdhocOverride(item graph.Record, students ...graph.Record) graph.Record {
	o := f.Insert(lms.AssignmentOverride, graph.Fields{
		overrideKey(item): item.ID,
		"set_type":        lms.SetAdhoc,
		"title":           "students",
		lms.ColWorkflow:   lms.StateActive,
	})
	for _, s := range students {
		f.Insert(lms.AssignmentOverrideStudent, graph.Fields{
			"assignment_override_id": o.ID,
			"user_id":                s.ID,
		})
	}
	return o
}

func (f *Fixtures) Submission(assignment, user graph.Record) graph.Record {
	return f.Insert(lms.Submission, graph.Fields{
		"assignment_id": assignment.ID,
		"user_id":       user.ID,
		lms.ColWorkflow: "submitted",
	})
}

func (f *Fixtures) QuizSubmission(quiz, user graph.Record) graph.Record {
	return f.Insert(lms.QuizSubmission, graph.Fields{
		"quiz_id":       quiz.ID,
		"user_id":       user.ID,
		lms.ColWorkflow: lms.StateCompleted,
	})
}

func (f *Fixtures) Module(course graph.Record, name string) graph.Record {
	return f.Insert(lms.ContextModule, graph.Fields{
		"course_id":     course.ID,
		"name":          name,
		lms.ColWorkflow: lms.StateActive,
	})
}

func (f *Fixtures) Progression(module, user graph.Record, state string) graph.Record {
	return f.Insert(lms.ContextModuleProgression, graph.Fields{
		"context_module_id": module.ID,
		"user_id":           user.ID,
		lms.ColWorkflow:     state,
	})
}

// Contextual adds a row of a polymorphic kind (page view, message, ...)
// scoped to ctx and owned by user.
func (f *Fixtures) Contextual(kind graph.Kind, ctx, user graph.Record, extra graph.Fields) graph.Record {
	fields := graph.Fields{
		lms.ColContextID:   ctx.ID,
		lms.ColContextType: string(ctx.Kind),
		"user_id":          user.ID,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return f.Insert(kind, fields)
}
