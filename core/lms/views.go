package lms

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
)

// EnrollmentRow is the typed view of an Enrollment record.
type EnrollmentRow struct {
	ID               int64
	UserID           int64
	CourseID         int64
	CourseSectionID  null.Int64
	RoleID           null.Int64
	AssociatedUserID null.Int64
	SISBatchID       null.Int64
	Type             string
	WorkflowState    string
	UpdatedAt        time.Time
}

func EnrollmentOf(rec graph.Record) EnrollmentRow {
	userID, _ := rec.Int("user_id")
	courseID, _ := rec.Int("course_id")
	return EnrollmentRow{
		ID:               rec.ID,
		UserID:           userID,
		CourseID:         courseID,
		CourseSectionID:  rec.NullInt("course_section_id"),
		RoleID:           rec.NullInt("role_id"),
		AssociatedUserID: rec.NullInt("associated_user_id"),
		SISBatchID:       rec.NullInt("sis_batch_id"),
		Type:             rec.String("type"),
		WorkflowState:    rec.State(),
		UpdatedAt:        rec.Time("updated_at"),
	}
}

// SameSlot reports whether two enrollments occupy the same place: same
// section, type, role and associated user.
func (e EnrollmentRow) SameSlot(o EnrollmentRow) bool {
	return e.CourseID == o.CourseID &&
		e.CourseSectionID == o.CourseSectionID &&
		e.Type == o.Type &&
		e.RoleID == o.RoleID &&
		e.AssociatedUserID == o.AssociatedUserID
}

// ChannelRow is the typed view of a CommunicationChannel record.
type ChannelRow struct {
	ID            int64
	UserID        int64
	Path          string
	PathType      string
	WorkflowState string
	Position      null.Int64
}

func ChannelOf(rec graph.Record) ChannelRow {
	userID, _ := rec.Int("user_id")
	return ChannelRow{
		ID:            rec.ID,
		UserID:        userID,
		Path:          rec.String("path"),
		PathType:      rec.String("path_type"),
		WorkflowState: rec.State(),
		Position:      rec.NullInt("position"),
	}
}

// SameAddress compares path type exactly and path case-insensitively.
func (c ChannelRow) SameAddress(o ChannelRow) bool {
	return c.PathType == o.PathType && strings.EqualFold(c.Path, o.Path)
}

// ProgressionRow is the typed view of a ContextModuleProgression record.
type ProgressionRow struct {
	ID              int64
	ContextModuleID int64
	UserID          int64
	WorkflowState   string
}

func ProgressionOf(rec graph.Record) ProgressionRow {
	moduleID, _ := rec.Int("context_module_id")
	userID, _ := rec.Int("user_id")
	return ProgressionRow{ID: rec.ID, ContextModuleID: moduleID, UserID: userID, WorkflowState: rec.State()}
}

// OverrideRow is the typed view of an AssignmentOverride record.
type OverrideRow struct {
	ID                int64
	AssignmentID      null.Int64
	QuizID            null.Int64
	DiscussionTopicID null.Int64
	SetType           string
	SetID             null.Int64
	WorkflowState     string
}

func OverrideOf(rec graph.Record) OverrideRow {
	return OverrideRow{
		ID:                rec.ID,
		AssignmentID:      rec.NullInt("assignment_id"),
		QuizID:            rec.NullInt("quiz_id"),
		DiscussionTopicID: rec.NullInt("discussion_topic_id"),
		SetType:           rec.String("set_type"),
		SetID:             rec.NullInt("set_id"),
		WorkflowState:     rec.State(),
	}
}

// Targets reports whether the override is scoped to the given section.
func (o OverrideRow) Targets(sectionID int64) bool {
	return o.SetType == SetCourseSection && o.SetID.Valid && o.SetID.Int64 == sectionID
}

// EntryRow is the typed view of a DiscussionEntry record.
type EntryRow struct {
	ID                int64
	DiscussionTopicID int64
	ParentID          null.Int64
	UserID            int64
}

func EntryOf(rec graph.Record) EntryRow {
	topicID, _ := rec.Int("discussion_topic_id")
	userID, _ := rec.Int("user_id")
	return EntryRow{
		ID:                rec.ID,
		DiscussionTopicID: topicID,
		ParentID:          rec.NullInt("parent_id"),
		UserID:            userID,
	}
}
