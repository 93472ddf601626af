// Package lms declares the entity graph of the learning management system:
// every kind the engine may meet, its table, its edges and how it is deleted.
package lms

import "github.com/HotChalk/canvas-lms-sub000/core/graph"

const (
	Account                   graph.Kind = "Account"
	User                      graph.Kind = "User"
	Pseudonym                 graph.Kind = "Pseudonym"
	CommunicationChannel      graph.Kind = "CommunicationChannel"
	Role                      graph.Kind = "Role"
	AccountUser               graph.Kind = "AccountUser"
	Course                    graph.Kind = "Course"
	CourseSection             graph.Kind = "CourseSection"
	Enrollment                graph.Kind = "Enrollment"
	Assignment                graph.Kind = "Assignment"
	AssignmentOverride        graph.Kind = "AssignmentOverride"
	AssignmentOverrideStudent graph.Kind = "AssignmentOverrideStudent"
	Quiz                      graph.Kind = "Quiz"
	QuizSubmission            graph.Kind = "QuizSubmission"
	Submission                graph.Kind = "Submission"
	SubmissionComment         graph.Kind = "SubmissionComment"
	DiscussionTopic           graph.Kind = "DiscussionTopic"
	DiscussionEntry           graph.Kind = "DiscussionEntry"
	CalendarEvent             graph.Kind = "CalendarEvent"
	ContextModule             graph.Kind = "ContextModule"
	ContextModuleProgression  graph.Kind = "ContextModuleProgression"
	Group                     graph.Kind = "Group"
	GroupMembership           graph.Kind = "GroupMembership"
	Folder                    graph.Kind = "Folder"
	Attachment                graph.Kind = "Attachment"
	Thumbnail                 graph.Kind = "Thumbnail"
	PageView                  graph.Kind = "PageView"
	AssetUserAccess           graph.Kind = "AssetUserAccess"
	Message                   graph.Kind = "Message"
	ContentParticipationCount graph.Kind = "ContentParticipationCount"
	Notification              graph.Kind = "Notification"
	ContentMigration          graph.Kind = "ContentMigration"
)

// Workflow states shared by several kinds.
const (
	StateActive          = "active"
	StateAvailable       = "available"
	StateClaimed         = "claimed"
	StateDeleted         = "deleted"
	StateInvited         = "invited"
	StateCreationPending = "creation_pending"
	StateCompleted       = "completed"
	StateRejected        = "rejected"
	StateInactive        = "inactive"
	StateUnconfirmed     = "unconfirmed"
	StateRetired         = "retired"
	StatePublished       = "published"
)

// Override set types.
const (
	SetCourseSection = "CourseSection"
	SetAdhoc         = "ADHOC"
)

// Discussion topic types.
const (
	TopicDiscussion   = "DiscussionTopic"
	TopicAnnouncement = "Announcement"
)

// Common columns.
const (
	ColContextType = "context_type"
	ColContextID   = "context_id"
	ColWorkflow    = "workflow_state"
)
