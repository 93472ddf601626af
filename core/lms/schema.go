package lms

import "github.com/HotChalk/canvas-lms-sub000/core/graph"

var (
	softDelete = graph.Workflow{}
	permanent  = graph.Permanent{}

	// CourseDeletion flips the course and cascades to its enrollments.
	CourseDeletion = graph.Workflow{Cascades: []graph.Cascade{{Kind: Enrollment, ForeignKey: "course_id"}}}

	schema = graph.MustSchema(models()...)
)

// Schema returns the registry of every LMS kind.
func Schema() *graph.Schema { return schema }

func contextual(name string, kind graph.Kind) graph.Association {
	return graph.HasManyOf(name, kind, ColContextID).Polymorphic(ColContextType)
}

// Associations are listed so that rows holding a foreign key are reached
// before the rows they point at.
func models() []graph.Model {
	return []graph.Model{
		{
			Kind: Account,
			Associations: []graph.Association{
				graph.HasManyOf("sub_accounts", Account, "parent_account_id"),
				graph.HasManyOf("courses", Course, "account_id"),
				graph.HasManyOf("pseudonyms", Pseudonym, "account_id"),
				graph.HasManyOf("account_users", AccountUser, "account_id"),
				contextual("folders", Folder),
				contextual("attachments", Attachment),
				graph.HasManyOf("roles", Role, "account_id"),
				graph.BelongsToOne("parent_account", Account, "parent_account_id"),
				graph.BelongsToOne("root_account", Account, "root_account_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: User,
			Associations: []graph.Association{
				graph.HasManyOf("pseudonyms", Pseudonym, "user_id"),
				graph.HasManyOf("communication_channels", CommunicationChannel, "user_id"),
				graph.HasManyOf("enrollments", Enrollment, "user_id"),
				graph.HasManyOf("observer_enrollments", Enrollment, "associated_user_id"),
				graph.HasManyOf("account_users", AccountUser, "user_id"),
				graph.HasManyOf("submission_comments", SubmissionComment, "author_id"),
				graph.HasManyOf("submissions", Submission, "user_id"),
				graph.HasManyOf("quiz_submissions", QuizSubmission, "user_id"),
				graph.HasManyOf("discussion_entries", DiscussionEntry, "user_id"),
				graph.HasManyOf("calendar_events", CalendarEvent, "user_id"),
				graph.HasManyOf("context_module_progressions", ContextModuleProgression, "user_id"),
				graph.HasManyOf("group_memberships", GroupMembership, "user_id"),
				graph.HasManyOf("assignment_override_students", AssignmentOverrideStudent, "user_id"),
				graph.HasManyOf("attachments", Attachment, "user_id"),
				graph.HasManyOf("content_migrations", ContentMigration, "user_id"),
				graph.HasManyOf("page_views", PageView, "user_id"),
				graph.HasManyOf("asset_user_accesses", AssetUserAccess, "user_id"),
				graph.HasManyOf("messages", Message, "user_id"),
				graph.HasManyOf("content_participation_counts", ContentParticipationCount, "user_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: Pseudonym,
			Associations: []graph.Association{
				graph.BelongsToOne("user", User, "user_id"),
				graph.BelongsToOne("account", Account, "account_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: CommunicationChannel,
			Associations: []graph.Association{
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: graph.Workflow{DeletedState: StateRetired},
		},
		{
			Kind: Role,
			Associations: []graph.Association{
				graph.HasManyOf("enrollments", Enrollment, "role_id"),
				graph.HasManyOf("account_users", AccountUser, "role_id"),
				graph.BelongsToOne("account", Account, "account_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: AccountUser,
			Associations: []graph.Association{
				graph.BelongsToOne("account", Account, "account_id"),
				graph.BelongsToOne("user", User, "user_id"),
				graph.BelongsToOne("role", Role, "role_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: Course,
			Associations: []graph.Association{
				graph.HasManyOf("enrollments", Enrollment, "course_id"),
				graph.HasManyOf("calendar_events", CalendarEvent, "course_id"),
				contextual("groups", Group),
				graph.HasManyOf("assignments", Assignment, "course_id"),
				graph.HasManyOf("quizzes", Quiz, "course_id"),
				graph.HasManyOf("discussion_topics", DiscussionTopic, "course_id"),
				graph.HasManyOf("context_modules", ContextModule, "course_id"),
				contextual("folders", Folder),
				contextual("attachments", Attachment),
				contextual("content_migrations", ContentMigration),
				graph.HasManyOf("source_migrations", ContentMigration, "source_course_id"),
				contextual("page_views", PageView),
				contextual("asset_user_accesses", AssetUserAccess),
				contextual("content_participation_counts", ContentParticipationCount),
				contextual("messages", Message),
				graph.HasManyOf("course_sections", CourseSection, "course_id"),
				graph.BelongsToOne("account", Account, "account_id"),
				graph.BelongsToOne("root_account", Account, "root_account_id"),
			},
			Deletion: CourseDeletion,
		},
		{
			Kind: CourseSection,
			Associations: []graph.Association{
				graph.HasManyOf("enrollments", Enrollment, "course_section_id"),
				graph.HasManyOf("calendar_events", CalendarEvent, "course_section_id"),
				graph.HasManyOf("groups", Group, "course_section_id"),
				graph.BelongsToOne("course", Course, "course_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: Enrollment,
			Associations: []graph.Association{
				graph.BelongsToOne("user", User, "user_id"),
				graph.BelongsToOne("associated_user", User, "associated_user_id"),
				graph.BelongsToOne("course", Course, "course_id"),
				graph.BelongsToOne("course_section", CourseSection, "course_section_id"),
				graph.BelongsToOne("role", Role, "role_id"),
				graph.BelongsToOne("root_account", Account, "root_account_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: Assignment,
			Associations: []graph.Association{
				graph.HasManyOf("assignment_overrides", AssignmentOverride, "assignment_id"),
				graph.HasManyOf("submissions", Submission, "assignment_id"),
				graph.BelongsToOne("course", Course, "course_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: AssignmentOverride,
			Associations: []graph.Association{
				graph.HasManyOf("assignment_override_students", AssignmentOverrideStudent, "assignment_override_id"),
				graph.BelongsToOne("assignment", Assignment, "assignment_id"),
				graph.BelongsToOne("quiz", Quiz, "quiz_id"),
				graph.BelongsToOne("discussion_topic", DiscussionTopic, "discussion_topic_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: AssignmentOverrideStudent,
			Associations: []graph.Association{
				graph.BelongsToOne("assignment_override", AssignmentOverride, "assignment_override_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: Quiz,
			Associations: []graph.Association{
				graph.HasManyOf("assignment_overrides", AssignmentOverride, "quiz_id"),
				graph.HasManyOf("quiz_submissions", QuizSubmission, "quiz_id"),
				graph.BelongsToOne("course", Course, "course_id"),
				graph.BelongsToOne("assignment", Assignment, "assignment_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: QuizSubmission,
			Associations: []graph.Association{
				graph.BelongsToOne("quiz", Quiz, "quiz_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: Submission,
			Associations: []graph.Association{
				graph.HasManyOf("submission_comments", SubmissionComment, "submission_id"),
				graph.BelongsToOne("assignment", Assignment, "assignment_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: SubmissionComment,
			Associations: []graph.Association{
				graph.BelongsToOne("submission", Submission, "submission_id"),
				graph.BelongsToOne("author", User, "author_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: DiscussionTopic,
			Associations: []graph.Association{
				graph.HasManyOf("assignment_overrides", AssignmentOverride, "discussion_topic_id"),
				graph.HasManyOf("discussion_entries", DiscussionEntry, "discussion_topic_id"),
				graph.BelongsToOne("course", Course, "course_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: DiscussionEntry,
			Associations: []graph.Association{
				graph.HasManyOf("replies", DiscussionEntry, "parent_id"),
				graph.BelongsToOne("discussion_topic", DiscussionTopic, "discussion_topic_id"),
				graph.BelongsToOne("parent_entry", DiscussionEntry, "parent_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: CalendarEvent,
			Associations: []graph.Association{
				graph.BelongsToOne("course", Course, "course_id"),
				graph.BelongsToOne("course_section", CourseSection, "course_section_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: ContextModule,
			Associations: []graph.Association{
				graph.HasManyOf("context_module_progressions", ContextModuleProgression, "context_module_id"),
				graph.BelongsToOne("course", Course, "course_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: ContextModuleProgression,
			Associations: []graph.Association{
				graph.BelongsToOne("context_module", ContextModule, "context_module_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: Group,
			Associations: []graph.Association{
				graph.HasManyOf("group_memberships", GroupMembership, "group_id"),
				graph.BelongsToOne("course_section", CourseSection, "course_section_id"),
			},
			Deletion: softDelete,
		},
		{
			Kind: GroupMembership,
			Associations: []graph.Association{
				graph.BelongsToOne("group", Group, "group_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: Folder,
			Associations: []graph.Association{
				graph.HasManyOf("attachments", Attachment, "folder_id"),
				graph.HasManyOf("sub_folders", Folder, "parent_folder_id"),
				graph.BelongsToOne("parent_folder", Folder, "parent_folder_id"),
			},
			Deletion: graph.FolderTree{ParentKey: "parent_folder_id"},
		},
		{
			Kind: Attachment,
			Associations: []graph.Association{
				graph.HasManyOf("thumbnails", Thumbnail, "parent_id"),
				graph.BelongsToOne("folder", Folder, "folder_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: graph.AttachmentRows{Thumbnails: Thumbnail, ParentKey: "parent_id"},
		},
		{
			Kind: Thumbnail,
			Associations: []graph.Association{
				graph.BelongsToOne("attachment", Attachment, "parent_id"),
			},
			Deletion: graph.Direct{},
		},
		{
			Kind: PageView,
			Associations: []graph.Association{
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: AssetUserAccess,
			Associations: []graph.Association{
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: Message,
			Associations: []graph.Association{
				graph.BelongsToOne("user", User, "user_id"),
				graph.BelongsToOne("notification", Notification, "notification_id"),
			},
			Deletion: permanent,
		},
		{
			Kind: ContentParticipationCount,
			Associations: []graph.Association{
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: permanent,
		},
		{
			Kind:     Notification,
			Deletion: permanent,
		},
		{
			Kind: ContentMigration,
			Associations: []graph.Association{
				graph.BelongsToOne("source_course", Course, "source_course_id"),
				graph.BelongsToOne("user", User, "user_id"),
			},
			Deletion: softDelete,
		},
	}
}
