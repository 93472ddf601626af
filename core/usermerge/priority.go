package usermerge

import "github.com/HotChalk/canvas-lms-sub000/core/lms"

// channelRank orders channel states, most authoritative first.
func channelRank(state string) int {
	switch state {
	case lms.StateActive:
		return 0
	case lms.StateUnconfirmed:
		return 1
	case lms.StateRetired:
		return 2
	}
	return 3
}

// enrollmentRank orders enrollments by state; a SIS-provisioned enrollment
// outranks the concluded and inactive states.
func enrollmentRank(e lms.EnrollmentRow) int {
	switch e.WorkflowState {
	case lms.StateActive:
		return 0
	case lms.StateInvited:
		return 1
	case lms.StateCreationPending:
		return 2
	}
	if e.SISBatchID.Valid {
		return 3
	}
	switch e.WorkflowState {
	case lms.StateCompleted:
		return 4
	case lms.StateRejected:
		return 5
	case lms.StateInactive:
		return 6
	case lms.StateDeleted:
		return 7
	}
	return 8
}

// preferEnrollment reports whether a should be kept over b. Ties go to b.
func preferEnrollment(a, b lms.EnrollmentRow) bool {
	ra, rb := enrollmentRank(a), enrollmentRank(b)
	if ra != rb {
		return ra < rb
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.SISBatchID.Valid && !b.SISBatchID.Valid
}

// Module progression states.
const (
	ProgressionLocked    = "locked"
	ProgressionUnlocked  = "unlocked"
	ProgressionStarted   = "started"
	ProgressionCompleted = "completed"
)

// progressionRank is higher the further the student got.
func progressionRank(state string) int {
	switch state {
	case ProgressionCompleted:
		return 4
	case ProgressionStarted:
		return 3
	case ProgressionUnlocked:
		return 2
	case ProgressionLocked:
		return 1
	}
	return 0
}
