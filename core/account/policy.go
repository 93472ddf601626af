package account

import (
	"context"

	"github.com/pkg/errors"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
)

// scope is the set of accounts and courses one removal owns. Containers
// outside of it are never deleted, even when reachable through a parent edge.
type scope struct {
	store    graph.Store
	accounts map[int64]bool
	courses  map[int64]bool
}

func loadScope(ctx context.Context, store graph.Store, root graph.Record) (*scope, error) {
	s := &scope{
		store:    store,
		accounts: map[int64]bool{root.ID: true},
		courses:  make(map[int64]bool),
	}
	level := []int64{root.ID}
	for len(level) > 0 {
		subs, err := store.Select(ctx, lms.Account, graph.In("parent_account_id", level))
		if err != nil {
			return nil, errors.Wrap(err, "loading sub-accounts")
		}
		level = level[:0]
		for _, sub := range subs {
			if !s.accounts[sub.ID] {
				s.accounts[sub.ID] = true
				level = append(level, sub.ID)
			}
		}
	}

	courses, err := store.Select(ctx, lms.Course, graph.In("account_id", s.accountIDs()))
	if err != nil {
		return nil, errors.Wrap(err, "loading courses")
	}
	for _, c := range courses {
		s.courses[c.ID] = true
	}
	return s, nil
}

func keys(m map[int64]bool) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func (s *scope) accountIDs() []int64 { return keys(s.accounts) }
func (s *scope) courseIDs() []int64  { return keys(s.courses) }

// ownsContext reports whether a polymorphic context belongs to the scope.
func (s *scope) ownsContext(rec graph.Record) bool {
	id, ok := rec.Int(lms.ColContextID)
	if !ok {
		return false
	}
	switch graph.Kind(rec.String(lms.ColContextType)) {
	case lms.Account:
		return s.accounts[id]
	case lms.Course:
		return s.courses[id]
	}
	return false
}

func (s *scope) ownsCourseOf(rec graph.Record) bool {
	id, ok := rec.Int("course_id")
	return ok && s.courses[id]
}

// hasOutsideLogin reports whether user keeps an active login in an account
// the removal does not own.
func (s *scope) hasOutsideLogin(ctx context.Context, userID int64) (bool, error) {
	recs, err := s.store.Select(ctx, lms.Pseudonym,
		graph.Eq("user_id", userID),
		graph.Eq(lms.ColWorkflow, lms.StateActive),
		graph.NotIn("account_id", s.accountIDs()))
	if err != nil {
		return false, errors.Wrap(err, "checking pseudonyms")
	}
	return len(recs) > 0, nil
}

func (s *scope) skipAccount(_ context.Context, rec graph.Record) (bool, error) {
	return !s.accounts[rec.ID], nil
}

// skipUser keeps users with a login outside the scope, and users owning rows
// the scope leaves in place, whose foreign keys would block the delete.
func (s *scope) skipUser(ctx context.Context, rec graph.Record) (bool, error) {
	outside, err := s.hasOutsideLogin(ctx, rec.ID)
	if err != nil || outside {
		return outside, err
	}
	return s.ownsKeptRows(ctx, rec)
}

func (s *scope) ownsKeptRows(ctx context.Context, user graph.Record) (bool, error) {
	model, ok := lms.Schema().Model(lms.User)
	if !ok {
		return false, errors.New("schema has no users")
	}
	skips := s.skips()
	for _, a := range model.Children() {
		skip, ok := skips[a.Kind]
		if !ok {
			continue
		}
		recs, err := graph.Associated(ctx, s.store, user, a)
		if err != nil {
			return false, err
		}
		for _, rec := range recs {
			kept, err := skip(ctx, rec)
			if err != nil || kept {
				return kept, err
			}
		}
	}
	return false, nil
}

func (s *scope) skipRole(_ context.Context, rec graph.Record) (bool, error) {
	if rec.Bool("built_in") {
		return true, nil
	}
	id, ok := rec.Int("account_id")
	return !ok || !s.accounts[id], nil
}

func (s *scope) skipCourse(_ context.Context, rec graph.Record) (bool, error) {
	id, ok := rec.Int("account_id")
	return !ok || !s.accounts[id], nil
}

func (s *scope) skipCourseContent(_ context.Context, rec graph.Record) (bool, error) {
	return !s.ownsCourseOf(rec), nil
}

func (s *scope) skipGroup(_ context.Context, rec graph.Record) (bool, error) {
	return !s.ownsContext(rec), nil
}

// skipOverride resolves the course through whichever item the override is
// attached to.
func (s *scope) skipOverride(ctx context.Context, rec graph.Record) (bool, error) {
	for _, ref := range []struct {
		field string
		kind  graph.Kind
	}{
		{"assignment_id", lms.Assignment},
		{"quiz_id", lms.Quiz},
		{"discussion_topic_id", lms.DiscussionTopic},
	} {
		id, ok := rec.Int(ref.field)
		if !ok {
			continue
		}
		item, err := s.store.Find(ctx, ref.kind, id)
		if errors.Cause(err) == graph.ErrNotFound {
			continue
		}
		if err != nil {
			return false, errors.Wrapf(err, "loading %s of %s", ref.kind, rec.Ref())
		}
		return !s.ownsCourseOf(item), nil
	}
	return false, nil
}

// skipEntry keeps replies in topics the removal does not own.
func (s *scope) skipEntry(ctx context.Context, rec graph.Record) (bool, error) {
	id, ok := rec.Int("discussion_topic_id")
	if !ok {
		return false, nil
	}
	topic, err := s.store.Find(ctx, lms.DiscussionTopic, id)
	if errors.Cause(err) == graph.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "loading topic of %s", rec.Ref())
	}
	return !s.ownsCourseOf(topic), nil
}

// pruneCourse removes the course's high-cardinality activity rows in bulk.
func pruneCourse(ctx context.Context, store graph.Store, rec graph.Record) error {
	for _, kind := range activityKinds {
		if _, err := store.Delete(ctx, kind,
			graph.Eq(lms.ColContextType, string(lms.Course)),
			graph.Eq(lms.ColContextID, rec.ID)); err != nil {
			return errors.Wrapf(err, "pruning %s of %s", kind, rec.Ref())
		}
	}
	return nil
}

// pruneUser removes the user's activity rows in bulk and detaches the topics
// they authored.
func pruneUser(ctx context.Context, store graph.Store, rec graph.Record) error {
	for _, kind := range activityKinds {
		if _, err := store.Delete(ctx, kind, graph.Eq("user_id", rec.ID)); err != nil {
			return errors.Wrapf(err, "pruning %s of %s", kind, rec.Ref())
		}
	}
	if _, err := store.Update(ctx, lms.DiscussionTopic, graph.Fields{"user_id": nil}, graph.Eq("user_id", rec.ID)); err != nil {
		return errors.Wrapf(err, "detaching topics of %s", rec.Ref())
	}
	return nil
}

// pruneAssignment unlinks quizzes, which would otherwise block the delete.
func pruneAssignment(ctx context.Context, store graph.Store, rec graph.Record) error {
	if _, err := store.Update(ctx, lms.Quiz, graph.Fields{"assignment_id": nil}, graph.Eq("assignment_id", rec.ID)); err != nil {
		return errors.Wrapf(err, "unlinking quizzes of %s", rec.Ref())
	}
	return nil
}

// activityKinds are pruned in bulk instead of walked row by row.
var activityKinds = []graph.Kind{
	lms.PageView,
	lms.AssetUserAccess,
	lms.ContentParticipationCount,
	lms.Message,
}

// skips are the exclusion predicates of every kind but User, which is
// decided from them.
func (s *scope) skips() map[graph.Kind]graph.SkipFunc {
	return map[graph.Kind]graph.SkipFunc{
		lms.Account:            s.skipAccount,
		lms.Role:               s.skipRole,
		lms.Course:             s.skipCourse,
		lms.CourseSection:      s.skipCourseContent,
		lms.Assignment:         s.skipCourseContent,
		lms.Quiz:               s.skipCourseContent,
		lms.DiscussionTopic:    s.skipCourseContent,
		lms.ContextModule:      s.skipCourseContent,
		lms.DiscussionEntry:    s.skipEntry,
		lms.AssignmentOverride: s.skipOverride,
		lms.Group:              s.skipGroup,
	}
}

func (s *scope) policy() graph.Policy {
	skip := s.skips()
	skip[lms.User] = s.skipUser
	return graph.Policy{
		Exclude: map[graph.Kind][]string{
			lms.Account:     {"sub_accounts", "parent_account", "root_account"},
			lms.Pseudonym:   {"account"},
			lms.AccountUser: {"account"},
			lms.Role:        {"account"},
			lms.Course: {
				"account", "root_account",
				"page_views", "asset_user_accesses", "content_participation_counts", "messages",
			},
			lms.User:       {"page_views", "asset_user_accesses", "content_participation_counts", "messages"},
			lms.Enrollment: {"root_account"},
			lms.Quiz:       {"assignment"},
			lms.Attachment: {"folder"},
		},
		Ignore: map[graph.Kind]bool{
			lms.Notification: true,
		},
		Skip: skip,
		Prune: map[graph.Kind]graph.PruneFunc{
			lms.Course:     pruneCourse,
			lms.User:       pruneUser,
			lms.Assignment: pruneAssignment,
		},
	}
}
