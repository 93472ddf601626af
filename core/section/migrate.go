package section

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
)

// visibilityKinds carry per-section overrides. Announcements are discussion
// topics of another type.
var visibilityKinds = []graph.Kind{lms.Assignment, lms.Quiz, lms.DiscussionTopic}

// overrideKey is the override column pointing at each kind.
var overrideKey = map[graph.Kind]string{
	lms.Assignment:      "assignment_id",
	lms.Quiz:            "quiz_id",
	lms.DiscussionTopic: "discussion_topic_id",
}

// activityKinds are re-homed to the new course for the section's users.
var activityKinds = []graph.Kind{
	lms.PageView,
	lms.AssetUserAccess,
	lms.Message,
	lms.ContentParticipationCount,
}

// migration is the state of moving one section into its new course.
type migration struct {
	*Splitter
	log     *zap.Logger
	source  graph.Record
	target  graph.Record
	section graph.Record
	deleter *graph.Deleter

	// pairs maps source item ids to the kept copies, per kind.
	pairs map[graph.Kind]map[int64]int64
	users []int64
	inSet map[int64]bool
}

// unlinkQuizzes detaches quizzes from an assignment about to be removed.
func unlinkQuizzes(ctx context.Context, store graph.Store, rec graph.Record) error {
	_, err := store.Update(ctx, lms.Quiz, graph.Fields{"assignment_id": nil}, graph.Eq("assignment_id", rec.ID))
	return errors.Wrapf(err, "unlinking quizzes of %s", rec.Ref())
}

// prunePolicy removes copied items with their overrides, never reaching
// back into the course.
var prunePolicy = graph.Policy{
	Exclude: map[graph.Kind][]string{
		lms.Quiz: {"assignment"},
	},
	Prune: map[graph.Kind]graph.PruneFunc{
		lms.Assignment: unlinkQuizzes,
	},
}

func (s *Splitter) migrateSection(ctx context.Context, log *zap.Logger, source, target, section graph.Record) error {
	m := &migration{
		Splitter: s,
		log:      log.With(zap.Int64("target_course_id", target.ID)),
		source:   source,
		target:   target,
		section:  section,
		deleter:  graph.NewDeleter(s.store, s.schema, prunePolicy, log),
		pairs:    make(map[graph.Kind]map[int64]int64),
		inSet:    make(map[int64]bool),
	}
	for _, kind := range visibilityKinds {
		if err := m.pruneInvisible(ctx, kind); err != nil {
			return err
		}
	}
	for _, step := range []func(context.Context) error{
		m.dropOtherSectionEvents,
		m.moveSection,
		m.cloneOverrides,
		m.moveSubmissions,
		m.moveActivity,
		m.moveGroups,
		m.moveDiscussions,
	} {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *migration) items(ctx context.Context, kind graph.Kind, courseID int64) ([]graph.Record, error) {
	recs, err := m.store.Select(ctx, kind,
		graph.Eq("course_id", courseID),
		graph.NotEq(lms.ColWorkflow, lms.StateDeleted))
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s of course %d", kind, courseID)
	}
	return recs, nil
}

func (m *migration) sectionOverrides(ctx context.Context, kind graph.Kind, itemID int64) ([]graph.Record, error) {
	recs, err := m.store.Select(ctx, lms.AssignmentOverride,
		graph.Eq(overrideKey[kind], itemID),
		graph.Eq(lms.ColWorkflow, lms.StateActive))
	if err != nil {
		return nil, errors.Wrapf(err, "loading overrides of %s#%d", kind, itemID)
	}
	return recs, nil
}

// pruneInvisible removes the copies of items that are scoped to other
// sections only, and pairs the others with their source items.
func (m *migration) pruneInvisible(ctx context.Context, kind graph.Kind) error {
	sources, err := m.items(ctx, kind, m.source.ID)
	if err != nil {
		return err
	}
	copies, err := m.items(ctx, kind, m.target.ID)
	if err != nil {
		return err
	}
	pairs := make(map[int64]int64, len(copies))
	m.pairs[kind] = pairs

	match := newMatcher(sources, copies)
	w := graph.NewWalk(nil)
	for _, item := range copies {
		src, err := match.match(item)
		if err != nil {
			m.log.Error("no source counterpart, item left as copied", zap.Stringer("item", item.Ref()), zap.Error(err))
			continue
		}
		overrides, err := m.sectionOverrides(ctx, kind, src.ID)
		if err != nil {
			return err
		}
		scoped, visible := false, false
		for _, o := range overrides {
			row := lms.OverrideOf(o)
			if row.SetType != lms.SetCourseSection {
				continue
			}
			scoped = true
			if row.Targets(m.section.ID) {
				visible = true
			}
		}
		if scoped && !visible {
			if !m.deleter.RecursiveDelete(ctx, w, item) {
				return errors.Errorf("removing %s hidden from section %d", item.Ref(), m.section.ID)
			}
			m.log.Debug("removed item hidden from section", zap.Stringer("item", item.Ref()), zap.Stringer("source", src.Ref()))
			continue
		}
		pairs[src.ID] = item.ID
	}
	return nil
}

// dropOtherSectionEvents hard-deletes copied events of other sections.
func (m *migration) dropOtherSectionEvents(ctx context.Context) error {
	n, err := m.store.Delete(ctx, lms.CalendarEvent,
		graph.Eq("course_id", m.target.ID),
		graph.NotNull("course_section_id"),
		graph.NotEq("course_section_id", m.section.ID))
	if err != nil {
		return errors.Wrap(err, "deleting calendar events of other sections")
	}
	m.log.Debug("deleted calendar events of other sections", zap.Int64("count", n))
	return nil
}

// moveSection points the section and its enrollments at the new course and
// records the users that came along.
func (m *migration) moveSection(ctx context.Context) error {
	if _, err := m.store.Update(ctx, lms.CourseSection,
		graph.Fields{"course_id": m.target.ID},
		graph.Eq("id", m.section.ID)); err != nil {
		return errors.Wrap(err, "moving section")
	}
	if _, err := m.store.Update(ctx, lms.Enrollment,
		graph.Fields{"course_id": m.target.ID},
		graph.Eq("course_section_id", m.section.ID)); err != nil {
		return errors.Wrap(err, "moving enrollments")
	}
	enrollments, err := m.store.Select(ctx, lms.Enrollment,
		graph.Eq("course_section_id", m.section.ID),
		graph.NotEq(lms.ColWorkflow, lms.StateDeleted))
	if err != nil {
		return errors.Wrap(err, "loading enrollments")
	}
	for _, e := range enrollments {
		userID, _ := e.Int("user_id")
		if !m.inSet[userID] {
			m.inSet[userID] = true
			m.users = append(m.users, userID)
		}
	}
	return nil
}

// relevant reports whether a source override applies to the migrated section:
// it targets the section, or lists only students of the section.
func (m *migration) relevant(ctx context.Context, o graph.Record) (bool, []graph.Record, error) {
	row := lms.OverrideOf(o)
	switch row.SetType {
	case lms.SetCourseSection:
		return row.Targets(m.section.ID), nil, nil
	case lms.SetAdhoc:
		students, err := m.store.Select(ctx, lms.AssignmentOverrideStudent, graph.Eq("assignment_override_id", o.ID))
		if err != nil {
			return false, nil, errors.Wrapf(err, "loading students of %s", o.Ref())
		}
		if len(students) == 0 {
			return false, nil, nil
		}
		for _, st := range students {
			userID, _ := st.Int("user_id")
			if !m.inSet[userID] {
				return false, nil, nil
			}
		}
		return true, students, nil
	}
	return false, nil, nil
}

// sourceIDs lists the paired source items of kind in id order.
func (m *migration) sourceIDs(kind graph.Kind) []int64 {
	ids := make([]int64, 0, len(m.pairs[kind]))
	for id := range m.pairs[kind] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *migration) cloneOverrides(ctx context.Context) error {
	cloned := 0
	for _, kind := range visibilityKinds {
		for _, srcID := range m.sourceIDs(kind) {
			dstID := m.pairs[kind][srcID]
			overrides, err := m.sectionOverrides(ctx, kind, srcID)
			if err != nil {
				return err
			}
			for _, o := range overrides {
				ok, students, err := m.relevant(ctx, o)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := m.cloneOverride(ctx, kind, o, dstID, students); err != nil {
					return err
				}
				cloned++
			}
		}
	}
	m.log.Debug("cloned overrides", zap.Int("count", cloned))
	return nil
}

func (m *migration) cloneOverride(ctx context.Context, kind graph.Kind, o graph.Record, itemID int64, students []graph.Record) error {
	clone := o.Clone()
	clone.ID = 0
	for _, col := range overrideKey {
		clone.Fields[col] = nil
	}
	clone.Fields[overrideKey[kind]] = itemID
	created, err := m.store.Insert(ctx, clone)
	if err != nil {
		return errors.Wrapf(err, "cloning %s", o.Ref())
	}
	for _, st := range students {
		sc := st.Clone()
		sc.ID = 0
		sc.Fields["assignment_override_id"] = created.ID
		for _, col := range []string{"assignment_id", "quiz_id"} {
			if _, ok := sc.Fields[col]; ok {
				sc.Fields[col] = nil
			}
		}
		if kind != lms.DiscussionTopic {
			sc.Fields[overrideKey[kind]] = itemID
		}
		if _, err := m.store.Insert(ctx, sc); err != nil {
			return errors.Wrapf(err, "cloning %s", st.Ref())
		}
	}
	return nil
}

// moveSubmissions re-points the section users' submissions at the copies.
func (m *migration) moveSubmissions(ctx context.Context) error {
	for _, mv := range []struct {
		item, kind graph.Kind
		key        string
	}{
		{lms.Assignment, lms.Submission, "assignment_id"},
		{lms.Quiz, lms.QuizSubmission, "quiz_id"},
	} {
		for _, srcID := range m.sourceIDs(mv.item) {
			dstID := m.pairs[mv.item][srcID]
			if _, err := m.store.Update(ctx, mv.kind,
				graph.Fields{mv.key: dstID},
				graph.Eq(mv.key, srcID),
				graph.In("user_id", m.users)); err != nil {
				return errors.Wrapf(err, "moving %s", mv.kind)
			}
		}
	}
	return nil
}

// moveActivity re-homes the section users' activity rows.
func (m *migration) moveActivity(ctx context.Context) error {
	for _, kind := range activityKinds {
		n, err := m.store.Update(ctx, kind,
			graph.Fields{lms.ColContextID: m.target.ID},
			graph.Eq(lms.ColContextType, string(lms.Course)),
			graph.Eq(lms.ColContextID, m.source.ID),
			graph.In("user_id", m.users))
		if err != nil {
			return errors.Wrapf(err, "moving %s", kind)
		}
		m.log.Debug("moved activity", zap.Stringer("kind", kind), zap.Int64("count", n))
	}
	return nil
}

func (m *migration) moveGroups(ctx context.Context) error {
	_, err := m.store.Update(ctx, lms.Group,
		graph.Fields{lms.ColContextType: string(lms.Course), lms.ColContextID: m.target.ID},
		graph.Eq("course_section_id", m.section.ID))
	return errors.Wrap(err, "moving groups")
}
