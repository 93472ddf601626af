// Package account removes a root account together with its sub-accounts and
// everything they own.
package account

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/graph"
	"github.com/HotChalk/canvas-lms-sub000/core/lms"
	"github.com/HotChalk/canvas-lms-sub000/services/logger"
)

const defaultMaxPasses = 10

type Remover struct {
	store  graph.Store
	schema *graph.Schema
	conf   core.RemoverConfig
	log    *zap.Logger
}

func NewRemover(store graph.Store, conf core.RemoverConfig, log *zap.Logger) (*Remover, error) {
	if err := vala.BeginValidation().Validate(
		core.NotNil(store, "store"),
	).Check(); err != nil {
		return nil, err
	}
	if conf.MaxPasses <= 0 {
		conf.MaxPasses = defaultMaxPasses
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Remover{store: store, schema: lms.Schema(), conf: conf, log: log}, nil
}

// run is the state of one RemoveAccount call.
type run struct {
	*Remover
	scope   *scope
	deleter *graph.Deleter
	memo    graph.Memo
	log     *zap.Logger

	// pending holds parent objects a pass could not remove; every later
	// pass retries them.
	pending []graph.Ref
}

// RemoveAccount permanently removes the root account id, its sub-accounts
// (leaves first) and every entity they own, then sweeps activity rows that
// still point at them.
//
// Only the precondition errors and a failure to converge are returned;
// entity-level failures are logged and retried on the next pass.
func (r *Remover) RemoveAccount(ctx context.Context, id int64) error {
	if r.conf.IsProtected(id) {
		return &ProtectedAccountError{AccountID: id}
	}
	root, err := r.store.Find(ctx, lms.Account, id)
	if errors.Cause(err) == graph.ErrNotFound {
		return &InvalidTargetError{AccountID: id, Reason: ReasonNotFound}
	}
	if err != nil {
		return errors.Wrapf(err, "loading account %d", id)
	}
	if root.Has("root_account_id") {
		return &InvalidTargetError{AccountID: id, Reason: ReasonNotRoot}
	}

	log := logsvc.ForRun(r.log, logsvc.AccountRemover).With(zap.Int64("account_id", id))
	sc, err := loadScope(ctx, r.store, root)
	if err != nil {
		return err
	}
	for _, sub := range sc.accountIDs() {
		if sub != id && r.conf.IsProtected(sub) {
			return &ProtectedAccountError{AccountID: sub}
		}
	}
	log.Info("removing account",
		zap.Int("accounts", len(sc.accounts)),
		zap.Int("courses", len(sc.courses)))

	rn := &run{
		Remover: r,
		scope:   sc,
		deleter: graph.NewDeleter(r.store, r.schema, sc.policy(), log),
		memo:    make(graph.Memo),
		log:     log,
	}
	defer rn.deleter.LogTimings()

	if err := rn.removeTree(ctx, root); err != nil {
		return err
	}
	if err := rn.sweep(ctx); err != nil {
		return err
	}
	log.Info("account removed", zap.Int("entities", len(rn.memo)))
	return nil
}

// removeTree removes the sub-accounts of account depth-first, then the
// account itself.
func (rn *run) removeTree(ctx context.Context, account graph.Record) error {
	subs, err := rn.store.Select(ctx, lms.Account, graph.Eq("parent_account_id", account.ID))
	if err != nil {
		return errors.Wrapf(err, "loading sub-accounts of %s", account.Ref())
	}
	for _, sub := range subs {
		if err := rn.removeTree(ctx, sub); err != nil {
			return err
		}
	}
	if err := rn.softDeleteCollections(ctx, account); err != nil {
		return err
	}
	return rn.converge(ctx, account.Ref())
}

// softDeleteCollections flips the account's courses (cascading to their
// enrollments) and the logins of users that have no other account, in bulk.
func (rn *run) softDeleteCollections(ctx context.Context, account graph.Record) error {
	courses, err := rn.store.Select(ctx, lms.Course,
		graph.Eq("account_id", account.ID),
		graph.NotEq(lms.ColWorkflow, lms.StateDeleted))
	if err != nil {
		return errors.Wrapf(err, "loading courses of %s", account.Ref())
	}
	if err := lms.CourseDeletion.SoftDeleteAll(ctx, rn.store, lms.Course, graph.IDs(courses)); err != nil {
		return errors.Wrapf(err, "soft deleting courses of %s", account.Ref())
	}

	pseudonyms, err := rn.store.Select(ctx, lms.Pseudonym,
		graph.Eq("account_id", account.ID),
		graph.NotEq(lms.ColWorkflow, lms.StateDeleted))
	if err != nil {
		return errors.Wrapf(err, "loading pseudonyms of %s", account.Ref())
	}
	ids := make([]int64, 0, len(pseudonyms))
	for _, p := range pseudonyms {
		userID, _ := p.Int("user_id")
		outside, err := rn.scope.hasOutsideLogin(ctx, userID)
		if err != nil {
			return err
		}
		if !outside {
			ids = append(ids, p.ID)
		}
	}
	if err := (graph.Workflow{}).SoftDeleteAll(ctx, rn.store, lms.Pseudonym, ids); err != nil {
		return errors.Wrapf(err, "soft deleting pseudonyms of %s", account.Ref())
	}
	rn.log.Debug("soft deleted collections",
		zap.Int64("account_id", account.ID),
		zap.Int("courses", len(courses)),
		zap.Int("pseudonyms", len(ids)))
	return nil
}

// converge repeats the walk from ref and the parent-object pass until both
// succeed, a pass removes nothing, or the pass ceiling is reached. Parent
// objects left over by earlier passes are retried on each pass.
func (rn *run) converge(ctx context.Context, ref graph.Ref) error {
	for pass := 1; pass <= rn.conf.MaxPasses; pass++ {
		w := graph.NewWalk(rn.memo)
		for _, p := range rn.pending {
			w.Parents.Push(p)
		}
		ok := rn.deleter.DeleteRef(ctx, w, ref)
		if !rn.deleter.DrainParents(ctx, w) {
			ok = false
		}
		rn.pending = w.Left
		rn.log.Info("pass finished",
			zap.Stringer("entity", ref),
			zap.Int("pass", pass),
			zap.Int("removed", w.Removed),
			zap.Int("failed", w.Failed),
			zap.Int("parents_left", len(w.Left)),
			zap.Bool("complete", ok))
		if ok {
			return nil
		}
		if w.Removed == 0 {
			rn.log.Error("giving up", zap.Stringer("entity", ref), zap.Int("pass", pass))
			return errors.Wrapf(ErrNoProgress, "removing %s (pass %d)", ref, pass)
		}
	}
	return errors.Wrapf(ErrRetriesExhausted, "removing %s after %d passes", ref, rn.conf.MaxPasses)
}
