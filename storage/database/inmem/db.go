package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/HotChalk/canvas-lms-sub000/core/graph"
)

// ForeignKeyError is returned when a delete would leave rows pointing at a
// missing parent.
type ForeignKeyError struct {
	Ref        graph.Ref
	Referrer   graph.Ref
	ForeignKey string
}

func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf("%s is still referenced by %s.%s", e.Ref, e.Referrer, e.ForeignKey)
}

type table struct {
	rows  map[int64]graph.Fields
	pkSeq int64
}

// DB is a map-backed graph.Store. Deletes are checked against every
// non-polymorphic foreign key declared in the schema, like a relational
// database with FK constraints would.
type DB struct {
	schema *graph.Schema
	mutex  sync.RWMutex
	tables map[graph.Kind]*table
}

var (
	_ graph.Store       = (*DB)(nil)
	_ graph.TreeDeleter = (*DB)(nil)
)

func Open(schema *graph.Schema) *DB {
	db := &DB{
		schema: schema,
		tables: make(map[graph.Kind]*table),
	}
	for _, k := range schema.Kinds() {
		db.tables[k] = &table{rows: make(map[int64]graph.Fields)}
	}
	return db
}

func (db *DB) table(kind graph.Kind) (*table, error) {
	t, ok := db.tables[kind]
	if !ok {
		return nil, errors.Errorf("unknown kind %q", kind)
	}
	return t, nil
}

func record(kind graph.Kind, id int64, fields graph.Fields) graph.Record {
	rec := graph.Record{Kind: kind, ID: id, Fields: make(graph.Fields, len(fields))}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	return rec
}

func (t *table) query(conds []graph.Cond) []int64 {
	ids := make([]int64, 0)
	for id, fields := range t.rows {
		if graph.Matches(id, fields, conds) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (db *DB) Find(_ context.Context, kind graph.Kind, id int64) (graph.Record, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	t, err := db.table(kind)
	if err != nil {
		return graph.Record{}, err
	}
	fields, ok := t.rows[id]
	if !ok {
		return graph.Record{}, graph.ErrNotFound
	}
	return record(kind, id, fields), nil
}

func (db *DB) Select(_ context.Context, kind graph.Kind, conds ...graph.Cond) ([]graph.Record, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	t, err := db.table(kind)
	if err != nil {
		return nil, err
	}
	ids := t.query(conds)
	recs := make([]graph.Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, record(kind, id, t.rows[id]))
	}
	return recs, nil
}

// Insert assigns the next id unless rec carries one already.
func (db *DB) Insert(_ context.Context, rec graph.Record) (graph.Record, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t, err := db.table(rec.Kind)
	if err != nil {
		return graph.Record{}, err
	}
	id := rec.ID
	if id == 0 {
		t.pkSeq++
		id = t.pkSeq
	} else if id > t.pkSeq {
		t.pkSeq = id
	}
	if _, dup := t.rows[id]; dup {
		return graph.Record{}, errors.Errorf("duplicate key %s#%d", rec.Kind, id)
	}

	fields := make(graph.Fields, len(rec.Fields))
	for k, v := range rec.Fields {
		if k == "id" {
			continue
		}
		fields[k] = graph.Normalize(v)
	}
	t.rows[id] = fields
	return record(rec.Kind, id, fields), nil
}

func (db *DB) Update(_ context.Context, kind graph.Kind, set graph.Fields, conds ...graph.Cond) (int64, error) {
	if len(conds) == 0 {
		return 0, graph.ErrUnfiltered
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t, err := db.table(kind)
	if err != nil {
		return 0, err
	}
	ids := t.query(conds)
	for _, id := range ids {
		for k, v := range set {
			t.rows[id][k] = graph.Normalize(v)
		}
	}
	return int64(len(ids)), nil
}

func (db *DB) Delete(_ context.Context, kind graph.Kind, conds ...graph.Cond) (int64, error) {
	if len(conds) == 0 {
		return 0, graph.ErrUnfiltered
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t, err := db.table(kind)
	if err != nil {
		return 0, err
	}
	return db.deleteIDs(kind, t, t.query(conds))
}

// DeleteTree removes rootID and every row reachable through parentField.
func (db *DB) DeleteTree(_ context.Context, kind graph.Kind, parentField string, rootID int64) (int64, error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	t, err := db.table(kind)
	if err != nil {
		return 0, err
	}
	if _, ok := t.rows[rootID]; !ok {
		return 0, nil
	}
	seen := map[int64]bool{rootID: true}
	tree := []int64{rootID}
	for i := 0; i < len(tree); i++ {
		for _, child := range t.query([]graph.Cond{graph.Eq(parentField, tree[i])}) {
			if !seen[child] {
				seen[child] = true
				tree = append(tree, child)
			}
		}
	}
	return db.deleteIDs(kind, t, tree)
}

func (db *DB) deleteIDs(kind graph.Kind, t *table, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	doomed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	for _, in := range db.schema.Inbound(kind) {
		from, err := db.table(in.From)
		if err != nil {
			return 0, err
		}
		fk := in.Association.ForeignKey
		for rid, fields := range from.rows {
			if in.From == kind && doomed[rid] {
				continue
			}
			target, ok := graph.Record{Fields: fields}.Int(fk)
			if ok && doomed[target] {
				return 0, &ForeignKeyError{
					Ref:        graph.Ref{Kind: kind, ID: target},
					Referrer:   graph.Ref{Kind: in.From, ID: rid},
					ForeignKey: fk,
				}
			}
		}
	}
	for _, id := range ids {
		delete(t.rows, id)
	}
	return int64(len(ids)), nil
}

// Count returns the number of rows of kind matching conds.
func (db *DB) Count(kind graph.Kind, conds ...graph.Cond) int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	t, err := db.table(kind)
	if err != nil {
		return 0
	}
	return len(t.query(conds))
}

// Dangling lists every row whose non-polymorphic foreign key points at a row
// that does not exist.
func (db *DB) Dangling() []*ForeignKeyError {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var out []*ForeignKeyError
	for _, k := range db.schema.Kinds() {
		for _, in := range db.schema.Inbound(k) {
			target := db.tables[k]
			fk := in.Association.ForeignKey
			from := db.tables[in.From]
			for _, rid := range from.query(nil) {
				id, ok := graph.Record{Fields: from.rows[rid]}.Int(fk)
				if !ok {
					continue
				}
				if _, exists := target.rows[id]; !exists {
					out = append(out, &ForeignKeyError{
						Ref:        graph.Ref{Kind: k, ID: id},
						Referrer:   graph.Ref{Kind: in.From, ID: rid},
						ForeignKey: fk,
					})
				}
			}
		}
	}
	return out
}
