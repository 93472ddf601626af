package sqlxstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/HotChalk/canvas-lms-sub000/core"
	"github.com/HotChalk/canvas-lms-sub000/core/graph"
)

// Store is the Postgres graph.Store. Reads go through sqlx, writes are
// issued as independent raw statements.
type Store struct {
	db     *sqlx.DB
	schema *graph.Schema
}

var (
	_ graph.Store       = (*Store)(nil)
	_ graph.TreeDeleter = (*Store)(nil)
)

func New(db *sql.DB, schema *graph.Schema) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres"), schema: schema}
}

// trapNoRowsErr maps psql "no rows" err to graph.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return graph.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func quote(ident string) string { return strmangle.IdentQuote('"', '"', ident) }

var byID = core.DBOrdering{Field: quote("id"), Ascending: true}

// where renders conds as a conjunction with $n placeholders numbered from
// start. An empty IN list renders as FALSE.
func where(conds []graph.Cond, start int) (string, []interface{}) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conds))
	args := make([]interface{}, 0, len(conds))
	n := start
	for _, c := range conds {
		col := quote(c.Field)
		switch c.Op {
		case graph.OpEq:
			parts = append(parts, fmt.Sprintf("%s = $%d", col, n))
			args = append(args, graph.Normalize(c.Value))
			n++
		case graph.OpNotEq:
			parts = append(parts, fmt.Sprintf("%s <> $%d", col, n))
			args = append(args, graph.Normalize(c.Value))
			n++
		case graph.OpIn:
			if len(c.Values) == 0 {
				parts = append(parts, "FALSE")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s = ANY($%d)", col, n))
			args = append(args, pq.Array(normalizeAll(c.Values)))
			n++
		case graph.OpNotIn:
			if len(c.Values) == 0 {
				parts = append(parts, col+" IS NOT NULL")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s <> ALL($%d)", col, n))
			args = append(args, pq.Array(normalizeAll(c.Values)))
			n++
		case graph.OpIsNull:
			parts = append(parts, col+" IS NULL")
		case graph.OpNotNull:
			parts = append(parts, col+" IS NOT NULL")
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func normalizeAll(values []interface{}) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, graph.Normalize(v))
	}
	return out
}

func sortedColumns(fields graph.Fields) []string {
	cols := make([]string, 0, len(fields))
	for k := range fields {
		if k != "id" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}

func buildSelect(table string, conds []graph.Cond) (string, []interface{}) {
	w, args := where(conds, 1)
	return fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s", quote(table), w, byID), args
}

func buildInsert(table string, rec graph.Record) (string, []interface{}) {
	cols := sortedColumns(rec.Fields)
	args := make([]interface{}, 0, len(cols)+1)
	for _, c := range cols {
		args = append(args, graph.Normalize(rec.Fields[c]))
	}
	if rec.ID != 0 {
		cols = append([]string{"id"}, cols...)
		args = append([]interface{}{rec.ID}, args...)
	}
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", quote(table), quote("id")), nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		quote(table),
		strings.Join(strmangle.IdentQuoteSlice('"', '"', cols), ", "),
		strmangle.Placeholders(true, len(cols), 1, 1),
		quote("id"),
	), args
}

func buildUpdate(table string, set graph.Fields, conds []graph.Cond) (string, []interface{}) {
	cols := sortedColumns(set)
	args := make([]interface{}, 0, len(cols)+len(conds))
	for _, c := range cols {
		args = append(args, graph.Normalize(set[c]))
	}
	w, wargs := where(conds, len(cols)+1)
	return fmt.Sprintf("UPDATE %s SET %s%s",
		quote(table),
		strmangle.SetParamNames(`"`, `"`, 1, cols),
		w,
	), append(args, wargs...)
}

func buildDelete(table string, conds []graph.Cond) (string, []interface{}) {
	w, args := where(conds, 1)
	return fmt.Sprintf("DELETE FROM %s%s", quote(table), w), args
}

// buildDeleteTree removes a row and its descendants in one statement. UNION
// discards rows already collected, so cyclic parent data terminates.
func buildDeleteTree(table, parentField string) string {
	t, id, parent := quote(table), quote("id"), quote(parentField)
	return fmt.Sprintf(`WITH RECURSIVE tree AS (
	SELECT %[2]s FROM %[1]s WHERE %[2]s = $1
	UNION
	SELECT child.%[2]s FROM %[1]s child JOIN tree ON child.%[3]s = tree.%[2]s
)
DELETE FROM %[1]s WHERE %[2]s IN (SELECT %[2]s FROM tree)`, t, id, parent)
}

func (s *Store) table(kind graph.Kind) (string, error) {
	if _, ok := s.schema.Model(kind); !ok {
		return "", errors.Errorf("unknown kind %q", kind)
	}
	return s.schema.Table(kind), nil
}

func toRecord(kind graph.Kind, row map[string]interface{}) (graph.Record, error) {
	rec := graph.Record{Kind: kind, Fields: make(graph.Fields, len(row))}
	for k, v := range row {
		if k == "id" {
			id, ok := graph.Record{Fields: graph.Fields{"v": v}}.Int("v")
			if !ok {
				return graph.Record{}, errors.Errorf("%s row has no usable id: %v", kind, v)
			}
			rec.ID = id
			continue
		}
		rec.Fields[k] = graph.Normalize(v)
	}
	return rec, nil
}

func (s *Store) Find(ctx context.Context, kind graph.Kind, id int64) (graph.Record, error) {
	table, err := s.table(kind)
	if err != nil {
		return graph.Record{}, err
	}
	q, args := buildSelect(table, []graph.Cond{graph.Eq("id", id)})
	row := make(map[string]interface{})
	if err := s.db.QueryRowxContext(ctx, q, args...).MapScan(row); err != nil {
		return graph.Record{}, trapNoRowsErr(err, "finding "+graph.Ref{Kind: kind, ID: id}.String())
	}
	return toRecord(kind, row)
}

func (s *Store) Select(ctx context.Context, kind graph.Kind, conds ...graph.Cond) ([]graph.Record, error) {
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	q, args := buildSelect(table, conds)
	rows, err := s.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "selecting %s", table)
	}
	defer func() { _ = rows.Close() }()

	var recs []graph.Record
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", table)
		}
		rec, err := toRecord(kind, row)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "selecting %s", table)
	}
	return recs, nil
}

func (s *Store) Insert(ctx context.Context, rec graph.Record) (graph.Record, error) {
	table, err := s.table(rec.Kind)
	if err != nil {
		return graph.Record{}, err
	}
	q, args := buildInsert(table, rec)
	var id int64
	if err := queries.Raw(q, args...).QueryRowContext(ctx, s.db).Scan(&id); err != nil {
		return graph.Record{}, errors.Wrapf(err, "inserting into %s", table)
	}
	out := rec.Clone()
	out.ID = id
	return out, nil
}

func (s *Store) Update(ctx context.Context, kind graph.Kind, set graph.Fields, conds ...graph.Cond) (int64, error) {
	if len(conds) == 0 {
		return 0, graph.ErrUnfiltered
	}
	if len(set) == 0 {
		return 0, nil
	}
	table, err := s.table(kind)
	if err != nil {
		return 0, err
	}
	q, args := buildUpdate(table, set, conds)
	return s.exec(ctx, q, args, "updating "+table)
}

func (s *Store) Delete(ctx context.Context, kind graph.Kind, conds ...graph.Cond) (int64, error) {
	if len(conds) == 0 {
		return 0, graph.ErrUnfiltered
	}
	table, err := s.table(kind)
	if err != nil {
		return 0, err
	}
	q, args := buildDelete(table, conds)
	return s.exec(ctx, q, args, "deleting from "+table)
}

func (s *Store) DeleteTree(ctx context.Context, kind graph.Kind, parentField string, rootID int64) (int64, error) {
	table, err := s.table(kind)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, buildDeleteTree(table, parentField), []interface{}{rootID}, "deleting tree from "+table)
}

func (s *Store) exec(ctx context.Context, q string, args []interface{}, msg string) (int64, error) {
	res, err := queries.Raw(q, args...).ExecContext(ctx, s.db)
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, msg)
	}
	return n, nil
}
