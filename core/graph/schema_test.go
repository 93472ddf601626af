package graph

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{"Course", "courses"},
		{"CourseSection", "course_sections"},
		{"ContextModuleProgression", "context_module_progressions"},
		{"Quiz", "quizzes"},
		{"AssetUserAccess", "asset_user_accesses"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, TableName(tt.kind))
		})
	}
}

func TestNewSchema_errors(t *testing.T) {
	tests := []struct {
		name    string
		models  []Model
		wantErr string
	}{
		{
			name:    "missing kind",
			models:  []Model{{Deletion: Permanent{}}},
			wantErr: "has no kind",
		},
		{
			name:    "duplicate kind",
			models:  []Model{{Kind: "Tag", Deletion: Permanent{}}, {Kind: "Tag", Deletion: Permanent{}}},
			wantErr: "declared twice",
		},
		{
			name:    "duplicate table",
			models:  []Model{{Kind: "Tag", Deletion: Permanent{}}, {Kind: "Label", Table: "tags", Deletion: Permanent{}}},
			wantErr: `table "tags"`,
		},
		{
			name:    "no capability",
			models:  []Model{{Kind: "Tag"}},
			wantErr: "no deletion capability",
		},
		{
			name: "undeclared target",
			models: []Model{{
				Kind:         "Tag",
				Associations: []Association{BelongsToOne("owner", "Owner", "owner_id")},
				Deletion:     Permanent{},
			}},
			wantErr: "undeclared kind",
		},
		{
			name: "missing foreign key",
			models: []Model{{
				Kind:         "Tag",
				Associations: []Association{HasManyOf("tags", "Tag", "")},
				Deletion:     Permanent{},
			}},
			wantErr: "no foreign key",
		},
		{
			name: "duplicate association",
			models: []Model{{
				Kind: "Tag",
				Associations: []Association{
					HasManyOf("children", "Tag", "parent_id"),
					HasManyOf("children", "Tag", "parent_id"),
				},
				Deletion: Permanent{},
			}},
			wantErr: "Tag.children declared twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchema(tt.models...)
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSchema(t *testing.T) {
	s := MustSchema(
		Model{
			Kind: "Owner",
			Associations: []Association{
				HasManyOf("items", "Item", "owner_id"),
				HasManyOf("logs", "Log", "context_id").Polymorphic("context_type"),
			},
			Deletion: Workflow{},
		},
		Model{
			Kind:         "Item",
			Associations: []Association{BelongsToOne("owner", "Owner", "owner_id")},
			Deletion:     Permanent{},
		},
		Model{
			Kind:         "Log",
			Table:        "audit_log",
			Associations: []Association{BelongsToOne("context", "Owner", "context_id").Polymorphic("context_type")},
			Deletion:     Permanent{},
		},
	)

	assert.Equal(t, []Kind{"Owner", "Item", "Log"}, s.Kinds())
	assert.Equal(t, "audit_log", s.Table("Log"))
	assert.Equal(t, "items", s.Table("Item"))

	owner, ok := s.Model("Owner")
	if assert.True(t, ok) {
		assert.Len(t, owner.Children(), 2)
		assert.Empty(t, owner.Parents())
		a, ok := owner.Association("logs")
		assert.True(t, ok)
		assert.Equal(t, "context_type", a.TypeField)
	}

	inbound := s.Inbound("Owner")
	if assert.Len(t, inbound, 1, "polymorphic edges are not foreign keys") {
		assert.Equal(t, Kind("Item"), inbound[0].From)
		assert.Equal(t, "owner_id", inbound[0].Association.ForeignKey)
	}
}

type recorder struct {
	calls []string
	fail  string
}

func (r *recorder) call(name string) error {
	r.calls = append(r.calls, name)
	if r.fail == name {
		return errors.New(name + " failed")
	}
	return nil
}

type softOnly struct{ *recorder }

func (softOnly) String() string { return "soft" }
func (d softOnly) SoftDelete(context.Context, Store, Record) error {
	return d.call("soft")
}

type softHard struct{ *recorder }

func (softHard) String() string { return "soft+hard" }
func (d softHard) SoftDelete(context.Context, Store, Record) error {
	return d.call("soft")
}
func (d softHard) HardDelete(context.Context, Store, Record) error {
	return d.call("hard")
}

type rawAndHard struct{ *recorder }

func (rawAndHard) String() string { return "raw+hard" }
func (d rawAndHard) RawDelete(context.Context, Store, Record) error {
	return d.call("raw")
}
func (d rawAndHard) HardDelete(context.Context, Store, Record) error {
	return d.call("hard")
}

type nothing struct{}

func (nothing) String() string { return "nothing" }

func TestDestroy(t *testing.T) {
	tests := []struct {
		name      string
		deletion  func(*recorder) Deletion
		fail      string
		wantCalls []string
		wantErr   bool
	}{
		{name: "soft only", deletion: func(r *recorder) Deletion { return softOnly{r} }, wantCalls: []string{"soft"}},
		{name: "soft then hard", deletion: func(r *recorder) Deletion { return softHard{r} }, wantCalls: []string{"soft", "hard"}},
		{name: "failed soft stops", deletion: func(r *recorder) Deletion { return softHard{r} }, fail: "soft", wantCalls: []string{"soft"}, wantErr: true},
		{name: "raw wins", deletion: func(r *recorder) Deletion { return rawAndHard{r} }, wantCalls: []string{"raw"}},
		{name: "no capability", deletion: func(*recorder) Deletion { return nothing{} }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{fail: tt.fail}
			m := &Model{Kind: "Tag", Deletion: tt.deletion(r)}
			err := Destroy(context.Background(), nil, m, Record{Kind: "Tag", ID: 1})
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantCalls, r.calls)
		})
	}
	err := Destroy(context.Background(), nil, &Model{Kind: "Tag", Deletion: nothing{}}, Record{Kind: "Tag", ID: 1})
	assert.Equal(t, ErrNoDeletion, errors.Cause(err))
}
