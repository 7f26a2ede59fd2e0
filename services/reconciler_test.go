package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"rpmt/internal/testutil"
	"rpmt/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func TestReconcile_CreatesAuthorsAndLinks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)
	p := insertProject(t, env.db, user, "10.1000/a")

	require.NoError(t, env.reconciler.Reconcile(ctx, p.ID, ParseNames("Jane Doe, John Roe"), nil))

	assert.Equal(t, []string{"Jane Doe", "John Roe"}, authorNames(t, env.db))
	assert.EqualValues(t, 2, countRows(t, env.db, &models.AuthorProject{}))

	authors, editors, err := LinkedNames(env.db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, authors)
	assert.Empty(t, editors)
}

func TestReconcile_ShrinkThenSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)
	p := insertProject(t, env.db, user, "10.1000/a")

	require.NoError(t, env.reconciler.Reconcile(ctx, p.ID, []string{"Jane Doe", "John Roe"}, nil))
	var jane models.Author
	require.NoError(t, env.db.Where("name = ?", "Jane Doe").First(&jane).Error)

	require.NoError(t, env.reconciler.Reconcile(ctx, p.ID, []string{"Jane Doe"}, nil))

	authors, _, err := LinkedNames(env.db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe"}, authors)
	// John Roe bleibt bis zum Sweep bestehen
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, authorNames(t, env.db))

	res, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Authors: 1}, res)
	assert.Equal(t, []string{"Jane Doe"}, authorNames(t, env.db))

	var after models.Author
	require.NoError(t, env.db.Where("name = ?", "Jane Doe").First(&after).Error)
	assert.Equal(t, jane.ID, after.ID, "existing author must be reused, not recreated")
}

func TestReconcile_SetSemantics(t *testing.T) {
	tests := []struct {
		name    string
		authors []string
		editors []string
		want    []string
		wantEd  []string
	}{
		{name: "distinct", authors: []string{"A", "B"}, editors: []string{"E"}, want: []string{"A", "B"}, wantEd: []string{"E"}},
		{name: "duplicates collapse", authors: []string{"A", "A", "B", "A"}, want: []string{"A", "B"}},
		{name: "empty entries dropped", authors: []string{"", "A", "  "}, editors: []string{"E", "E"}, want: []string{"A"}, wantEd: []string{"E"}},
		{name: "nothing", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)
			p := insertProject(t, env.db, user, "10.1000/a")

			for i := 0; i < 2; i++ {
				require.NoError(t, env.reconciler.Reconcile(ctx, p.ID, tt.authors, tt.editors))
				authors, editors, err := LinkedNames(env.db, p.ID)
				require.NoError(t, err)
				if diff := cmp.Diff(sorted(tt.want), sorted(authors)); diff != "" {
					t.Errorf("run %d authors mismatch (-want +got):\n%s", i+1, diff)
				}
				if diff := cmp.Diff(sorted(tt.wantEd), sorted(editors)); diff != "" {
					t.Errorf("run %d editors mismatch (-want +got):\n%s", i+1, diff)
				}
			}
			assert.EqualValues(t, len(tt.want), countRows(t, env.db, &models.AuthorProject{}))
			assert.EqualValues(t, len(tt.wantEd), countRows(t, env.db, &models.EditorProject{}))
		})
	}
}

func TestReconcile_SharedAuthorAcrossProjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)
	p1 := insertProject(t, env.db, user, "10.1000/a")
	p2 := insertProject(t, env.db, user, "10.1000/b")

	require.NoError(t, env.reconciler.Reconcile(ctx, p1.ID, []string{"Jane Doe"}, nil))
	require.NoError(t, env.reconciler.Reconcile(ctx, p2.ID, []string{"Jane Doe", "Max Mustermann"}, nil))

	assert.EqualValues(t, 2, countRows(t, env.db, &models.Author{}))
	assert.EqualValues(t, 3, countRows(t, env.db, &models.AuthorProject{}))

	require.NoError(t, env.reconciler.Reconcile(ctx, p2.ID, []string{"Max Mustermann"}, nil))
	res, err := env.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Authors, "Jane Doe is still linked to the first project")
}

func TestReconcile_RollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)
	p := insertProject(t, env.db, user, "10.1000/a")
	require.NoError(t, env.reconciler.Reconcile(ctx, p.ID, []string{"Jane Doe"}, []string{"Ed Itor"}))

	fail := false
	boom := errors.New("boom")
	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test:fail_links", func(tx *gorm.DB) {
		if fail && tx.Statement.Table == "editor_projects" {
			_ = tx.AddError(boom)
		}
	}))
	fail = true

	err := env.reconciler.Reconcile(ctx, p.ID, []string{"New Author", "Other Author"}, []string{"New Editor"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	authors, editors, err := LinkedNames(env.db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe"}, authors)
	assert.Equal(t, []string{"Ed Itor"}, editors)
	assert.Equal(t, []string{"Jane Doe"}, authorNames(t, env.db), "authors created in the failed pass must be rolled back")
}

func TestReconcile_UnknownProject(t *testing.T) {
	env := newTestEnv(t)
	err := env.reconciler.Reconcile(context.Background(), 999, []string{"Jane Doe"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, countRows(t, env.db, &models.Author{}))
}
