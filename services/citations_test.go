package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"rpmt/internal/testutil"
	"rpmt/models"
	"rpmt/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCitationSource struct {
	mu     sync.Mutex
	counts map[string]int
	errs   map[string]error
	asked  []string
}

func (f *fakeCitationSource) Name() string { return "fake" }

func (f *fakeCitationSource) CitationCount(_ context.Context, doi string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, doi)
	if err := f.errs[doi]; err != nil {
		return 0, err
	}
	n, ok := f.counts[doi]
	if !ok {
		return 0, fmt.Errorf("crossref %s: %w", doi, providers.ErrUnknownDOI)
	}
	return n, nil
}

func TestCitationRefresher_Run(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)

	raised := insertProject(t, env.db, user, "https://doi.org/10.1000/raise") // citations 3
	kept := insertProject(t, env.db, user, "10.1000/lower")
	failing := insertProject(t, env.db, user, "10.1000/fail")
	unknown := insertProject(t, env.db, user, "10.1000/unknown")
	noDOI := insertProject(t, env.db, user, "https://example.org/report.pdf")

	src := &fakeCitationSource{
		counts: map[string]int{"10.1000/raise": 17, "10.1000/lower": 1},
		errs:   map[string]error{"10.1000/fail": fmt.Errorf("timeout")},
	}
	r := NewCitationRefresher(env.db, src, zap.NewNop())

	updated, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	citations := func(id uint) int {
		var p models.Project
		require.NoError(t, env.db.First(&p, id).Error)
		return p.Citations
	}
	assert.Equal(t, 17, citations(raised.ID))
	assert.Equal(t, 3, citations(kept.ID), "counts are never lowered")
	assert.Equal(t, 3, citations(failing.ID))
	assert.Equal(t, 3, citations(unknown.ID))
	assert.Equal(t, 3, citations(noDOI.ID))
	assert.NotContains(t, src.asked, "https://example.org/report.pdf")
	assert.Len(t, src.asked, 4)

	updated, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
