package layout

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocast/internal/core/domain"
)

func makeSources(n int) []domain.Source {
	out := make([]domain.Source, n)
	for i := range out {
		out[i] = domain.Source{
			ID:           domain.SourceID(fmt.Sprintf("src-%d", i)),
			Role:         domain.RoleGuest,
			VideoEnabled: true,
			AudioEnabled: true,
		}
	}
	out[0].Role = domain.RoleHost
	return out
}

func TestComputeLayoutDeterministic(t *testing.T) {
	sources := makeSources(3)
	for id := domain.LayoutSolo; id <= domain.LayoutPiP; id++ {
		first, err := ComputeLayout(sources, id, 1280, 720)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := ComputeLayout(sources, id, 1280, 720)
			require.NoError(t, err)
			assert.Equal(t, first, again, "layout %s not deterministic", id)
		}
	}
}

func TestEveryVisibleSourceAssignedOnce(t *testing.T) {
	for n := 1; n <= 9; n++ {
		sources := makeSources(n)
		for id := domain.LayoutSolo; id <= domain.LayoutPiP; id++ {
			assignments, err := ComputeLayout(sources, id, 1920, 1080)
			require.NoError(t, err)
			require.Len(t, assignments, n, "layout %s with %d sources", id, n)

			seen := map[domain.SourceID]bool{}
			for _, a := range assignments {
				assert.False(t, seen[a.SourceID], "duplicate assignment in %s", id)
				seen[a.SourceID] = true
			}
		}
	}
}

func TestDistinctZPerAssignment(t *testing.T) {
	sources := makeSources(6)
	for id := domain.LayoutSolo; id <= domain.LayoutPiP; id++ {
		assignments, err := ComputeLayout(sources, id, 1920, 1080)
		require.NoError(t, err)

		zs := map[int]bool{}
		for _, a := range assignments {
			assert.False(t, zs[a.Z], "duplicate z %d in layout %s", a.Z, id)
			zs[a.Z] = true
		}
	}
}

func TestBackstageExcluded(t *testing.T) {
	sources := makeSources(4)
	sources[2].Role = domain.RoleBackstage

	for id := domain.LayoutSolo; id <= domain.LayoutPiP; id++ {
		assignments, err := ComputeLayout(sources, id, 1280, 720)
		require.NoError(t, err)
		require.Len(t, assignments, 3)
		for _, a := range assignments {
			assert.NotEqual(t, sources[2].ID, a.SourceID)
		}
	}
}

func TestVideoDisabledExcluded(t *testing.T) {
	sources := makeSources(3)
	sources[1].VideoEnabled = false

	assignments, err := ComputeLayout(sources, domain.LayoutGroup, 1280, 720)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	for _, a := range assignments {
		assert.NotEqual(t, sources[1].ID, a.SourceID)
	}
}

func TestGridNonOverlapping(t *testing.T) {
	for n := 2; n <= 9; n++ {
		assignments, err := ComputeLayout(makeSources(n), domain.LayoutGroup, 1920, 1080)
		require.NoError(t, err)

		for i := 0; i < len(assignments); i++ {
			for j := i + 1; j < len(assignments); j++ {
				a, b := assignments[i], assignments[j]
				overlap := a.X < b.X+b.Width && b.X < a.X+a.Width &&
					a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
				assert.False(t, overlap, "tiles %d and %d overlap (n=%d)", i, j, n)
			}
		}
	}
}

func TestTilesStayOnCanvas(t *testing.T) {
	const w, h = 1280, 720
	for n := 1; n <= 6; n++ {
		sources := makeSources(n)
		for id := domain.LayoutSolo; id <= domain.LayoutPiP; id++ {
			assignments, err := ComputeLayout(sources, id, w, h)
			require.NoError(t, err)
			for _, a := range assignments {
				assert.GreaterOrEqual(t, a.X, 0)
				assert.GreaterOrEqual(t, a.Y, 0)
				assert.LessOrEqual(t, a.X+a.Width, w)
				assert.LessOrEqual(t, a.Y+a.Height, h)
				assert.Positive(t, a.Width)
				assert.Positive(t, a.Height)
			}
		}
	}
}

func TestScreenLayoutFeaturesScreenShare(t *testing.T) {
	sources := makeSources(3)
	sources[2].Role = domain.RoleScreenShare

	assignments, err := ComputeLayout(sources, domain.LayoutScreen, 1920, 1080)
	require.NoError(t, err)
	require.Len(t, assignments, 3)

	assert.Equal(t, sources[2].ID, assignments[0].SourceID)
	assert.Equal(t, 0, assignments[0].X)
	assert.Equal(t, domain.ShapeRect, assignments[0].Shape)
	for _, a := range assignments[1:] {
		assert.Equal(t, domain.ShapeCircle, a.Shape)
	}
}

func TestSoloFeaturesFirstSource(t *testing.T) {
	sources := makeSources(3)
	assignments, err := ComputeLayout(sources, domain.LayoutSolo, 1280, 720)
	require.NoError(t, err)

	assert.Equal(t, sources[0].ID, assignments[0].SourceID)
	assert.Equal(t, 1280, assignments[0].Width)
	assert.Equal(t, 720, assignments[0].Height)
}

func TestInvalidLayoutRejected(t *testing.T) {
	_, err := ComputeLayout(makeSources(1), domain.LayoutID(99), 1280, 720)
	assert.ErrorIs(t, err, domain.ErrInvalidLayout)
}

func TestEmptySourceSet(t *testing.T) {
	assignments, err := ComputeLayout(nil, domain.LayoutGroup, 1280, 720)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}
