package progress_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foozao/lao-cinema-sub007/internal/apperr"
	"github.com/foozao/lao-cinema-sub007/internal/catalog"
	"github.com/foozao/lao-cinema-sub007/internal/progress"
	"github.com/foozao/lao-cinema-sub007/internal/rental"
	"github.com/foozao/lao-cinema-sub007/internal/store/memory"
)

func TestSaveAndGet(t *testing.T) {
	st := memory.New()
	st.PutMovie(catalog.Movie{ID: "m1"})
	svc := progress.NewService(st, st)
	ctx := context.Background()
	owner := rental.AnonymousOwner("dev-1")

	p, err := svc.Get(ctx, owner, "m1")
	require.NoError(t, err)
	require.Zero(t, p.PositionSeconds)

	_, err = svc.Save(ctx, owner, "m1", 120, 5400, false)
	require.NoError(t, err)

	p, err = svc.Get(ctx, owner, "m1")
	require.NoError(t, err)
	require.Equal(t, 120, p.PositionSeconds)
	require.Equal(t, 5400, p.DurationSeconds)

	other, err := svc.Get(ctx, rental.UserOwner("dev-1"), "m1")
	require.NoError(t, err)
	require.Zero(t, other.PositionSeconds)
}

func TestSave_Validation(t *testing.T) {
	st := memory.New()
	st.PutMovie(catalog.Movie{ID: "m1"})
	svc := progress.NewService(st, st)
	ctx := context.Background()
	owner := rental.UserOwner("u1")

	_, err := svc.Save(ctx, rental.Owner{}, "m1", 1, 10, false)
	require.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))

	_, err = svc.Save(ctx, owner, "m1", -1, 10, false)
	require.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = svc.Save(ctx, owner, "m1", 11, 10, false)
	require.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = svc.Save(ctx, owner, "missing", 1, 10, false)
	require.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = svc.Save(ctx, owner, "m1", 30, 0, false)
	require.NoError(t, err, "unknown duration accepts any non-negative position")
}
