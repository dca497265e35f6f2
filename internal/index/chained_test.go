package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/langcore/pkg/types"
)

func entry(uri types.URI, key string) Entry {
	return Entry{SourceURI: uri, Category: CategoryDeclaration, Key: key, Name: key, Kind: "function"}
}

func TestChainedStorage_PrimaryShadowsSecondaryPerFile(t *testing.T) {
	ctx := context.Background()
	f1 := types.FileURI("/src/f1.go")
	f2 := types.FileURI("/src/f2.go")
	t0 := time.Unix(100, 0)
	t1 := time.Unix(200, 0)
	t2 := time.Unix(150, 0)

	primary := NewMemoryStorage()
	require.NoError(t, primary.ReplaceFile(ctx, f1, []Entry{entry(f1, "NewF1")}, t1))

	secondary := NewMemoryStorage()
	require.NoError(t, secondary.ReplaceFile(ctx, f1, []Entry{entry(f1, "OldF1"), entry(f1, "Gone")}, t0))
	require.NoError(t, secondary.ReplaceFile(ctx, f2, []Entry{entry(f2, "F2")}, t2))

	chain := NewChainedStorage(primary, secondary)

	got, err := chain.Search(ctx, All())
	require.NoError(t, err)
	assert.Equal(t, []Entry{entry(f1, "NewF1"), entry(f2, "F2")}, got)

	stamps, err := chain.FileTimestamps(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]time.Time{
		f1.Normalized(): t1,
		f2.Normalized(): t2,
	}, stamps)
}

func TestChainedStorage_ShadowingIgnoresQueryMatch(t *testing.T) {
	ctx := context.Background()
	f1 := types.FileURI("/f1.go")

	primary := NewMemoryStorage()
	require.NoError(t, primary.ReplaceFile(ctx, f1, nil, time.Unix(2, 0)))

	secondary := NewMemoryStorage()
	require.NoError(t, secondary.ReplaceFile(ctx, f1, []Entry{entry(f1, "Deleted")}, time.Unix(1, 0)))

	got, err := NewChainedStorage(primary, secondary).Search(ctx, Query{Key: "Deleted"})
	require.NoError(t, err)
	assert.Empty(t, got, "a file with no primary entries still shadows the secondary")
}

func TestNewChain_ComposesRecursively(t *testing.T) {
	ctx := context.Background()
	f := types.FileURI("/f.go")
	g := types.FileURI("/g.go")
	h := types.FileURI("/h.go")

	top := NewMemoryStorage()
	mid := NewMemoryStorage()
	bottom := NewMemoryStorage()
	require.NoError(t, top.ReplaceFile(ctx, f, []Entry{entry(f, "Top")}, time.Unix(3, 0)))
	require.NoError(t, mid.ReplaceFile(ctx, f, []Entry{entry(f, "Mid")}, time.Unix(2, 0)))
	require.NoError(t, mid.ReplaceFile(ctx, g, []Entry{entry(g, "Mid")}, time.Unix(2, 0)))
	require.NoError(t, bottom.ReplaceFile(ctx, g, []Entry{entry(g, "Bottom")}, time.Unix(1, 0)))
	require.NoError(t, bottom.ReplaceFile(ctx, h, []Entry{entry(h, "Bottom")}, time.Unix(1, 0)))

	chain := NewChain(top, mid, bottom)

	got, err := chain.Search(ctx, All())
	require.NoError(t, err)
	assert.Equal(t, []Entry{entry(f, "Top"), entry(g, "Mid"), entry(h, "Bottom")}, got)

	stamps, err := chain.FileTimestamps(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(3, 0), stamps[f.Normalized()])
	assert.Equal(t, time.Unix(2, 0), stamps[g.Normalized()])
	assert.Equal(t, time.Unix(1, 0), stamps[h.Normalized()])

	assert.Same(t, top, NewChain(top))
}

type failingStorage struct{ err error }

func (f failingStorage) Search(context.Context, Query) ([]Entry, error) { return nil, f.err }

func (f failingStorage) FileTimestamps(context.Context, *types.URI) (map[string]time.Time, error) {
	return nil, f.err
}

func TestChainedStorage_PropagatesTierErrors(t *testing.T) {
	want := errors.New("disk gone")
	chain := NewChainedStorage(NewMemoryStorage(), failingStorage{err: want})

	_, err := chain.Search(context.Background(), All())
	assert.ErrorIs(t, err, want)

	_, err = chain.FileTimestamps(context.Background(), nil)
	assert.ErrorIs(t, err, want)
}
