package pagegroup_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
)

type item struct {
	Page string
	Rev  int
}

func TestGrouper_SplitsContiguousRuns(t *testing.T) {
	t.Parallel()

	items := []item{
		{"Foo", 1}, {"Foo", 2}, {"Foo", 3},
		{"Bar", 1}, {"Bar", 2},
	}

	g := pagegroup.New(pagegroup.Slice(items), func(it item) string { return it.Page })

	var groups [][]item

	for {
		pageKey, src, ok, err := g.NextGroup()
		require.NoError(t, err)

		if !ok {
			break
		}

		group, err := pagegroup.Collect(src)
		require.NoError(t, err)

		for _, it := range group {
			assert.Equal(t, pageKey, it.Page)
		}

		groups = append(groups, group)
	}

	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 3)
	assert.Len(t, groups[1], 2)
}

func TestGrouper_EmptySource(t *testing.T) {
	t.Parallel()

	g := pagegroup.New(pagegroup.Slice([]item{}), func(it item) string { return it.Page })

	_, _, ok, err := g.NextGroup()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrouper_PropagatesUpstreamError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	src := func() (item, bool, error) {
		calls++
		if calls == 1 {
			return item{"Foo", 1}, true, nil
		}

		return item{}, false, boom
	}

	g := pagegroup.New(src, func(it item) string { return it.Page })

	_, itemsSrc, ok, err := g.NextGroup()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = pagegroup.Collect(itemsSrc)
	assert.ErrorIs(t, err, boom)
}

func TestGrouper_SingleGroup(t *testing.T) {
	t.Parallel()

	items := []item{{"Only", 1}, {"Only", 2}}
	g := pagegroup.New(pagegroup.Slice(items), func(it item) string { return it.Page })

	_, src, ok, err := g.NextGroup()
	require.NoError(t, err)
	require.True(t, ok)

	got, err := pagegroup.Collect(src)
	require.NoError(t, err)
	assert.Equal(t, items, got)

	_, _, ok, err = g.NextGroup()
	require.NoError(t, err)
	assert.False(t, ok)
}
