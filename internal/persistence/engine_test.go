package persistence_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/persistence"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

func contributor(id int64, name string) *record.Contributor {
	return &record.Contributor{ID: id, UserText: name}
}

func ts(seconds int64) time.Time { return time.Unix(seconds, 0).UTC() }

func diffDoc(id int64, sha1 string, at time.Time, c *record.Contributor, ops []record.Operation) record.DiffDoc {
	return record.DiffDoc{
		Diff: &record.Diff{Ops: ops},
		Revision: record.Revision{
			ID:          id,
			SHA1:        sha1,
			Timestamp:   at,
			Contributor: c,
			Page:        record.Page{ID: 1, Title: "Foo"},
		},
	}
}

func TestProcessPage_EvictsAtWindowBoundary(t *testing.T) {
	t.Parallel()

	alice := contributor(1, "alice")
	bob := contributor(2, "bob")

	docs := []record.DiffDoc{
		diffDoc(1, "S1", ts(1000), alice, []record.Operation{
			{Kind: record.OpInsert, B1: 0, B2: 2, Tokens: []string{"a", "b"}},
		}),
		diffDoc(2, "S2", ts(2000), bob, []record.Operation{
			{Kind: record.OpEqual, A1: 0, A2: 2, B1: 0, B2: 2},
			{Kind: record.OpInsert, A1: 2, A2: 2, B1: 2, B2: 3, Tokens: []string{"c"}},
		}),
		diffDoc(3, "S3", ts(3000), alice, []record.Operation{
			{Kind: record.OpEqual, A1: 0, A2: 3, B1: 0, B2: 3},
			{Kind: record.OpInsert, A1: 3, A2: 3, B1: 3, B2: 4, Tokens: []string{"d"}},
		}),
	}

	var stats []record.PersistenceStat

	opts := persistence.Options{WindowSize: 2, Sunset: ts(10000)}

	err := persistence.ProcessPage(pagegroup.Slice(docs), opts, func(s record.PersistenceStat) error {
		stats = append(stats, s)

		return nil
	})
	require.NoError(t, err)

	// Revision 1 (tokens a, b) is evicted by revision 3's admission. The
	// remaining two revisions drain at page end.
	require.Len(t, stats, 4)

	byToken := make(map[string]record.PersistenceStat, len(stats))
	for _, s := range stats {
		byToken[s.Token] = s
	}

	a, ok := byToken["a"]
	require.True(t, ok)
	assert.Equal(t, int64(1), a.Revision.ID)
	assert.Equal(t, 2, a.Processed) // window held [rev2, rev3] at eviction time

	d, ok := byToken["d"]
	require.True(t, ok)
	assert.Equal(t, int64(3), d.Revision.ID)
	assert.Equal(t, 0, d.Processed) // drained last, window empty by then
}

func TestProcessPage_RevertRecoversReplacedTokens(t *testing.T) {
	t.Parallel()

	alice := contributor(1, "alice")
	bob := contributor(2, "bob")

	docs := []record.DiffDoc{
		diffDoc(1, "S1", ts(1000), alice, []record.Operation{
			{Kind: record.OpInsert, B1: 0, B2: 2, Tokens: []string{"a", "b"}},
		}),
		diffDoc(2, "S2", ts(2000), bob, []record.Operation{
			{Kind: record.OpEqual, A1: 0, A2: 2, B1: 0, B2: 2},
			{Kind: record.OpInsert, A1: 2, A2: 2, B1: 2, B2: 3, Tokens: []string{"c"}},
		}),
		// Reverts back to revision 1's exact content.
		diffDoc(3, "S1", ts(3000), alice, nil),
	}

	var stats []record.PersistenceStat

	opts := persistence.Options{WindowSize: 10, Sunset: ts(5000)}

	err := persistence.ProcessPage(pagegroup.Slice(docs), opts, func(s record.PersistenceStat) error {
		stats = append(stats, s)

		return nil
	})
	require.NoError(t, err)

	// Revision 3 contributes no newly added tokens -- it only restores a and
	// b to the live set and drops c. Only a, b, c are ever reported.
	byToken := make(map[string]record.PersistenceStat, len(stats))
	for _, s := range stats {
		byToken[s.Token] = s
	}

	require.Len(t, stats, 3)

	a := byToken["a"]
	// a survived through revision 2 (equal) and revision 3 (revert): two
	// touches beyond its introducing revision.
	assert.Equal(t, 2, a.Persisted)
	assert.Equal(t, int64(4000), a.SecondsVisible) // 1000 -> sunset 5000, never hidden

	c := byToken["c"]
	// c was introduced at revision 2 and immediately reverted away at
	// revision 3: zero persistence credit beyond its own introduction.
	assert.Equal(t, 0, c.Persisted)
	assert.Equal(t, int64(1000), c.SecondsVisible) // visible from 2000 to 3000 only
}

func TestProcessPage_MissingDiffIsFatal(t *testing.T) {
	t.Parallel()

	docs := []record.DiffDoc{
		{Revision: record.Revision{ID: 1, Timestamp: ts(1), Page: record.Page{ID: 1, Title: "Foo"}}},
	}

	err := persistence.ProcessPage(pagegroup.Slice(docs), persistence.Options{}, func(record.PersistenceStat) error {
		return nil
	})
	assert.ErrorIs(t, err, persistence.ErrMissingDiff)
}

func TestProcessPage_EmptyPageEmitsNothing(t *testing.T) {
	t.Parallel()

	called := false

	err := persistence.ProcessPage(pagegroup.Slice([]record.DiffDoc{}), persistence.Options{}, func(record.PersistenceStat) error {
		called = true

		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
