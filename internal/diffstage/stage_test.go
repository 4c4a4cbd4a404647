package diffstage_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/diffstage"
	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/tokendiff"
)

func revision(id int64, text string) record.Revision {
	return record.Revision{
		ID:        id,
		Timestamp: time.Unix(int64(id), 0).UTC(),
		Page:      record.Page{ID: 1, Title: "Foo", Namespace: 0},
		Text:      &text,
	}
}

func TestProcessPage_FirstRevisionHasNoLastID(t *testing.T) {
	t.Parallel()

	revs := []record.Revision{revision(1, "a b")}

	var docs []record.DiffDoc

	err := diffstage.ProcessPage(pagegroup.Slice(revs), diffstage.Options{}, func(d record.DiffDoc) error {
		docs = append(docs, d)

		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].Diff.LastID)
}

func TestProcessPage_ChainsLastID(t *testing.T) {
	t.Parallel()

	revs := []record.Revision{
		revision(1, "a b"),
		revision(2, "a b c"),
		revision(3, "a b"),
	}

	var docs []record.DiffDoc

	err := diffstage.ProcessPage(pagegroup.Slice(revs), diffstage.Options{}, func(d record.DiffDoc) error {
		docs = append(docs, d)

		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Nil(t, docs[0].Diff.LastID)
	require.NotNil(t, docs[1].Diff.LastID)
	assert.Equal(t, int64(1), *docs[1].Diff.LastID)
	require.NotNil(t, docs[2].Diff.LastID)
	assert.Equal(t, int64(2), *docs[2].Diff.LastID)
}

func TestProcessPage_DropText(t *testing.T) {
	t.Parallel()

	revs := []record.Revision{revision(1, "a b")}

	var docs []record.DiffDoc

	err := diffstage.ProcessPage(pagegroup.Slice(revs), diffstage.Options{DropText: true}, func(d record.DiffDoc) error {
		docs = append(docs, d)

		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, docs[0].Text)
}

func TestProcessPage_TimeoutRepairsAnchor(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	// Only the first tokenization of "slow" (the timed diff) blocks; the
	// Update resync that follows the timeout must tokenize it promptly.
	var blocked atomic.Bool

	slow := func(text string) []string {
		if text == "slow" && blocked.CompareAndSwap(false, true) {
			<-release

			return nil
		}

		return tokendiff.DefaultTokenizer(text)
	}

	revs := []record.Revision{revision(1, "a b"), revision(2, "slow"), revision(3, "a b c")}

	var marks []diffstage.ProgressMark

	var docs []record.DiffDoc

	opts := diffstage.Options{
		Tokenizer:  slow,
		Timeout:    5 * time.Millisecond,
		OnProgress: func(m diffstage.ProgressMark) { marks = append(marks, m) },
	}

	err := diffstage.ProcessPage(pagegroup.Slice(revs), opts, func(d record.DiffDoc) error {
		docs = append(docs, d)

		return nil
	})
	require.NoError(t, err)
	close(release)

	require.Len(t, docs, 3)
	assert.True(t, docs[1].Diff.TimedOut())
	assert.Equal(t, []diffstage.ProgressMark{diffstage.MarkSuccess, diffstage.MarkTimeout, diffstage.MarkSuccess}, marks)

	// The third revision's diff must be computed against the second
	// revision's *text*, not against whatever partial anchor the timed-out
	// call left behind.
	require.NotEmpty(t, docs[2].Diff.Ops)
}

func TestFilterNamespaces_DropsDisallowed(t *testing.T) {
	t.Parallel()

	r0 := revision(1, "a")
	r0.Page.Namespace = 0
	r3 := revision(2, "b")
	r3.Page.Namespace = 3

	src := pagegroup.Slice([]record.Revision{r0, r3})
	filtered := diffstage.FilterNamespaces(src, map[int]bool{0: true})

	got, err := pagegroup.Collect(filtered)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Page.Namespace)
}

func TestFilterNamespaces_NilAllowedPassesEverything(t *testing.T) {
	t.Parallel()

	src := pagegroup.Slice([]record.Revision{revision(1, "a"), revision(2, "b")})
	filtered := diffstage.FilterNamespaces(src, nil)

	got, err := pagegroup.Collect(filtered)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
