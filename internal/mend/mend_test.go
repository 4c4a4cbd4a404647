package mend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/diffstage"
	"github.com/Sumatoshi-tech/mwpersist/internal/mend"
	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

func ptrInt64(v int64) *int64 { return &v }

func doc(id int64, text string, lastID *int64, ops []record.Operation) record.DiffDoc {
	return record.DiffDoc{
		Diff: &record.Diff{LastID: lastID, Ops: ops},
		Revision: record.Revision{
			ID:        id,
			Timestamp: time.Unix(id, 0).UTC(),
			Page:      record.Page{ID: 1, Title: "Foo", Namespace: 0},
			Text:      &text,
		},
	}
}

func TestProcessPage_PassesThroughUnbrokenChain(t *testing.T) {
	t.Parallel()

	docs := []record.DiffDoc{
		doc(1, "a b", nil, nil),
		doc(2, "a b c", ptrInt64(1), []record.Operation{
			{Kind: record.OpInsert, A1: 2, A2: 2, B1: 2, B2: 3, Tokens: []string{"c"}},
		}),
	}

	var out []record.DiffDoc

	var marks []diffstage.ProgressMark

	err := mend.ProcessPage(pagegroup.Slice(docs), mend.Options{
		OnProgress: func(m diffstage.ProgressMark) { marks = append(marks, m) },
	}, func(d record.DiffDoc) error {
		out = append(out, d)

		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, docs[0], out[0])
	assert.Equal(t, docs[1], out[1])
	assert.Equal(t, []diffstage.ProgressMark{mend.MarkPassThrough, mend.MarkPassThrough}, marks)
}

func TestProcessPage_MendsBrokenSeam(t *testing.T) {
	t.Parallel()

	// Revision 1 is the page's known-good anchor. Revision 2 claims to
	// chain from some other worker's id 99, which never appeared -- the
	// seam this stage must repair. Revision 3 legitimately chains from
	// revision 2 (same broken run, produced by the same worker).
	docs := []record.DiffDoc{
		doc(1, "a b", nil, nil),
		doc(2, "a b c", ptrInt64(99), nil),
		doc(3, "a b c d", ptrInt64(2), nil),
	}

	var out []record.DiffDoc

	var marks []diffstage.ProgressMark

	err := mend.ProcessPage(pagegroup.Slice(docs), mend.Options{
		OnProgress: func(m diffstage.ProgressMark) { marks = append(marks, m) },
	}, func(d record.DiffDoc) error {
		out = append(out, d)

		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, []diffstage.ProgressMark{mend.MarkPassThrough, mend.MarkMended, mend.MarkMended}, marks)

	// The first doc passes through untouched.
	assert.Equal(t, docs[0], out[0])

	// The re-diffed docs chain back to revision 1, not to the bogus id 99.
	require.NotNil(t, out[1].Diff.LastID)
	assert.Equal(t, int64(1), *out[1].Diff.LastID)
	require.NotEmpty(t, out[1].Diff.Ops)

	require.NotNil(t, out[2].Diff.LastID)
	assert.Equal(t, int64(2), *out[2].Diff.LastID)
	require.NotEmpty(t, out[2].Diff.Ops)
}

func TestProcessPage_MissingTextIsFatal(t *testing.T) {
	t.Parallel()

	docs := []record.DiffDoc{
		{Diff: &record.Diff{}, Revision: record.Revision{
			ID: 1, Timestamp: time.Unix(1, 0).UTC(), Page: record.Page{ID: 1, Title: "Foo"},
		}},
	}

	err := mend.ProcessPage(pagegroup.Slice(docs), mend.Options{}, func(record.DiffDoc) error {
		return nil
	})
	assert.ErrorIs(t, err, mend.ErrMissingText)
}

func TestProcessPage_MissingDiffIsFatal(t *testing.T) {
	t.Parallel()

	text := "a b"
	docs := []record.DiffDoc{
		{Revision: record.Revision{
			ID: 1, Timestamp: time.Unix(1, 0).UTC(), Page: record.Page{ID: 1, Title: "Foo"}, Text: &text,
		}},
	}

	err := mend.ProcessPage(pagegroup.Slice(docs), mend.Options{}, func(record.DiffDoc) error {
		return nil
	})
	assert.ErrorIs(t, err, mend.ErrMissingDiff)
}

func TestProcessPage_EmptyInputProducesNoOutput(t *testing.T) {
	t.Parallel()

	called := false

	err := mend.ProcessPage(pagegroup.Slice([]record.DiffDoc{}), mend.Options{}, func(record.DiffDoc) error {
		called = true

		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
