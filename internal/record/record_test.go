package record_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

func TestRevision_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	text := "a b c"
	rev := record.Revision{
		ID:          2,
		ParentID:    ptrInt64(1),
		Timestamp:   time.Date(2016, 1, 2, 3, 4, 5, 0, time.UTC),
		SHA1:        "abc123",
		Contributor: &record.Contributor{ID: 7, UserText: "Alice"},
		Text:        &text,
		Bytes:       5,
		Page:        record.Page{ID: 10, Title: "Foo", Namespace: 0},
	}

	data, err := json.Marshal(rev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"2016-01-02T03:04:05Z"`)

	var decoded record.Revision

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rev.ID, decoded.ID)
	assert.True(t, rev.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, rev.Contributor, decoded.Contributor)
	assert.Equal(t, rev.TextOrEmpty(), decoded.TextOrEmpty())
}

func TestRevision_TextOrEmpty_AbsentText(t *testing.T) {
	t.Parallel()

	rev := record.Revision{}
	assert.Empty(t, rev.TextOrEmpty())
}

func TestRevision_Validate(t *testing.T) {
	t.Parallel()

	base := record.Revision{
		ID:        1,
		Timestamp: time.Now(),
		Page:      record.Page{ID: 1, Title: "Foo"},
	}
	require.NoError(t, base.Validate())

	noTitle := base
	noTitle.Page = record.Page{ID: 1}
	assert.ErrorIs(t, noTitle.Validate(), record.ErrMissingTitle)

	negID := base
	negID.ID = -1
	assert.ErrorIs(t, negID.Validate(), record.ErrNegativeID)

	noTime := base
	noTime.Timestamp = time.Time{}
	assert.ErrorIs(t, noTime.Validate(), record.ErrMissingTimestamp)
}

func TestOperation_Validate(t *testing.T) {
	t.Parallel()

	valid := record.Operation{Kind: record.OpInsert, A1: 0, A2: 0, B1: 0, B2: 2}
	require.NoError(t, valid.Validate())

	badRange := record.Operation{Kind: record.OpEqual, A1: 2, A2: 1}
	assert.ErrorIs(t, badRange.Validate(), record.ErrBadIndexRange)

	badKind := record.Operation{Kind: "bogus"}
	assert.ErrorIs(t, badKind.Validate(), record.ErrUnknownOpKind)
}

func TestDiffDoc_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	doc := record.DiffDoc{
		Revision: record.Revision{
			ID:        3,
			Timestamp: time.Date(2016, 1, 2, 3, 4, 5, 0, time.UTC),
			Page:      record.Page{ID: 10, Title: "Foo"},
		},
		Diff: &record.Diff{
			LastID: ptrInt64(2),
			Ops: []record.Operation{
				{Kind: record.OpInsert, B1: 0, B2: 1, Tokens: []string{"c"}},
			},
			Time: 0.001,
		},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded record.DiffDoc

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc.ID, decoded.ID)
	require.NotNil(t, decoded.Diff)
	assert.Equal(t, *doc.Diff.LastID, *decoded.Diff.LastID)
	assert.Equal(t, doc.Diff.Ops, decoded.Diff.Ops)
	assert.False(t, decoded.Diff.TimedOut())
}

func TestDiff_TimedOut(t *testing.T) {
	t.Parallel()

	timedOut := record.Diff{Ops: nil}
	assert.True(t, timedOut.TimedOut())

	completed := record.Diff{Ops: []record.Operation{}}
	assert.False(t, completed.TimedOut())
}

func TestContributor_Equal(t *testing.T) {
	t.Parallel()

	a := &record.Contributor{ID: 1, UserText: "Alice"}
	b := &record.Contributor{ID: 1, UserText: "Alice"}
	c := &record.Contributor{ID: 2, UserText: "Bob"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	var nilContrib *record.Contributor

	assert.True(t, nilContrib.Equal(nil))
}

func ptrInt64(v int64) *int64 { return &v }
