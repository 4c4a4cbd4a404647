package persistence

import (
	"time"

	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

// Token is one surviving unit of text. Identity is the pointer itself, not
// the text content: two tokens with the same string are distinct tokens if
// they were introduced by different insert/replace operations (spec §4.C7
// step 2, "Set difference is by Token identity, not by string").
type Token struct {
	VisibleSince *time.Time
	Text         string
	Revisions    []*record.Contributor
	Visible      time.Duration
}

// newTokens builds one fresh Token per string, matching the insert/replace
// "build a fresh Token per string in op.tokens" rule.
func newTokens(strs []string) []*Token {
	out := make([]*Token, len(strs))

	for i, s := range strs {
		out[i] = &Token{Text: s}
	}

	return out
}

// markVisibleAt records the first moment this token became visible. Later
// calls are no-ops: only the first sighting counts (spec §4.C7 step 4).
func (t *Token) markVisibleAt(ts time.Time) {
	if t.VisibleSince == nil {
		t.VisibleSince = &ts
	}
}

// markInvisibleAt accumulates visible time since the last markVisibleAt and
// clears the anchor. A token invisible without ever having been marked
// visible is left untouched; this happens under diff algorithms that
// deduplicate identical inserts (spec §4.C7 step 4, Open Question (c)).
func (t *Token) markInvisibleAt(ts time.Time) {
	if t.VisibleSince == nil {
		return
	}

	if d := ts.Sub(*t.VisibleSince); d > 0 {
		t.Visible += d
	}

	t.VisibleSince = nil
}

// persist appends revision to this token's author history. The token's
// "author" is revisions[0] (spec §4.C7 step 5, Open Question (b)).
func (t *Token) persist(revision *record.Contributor) {
	t.Revisions = append(t.Revisions, revision)
}

// secondsVisible reports total visible duration as of sunset, including any
// still-open visibility span.
func (t *Token) secondsVisible(sunset time.Time) int64 {
	v := t.Visible

	if t.VisibleSince != nil {
		if d := sunset.Sub(*t.VisibleSince); d > 0 {
			v += d
		}
	}

	return int64(v.Seconds())
}

// identitySetDiff returns the elements of a not present in b, by pointer
// identity. Used for the revert branch of token derivation, which computes
// added/removed sets between the reverted-to token list and last_tokens.
func identitySetDiff(a, b []*Token) []*Token {
	inB := make(map[*Token]struct{}, len(b))
	for _, t := range b {
		inB[t] = struct{}{}
	}

	var diff []*Token

	for _, t := range a {
		if _, ok := inB[t]; !ok {
			diff = append(diff, t)
		}
	}

	return diff
}
