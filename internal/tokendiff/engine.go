// Package tokendiff implements the diff processor contract of spec §4.C4:
// given consecutive revision texts, produce the token-level edit script
// between them. The default engine reuses github.com/sergi/go-diff the same
// way the teacher's pkg/plumbing package reuses it for line-level text
// diffing: tokens are interned to private-use runes and diffed with
// diffmatchpatch.DiffMain, the same "lines-to-chars" trick diffmatchpatch
// itself uses internally for line-mode diffing, generalized here to
// arbitrary tokens instead of lines.
package tokendiff

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

// ErrTimeout is returned by Process when the diff computation exceeds the
// caller-supplied timeout. The processor's anchor is left untouched; callers
// must call Update to resynchronize before the next Process call (spec §4.C4
// "Failure").
var ErrTimeout = errors.New("tokendiff: diff computation timed out")

// Engine is a stateful per-page token diff processor. It is not safe for
// concurrent use: page-scoped state never crosses workers (spec §5).
type Engine struct {
	tokenizer Tokenizer
	last      []string
}

// New returns a processor whose last known text is empty.
func New(tokenizer Tokenizer) *Engine {
	if tokenizer == nil {
		tokenizer = DefaultTokenizer
	}

	return &Engine{tokenizer: tokenizer}
}

// Update forcibly replaces the anchor tokens with tokenize(lastText) without
// emitting ops. Used to resynchronize after a timeout (spec §4.C4).
func (e *Engine) Update(lastText string) {
	e.last = e.tokenizer(lastText)
}

type diffResult struct {
	ops []record.Operation
	b   []string
	err error
}

// Process tokenizes text into b, computes the edit script ops from the
// processor's last tokens a to b, and atomically advances the anchor so the
// next call sees a = b. When timeout is positive and computation does not
// finish within it, Process returns ErrTimeout, a is still returned (so the
// caller can recompute elsewhere if useful), but the anchor is left
// unchanged -- the caller is expected to call Update.
//
// Timing covers the process call alone (tokenizing b and computing the edit
// script), not surrounding I/O, matching spec §9's "Timeout discipline"
// design note: a pathologically slow tokenizer times out just like a slow
// diff.
func (e *Engine) Process(text string, timeout time.Duration) (
	ops []record.Operation, a, b []string, elapsed time.Duration, err error,
) {
	a = e.last

	start := time.Now()

	ch := make(chan diffResult, 1)

	go func() {
		bTokens := e.tokenizer(text)
		computedOps, computeErr := diffTokens(a, bTokens)
		ch <- diffResult{ops: computedOps, b: bTokens, err: computeErr}
	}()

	if timeout <= 0 {
		res := <-ch
		elapsed = time.Since(start)

		return e.commit(res, a, elapsed)
	}

	select {
	case res := <-ch:
		elapsed = time.Since(start)

		return e.commit(res, a, elapsed)
	case <-time.After(timeout):
		elapsed = time.Since(start)

		return nil, a, nil, elapsed, ErrTimeout
	}
}

func (e *Engine) commit(res diffResult, a []string, elapsed time.Duration) (
	[]record.Operation, []string, []string, time.Duration, error,
) {
	if res.err != nil {
		return nil, a, nil, elapsed, res.err
	}

	e.last = res.b

	return res.ops, a, res.b, elapsed, nil
}

// diffTokens computes the tagged edit script from a to b.
func diffTokens(a, b []string) ([]record.Operation, error) {
	interner := newTokenInterner()
	encodedA := interner.encode(a)
	encodedB := interner.encode(b)

	if interner.overflowed() {
		return nil, fmt.Errorf("tokendiff: more than %d distinct tokens in one diff", maxDistinctTokens)
	}

	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(encodedA, encodedB, false)

	return diffsToOps(diffs, a, b), nil
}

// maxDistinctTokens bounds the number of distinct token strings a single
// diff call may intern as single runes; diffmatchpatch operates on runes, so
// this is the same limit the library's own DiffLinesToChars imposes on
// distinct lines.
const maxDistinctTokens = 1<<20 - 1

// tokenInterner maps distinct token strings to single runes so that
// diffmatchpatch.DiffMain (a character-level algorithm) can be reused for
// token-level diffing.
type tokenInterner struct {
	ids map[string]rune
	n   int
}

func newTokenInterner() *tokenInterner {
	return &tokenInterner{ids: make(map[string]rune)}
}

func (in *tokenInterner) encode(tokens []string) string {
	runes := make([]rune, len(tokens))

	for i, tok := range tokens {
		r, ok := in.ids[tok]
		if !ok {
			in.n++
			r = rune(in.n) // start at 1; rune 0 is reserved/unused.
			in.ids[tok] = r
		}

		runes[i] = r
	}

	return string(runes)
}

func (in *tokenInterner) overflowed() bool {
	return in.n > maxDistinctTokens
}

// diffsToOps converts diffmatchpatch's Equal/Delete/Insert diffs into the
// four-kind tagged operations of spec §3, merging an adjacent Delete+Insert
// pair into a single Replace the way a classic difflib-style opcode stream
// does.
func diffsToOps(diffs []diffmatchpatch.Diff, a, b []string) []record.Operation {
	ops := make([]record.Operation, 0, len(diffs))

	ai, bi := 0, 0

	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		n := utf8.RuneCountInString(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffEqual:
			ops = append(ops, record.Operation{Kind: record.OpEqual, A1: ai, A2: ai + n, B1: bi, B2: bi + n})
			ai += n
			bi += n
		case diffmatchpatch.DiffDelete:
			delLen := n

			insLen := 0
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				insLen = utf8.RuneCountInString(diffs[i+1].Text)
			}

			if insLen > 0 {
				ops = append(ops, record.Operation{
					Kind: record.OpReplace, A1: ai, A2: ai + delLen, B1: bi, B2: bi + insLen,
					Tokens: b[bi : bi+insLen],
				})
				ai += delLen
				bi += insLen
				i++
			} else {
				ops = append(ops, record.Operation{
					Kind: record.OpDelete, A1: ai, A2: ai + delLen, B1: bi, B2: bi,
					Tokens: a[ai : ai+delLen],
				})
				ai += delLen
			}
		case diffmatchpatch.DiffInsert:
			ops = append(ops, record.Operation{
				Kind: record.OpInsert, A1: ai, A2: ai, B1: bi, B2: bi + n,
				Tokens: b[bi : bi+n],
			})
			bi += n
		}
	}

	return ops
}
