// Package persistence implements the token-persistence engine of spec
// §4.C7: it applies each revision's diff ops to a living token list,
// integrates revert detection, maintains a bounded sliding window of
// observed revisions, and emits one PersistenceStat per token a revision
// added (whether or not that token is still live) as the window's tail is
// evicted.
package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

// Defaults matching diffs2persistence.py's docopt defaults.
const (
	DefaultWindowSize   = 50
	DefaultRevertRadius = 15
)

// Sentinel errors. Both represent malformed input per spec §4.C7's failure
// model ("C7 has no retryable failures ... malformed input is a fatal
// stream error").
var (
	ErrMissingDiff         = errors.New("persistence: revision document missing diff field")
	ErrRevertTargetEvicted = errors.New("persistence: revert target fell out of the token cache")
)

// Options configures one page's persistence run.
type Options struct {
	// OnProgress, if set, is called once per emitted stat with '.'.
	OnProgress func(byte)
	// Sunset is the configured dump timestamp used when draining a page's
	// window at end of stream (spec §6 "--sunset").
	Sunset time.Time
	// WindowSize bounds the sliding window of observed revisions. Zero uses
	// DefaultWindowSize.
	WindowSize int
	// RevertRadius bounds how many revisions back a revert may reference.
	// Zero uses DefaultRevertRadius.
	RevertRadius int
}

// windowEntry is one revision held in the sliding window, paired with the
// tokens it introduced.
type windowEntry struct {
	doc   record.DiffDoc
	added []*Token
}

// ProcessPage runs the token-persistence algorithm of spec §4.C7 over one
// page's DiffDoc stream (already grouped, e.g. by pagegroup.Grouper),
// invoking emit once per PersistenceStat in tail-of-window order, followed
// at page boundary by the draining tail order.
func ProcessPage(docs pagegroup.Source[record.DiffDoc], opts Options, emit func(record.PersistenceStat) error) error {
	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	radius := opts.RevertRadius
	if radius <= 0 {
		radius = DefaultRevertRadius
	}

	detector := newRevertDetector(radius)
	cache := newTokenCache(maxInt(radius, windowSize))

	var window []windowEntry

	var lastTokens []*Token

	for {
		doc, ok, err := docs()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		if doc.Diff == nil {
			return fmt.Errorf("%w: revision %d", ErrMissingDiff, doc.ID)
		}

		tokens, added, removed, err := deriveTokens(detector, cache, doc, lastTokens)
		if err != nil {
			return err
		}

		cache.store(doc.ID, tokens)

		for _, t := range added {
			t.markVisibleAt(doc.Timestamp)
		}

		for _, t := range removed {
			t.markInvisibleAt(doc.Timestamp)
		}

		for _, t := range tokens {
			t.persist(doc.Contributor)
		}

		entry := windowEntry{doc: doc, added: added}

		if len(window) == windowSize {
			evicted := window[0]

			next := make([]windowEntry, 0, windowSize)
			next = append(next, window[1:]...)
			next = append(next, entry)
			window = next

			if err := emitStats(emit, opts.OnProgress, evicted.doc, evicted.added, window, nil); err != nil {
				return err
			}
		} else {
			window = append(window, entry)
		}

		lastTokens = tokens
	}

	sunset := opts.Sunset
	for len(window) > 0 {
		old := window[0]
		window = window[1:]

		if err := emitStats(emit, opts.OnProgress, old.doc, old.added, window, &sunset); err != nil {
			return err
		}
	}

	return nil
}

// deriveTokens computes (tokens, added, removed) for one revision, per spec
// §4.C7 step 1-2: either a revert, recovering the reverted-to token list
// from cache, or an ordinary application of the revision's diff ops.
func deriveTokens(
	detector *revertDetector, cache *tokenCache, doc record.DiffDoc, lastTokens []*Token,
) (tokens, added, removed []*Token, err error) {
	revertedToID, isRevert := detector.process(doc.SHA1, doc.ID)
	if !isRevert {
		return applyOps(lastTokens, doc.Diff.Ops)
	}

	reverted, ok := cache.get(revertedToID)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: revision %d", ErrRevertTargetEvicted, revertedToID)
	}

	tokens = reverted
	added = identitySetDiff(tokens, lastTokens)
	removed = identitySetDiff(lastTokens, tokens)

	return tokens, added, removed, nil
}

// applyOps applies one revision's diff ops to last, producing the new token
// list plus the tokens added and removed by this revision (spec §4.C7 step
// 2, non-revert branch).
func applyOps(last []*Token, ops []record.Operation) (tokens, added, removed []*Token, err error) {
	for _, op := range ops {
		switch op.Kind {
		case record.OpInsert:
			fresh := newTokens(op.Tokens)
			tokens = append(tokens, fresh...)
			added = append(added, fresh...)
		case record.OpReplace:
			fresh := newTokens(op.Tokens)
			tokens = append(tokens, fresh...)
			added = append(added, fresh...)

			seg, serr := slice(last, op.A1, op.A2)
			if serr != nil {
				return nil, nil, nil, serr
			}

			removed = append(removed, seg...)
		case record.OpDelete:
			seg, serr := slice(last, op.A1, op.A2)
			if serr != nil {
				return nil, nil, nil, serr
			}

			removed = append(removed, seg...)
		case record.OpEqual:
			seg, serr := slice(last, op.A1, op.A2)
			if serr != nil {
				return nil, nil, nil, serr
			}

			tokens = append(tokens, seg...)
		default:
			return nil, nil, nil, fmt.Errorf("%w: %q", record.ErrUnknownOpKind, op.Kind)
		}
	}

	return tokens, added, removed, nil
}

func slice(tokens []*Token, a1, a2 int) ([]*Token, error) {
	if a1 < 0 || a2 < a1 || a2 > len(tokens) {
		return nil, fmt.Errorf("%w: [%d:%d] over %d tokens", record.ErrBadIndexRange, a1, a2, len(tokens))
	}

	return tokens[a1:a2], nil
}

// emitStats computes and emits one PersistenceStat per token in added, for
// a revision falling out of the window (either by the window filling up, or
// by end-of-page drain).
func emitStats(
	emit func(record.PersistenceStat) error,
	onProgress func(byte),
	doc record.DiffDoc,
	added []*Token,
	window []windowEntry,
	sunset *time.Time,
) error {
	for _, stat := range generateStats(doc, added, window, sunset) {
		if onProgress != nil {
			onProgress('.')
		}

		if err := emit(stat); err != nil {
			return err
		}
	}

	return nil
}

// generateStats computes the PersistenceStat for every token in added,
// evaluated against the current window contents (spec §4.C7 "Stat
// generation for one eviction").
func generateStats(doc record.DiffDoc, added []*Token, window []windowEntry, sunset *time.Time) []record.PersistenceStat {
	processed := len(window)

	var effectiveSunset time.Time

	switch {
	case sunset != nil:
		effectiveSunset = *sunset
	case len(window) > 0:
		effectiveSunset = window[len(window)-1].doc.Timestamp
	default:
		effectiveSunset = doc.Timestamp
	}

	secondsPossible := int64(0)
	if d := effectiveSunset.Sub(doc.Timestamp); d > 0 {
		secondsPossible = int64(d.Seconds())
	}

	stats := make([]record.PersistenceStat, 0, len(added))

	for _, t := range added {
		nonSelfPersisted := 0

		for _, c := range t.Revisions {
			if !c.Equal(doc.Contributor) {
				nonSelfPersisted++
			}
		}

		nonSelfProcessed := 0

		for _, e := range window {
			if !e.doc.Contributor.Equal(doc.Contributor) {
				nonSelfProcessed++
			}
		}

		stats = append(stats, record.PersistenceStat{
			Revision:         doc,
			Token:            t.Text,
			Persisted:        len(t.Revisions) - 1,
			Processed:        processed,
			NonSelfPersisted: nonSelfPersisted,
			NonSelfProcessed: nonSelfProcessed,
			SecondsVisible:   t.secondsVisible(effectiveSunset),
			SecondsPossible:  secondsPossible,
		})
	}

	return stats
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
