// Package diffstage applies the token diff processor (internal/tokendiff)
// over each page's revision stream, producing DiffDocs (spec §4.C5).
package diffstage

import (
	"errors"
	"time"

	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/tokendiff"
)

// ProgressMark is the single-character per-revision progress code from
// spec §7: '.' success, 'T' timeout.
type ProgressMark byte

// The two progress marks the diff stage ever emits; the mend stage adds a
// third ('M') of its own.
const (
	MarkSuccess ProgressMark = '.'
	MarkTimeout ProgressMark = 'T'
)

// Options configures one page's diff run.
type Options struct {
	// Tokenizer overrides the default whitespace/word tokenizer. Nil uses
	// tokendiff.DefaultTokenizer.
	Tokenizer tokendiff.Tokenizer
	// OnProgress, if set, is called once per processed revision with its
	// progress mark (spec §7's verbose-mode stderr feedback).
	OnProgress func(ProgressMark)
	// AnchorText, if non-nil, seeds the diff processor's anchor via Update
	// before the first revision is processed, instead of starting from an
	// empty text. Used by internal/mend to resume diffing mid-page against
	// the last known-good text (spec §4.C6).
	AnchorText *string
	// InitialLastID, if non-nil, is used as the LastID of the first emitted
	// DiffDoc instead of the usual "absent for page's first revision"
	// default. Used by internal/mend to chain a re-diffed run back to the
	// revision preceding the break.
	InitialLastID *int64
	// Timeout bounds a single revision's diff computation. Zero means
	// unbounded (spec §6, "--timeout <infinity>").
	Timeout time.Duration
	// DropText discards the Text field from emitted DiffDocs. Terminal:
	// menders need text, so this should only be set on a branch that will
	// never be mended (spec §4.C5).
	DropText bool
}

// FilterNamespaces drops revisions whose page namespace is not in allowed.
// Per spec §4.C5 this must run *before* grouping by page, since filtering
// after grouping could split a page's revisions across two groups and break
// the diff processor's anchor. A nil allowed set passes everything through.
func FilterNamespaces(src pagegroup.Source[record.Revision], allowed map[int]bool) pagegroup.Source[record.Revision] {
	if allowed == nil {
		return src
	}

	return func() (record.Revision, bool, error) {
		for {
			rev, ok, err := src()
			if err != nil || !ok {
				return rev, ok, err
			}

			if allowed[rev.Page.Namespace] {
				return rev, true, nil
			}
		}
	}
}

// ProcessPage runs the diff stage algorithm of spec §4.C5 over one page's
// revisions (already grouped, e.g. by pagegroup.Grouper), invoking emit once
// per produced DiffDoc in input order. A fresh diff processor is created for
// this page and discarded at the end, matching the page-scoped state
// lifetime of spec §3.
func ProcessPage(items pagegroup.Source[record.Revision], opts Options, emit func(record.DiffDoc) error) error {
	engine := tokendiff.New(opts.Tokenizer)
	if opts.AnchorText != nil {
		engine.Update(*opts.AnchorText)
	}

	lastID := opts.InitialLastID

	for {
		rev, ok, err := items()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		doc, err := diffOne(engine, rev, lastID, opts)
		if err != nil {
			return err
		}

		id := rev.ID
		lastID = &id

		if err := emit(doc); err != nil {
			return err
		}
	}
}

func diffOne(engine *tokendiff.Engine, rev record.Revision, lastID *int64, opts Options) (record.DiffDoc, error) {
	text := rev.TextOrEmpty()

	ops, _, _, elapsed, diffErr := engine.Process(text, opts.Timeout)

	doc := record.DiffDoc{Revision: rev}

	switch {
	case errors.Is(diffErr, tokendiff.ErrTimeout):
		doc.Diff = &record.Diff{LastID: lastID, Ops: nil, Time: elapsed.Seconds()}
		engine.Update(text)
		reportProgress(opts.OnProgress, MarkTimeout)
	case diffErr != nil:
		return record.DiffDoc{}, diffErr
	default:
		doc.Diff = &record.Diff{LastID: lastID, Ops: ops, Time: elapsed.Seconds()}
		reportProgress(opts.OnProgress, MarkSuccess)
	}

	if opts.DropText {
		doc.Text = nil
	}

	return doc, nil
}

func reportProgress(onProgress func(ProgressMark), mark ProgressMark) {
	if onProgress != nil {
		onProgress(mark)
	}
}
