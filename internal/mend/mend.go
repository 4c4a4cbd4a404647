// Package mend repairs a DiffDoc stream whose blocks were computed
// independently by multiple workers, each starting from an empty processor
// anchor (spec §4.C6). It detects the page-local seams where the chain of
// diff.last_id references breaks and recomputes diffs for the broken run
// from the last known-good text.
package mend

import (
	"errors"
	"time"

	"github.com/Sumatoshi-tech/mwpersist/internal/diffstage"
	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/tokendiff"
)

// Sentinel errors: a doc missing text or diff cannot be mended (spec §4.C6,
// §7 "Mend precondition failure").
var (
	ErrMissingText = errors.New("mend: revision document missing text field")
	ErrMissingDiff = errors.New("mend: revision document missing diff field")
)

// Progress marks this stage reports: '.' for a doc passed through unchanged,
// 'M' for a doc that was re-diffed.
const (
	MarkPassThrough diffstage.ProgressMark = '.'
	MarkMended      diffstage.ProgressMark = 'M'
)

// Options configures mending.
type Options struct {
	Tokenizer  tokendiff.Tokenizer
	OnProgress func(diffstage.ProgressMark)
	Timeout    time.Duration
	DropText   bool
}

// ProcessPage mends one page's DiffDoc stream (already grouped, e.g. by
// pagegroup.Grouper), invoking emit once per doc in input order -- either
// unchanged (pass-through) or with a freshly computed {last_id, ops, time}
// (mended).
func ProcessPage(docs pagegroup.Source[record.DiffDoc], opts Options, emit func(record.DiffDoc) error) error {
	peek := newPeekable(docs)

	first, ok, err := peek.next()
	if err != nil {
		return err
	}

	if !ok {
		return nil
	}

	if err := validate(first); err != nil {
		return err
	}

	if err := emitMark(emit, first, MarkPassThrough, opts.OnProgress); err != nil {
		return err
	}

	prevID := first.ID
	anchorText := first.TextOrEmpty()

	for {
		doc, hasNext, err := peek.peek()
		if err != nil {
			return err
		}

		if !hasNext {
			return nil
		}

		if err := validate(doc); err != nil {
			return err
		}

		if doc.Diff.LastID != nil && *doc.Diff.LastID == prevID {
			consumed, _, err := peek.next()
			if err != nil {
				return err
			}

			if err := emitMark(emit, consumed, MarkPassThrough, opts.OnProgress); err != nil {
				return err
			}

			prevID = consumed.ID
			anchorText = consumed.TextOrEmpty()

			continue
		}

		prevID, anchorText, err = mendRun(peek, prevID, anchorText, opts, emit)
		if err != nil {
			return err
		}
	}
}

// mendRun gathers the contiguous run of mutually-chained "broken" docs
// starting at the current peeked position and re-diffs them against
// anchorText, emitting each with mark 'M'.
func mendRun(
	peek *peekable, prevID int64, anchorText string, opts Options, emit func(record.DiffDoc) error,
) (int64, string, error) {
	run, err := readBrokenRun(peek)
	if err != nil {
		return prevID, anchorText, err
	}

	revs := make([]record.Revision, len(run))
	for i, d := range run {
		revs[i] = d.Revision
	}

	id := prevID

	diffOpts := diffstage.Options{
		Tokenizer:     opts.Tokenizer,
		AnchorText:    &anchorText,
		InitialLastID: &id,
		Timeout:       opts.Timeout,
		DropText:      opts.DropText,
	}

	err = diffstage.ProcessPage(pagegroup.Slice(revs), diffOpts, func(mended record.DiffDoc) error {
		return emitMark(emit, mended, MarkMended, opts.OnProgress)
	})
	if err != nil {
		return prevID, anchorText, err
	}

	last := run[len(run)-1]

	return last.ID, last.TextOrEmpty(), nil
}

// readBrokenRun consumes the peeked-ahead broken doc and every doc after it
// whose diff.last_id chains to the previous broken doc's own id -- i.e. the
// self-consistent block one independent worker produced (spec §4.C6).
func readBrokenRun(peek *peekable) ([]record.DiffDoc, error) {
	first, _, err := peek.next()
	if err != nil {
		return nil, err
	}

	run := []record.DiffDoc{first}
	anchor := first

	for {
		next, hasNext, err := peek.peek()
		if err != nil {
			return nil, err
		}

		if !hasNext || next.Diff.LastID == nil || *next.Diff.LastID != anchor.ID {
			return run, nil
		}

		consumed, _, err := peek.next()
		if err != nil {
			return nil, err
		}

		run = append(run, consumed)
		anchor = consumed
	}
}

func validate(doc record.DiffDoc) error {
	if doc.Text == nil {
		return ErrMissingText
	}

	if doc.Diff == nil {
		return ErrMissingDiff
	}

	return nil
}

func emitMark(
	emit func(record.DiffDoc) error, doc record.DiffDoc, mark diffstage.ProgressMark, onProgress func(diffstage.ProgressMark),
) error {
	if onProgress != nil {
		onProgress(mark)
	}

	return emit(doc)
}

// peekable adds one-item lookahead to a pagegroup.Source.
type peekable struct {
	src     pagegroup.Source[record.DiffDoc]
	pending *record.DiffDoc
	err     error
	atEOF   bool
}

func newPeekable(src pagegroup.Source[record.DiffDoc]) *peekable {
	return &peekable{src: src}
}

func (p *peekable) fill() {
	if p.pending != nil || p.atEOF || p.err != nil {
		return
	}

	doc, ok, err := p.src()

	switch {
	case err != nil:
		p.err = err
	case !ok:
		p.atEOF = true
	default:
		p.pending = &doc
	}
}

func (p *peekable) peek() (record.DiffDoc, bool, error) {
	p.fill()

	if p.err != nil {
		return record.DiffDoc{}, false, p.err
	}

	if p.pending == nil {
		return record.DiffDoc{}, false, nil
	}

	return *p.pending, true, nil
}

func (p *peekable) next() (record.DiffDoc, bool, error) {
	doc, ok, err := p.peek()
	if !ok || err != nil {
		return doc, ok, err
	}

	p.pending = nil

	return doc, true, nil
}
