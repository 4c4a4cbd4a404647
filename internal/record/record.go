// Package record defines the wire-level value shapes shared across every
// stage of the pipeline: pages, revisions, diffs, and their embedded
// sub-records. Types in this package carry no behavior beyond validation;
// stages own the transforms between them.
package record

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by Validate methods.
var (
	ErrNegativeID       = errors.New("id must be non-negative")
	ErrMissingTitle     = errors.New("page title is required")
	ErrBadIndexRange    = errors.New("operation index range is invalid")
	ErrUnknownOpKind    = errors.New("unknown operation kind")
	ErrMissingTimestamp = errors.New("revision timestamp is required")
)

// TimeLayout is the ISO-8601 layout used for every timestamp field on the wire.
const TimeLayout = "2006-01-02T15:04:05Z"

// Contributor identifies the author of a revision. A nil *Contributor means
// the edit was made anonymously or the contributor was deleted/suppressed.
type Contributor struct {
	UserText string `json:"user_text"`
	ID       int64  `json:"id"`
}

// Equal reports whether two (possibly nil) contributors identify the same author.
func (c *Contributor) Equal(other *Contributor) bool {
	if c == nil || other == nil {
		return c == other
	}

	return c.ID == other.ID && c.UserText == other.UserText
}

// Page is the page sub-record embedded in every Revision.
type Page struct {
	Title          string   `json:"title"`
	RedirectTitle  *string  `json:"redirect_title,omitempty"`
	Restrictions   []string `json:"restrictions,omitempty"`
	ID             int64    `json:"id"`
	Namespace      int      `json:"namespace"`
}

// Validate checks Page invariants.
func (p Page) Validate() error {
	if p.ID < 0 {
		return ErrNegativeID
	}

	if p.Title == "" {
		return ErrMissingTitle
	}

	return nil
}

// Revision is one saved version of a wiki page, as produced by the (out of
// scope) MediaWiki XML dump iterator or read back from line-delimited JSON.
type Revision struct {
	ParentID    *int64       `json:"parent_id,omitempty"`
	Contributor *Contributor `json:"contributor"`
	Comment     *string      `json:"comment,omitempty"`
	Text        *string      `json:"text,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	SHA1        string       `json:"sha1"`
	Model       string       `json:"model,omitempty"`
	Format      string       `json:"format,omitempty"`
	Page        Page         `json:"page"`
	ID          int64        `json:"id"`
	Bytes       int64        `json:"bytes"`
	Minor       bool         `json:"minor"`
}

// TextOrEmpty returns the revision text, treating an absent field as "".
func (r Revision) TextOrEmpty() string {
	if r.Text == nil {
		return ""
	}

	return *r.Text
}

// Validate checks Revision invariants from spec §3.
func (r Revision) Validate() error {
	if r.ID < 0 {
		return ErrNegativeID
	}

	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}

	if err := r.Page.Validate(); err != nil {
		return fmt.Errorf("page: %w", err)
	}

	return nil
}

// OpKind tags the four varieties of token-list edit operation.
type OpKind string

// The four operation kinds named in spec §3.
const (
	OpEqual   OpKind = "equal"
	OpInsert  OpKind = "insert"
	OpDelete  OpKind = "delete"
	OpReplace OpKind = "replace"
)

// Operation is one tagged edit between the previous token list a and the
// current token list b. For insert, Tokens holds b[B1:B2]; for delete, it
// holds a[A1:A2]; for replace it holds b[B1:B2] and implicitly removes
// a[A1:A2].
type Operation struct {
	Kind   OpKind   `json:"name"`
	Tokens []string `json:"tokens,omitempty"`
	A1     int      `json:"a1"`
	A2     int      `json:"a2"`
	B1     int      `json:"b1"`
	B2     int      `json:"b2"`
}

// Validate checks the index-range invariants from spec §3.
func (op Operation) Validate() error {
	if op.A1 < 0 || op.A1 > op.A2 {
		return ErrBadIndexRange
	}

	if op.B1 < 0 || op.B1 > op.B2 {
		return ErrBadIndexRange
	}

	switch op.Kind {
	case OpEqual, OpInsert, OpDelete, OpReplace:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOpKind, op.Kind)
	}
}

// Diff is the diff sub-record attached to a Revision once it has passed
// through the diff or mend stage.
type Diff struct {
	LastID *int64      `json:"last_id,omitempty"`
	Ops    []Operation `json:"ops"`
	Time   float64     `json:"time"`
}

// TimedOut reports whether this Diff represents a timed-out computation
// whose state must be repaired by a mender (spec §3, "DiffDoc").
func (d Diff) TimedOut() bool {
	return d.Ops == nil
}

// DiffDoc is a Revision plus its computed Diff.
type DiffDoc struct {
	Diff *Diff `json:"diff,omitempty"`
	Revision
}

// Validate checks DiffDoc invariants, including every embedded Operation.
func (d DiffDoc) Validate() error {
	if err := d.Revision.Validate(); err != nil {
		return err
	}

	if d.Diff == nil {
		return nil
	}

	for i, op := range d.Diff.Ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}

	return nil
}

// PersistenceStat is the per added-token record emitted at window eviction
// (spec §3 and §4.C7).
type PersistenceStat struct {
	Revision          DiffDoc `json:"revision"`
	Token             string  `json:"token"`
	Persisted         int     `json:"persisted"`
	Processed         int     `json:"processed"`
	NonSelfPersisted  int     `json:"non_self_persisted"`
	NonSelfProcessed  int     `json:"non_self_processed"`
	SecondsVisible    int64   `json:"seconds_visible"`
	SecondsPossible   int64   `json:"seconds_possible"`
}

// RevisionStats is the per-revision aggregate produced by the revision
// stats aggregator (spec §4.C8).
type RevisionStats struct {
	Revision                 DiffDoc `json:"revision"`
	TokensAdded              int     `json:"tokens_added"`
	TokensPersisted          int     `json:"tokens_persisted"`
	TokensNonSelfPersisted   int     `json:"tokens_non_self_persisted"`
	SumLogPersisted          float64 `json:"sum_log_persisted"`
	SumLogNonSelfPersisted   float64 `json:"sum_log_non_self_persisted"`
	Censored                 bool    `json:"censored"`
	NonSelfCensored          bool    `json:"non_self_censored"`
}
