package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// revisionWire is the JSON shadow of Revision: it carries the timestamp as a
// plain string in spec §3's fixed layout instead of relying on time.Time's
// RFC3339Nano default, and keeps Diff/Page inline the way the wire format
// requires.
type revisionWire struct {
	ParentID    *int64       `json:"parent_id,omitempty"`
	Contributor *Contributor `json:"contributor"`
	Comment     *string      `json:"comment,omitempty"`
	Text        *string      `json:"text,omitempty"`
	Timestamp   string       `json:"timestamp"`
	SHA1        string       `json:"sha1"`
	Model       string       `json:"model,omitempty"`
	Format      string       `json:"format,omitempty"`
	Page        Page         `json:"page"`
	ID          int64        `json:"id"`
	Bytes       int64        `json:"bytes"`
	Minor       bool         `json:"minor"`
}

// MarshalJSON renders the timestamp in spec §3's fixed ISO-8601 layout.
func (r Revision) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(revisionWire{
		ParentID:    r.ParentID,
		Contributor: r.Contributor,
		Comment:     r.Comment,
		Text:        r.Text,
		Timestamp:   r.Timestamp.UTC().Format(TimeLayout),
		SHA1:        r.SHA1,
		Model:       r.Model,
		Format:      r.Format,
		Page:        r.Page,
		ID:          r.ID,
		Bytes:       r.Bytes,
		Minor:       r.Minor,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal revision: %w", err)
	}

	return data, nil
}

// UnmarshalJSON parses the timestamp in spec §3's fixed ISO-8601 layout.
func (r *Revision) UnmarshalJSON(data []byte) error {
	var wire revisionWire

	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("unmarshal revision: %w", err)
	}

	ts, err := time.Parse(TimeLayout, wire.Timestamp)
	if err != nil {
		return fmt.Errorf("parse revision timestamp %q: %w", wire.Timestamp, err)
	}

	*r = Revision{
		ParentID:    wire.ParentID,
		Contributor: wire.Contributor,
		Comment:     wire.Comment,
		Text:        wire.Text,
		Timestamp:   ts,
		SHA1:        wire.SHA1,
		Model:       wire.Model,
		Format:      wire.Format,
		Page:        wire.Page,
		ID:          wire.ID,
		Bytes:       wire.Bytes,
		Minor:       wire.Minor,
	}

	return nil
}

// diffDocWire inlines Revision's own wire shadow plus the diff field, since
// Go cannot embed a type that defines its own [json.Marshaler] and still
// have the struct tag "diff" picked up automatically.
type diffDocWire struct {
	Diff *Diff `json:"diff,omitempty"`
	revisionWire
}

// MarshalJSON flattens DiffDoc into {..revision fields.., "diff": {...}}.
func (d DiffDoc) MarshalJSON() ([]byte, error) {
	revJSON, err := d.Revision.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var wire revisionWire
	if err := json.Unmarshal(revJSON, &wire); err != nil {
		return nil, fmt.Errorf("unmarshal revision shadow: %w", err)
	}

	data, err := json.Marshal(diffDocWire{Diff: d.Diff, revisionWire: wire})
	if err != nil {
		return nil, fmt.Errorf("marshal diff doc: %w", err)
	}

	return data, nil
}

// UnmarshalJSON parses a DiffDoc from its flattened wire shape.
func (d *DiffDoc) UnmarshalJSON(data []byte) error {
	var wire diffDocWire

	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("unmarshal diff doc: %w", err)
	}

	revJSON, err := json.Marshal(wire.revisionWire)
	if err != nil {
		return fmt.Errorf("marshal revision shadow: %w", err)
	}

	var rev Revision
	if err := json.Unmarshal(revJSON, &rev); err != nil {
		return err
	}

	*d = DiffDoc{Diff: wire.Diff, Revision: rev}

	return nil
}
