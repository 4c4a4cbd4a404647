// Package ancillary implements the small single-purpose stream transforms
// of spec §4.C9: text truncation, legacy-shape normalization, schema
// validation, TSV field extraction, the Wikihadoop page-pair convention, and
// the RevisionDocument field mapping used by the (out of scope) XML dump
// reader.
package ancillary

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

// DefaultMaxChars is truncate_text's docopt default, set historically to
// address content-dump vandalism on English Wikipedia.
const DefaultMaxChars = 2097152

// ErrValidationFailed wraps a non-empty gojsonschema result.
var ErrValidationFailed = errors.New("ancillary: document failed schema validation")

// Doc is a schema-agnostic JSON document, the shape these utilities operate
// on directly (mirroring the untyped dict documents the original Python
// tools process) rather than the typed record package -- these stages must
// tolerate documents from any schema revision, including ones this module's
// typed model does not represent.
type Doc = map[string]any

// TruncateText enforces maxChars (DefaultMaxChars when <= 0) on doc["text"],
// setting doc["truncated"] accordingly. Truncation counts unicode
// characters, not bytes.
func TruncateText(doc Doc, maxChars int) Doc {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	text, _ := doc["text"].(string)

	runes := []rune(text)
	if len(runes) > maxChars {
		doc["text"] = string(runes[:maxChars])
		doc["truncated"] = true
	} else {
		doc["truncated"] = false
	}

	return doc
}

// Normalize rewrites the deprecated `page.redirect = {title}` shape to
// `page.redirect_title = title | null`, in place. Idempotent: a document
// already in the new shape passes through unchanged.
func Normalize(doc Doc) Doc {
	page, ok := doc["page"].(map[string]any)
	if !ok {
		return doc
	}

	redirectRaw, hasRedirect := page["redirect"]
	if !hasRedirect {
		return doc
	}

	var redirectTitle any

	if redirectMap, ok := redirectRaw.(map[string]any); ok {
		redirectTitle = redirectMap["title"]
	}

	delete(page, "redirect")
	page["redirect_title"] = redirectTitle

	return doc
}

// Validate checks doc against schema, returning ErrValidationFailed (with
// every violation message joined in) on the first invalid document.
func Validate(doc Doc, schema *gojsonschema.Schema) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("ancillary: schema evaluation: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}

	return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(msgs, "; "))
}

// JSON2TSV extracts fieldPaths from doc as one tab-separated row. A path of
// "-" emits the document's full JSON; any other dotted path (e.g. "page.id")
// walks nested objects, yielding "NULL" for an absent or non-object
// traversal. Tabs and newlines inside a value are escaped.
func JSON2TSV(doc Doc, fieldPaths []string) string {
	cols := make([]string, len(fieldPaths))

	for i, path := range fieldPaths {
		cols[i] = encodeTSVField(extractPath(doc, path))
	}

	return strings.Join(cols, "\t")
}

func extractPath(doc Doc, path string) any {
	if path == "-" {
		b, err := json.Marshal(doc)
		if err != nil {
			return nil
		}

		return string(b)
	}

	var cur any = doc

	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}

		v, exists := m[key]
		if !exists {
			return nil
		}

		cur = v
	}

	return cur
}

func encodeTSVField(val any) string {
	if val == nil {
		return "NULL"
	}

	s := fmt.Sprintf("%v", val)
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\n", "\\n")

	return s
}

// WikiHadoop2JSON implements the Wikihadoop page-pair convention: a page
// carrying exactly two revisions has only its second revision emitted. key
// partitions revs by page the same way every other grouped stage does.
func WikiHadoop2JSON(
	revs pagegroup.Source[record.Revision], key pagegroup.KeyFunc[record.Revision], emit func(record.Revision) error,
) error {
	grouper := pagegroup.New(revs, key)

	for {
		_, items, ok, err := grouper.NextGroup()
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		group, err := pagegroup.Collect(items)
		if err != nil {
			return err
		}

		if len(group) == 2 {
			if err := emit(group[1]); err != nil {
				return err
			}
		}
	}
}

// RawPage and RawRevision are the minimal (page, revision) shapes a
// line-delimited `dump2json` input supplies in place of a real XML dump
// iterator (out of scope per spec.md): enough fields to exercise
// RevisionToDoc's mapping.
type RawPage struct {
	RedirectTitle *string  `json:"redirect_title,omitempty"`
	Title         string   `json:"title"`
	Restrictions  []string `json:"restrictions,omitempty"`
	ID            int64    `json:"id"`
	Namespace     int      `json:"namespace"`
}

// RawRevision mirrors the fields the original `mw.xml_dump.Iterator`
// revision object exposes (util.py's revision2doc).
type RawRevision struct {
	ParentID    *int64               `json:"parent_id,omitempty"`
	Contributor *record.Contributor  `json:"contributor"`
	Comment     *string              `json:"comment,omitempty"`
	Text        *string              `json:"text,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
	SHA1        string               `json:"sha1"`
	Model       string               `json:"model,omitempty"`
	Format      string               `json:"format,omitempty"`
	ID          int64                `json:"id"`
	Bytes       int64                `json:"bytes"`
	Minor       bool                 `json:"minor"`
}

// RevisionToDoc implements RevisionDocument v0.0.2's field mapping from a
// parsed (page, revision) pair to the record.Revision shape of spec §3.
func RevisionToDoc(page RawPage, revision RawRevision) record.Revision {
	return record.Revision{
		ParentID:    revision.ParentID,
		Contributor: revision.Contributor,
		Comment:     revision.Comment,
		Text:        revision.Text,
		Timestamp:   revision.Timestamp,
		SHA1:        revision.SHA1,
		Model:       revision.Model,
		Format:      revision.Format,
		Page: record.Page{
			Title:         page.Title,
			RedirectTitle: page.RedirectTitle,
			Restrictions:  page.Restrictions,
			ID:            page.ID,
			Namespace:     page.Namespace,
		},
		ID:    revision.ID,
		Bytes: revision.Bytes,
		Minor: revision.Minor,
	}
}
