// Package pagegroup groups a chronologically sorted stream of records into
// bounded per-page sub-streams (spec §4.C3). Grouping is lazy and pull-based:
// nothing beyond the current page's buffered lookahead item is held in memory.
package pagegroup

// KeyFunc extracts the grouping key (a page identity such as its id or
// title) from an item.
type KeyFunc[T any] func(item T) string

// Source pulls the next item from an upstream sequence. ok is false with a
// nil error at end of stream.
type Source[T any] func() (item T, ok bool, err error)

// Grouper partitions a Source into contiguous runs sharing the same key.
// Callers must fully drain one group's Source (until it returns ok=false)
// before calling NextGroup again -- grouping assumes the input is already
// sorted by key so that once a key changes it never recurs (spec's
// "Invariant: within a page group, revisions are sorted by (timestamp ASC,
// id ASC)" and the caller-responsibility note in spec §1 that callers
// partition by page).
type Grouper[T any] struct {
	src        Source[T]
	key        KeyFunc[T]
	pending    *T
	pendingKey string
	atEOF      bool
	err        error
}

// New constructs a Grouper over src using key to determine page membership.
func New[T any](src Source[T], key KeyFunc[T]) *Grouper[T] {
	return &Grouper[T]{src: src, key: key}
}

// NextGroup advances to the next page group. ok is false once the upstream
// source is exhausted. The returned Source yields exactly the items sharing
// the group's key, in original order.
func (g *Grouper[T]) NextGroup() (pageKey string, items Source[T], ok bool, err error) {
	if g.err != nil {
		return "", nil, false, g.err
	}

	if g.pending == nil && !g.atEOF {
		g.pull()
		if g.err != nil {
			return "", nil, false, g.err
		}
	}

	if g.pending == nil {
		return "", nil, false, nil
	}

	pageKey = g.pendingKey

	return pageKey, g.itemsFor(pageKey), true, nil
}

// itemsFor returns a Source that yields buffered/upstream items while they
// continue to match pageKey, then reports end-of-group (ok=false, err=nil)
// without consuming the first item of the next group.
func (g *Grouper[T]) itemsFor(pageKey string) Source[T] {
	return func() (T, bool, error) {
		var zero T

		if g.err != nil {
			return zero, false, g.err
		}

		if g.pending == nil || g.pendingKey != pageKey {
			return zero, false, nil
		}

		item := *g.pending
		g.pending = nil

		if !g.atEOF {
			g.pull()
			if g.err != nil {
				return item, true, nil // surface the pull error on the *next* call
			}
		}

		return item, true, nil
	}
}

// pull fetches the next upstream item into g.pending, or sets g.atEOF / g.err.
func (g *Grouper[T]) pull() {
	item, ok, err := g.src()

	switch {
	case err != nil:
		g.err = err
	case !ok:
		g.atEOF = true
	default:
		g.pending = &item
		g.pendingKey = g.key(item)
	}
}

// Slice adapts a pre-materialized slice into a Source, for tests and for
// batch callers that already hold every revision in memory.
func Slice[T any](items []T) Source[T] {
	i := 0

	return func() (T, bool, error) {
		var zero T

		if i >= len(items) {
			return zero, false, nil
		}

		item := items[i]
		i++

		return item, true, nil
	}
}

// Collect drains a Source into a slice. Intended for tests.
func Collect[T any](src Source[T]) ([]T, error) {
	var out []T

	for {
		item, ok, err := src()
		if err != nil {
			return out, err
		}

		if !ok {
			return out, nil
		}

		out = append(out, item)
	}
}
