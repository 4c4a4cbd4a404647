// Package revstats aggregates a stream of per-token PersistenceStat records,
// grouped by their embedded revision, into one RevisionStats summary per
// revision (spec §4.C8).
package revstats

import (
	"math"
	"regexp"

	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
)

// Defaults matching persistence2stats.py's docopt defaults.
const (
	DefaultMinPersisted    = 5
	DefaultMinVisibleDays  = 14
	secondsPerDay          = 60 * 60 * 24
	DefaultMinVisibleSecs  = DefaultMinVisibleDays * secondsPerDay
)

// TokenFilter reports whether a token string should be counted.
type TokenFilter func(token string) bool

// Options configures aggregation.
type Options struct {
	// Include, if set, restricts aggregation to tokens it matches. Nil
	// includes every token.
	Include TokenFilter
	// Exclude, if set, drops tokens it matches, applied after Include.
	Exclude TokenFilter
	// MinPersisted is the minimum reviewer count for a token to count as
	// persisted when no time-visible threshold has been crossed. Zero uses
	// DefaultMinPersisted.
	MinPersisted int
	// MinVisibleSecs is the minimum visible duration for a token to count as
	// persisted outright. Zero uses DefaultMinVisibleSecs.
	MinVisibleSecs int64
}

// IncludeRegexp builds a TokenFilter from a compiled regular expression,
// matching `--include`/`--exclude=<regex>` semantics (unanchored search).
func IncludeRegexp(re *regexp.Regexp) TokenFilter {
	return func(token string) bool { return re.MatchString(token) }
}

// Source pulls PersistenceStats already grouped so that every stat sharing
// the same revision arrives contiguously (the upstream emission order from
// internal/persistence already satisfies this per page).
type Source = pagegroup.Source[record.PersistenceStat]

// Process reads PersistenceStats in which each revision's stats form one
// contiguous run and invokes emit once per revision with its aggregated
// RevisionStats. It detects run boundaries itself, starting a new revision
// whenever stat.Revision.ID changes, so a flat stream needs no external
// grouper; a revision whose stats reappear after another revision's run is
// emitted twice.
func Process(stats Source, opts Options, emit func(record.RevisionStats) error) error {
	minPersisted := opts.MinPersisted
	if minPersisted <= 0 {
		minPersisted = DefaultMinPersisted
	}

	minVisibleSecs := opts.MinVisibleSecs
	if minVisibleSecs <= 0 {
		minVisibleSecs = DefaultMinVisibleSecs
	}

	var (
		current    record.DiffDoc
		haveCurrent bool
		acc        record.RevisionStats
	)

	flush := func() error {
		if !haveCurrent {
			return nil
		}

		acc.Revision = current

		return emit(acc)
	}

	for {
		stat, ok, err := stats()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		if !haveCurrent || stat.Revision.ID != current.ID {
			if err := flush(); err != nil {
				return err
			}

			current = stat.Revision
			haveCurrent = true
			acc = record.RevisionStats{}
		}

		if opts.Include != nil && !opts.Include(stat.Token) {
			continue
		}

		if opts.Exclude != nil && opts.Exclude(stat.Token) {
			continue
		}

		accumulate(&acc, stat, minPersisted, minVisibleSecs)
	}

	return flush()
}

// accumulate folds one PersistenceStat into the revision's running totals,
// per spec §4.C8.
func accumulate(acc *record.RevisionStats, stat record.PersistenceStat, minPersisted int, minVisibleSecs int64) {
	acc.TokensAdded++
	acc.SumLogPersisted += math.Log(float64(stat.Persisted) + 1)
	acc.SumLogNonSelfPersisted += math.Log(float64(stat.NonSelfPersisted) + 1)

	if stat.SecondsVisible >= minVisibleSecs {
		acc.TokensPersisted++
		acc.TokensNonSelfPersisted++

		return
	}

	if stat.Persisted >= minPersisted {
		acc.TokensPersisted++
	}

	if stat.NonSelfPersisted >= minPersisted {
		acc.TokensNonSelfPersisted++
	}

	if stat.SecondsPossible < minVisibleSecs {
		acc.Censored = true
		acc.NonSelfCensored = true

		return
	}

	if stat.Processed < minPersisted {
		acc.Censored = true
	}

	if stat.NonSelfProcessed < minPersisted {
		acc.NonSelfCensored = true
	}
}
