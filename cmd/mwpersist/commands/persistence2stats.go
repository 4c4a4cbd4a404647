package commands

import (
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/revstats"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// Persistence2StatsCommand implements
// `persistence2stats [--min-persisted N=5] [--min-visible D=14]
// [--include RE] [--exclude RE] [--verbose]`: it aggregates a
// revision-grouped PersistenceStat stream into one RevisionStats record per
// revision (spec §4.C8).
type Persistence2StatsCommand struct {
	Include      string
	Exclude      string
	MinPersisted int
	MinVisible   int
	Verbose      bool
	Compress     bool
}

// NewPersistence2StatsCommand builds the persistence2stats cobra command.
func NewPersistence2StatsCommand() *cobra.Command {
	rc := &Persistence2StatsCommand{}

	cmd := &cobra.Command{
		Use:   "persistence2stats",
		Short: "Aggregate per-token persistence stats into per-revision summaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd)
		},
	}

	cmd.Flags().IntVar(&rc.MinPersisted, "min-persisted", revstats.DefaultMinPersisted,
		"minimum reviewer count for a token to count as persisted")
	cmd.Flags().IntVar(&rc.MinVisible, "min-visible", revstats.DefaultMinVisibleDays,
		"minimum visible days for a token to count as persisted outright")
	cmd.Flags().StringVar(&rc.Include, "include", "", "restrict aggregation to tokens matching this regexp")
	cmd.Flags().StringVar(&rc.Exclude, "exclude", "", "drop tokens matching this regexp")
	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")
	cmd.Flags().BoolVar(&rc.Compress, "compress", false, "LZ4-frame the output stream")

	return cmd
}

func (rc *Persistence2StatsCommand) run(cmd *cobra.Command) error {
	opts := revstats.Options{
		MinPersisted:   rc.MinPersisted,
		MinVisibleSecs: int64(rc.MinVisible) * 86400,
	}

	if rc.Include != "" {
		re, err := regexp.Compile(rc.Include)
		if err != nil {
			return err
		}

		opts.Include = revstats.IncludeRegexp(re)
	}

	if rc.Exclude != "" {
		re, err := regexp.Compile(rc.Exclude)
		if err != nil {
			return err
		}

		opts.Exclude = revstats.IncludeRegexp(re)
	}

	reader := streamio.NewReader(os.Stdin)
	stats := readerSource[record.PersistenceStat](reader)

	writer := streamio.NewWriter(os.Stdout, rc.Compress)
	summary := newRunSummary()

	var revisionsAggregated int64

	err := revstats.Process(stats, opts, func(rs record.RevisionStats) error {
		progressf(!rc.Verbose, cmd.ErrOrStderr(), "revision %d aggregated", rs.Revision.ID)

		revisionsAggregated++

		return writer.Write(rs)
	})
	if err != nil {
		return err
	}

	if rc.Verbose {
		summary.set("revisions aggregated", revisionsAggregated)
		summary.print(cmd.ErrOrStderr())
	}

	return writer.Flush()
}
