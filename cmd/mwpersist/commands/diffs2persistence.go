package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/persistence"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// Diffs2PersistenceCommand implements
// `diffs2persistence --sunset T|<now> [--window W=50] [--revert-radius R=15]
// [--keep-diff] [--verbose]`: it reads DiffDocs partitioned by page, applies
// the token-persistence window, and emits PersistenceStats (spec §4.C7).
type Diffs2PersistenceCommand struct {
	Sunset       string
	MetricsAddr  string
	Window       int
	RevertRadius int
	Verbose      bool
	KeepDiff     bool
	Compress     bool
}

// NewDiffs2PersistenceCommand builds the diffs2persistence cobra command.
func NewDiffs2PersistenceCommand() *cobra.Command {
	rc := &Diffs2PersistenceCommand{}

	cmd := &cobra.Command{
		Use:   "diffs2persistence",
		Short: "Apply the sliding-window token-persistence algorithm to a diff stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd)
		},
	}

	cmd.Flags().StringVar(&rc.Sunset, "sunset", sentinelNow, "dump generation timestamp, or <now>")
	cmd.Flags().IntVar(&rc.Window, "window", persistence.DefaultWindowSize, "size of the sliding revision window")
	cmd.Flags().IntVar(&rc.RevertRadius, "revert-radius", persistence.DefaultRevertRadius,
		"number of revisions back a revert may reference")
	cmd.Flags().BoolVar(&rc.KeepDiff, "keep-diff", false, "keep the diff field in emitted revision documents")
	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")
	cmd.Flags().BoolVar(&rc.Compress, "compress", false, "LZ4-frame the output stream")
	cmd.Flags().StringVar(&rc.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics at this address")

	return cmd
}

func (rc *Diffs2PersistenceCommand) run(cmd *cobra.Command) error {
	sunset, err := parseSunset(rc.Sunset)
	if err != nil {
		return err
	}

	metrics, shutdown := initObservability(rc.MetricsAddr)
	defer shutdown()

	reader := streamio.NewReader(os.Stdin)
	docs := readerSource[record.DiffDoc](reader)
	grouper := pagegroup.New(docs, diffDocPageKey)

	writer := streamio.NewWriter(os.Stdout, rc.Compress)
	summary := newRunSummary()

	var tokensEvicted int64

	opts := persistence.Options{
		OnProgress: func(byte) {
			if rc.Verbose {
				cmd.ErrOrStderr().Write([]byte{'.'}) //nolint:errcheck
			}
		},
		Sunset:       sunset,
		WindowSize:   rc.Window,
		RevertRadius: rc.RevertRadius,
	}

	for {
		_, items, ok, err := grouper.NextGroup()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		err = persistence.ProcessPage(items, opts, func(stat record.PersistenceStat) error {
			metrics.TokensEvicted.Inc()
			tokensEvicted++

			if !rc.KeepDiff {
				stat.Revision.Diff = nil
			}

			return writer.Write(stat)
		})
		if err != nil {
			return err
		}
	}

	if rc.Verbose {
		summary.set("tokens evicted", tokensEvicted)
		summary.print(cmd.ErrOrStderr())
	}

	return writer.Flush()
}
