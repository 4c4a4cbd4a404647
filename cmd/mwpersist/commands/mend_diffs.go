package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/config"
	"github.com/Sumatoshi-tech/mwpersist/internal/diffstage"
	"github.com/Sumatoshi-tech/mwpersist/internal/mend"
	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// MendDiffsCommand implements
// `mend_diffs --config P [--drop-text] [--timeout S] [--verbose]`: it
// repairs the page-local seams left by diffing a stream in independently
// diffed blocks (spec §4.C6).
type MendDiffsCommand struct {
	ConfigPath  string
	Timeout     string
	MetricsAddr string
	Verbose     bool
	DropText    bool
	Compress    bool
}

// NewMendDiffsCommand builds the mend_diffs cobra command.
func NewMendDiffsCommand() *cobra.Command {
	rc := &MendDiffsCommand{}

	cmd := &cobra.Command{
		Use:   "mend_diffs",
		Short: "Repair broken diff chains left by independently re-diffed blocks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd)
		},
	}

	cmd.Flags().StringVar(&rc.ConfigPath, "config", "", "diff-engine config file")
	cmd.Flags().BoolVar(&rc.DropText, "drop-text", false, "omit the text field from emitted diffs")
	cmd.Flags().StringVar(&rc.Timeout, "timeout", sentinelInfinity, "per-revision diff timeout in seconds, or <infinity>")
	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")
	cmd.Flags().BoolVar(&rc.Compress, "compress", false, "LZ4-frame the output stream")
	cmd.Flags().StringVar(&rc.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics at this address")

	return cmd
}

func (rc *MendDiffsCommand) run(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(rc.ConfigPath)
	if err != nil {
		return err
	}

	tokenizer, err := cfg.Tokenizer()
	if err != nil {
		return err
	}

	timeout, err := parseTimeout(rc.Timeout)
	if err != nil {
		return err
	}

	metrics, shutdown := initObservability(rc.MetricsAddr)
	defer shutdown()

	reader := streamio.NewReader(os.Stdin)
	docs := readerSource[record.DiffDoc](reader)
	grouper := pagegroup.New(docs, diffDocPageKey)

	writer := streamio.NewWriter(os.Stdout, rc.Compress)
	marks := newProgressMarks(cmd.ErrOrStderr())
	summary := newRunSummary()

	var revisions, mended, emitted int64

	opts := mend.Options{
		Tokenizer: tokenizer,
		Timeout:   timeout,
		DropText:  rc.DropText,
		OnProgress: func(m diffstage.ProgressMark) {
			metrics.RevisionsProcessed.Inc()
			revisions++

			if m == mend.MarkMended {
				metrics.DiffsMended.Inc()
				mended++
			}

			if rc.Verbose {
				marks.mark(m)
			}
		},
	}

	for {
		_, items, ok, err := grouper.NextGroup()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		err = mend.ProcessPage(items, opts, func(doc record.DiffDoc) error {
			if doc.Diff != nil {
				metrics.ObserveDiff(time.Duration(doc.Diff.Time * float64(time.Second)))
			}

			emitted++

			return writer.Write(doc)
		})
		if err != nil {
			return err
		}
	}

	if rc.Verbose {
		summary.set("revisions processed", revisions)
		summary.set("diffs mended", mended)
		summary.set("diffs emitted", emitted)
		summary.print(cmd.ErrOrStderr())
	}

	return writer.Flush()
}
