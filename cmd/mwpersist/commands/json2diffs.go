package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/config"
	"github.com/Sumatoshi-tech/mwpersist/internal/diffstage"
	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// Json2DiffsCommand implements
// `json2diffs --config P [--drop-text] [--timeout S|<infinity>]
// [--namespaces N,…|<all>] [--verbose]`: it reads Revisions partitioned by
// page from stdin and emits DiffDocs to stdout.
type Json2DiffsCommand struct {
	ConfigPath  string
	Timeout     string
	Namespaces  string
	MetricsAddr string
	Verbose     bool
	DropText    bool
	Compress    bool
}

// NewJSON2DiffsCommand builds the json2diffs cobra command.
func NewJSON2DiffsCommand() *cobra.Command {
	rc := &Json2DiffsCommand{}

	cmd := &cobra.Command{
		Use:   "json2diffs",
		Short: "Compute token-level diffs over a page-partitioned Revision stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd)
		},
	}

	cmd.Flags().StringVar(&rc.ConfigPath, "config", "", "diff-engine config file")
	cmd.Flags().BoolVar(&rc.DropText, "drop-text", false, "omit the text field from emitted diffs")
	cmd.Flags().StringVar(&rc.Timeout, "timeout", sentinelInfinity, "per-revision diff timeout in seconds, or <infinity>")
	cmd.Flags().StringVar(&rc.Namespaces, "namespaces", sentinelAll, "comma-separated allowed namespaces, or <all>")
	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")
	cmd.Flags().BoolVar(&rc.Compress, "compress", false, "LZ4-frame the output stream")
	cmd.Flags().StringVar(&rc.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics at this address")

	return cmd
}

func (rc *Json2DiffsCommand) run(cmd *cobra.Command) error {
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

	namespaces, err := parseNamespaces(rc.Namespaces)
	if err != nil {
		return err
	}

	metrics, shutdown := initObservability(rc.MetricsAddr)
	defer shutdown()

	reader := streamio.NewReader(os.Stdin)
	revs := diffstage.FilterNamespaces(readerSource[record.Revision](reader), namespaces)
	grouper := pagegroup.New(revs, revisionPageKey)

	writer := streamio.NewWriter(os.Stdout, rc.Compress)
	marks := newProgressMarks(cmd.ErrOrStderr())
	summary := newRunSummary()

	var revisions, timedOut, emitted int64

	onProgress := func(m diffstage.ProgressMark) {
		metrics.RevisionsProcessed.Inc()
		revisions++

		if m == diffstage.MarkTimeout {
			metrics.DiffsTimedOut.Inc()
			timedOut++
		}

		if rc.Verbose {
			marks.mark(m)
		}
	}

	for {
		_, items, ok, err := grouper.NextGroup()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		opts := diffstage.Options{
			Tokenizer:  tokenizer,
			OnProgress: onProgress,
			Timeout:    timeout,
			DropText:   rc.DropText,
		}

		err = diffstage.ProcessPage(items, opts, func(doc record.DiffDoc) error {
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
		summary.set("diffs timed out", timedOut)
		summary.set("diffs emitted", emitted)
		summary.print(cmd.ErrOrStderr())
	}

	return writer.Flush()
}
