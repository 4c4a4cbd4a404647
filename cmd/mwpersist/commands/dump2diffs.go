package commands

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/ancillary"
	"github.com/Sumatoshi-tech/mwpersist/internal/config"
	"github.com/Sumatoshi-tech/mwpersist/internal/diffstage"
	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// Dump2DiffsCommand implements
// `dump2diffs [files…] --config P [--drop-text] [--threads N] [--verbose]`,
// combining the raw-pair mapping of dump2json with the diff computation of
// json2diffs in one pass, one worker per file.
type Dump2DiffsCommand struct {
	ConfigPath  string
	MetricsAddr string
	Threads     int
	Verbose     bool
	DropText    bool
	Compress    bool
	Files       []string
}

// NewDump2DiffsCommand builds the dump2diffs cobra command.
func NewDump2DiffsCommand() *cobra.Command {
	rc := &Dump2DiffsCommand{}

	cmd := &cobra.Command{
		Use:   "dump2diffs [files...]",
		Short: "Map raw (page, revision) pairs straight through to computed diffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc.Files = args

			return rc.run(cmd)
		},
	}

	cmd.Flags().StringVar(&rc.ConfigPath, "config", "", "diff-engine config file")
	cmd.Flags().IntVar(&rc.Threads, "threads", 1, "number of files to process concurrently")
	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")
	cmd.Flags().BoolVar(&rc.DropText, "drop-text", false, "omit the text field from emitted diffs")
	cmd.Flags().BoolVar(&rc.Compress, "compress", false, "LZ4-frame the output stream")
	cmd.Flags().StringVar(&rc.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics at this address")

	return cmd
}

func (rc *Dump2DiffsCommand) run(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(rc.ConfigPath)
	if err != nil {
		return err
	}

	tokenizer, err := cfg.Tokenizer()
	if err != nil {
		return err
	}

	metrics, shutdown := initObservability(rc.MetricsAddr)
	defer shutdown()

	inputs, err := openInputs(rc.Files)
	if err != nil {
		return err
	}

	writer := streamio.NewWriter(os.Stdout, rc.Compress)

	var mu sync.Mutex

	marks := newProgressMarks(cmd.ErrOrStderr())
	summary := newRunSummary()

	var revisions, timedOut, emitted atomic.Int64

	onProgress := func(m diffstage.ProgressMark) {
		metrics.RevisionsProcessed.Inc()
		revisions.Add(1)

		if m == diffstage.MarkTimeout {
			metrics.DiffsTimedOut.Inc()
			timedOut.Add(1)
		}

		if rc.Verbose {
			marks.mark(m)
		}
	}

	process := func(r *streamio.Reader) error {
		revs := readerSource[rawPageRevision](r)

		mapped := func() (record.Revision, bool, error) {
			pair, ok, err := revs()
			if err != nil || !ok {
				return record.Revision{}, ok, err
			}

			return ancillary.RevisionToDoc(pair.Page, pair.Revision), true, nil
		}

		grouper := pagegroup.New[record.Revision](mapped, revisionPageKey)

		for {
			_, items, ok, err := grouper.NextGroup()
			if err != nil {
				return err
			}

			if !ok {
				return nil
			}

			opts := diffstage.Options{
				Tokenizer:  tokenizer,
				OnProgress: onProgress,
				DropText:   rc.DropText,
			}

			err = diffstage.ProcessPage(items, opts, func(doc record.DiffDoc) error {
				if doc.Diff != nil {
					metrics.ObserveDiff(time.Duration(doc.Diff.Time * float64(time.Second)))
				}

				emitted.Add(1)

				mu.Lock()
				defer mu.Unlock()

				return writer.Write(doc)
			})
			if err != nil {
				return err
			}
		}
	}

	if err := runOverFiles(inputs, rc.Threads, process); err != nil {
		return err
	}

	if rc.Verbose {
		summary.set("revisions processed", revisions.Load())
		summary.set("diffs timed out", timedOut.Load())
		summary.set("diffs emitted", emitted.Load())
		summary.print(cmd.ErrOrStderr())
	}

	return writer.Flush()
}
