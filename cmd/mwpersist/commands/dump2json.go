package commands

import (
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/ancillary"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// rawPageRevision is one line of dump2json's input: the minimal (page,
// revision) pair ancillary.RevisionToDoc maps to a record.Revision, standing
// in for the real MediaWiki XML dump iterator (out of scope per spec.md).
type rawPageRevision struct {
	Page     ancillary.RawPage     `json:"page"`
	Revision ancillary.RawRevision `json:"revision"`
}

// Dump2JSONCommand implements `dump2json [files…] [--threads N] [--verbose]`.
type Dump2JSONCommand struct {
	Threads  int
	Verbose  bool
	Compress bool
	Files    []string
}

// NewDump2JSONCommand builds the dump2json cobra command.
func NewDump2JSONCommand() *cobra.Command {
	rc := &Dump2JSONCommand{}

	cmd := &cobra.Command{
		Use:   "dump2json [files...]",
		Short: "Map raw (page, revision) pairs to the Revision record shape",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc.Files = args

			return rc.run(cmd)
		},
	}

	cmd.Flags().IntVar(&rc.Threads, "threads", 1, "number of files to process concurrently")
	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")
	cmd.Flags().BoolVar(&rc.Compress, "compress", false, "LZ4-frame the output stream")

	return cmd
}

func (rc *Dump2JSONCommand) run(cmd *cobra.Command) error {
	inputs, err := openInputs(rc.Files)
	if err != nil {
		return err
	}

	writer := streamio.NewWriter(os.Stdout, rc.Compress)

	var mu sync.Mutex

	process := func(r *streamio.Reader) error {
		return streamio.All(r, func(pair rawPageRevision) error {
			doc := ancillary.RevisionToDoc(pair.Page, pair.Revision)

			mu.Lock()
			defer mu.Unlock()

			return writer.Write(doc)
		})
	}

	if err := runOverFiles(inputs, rc.Threads, process); err != nil {
		return err
	}

	progressf(!rc.Verbose, cmd.ErrOrStderr(), "dump2json: done")

	return writer.Flush()
}
