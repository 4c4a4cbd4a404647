package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/ancillary"
	"github.com/Sumatoshi-tech/mwpersist/internal/pagegroup"
	"github.com/Sumatoshi-tech/mwpersist/internal/record"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// WikiHadoop2JSONCommand implements `wikihadoop2json [--verbose]`: it
// collapses each page carrying exactly two revisions (the Wikihadoop
// page-pair convention) to that page's second revision.
type WikiHadoop2JSONCommand struct {
	Verbose bool
}

// NewWikiHadoop2JSONCommand builds the wikihadoop2json cobra command.
func NewWikiHadoop2JSONCommand() *cobra.Command {
	rc := &WikiHadoop2JSONCommand{}

	cmd := &cobra.Command{
		Use:   "wikihadoop2json",
		Short: "Collapse Wikihadoop page-pairs to their second revision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd)
		},
	}

	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")

	return cmd
}

func (rc *WikiHadoop2JSONCommand) run(cmd *cobra.Command) error {
	reader := streamio.NewReader(os.Stdin)
	revs := readerSource[record.Revision](reader)

	writer := streamio.NewWriter(os.Stdout, false)

	emitted := 0

	err := ancillary.WikiHadoop2JSON(revs, revisionPageKey, func(rev record.Revision) error {
		emitted++

		return writer.Write(rev)
	})
	if err != nil {
		return err
	}

	progressf(!rc.Verbose, cmd.ErrOrStderr(), "wikihadoop2json: emitted %d revisions", emitted)

	return writer.Flush()
}
