package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/ancillary"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// TruncateTextCommand implements `truncate_text [--max-chars N=2097152] [--verbose]`.
type TruncateTextCommand struct {
	MaxChars int
	Verbose  bool
}

// NewTruncateTextCommand builds the truncate_text cobra command.
func NewTruncateTextCommand() *cobra.Command {
	rc := &TruncateTextCommand{}

	cmd := &cobra.Command{
		Use:   "truncate_text",
		Short: "Cap each document's text field and flag whether it was truncated",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.run(cmd)
		},
	}

	cmd.Flags().IntVar(&rc.MaxChars, "max-chars", ancillary.DefaultMaxChars, "maximum text length in unicode characters")
	cmd.Flags().BoolVarP(&rc.Verbose, "verbose", "v", false, "print progress information")

	return cmd
}

func (rc *TruncateTextCommand) run(cmd *cobra.Command) error {
	reader := streamio.NewReader(os.Stdin)
	writer := streamio.NewWriter(os.Stdout, false)

	count := 0

	err := streamio.All(reader, func(doc ancillary.Doc) error {
		count++

		return writer.Write(ancillary.TruncateText(doc, rc.MaxChars))
	})
	if err != nil {
		return err
	}

	progressf(!rc.Verbose, cmd.ErrOrStderr(), "truncate_text: processed %d documents", count)

	return writer.Flush()
}
