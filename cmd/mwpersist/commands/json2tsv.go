package commands

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/ancillary"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// JSON2TSVCommand implements `json2tsv [--header] FIELD…`.
type JSON2TSVCommand struct {
	Header bool
	Fields []string
}

// NewJSON2TSVCommand builds the json2tsv cobra command.
func NewJSON2TSVCommand() *cobra.Command {
	rc := &JSON2TSVCommand{}

	cmd := &cobra.Command{
		Use:   "json2tsv FIELD...",
		Short: "Extract dotted field paths from each document as a TSV row",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc.Fields = args

			return rc.run()
		},
	}

	cmd.Flags().BoolVar(&rc.Header, "header", false, "emit a header row of field paths first")

	return cmd
}

func (rc *JSON2TSVCommand) run() error {
	out, flush := textStdout()
	defer flush() //nolint:errcheck

	if rc.Header {
		if _, err := out.WriteString(strings.Join(rc.Fields, "\t") + "\n"); err != nil {
			return err
		}
	}

	reader := streamio.NewReader(os.Stdin)

	err := streamio.All(reader, func(doc ancillary.Doc) error {
		_, err := out.WriteString(ancillary.JSON2TSV(doc, rc.Fields) + "\n")

		return err
	})
	if err != nil {
		return err
	}

	return flush()
}
