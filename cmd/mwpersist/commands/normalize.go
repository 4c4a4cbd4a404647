package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/mwpersist/internal/ancillary"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// NewNormalizeCommand builds the `normalize` cobra command: it rewrites the
// deprecated `page.redirect = {title}` shape to `page.redirect_title`.
func NewNormalizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Upgrade documents from the deprecated page.redirect shape",
		RunE: func(_ *cobra.Command, _ []string) error {
			reader := streamio.NewReader(os.Stdin)
			writer := streamio.NewWriter(os.Stdout, false)

			err := streamio.All(reader, func(doc ancillary.Doc) error {
				return writer.Write(ancillary.Normalize(doc))
			})
			if err != nil {
				return err
			}

			return writer.Flush()
		},
	}

	return cmd
}
