package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/mwpersist/internal/ancillary"
	"github.com/Sumatoshi-tech/mwpersist/internal/streamio"
)

// ValidateCommand implements `validate SCHEMA`: each document on stdin is
// validated against SCHEMA, stopping the stream on the first failure (spec
// §7 "Schema validation failure").
type ValidateCommand struct {
	SchemaPath string
}

// NewValidateCommand builds the validate cobra command.
func NewValidateCommand() *cobra.Command {
	rc := &ValidateCommand{}

	cmd := &cobra.Command{
		Use:   "validate SCHEMA",
		Short: "Validate each document on stdin against a JSON Schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc.SchemaPath = args[0]

			return rc.run()
		},
	}

	return cmd
}

func (rc *ValidateCommand) run() error {
	loader := gojsonschema.NewReferenceLoader("file://" + rc.SchemaPath)

	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return fmt.Errorf("validate: load schema: %w", err)
	}

	reader := streamio.NewReader(os.Stdin)
	writer := streamio.NewWriter(os.Stdout, false)

	err = streamio.All(reader, func(doc ancillary.Doc) error {
		if err := ancillary.Validate(doc, schema); err != nil {
			return err
		}

		return writer.Write(doc)
	})
	if err != nil {
		return err
	}

	return writer.Flush()
}
