package pywr

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pywr-go/pywr/internal/schema"
)

var exportSchemaCmd = &cobra.Command{
	Use:   "export-schema",
	Short: "Print the JSON Schema for a model document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := schema.ExportJSONSchema()
		if err != nil {
			return fail(exitUsage, "generating schema: %w", err)
		}
		if _, err := fmt.Fprintln(os.Stdout, string(out)); err != nil {
			return fail(exitUsage, "writing schema: %w", err)
		}
		return nil
	},
}
