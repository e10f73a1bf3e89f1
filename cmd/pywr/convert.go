package pywr

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	v1 "github.com/pywr-go/pywr/internal/schema/v1"
)

var convertCmd = &cobra.Command{
	Use:   "convert <legacy.yaml>",
	Short: "Upgrade a v1 YAML model document to the current v2 JSON shape",
	Long:  "Reads a legacy (timestepper/from_node/to_node) YAML model document and writes the equivalent v2 JSON document to stdout for piping into `pywr run`.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return doConvert(args[0])
	},
}

func doConvert(path string) error {
	doc, err := v1.LoadAndConvert(path)
	if err != nil {
		return fail(exitModelInvalid, "converting model: %w", err)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fail(exitUsage, "encoding converted model: %w", err)
	}
	if _, err := fmt.Fprintln(os.Stdout, string(out)); err != nil {
		return fail(exitUsage, "writing converted model: %w", err)
	}
	return nil
}
