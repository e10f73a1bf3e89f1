package pywr

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pywr-go/pywr/internal/lp"
	"github.com/pywr-go/pywr/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <model.json>",
	Short: "Load and build a model document without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return doValidate(args[0])
	},
}

func doValidate(path string) error {
	doc, err := schema.Load(path)
	if err != nil {
		return fail(exitModelInvalid, "loading model: %w", err)
	}
	built, err := schema.Build(doc)
	if err != nil {
		return fail(exitModelInvalid, "building model: %w", err)
	}
	if _, _, err := lp.Build(built.Net); err != nil {
		return fail(exitModelInvalid, "building LP template: %w", err)
	}
	logrus.Infof("valid: %d node(s), %d edge(s), %d parameter(s), %d scenario(s), %d timestep(s)",
		len(built.Net.Nodes), len(built.Net.Edges), len(built.Params), built.Grid.Len(), built.Steps.Len())
	return nil
}
