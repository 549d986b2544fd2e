package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdellibergoli/ai-test-automation/internal/controller"
	"github.com/pdellibergoli/ai-test-automation/internal/observability"
)

// newActionsCmd creates the `actions` command, which prints the
// registered action catalog as seen by the policy.
func newActionsCmd() *cobra.Command {
	actionsCmd := &cobra.Command{
		Use:   "actions",
		Short: "Lists the registered actions and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := controller.New(observability.GetLogger())
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				schema, err := ctrl.Catalog().ExportSchema().JSONSchema()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), ctrl.Catalog().PromptDescription())
			return nil
		},
	}

	actionsCmd.Flags().Bool("json", false, "print the catalog as a JSON schema")
	return actionsCmd
}
