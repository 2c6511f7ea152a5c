package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ReconcileCmd settles a job whose outcome was learned elsewhere
var ReconcileCmd = &cobra.Command{
	Use:   "reconcile <assessment-id>",
	Short: "Mark an assessment's report job as settled",
	Long: `Clear the in-flight record for an assessment after its report was seen
through another channel, for example by opening it in the web app. Use it when
a socket dropped without a result and you don't want to wait for the job
timeout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		entityID := args[0]
		if !a.service.IsGenerating(entityID) {
			pterm.Info.Printfln("No report job recorded for %s", entityID)
			return nil
		}
		a.service.Reconcile(entityID)
		pterm.Success.Printfln("Report job for %s marked as settled", entityID)
		return nil
	},
}
