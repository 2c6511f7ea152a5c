// Package display decides between human and machine output for CLI commands.
package display

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// OutputEnv forces JSON output for every command when set to "json"
const OutputEnv = "REPORTWATCH_OUTPUT"

// ShouldOutputJSON determines if a command should output JSON based on its
// --json flag, falling back to REPORTWATCH_OUTPUT
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd != nil && cmd.Flags().Lookup("json") != nil && cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}
	return strings.EqualFold(os.Getenv(OutputEnv), "json")
}
