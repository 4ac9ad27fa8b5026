package cmd

import "github.com/spf13/cobra"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage chargecal configuration file values.",
	Long: `Create, edit, and display the chargecal configuration file.

The configuration stores application-wide values and import rules:
- api.url / api.token / api.timeout
- business.timezone
- storage.path
- holidays.file
- log.level
- rules[].name / file_template / kind / project_id / stage_id / activity / task_id

Every key can be overridden by an environment variable with the CHARGECAL_
prefix, e.g. CHARGECAL_API_TOKEN or CHARGECAL_BUSINESS_TIMEZONE.`,
	Example: `
  # Create default config in $HOME/.chargecal.yaml
  chargecal config create

  # Show active config and source file
  chargecal config show

  # Open active config in editor (creates example if missing)
  chargecal config edit
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
