package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chargecal/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show active configuration values.",
	Long: `Display the currently loaded configuration and the resolved config file path.

This command validates the configuration before printing values. The API token
is masked.`,
	Example: `
  # Show active configuration
  chargecal config show
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		source := viper.ConfigFileUsed()
		if source == "" {
			source = "(defaults and environment)"
		}
		fmt.Println("Config loaded from:", source)
		printConfig(os.Stdout, cfg)
		return nil
	},
}

func printConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "api.url: %s\n", cfg.API.URL)
	fmt.Fprintf(out, "api.token: %s\n", maskSecret(cfg.API.Token))
	fmt.Fprintf(out, "api.timeout: %s\n", cfg.API.Timeout)
	fmt.Fprintf(out, "business.timezone: %s\n", cfg.Business.Timezone)
	fmt.Fprintf(out, "storage.path: %s\n", cfg.Storage.Path)
	fmt.Fprintf(out, "holidays.file: %s\n", cfg.Holidays.File)
	fmt.Fprintf(out, "log.level: %s\n", cfg.Log.Level)
	fmt.Fprintf(out, "rules: %d\n", len(cfg.Rules))
	for i, rule := range cfg.Rules {
		fmt.Fprintf(out, "rules[%d].name: %s\n", i, rule.Name)
		fmt.Fprintf(out, "rules[%d].file_template: %s\n", i, rule.FileTemplate)
		fmt.Fprintf(out, "rules[%d].kind: %s\n", i, rule.Kind)
		fmt.Fprintf(out, "rules[%d].project_id: %s\n", i, rule.ProjectID)
		fmt.Fprintf(out, "rules[%d].project_code: %s\n", i, rule.ProjectCode)
		fmt.Fprintf(out, "rules[%d].stage_id: %s\n", i, rule.StageID)
		fmt.Fprintf(out, "rules[%d].activity: %s\n", i, rule.Activity)
		fmt.Fprintf(out, "rules[%d].task_id: %s\n", i, rule.TaskID)
	}
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
