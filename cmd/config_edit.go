package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chargecal/config"
)

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the active config in an editor.",
	Long: `Open the active chargecal config file in your editor.

Editor selection order:
1) $VISUAL
2) $EDITOR
3) vi

If no config file exists yet, this command creates one with an example template first.
After the editor exits, the content is validated (API URL, timezone, log level,
import rules). An invalid file is kept so it can be fixed with another edit.`,
	Example: `
  # Edit active config
  chargecal config edit

  # Edit with a specific editor
  VISUAL="code --wait" chargecal config edit
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := resolveConfigEditPath(cfgFile, viper.ConfigFileUsed())
		if err != nil {
			return err
		}

		created, err := ensureConfigFileWithTemplate(configPath)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("No config file found. Created example config at: %s\n", configPath)
		}

		editor := resolveEditorValue(os.Getenv("VISUAL"), os.Getenv("EDITOR"))
		editorCommand, err := buildEditorCommand(editor, configPath)
		if err != nil {
			return err
		}
		editorCommand.Stdin = os.Stdin
		editorCommand.Stdout = os.Stdout
		editorCommand.Stderr = os.Stderr
		if err := editorCommand.Run(); err != nil {
			return fmt.Errorf("opening editor failed: %w", err)
		}

		content, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("reading edited config failed: %w", err)
		}
		cfg, err := config.ValidateYAMLContent(content)
		if err != nil {
			for _, problem := range configProblems(err) {
				fmt.Fprintf(os.Stderr, "  - %s\n", problem)
			}
			return fmt.Errorf("config validation failed in %s (run 'chargecal config edit' again to fix it): %w", configPath, err)
		}

		printEditedConfig(os.Stdout, configPath, cfg)
		return nil
	},
}

// configProblems turns validator field errors into messages keyed by the
// YAML path, e.g. "business.timezone: unknown IANA timezone".
func configProblems(err error) []string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		key := configKey(fe.Namespace())
		switch fe.Tag() {
		case "required":
			problems = append(problems, key+": is required")
		case "url":
			problems = append(problems, fmt.Sprintf("%s: %q is not a URL", key, fe.Value()))
		case "timezone":
			problems = append(problems, fmt.Sprintf("%s: %q is not an IANA timezone", key, fe.Value()))
		case "oneof":
			problems = append(problems, fmt.Sprintf("%s: %q must be one of %s", key, fe.Value(), fe.Param()))
		case "gte":
			problems = append(problems, key+": must not be negative")
		default:
			problems = append(problems, fmt.Sprintf("%s: failed %s", key, fe.Tag()))
		}
	}
	return problems
}

// configKey maps "Config.Business.Timezone" to "business.timezone".
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func printEditedConfig(out io.Writer, path string, cfg *config.Config) {
	fmt.Fprintf(out, "Configuration saved and validated: %s\n", path)
	fmt.Fprintf(out, "  API:      %s\n", cfg.API.URL)
	fmt.Fprintf(out, "  Timezone: %s\n", cfg.Business.Timezone)
	fmt.Fprintf(out, "  Storage:  %s\n", cfg.Storage.Path)
	fmt.Fprintf(out, "  Rules:    %d\n", len(cfg.Rules))
}

func resolveConfigEditPath(configFileFlag, configFileUsed string) (string, error) {
	if strings.TrimSpace(configFileFlag) != "" {
		return configFileFlag, nil
	}
	if strings.TrimSpace(configFileUsed) != "" {
		return configFileUsed, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".chargecal.yaml"), nil
}

func ensureConfigFileWithTemplate(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("checking config file failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating config directory failed: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.ExampleYAML()), 0o600); err != nil {
		return false, fmt.Errorf("creating example config failed: %w", err)
	}

	return true, nil
}

func resolveEditorValue(visual, editor string) string {
	if strings.TrimSpace(visual) != "" {
		return visual
	}
	if strings.TrimSpace(editor) != "" {
		return editor
	}
	return "vi"
}

func buildEditorCommand(editorValue, configPath string) (*exec.Cmd, error) {
	fields := strings.Fields(strings.TrimSpace(editorValue))
	if len(fields) == 0 {
		return nil, fmt.Errorf("editor command is empty")
	}

	args := append(fields[1:], configPath)
	return exec.Command(fields[0], args...), nil
}

func init() {
	configCmd.AddCommand(configEditCmd)
}
