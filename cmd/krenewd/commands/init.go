package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arenillas/krenewd/internal/cli/prompt"
	"github.com/arenillas/krenewd/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample krenewd configuration file with default values.

By default, the configuration file is created at $XDG_CONFIG_HOME/krenewd/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  krenewd init

  # Initialize with custom path
  krenewd init --config /etc/krenewd/config.yaml

  # Force overwrite existing config
  krenewd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Overwrite existing config at %s?", configPath), initForce)
		if err != nil {
			if prompt.IsAborted(err) {
				return nil
			}
			return err
		}
		if !ok {
			fmt.Println("Keeping existing configuration.")
			return nil
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the daemon with: krenewd start")
	fmt.Printf("  3. Or specify custom config: krenewd start --config %s\n", configPath)

	return nil
}
