package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keygatehq/keygate/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage keygate configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default keygate.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	return cmd
}

func runConfigInit(force bool) error {
	path := "keygate.yaml"

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := config.WriteDefault(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Set auth.jwt_secret (or KEYGATE_AUTH_JWT_SECRET), then run 'keygate serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}
}

func runConfigShow() error {
	initConfig()

	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		fmt.Printf("Config file: %s\n", configFile)
	} else {
		fmt.Println("Config file: (none found, using defaults)")
	}
	fmt.Println()

	cfg := settings()
	fmt.Printf("  server.host: %s\n", cfg.Server.Host)
	fmt.Printf("  server.port: %d\n", cfg.Server.Port)
	fmt.Printf("  server.login_rate_limit: %d/min\n", cfg.Server.LoginRateLimit)
	fmt.Printf("  server.key_rate_limit: %d/min\n", cfg.Server.KeyRateLimit)
	fmt.Printf("  store.driver: %s\n", cfg.Store.Driver)
	fmt.Printf("  store.init_schema: %t\n", cfg.Store.InitSchema)
	fmt.Printf("  auth.require_secure: %t\n", cfg.Auth.RequireSecure)
	fmt.Printf("  auth.jwt_secret: %s\n", maskSecret(cfg.Auth.JWTSecret))
	fmt.Printf("  keys.environments: %v\n", cfg.Keys.Environments)
	fmt.Printf("  keys.types: %v\n", cfg.Keys.Types)
	fmt.Printf("  keys.size_bytes: %d\n", cfg.Keys.SizeBytes)
	fmt.Printf("  logging.level: %s\n", cfg.Logging.Level)
	fmt.Printf("  logging.format: %s\n", cfg.Logging.Format)
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "********"
}
