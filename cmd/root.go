package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zulipmcp/bridge/internal/config"
)

// Version is set at build time via -ldflags "-X github.com/zulipmcp/bridge/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile     string
	zuliprcFile string
	verbose     bool

	flagSite       string
	flagUserEmail  string
	flagUserAPIKey string
	flagBotEmail   string
	flagBotAPIKey  string
	flagBotName    string
)

var rootCmd = &cobra.Command{
	Use:   "zulip-mcp",
	Short: "zulip-mcp — an AI-agent bridge to Zulip exposed over MCP",
	Long:  "zulip-mcp exposes a Zulip organization to MCP-speaking agents as a stdio tool server: messaging, streams, search, files, and agent-coordination primitives over Zulip's own REST and event-queue APIs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "server config file (default: ./zulip-mcp.json5 or $ZULIP_MCP_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&zuliprcFile, "zuliprc", "", "path to a .zuliprc credentials file (default: ~/.zuliprc)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.PersistentFlags().StringVar(&flagSite, "site", "", "Zulip site URL, e.g. https://example.zulipchat.com")
	rootCmd.PersistentFlags().StringVar(&flagUserEmail, "user-email", "", "Zulip user identity email")
	rootCmd.PersistentFlags().StringVar(&flagUserAPIKey, "user-api-key", "", "Zulip user identity API key")
	rootCmd.PersistentFlags().StringVar(&flagBotEmail, "bot-email", "", "Zulip bot identity email")
	rootCmd.PersistentFlags().StringVar(&flagBotAPIKey, "bot-api-key", "", "Zulip bot identity API key")
	rootCmd.PersistentFlags().StringVar(&flagBotName, "bot-name", "", "Zulip bot display name")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("ZULIP_MCP_CONFIG"); v != "" {
		return v
	}
	return "zulip-mcp.json5"
}

func resolveZuliprcPath() string {
	if zuliprcFile != "" {
		return zuliprcFile
	}
	if v := os.Getenv("ZULIP_MCP_ZULIPRC"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zuliprc"
	}
	return home + "/.zuliprc"
}

func loadConfigAndCredentials() (*config.Config, *config.Credentials, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}

	flags := config.FlagOverrides{
		Site:       flagSite,
		UserEmail:  flagUserEmail,
		UserAPIKey: flagUserAPIKey,
		BotEmail:   flagBotEmail,
		BotAPIKey:  flagBotAPIKey,
		BotName:    flagBotName,
	}
	creds, err := config.LoadCredentials(flags, resolveZuliprcPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load credentials: %w", err)
	}
	return cfg, creds, nil
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
