package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/zulipmcp/bridge/internal/config"
	"github.com/zulipmcp/bridge/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("zulip-mcp doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (not found, defaults apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Credentials:")
	zuliprcPath := resolveZuliprcPath()
	fmt.Printf("    %-12s %s\n", "zuliprc:", zuliprcPath)
	creds, err := config.LoadCredentials(config.FlagOverrides{
		Site:       flagSite,
		UserEmail:  flagUserEmail,
		UserAPIKey: flagUserAPIKey,
		BotEmail:   flagBotEmail,
		BotAPIKey:  flagBotAPIKey,
		BotName:    flagBotName,
	}, zuliprcPath)
	if err != nil {
		fmt.Printf("    %-12s LOAD FAILED (%s)\n", "Status:", err)
	} else {
		fmt.Printf("    %-12s %s\n", "Site:", nonEmptyOr(creds.Site, "(unset)"))
		checkIdentity("User identity", creds.HasUser())
		checkIdentity("Bot identity", creds.HasBot())
	}

	fmt.Println()
	fmt.Println("  Store:")
	fmt.Printf("    %-12s %s\n", "Path:", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Printf("    %-12s OPEN FAILED (%s)\n", "Status:", err)
	} else {
		defer st.Close()
		v, verr := st.SchemaVersion(context.Background())
		if verr != nil {
			fmt.Printf("    %-12s VERSION CHECK FAILED (%s)\n", "Schema:", verr)
		} else {
			fmt.Printf("    %-12s v%d\n", "Schema:", v)
		}
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkIdentity(label string, complete bool) {
	status := "not configured"
	if complete {
		status = "configured"
	}
	fmt.Printf("    %-14s %s\n", label+":", status)
}

func nonEmptyOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
