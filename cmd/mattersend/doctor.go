package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mattersend/internal/config"
	"mattersend/pkg/mattermost"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your mattersend setup",
		Long: `Verifies that the configuration, history database, and Mattermost
server are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("mattersend doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(config.ExpandPath(cfgPath)); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'mattersend init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Required server settings
			if cfg.Server.URL == "" {
				printFail("Server URL", "server.url is not set")
				failed++
			} else {
				printPass("Server URL", cfg.Server.URL)
				passed++
			}
			if cfg.Server.Token == "" {
				printFail("Token", "server.token is not set")
				failed++
			}
			if cfg.Server.ChannelID == "" {
				printWarn("Channel", "server.channelId is not set; every send needs --channel")
				warned++
			} else {
				printPass("Channel", cfg.Server.ChannelID)
				passed++
			}

			// 4. History database writable
			if cfg.History.Enabled {
				if err := checkDatabase(cfg.History.DBPath); err != nil {
					printWarn("History DB", err.Error())
					warned++
				} else {
					printPass("History DB", cfg.History.DBPath)
					passed++
				}
			}

			// 5. Server reachable and token accepted
			if cfg.Server.URL != "" && cfg.Server.Token != "" {
				if user, err := checkServer(cfg); err != nil {
					printFail("Server check", err.Error())
					failed++
				} else {
					printPass("Server check", fmt.Sprintf("authenticated as %s", user.Username))
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before sending.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nmattersend should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! mattersend is ready.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

// checkServer probes the API with the configured token and translates
// the client's error kinds into actionable messages.
func checkServer(cfg *config.Config) (*mattermost.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := newClient(cfg).Me(ctx)
	if err == nil {
		return user, nil
	}

	var nf *mattermost.NotFoundError
	if errors.As(err, &nf) {
		return nil, fmt.Errorf("%s does not answer at %s; is server.url a Mattermost server?", cfg.Server.URL, nf.Path)
	}
	var re *mattermost.RequestError
	if errors.As(err, &re) && re.StatusCode == 401 {
		return nil, fmt.Errorf("server rejected the token (HTTP 401); check server.token")
	}
	return nil, err
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
