package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mattersend/internal/config"
	"mattersend/internal/history"
	"mattersend/pkg/mattermost"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = newLogger("info")

	root := &cobra.Command{
		Use:   "mattersend",
		Short: "Send messages and files to a Mattermost channel",
		Long:  "mattersend posts messages and uploads files to a Mattermost channel from the command line.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.mattersend/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(uploadCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config (run 'mattersend init' to create one): %w", err)
	}
	logger = newLogger(cfg.Logging.Level)
	return cfg, nil
}

func newClient(cfg *config.Config) *mattermost.Client {
	return mattermost.NewClient(mattermost.Config{
		URL:        cfg.Server.URL,
		Token:      cfg.Server.Token,
		ChannelID:  cfg.Server.ChannelID,
		HTTPClient: mattermost.SharedHTTPClient(time.Duration(cfg.Server.TimeoutSeconds) * time.Second),
		Logger:     logger,
	})
}

// openHistory opens the send log when enabled. A nil store means
// history is off or unavailable; sends proceed regardless.
func openHistory(cfg *config.Config) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.DBPath, logger)
	if err != nil {
		logger.Warn("history store unavailable", "path", cfg.History.DBPath, "err", err)
		return nil
	}
	return store
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			fmt.Printf("Edit %s and set server.url, server.token, and server.channelId.\n", cfgPath)
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var channel string
	var attach []string

	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Send a message, optionally with attached files",
		Long: `Sends a message to the configured channel and prints the post ID.
Text is read from the argument, or from stdin when omitted. Each
--attach flag uploads a file and attaches it to the message.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			text, err := messageText(args)
			if err != nil {
				return err
			}

			files := make([]mattermost.File, 0, len(attach))
			for _, path := range attach {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read attachment %s: %w", path, err)
				}
				files = append(files, mattermost.File{Name: filepath.Base(path), Content: content})
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := newClient(cfg)

			var postID string
			if len(files) > 0 {
				postID, err = client.SendMessageWithFiles(ctx, text, files, channel)
			} else {
				postID, err = client.SendMessage(ctx, text, channel, nil)
			}
			if err != nil {
				return err
			}

			recordMessage(ctx, cfg, postID, channel, text, len(files))
			fmt.Println(postID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&channel, "channel", "C", "", "channel ID (default: server.channelId from config)")
	cmd.Flags().StringArrayVarP(&attach, "attach", "a", nil, "file to attach (repeatable)")
	return cmd
}

// messageText returns the message from the argument or stdin.
func messageText(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func recordMessage(ctx context.Context, cfg *config.Config, postID, channel, text string, fileCount int) {
	store := openHistory(cfg)
	if store == nil {
		return
	}
	defer store.Close()

	if channel == "" {
		channel = cfg.Server.ChannelID
	}
	if err := store.RecordMessage(ctx, postID, channel, text, fileCount); err != nil {
		logger.Warn("failed to record send in history", "err", err)
	}
	if _, err := store.Prune(ctx, cfg.History.RetentionDays); err != nil {
		logger.Warn("failed to prune history", "err", err)
	}
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file and print its file ID",
		Long: `Uploads a file to the configured channel without sending a message.
The printed file ID can be attached to a later send.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file %s: %w", args[0], err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := newClient(cfg)
			filename := filepath.Base(args[0])
			fileID, err := client.UploadFile(ctx, filename, content)
			if err != nil {
				return err
			}

			if store := openHistory(cfg); store != nil {
				defer store.Close()
				if err := store.RecordUpload(ctx, fileID, cfg.Server.ChannelID, filename); err != nil {
					logger.Warn("failed to record upload in history", "err", err)
				}
			}

			fmt.Println(fileID)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sends from the local log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("history is disabled in config")
			}

			store, err := history.Open(cfg.History.DBPath, logger)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("No sends recorded yet.")
				return nil
			}

			for _, e := range entries {
				detail := e.Preview
				if e.Kind == history.KindMessage && e.FileCount > 0 {
					detail = fmt.Sprintf("%s (+%d files)", e.Preview, e.FileCount)
				}
				fmt.Printf("%s  %-7s  %-26s  %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.RemoteID, detail)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the effective config with the token masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(config.Sanitize(cfg))
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
