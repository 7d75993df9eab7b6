package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/irsiksoftware/ladderbot/internal/adapters/discord"
	"github.com/irsiksoftware/ladderbot/internal/adapters/github"
	"github.com/irsiksoftware/ladderbot/internal/approval"
	"github.com/irsiksoftware/ladderbot/internal/bot"
	"github.com/irsiksoftware/ladderbot/internal/claude"
	"github.com/irsiksoftware/ladderbot/internal/config"
	"github.com/irsiksoftware/ladderbot/internal/logging"
)

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to init logging: %w", err)
			}
			log := logging.WithComponent("main")

			invoker := claude.NewInvoker(&claude.Config{
				Command:    cfg.Claude.Command,
				Transcript: cfg.Claude.Transcript,
			})
			if !invoker.IsAvailable() {
				log.Warn("Claude CLI not found on PATH, /ask-claude will fail",
					slog.String("command", cfg.Claude.Command))
			}

			handler := bot.New(bot.Options{
				BotToken:        cfg.Discord.BotToken,
				ApplicationID:   cfg.Discord.ApplicationID,
				Owner:           cfg.GitHub.Owner,
				PrivilegedRoles: cfg.Discord.PrivilegedRoles,
			},
				discord.NewClient(cfg.Discord.BotToken),
				github.NewClient(cfg.GitHub.Token),
				invoker,
				approval.NewManager(approval.DefaultWindow),
				config.NewStore(cfg.Structure),
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				log.Info("Shutting down", slog.String("signal", sig.String()))
				handler.Stop()
				cancel()
			}()

			fmt.Println("🚀 Starting LadderBot...")
			if err := handler.StartListening(ctx); err != nil && err != context.Canceled {
				return fmt.Errorf("listener stopped: %w", err)
			}
			return nil
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}

			cfg := config.DefaultConfig()
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("🔧 Wrote default configuration to %s\n", path)
			fmt.Println("Edit it to set your Discord bot token, application ID, and GitHub token.")
			return nil
		},
	}
}
