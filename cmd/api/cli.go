package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aleen-ai/aleen-agents/backend/internal/config"
	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:   "aleen-api",
		Short: "Aleen conversational agents backend",
		Long: strings.TrimSpace(`aleen-api routes inbound messages to the onboarding, sales, support and
out-of-context personas, generates replies and delivers them to WhatsApp.

Running without a subcommand starts the HTTP server.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnvFile(envFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before reading the environment")

	root.AddCommand(newServeCommand())
	root.AddCommand(newPersonasCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP API",
		Example: "  aleen-api serve\n  PORT=9000 aleen-api serve --env-file prod.env",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newPersonasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "Load personas from the configured source and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			reg := persona.NewRegistry(newPersonaSource(cfg.Personas), logger)
			loadErr := reg.Load(ctx)

			printPersonas(cmd.OutOrStdout(), reg.List(), loadErr)
			return nil
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	addr, _ := cfg.Server.Addr()
	return serve(ctx, addr, app.Router, logger)
}

func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s not loaded (%v), using process environment only\n", path, err)
	}
}

func printPersonas(w io.Writer, items []persona.Persona, loadErr error) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)

	if loadErr != nil {
		yellow.Fprintf(w, "persona source unavailable: %v\n", loadErr)
	}
	if len(items) == 0 {
		yellow.Fprintln(w, "no personas loaded")
		return
	}

	for _, p := range items {
		cyan.Fprintf(w, "%-12s", p.Type)
		green.Fprintf(w, " %s", p.Name)
		faint.Fprintf(w, " [%s]\n", p.Identifier)
		if p.Description != "" {
			fmt.Fprintf(w, "             %s\n", p.Description)
		}
		fmt.Fprintf(w, "             prompt: %d chars\n", len([]rune(p.Instruction)))
	}
}
