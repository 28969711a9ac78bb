package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aleen-ai/aleen-agents/backend/internal/config"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		text      string
		maxLength int
		verbose   bool
	)

	root := &cobra.Command{
		Use:           "sendtester",
		Short:         "Preview segmentation or send a message through the WhatsApp gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && verbose {
				fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&text, "text", "", "Message text; read from stdin when empty")
	root.PersistentFlags().IntVar(&maxLength, "max", 0, "Chunk length override (default WHATSAPP_MAX_LENGTH)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log gateway activity")

	logger := func() *slog.Logger {
		if !verbose {
			return slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	pacerConfig := func(cfg *config.Config) delivery.Config {
		pc := cfg.Evolution.Pacer()
		if maxLength > 0 {
			pc.MaxLength = maxLength
		}
		return pc
	}

	root.AddCommand(&cobra.Command{
		Use:   "preview",
		Short: "Print the chunks a message would be split into",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			body, err := readText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}
			pacer := delivery.NewPacer(nil, pacerConfig(cfg), logger())
			printChunks(cmd.OutOrStdout(), pacer.Preview(body))
			return nil
		},
	})

	var to string
	send := &cobra.Command{
		Use:     "send",
		Short:   "Deliver a message through the Evolution API",
		Example: "  sendtester send --to 5511999998888 --text \"Olá!\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			gwCfg := cfg.Evolution.Gateway()
			if !gwCfg.Complete() {
				return delivery.ErrGatewayNotConfigured
			}
			body, err := readText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			pacer := delivery.NewPacer(delivery.NewEvolutionGateway(gwCfg, logger()), pacerConfig(cfg), logger())
			start := time.Now()
			res := pacer.Deliver(cmd.Context(), to, body)

			out := cmd.OutOrStdout()
			if res.Sent {
				color.New(color.FgGreen).Fprintf(out, "sent %d/%d chunks in %s\n", res.Delivered, res.Chunks, time.Since(start).Round(time.Millisecond))
				return nil
			}
			color.New(color.FgRed).Fprintf(out, "failed after %d/%d chunks (%d attempted)\n", res.Delivered, res.Chunks, res.Attempted)
			return errors.New("delivery failed")
		},
	}
	send.Flags().StringVar(&to, "to", "", "Recipient phone number")
	_ = send.MarkFlagRequired("to")
	root.AddCommand(send)

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check the Evolution instance connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			gw := delivery.NewEvolutionGateway(cfg.Evolution.Gateway(), logger())
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			if !gw.HealthCheck(ctx) {
				return errors.New("evolution api unreachable")
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "evolution api connected")
			return nil
		},
	})

	return root
}

func readText(flagText string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(flagText) != "" {
		return flagText, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("no text given: use --text or pipe it on stdin")
	}
	return string(data), nil
}

func printChunks(w io.Writer, chunks []string) {
	head := color.New(color.FgCyan, color.Bold)
	faint := color.New(color.Faint)
	for i, chunk := range chunks {
		head.Fprintf(w, "[%d/%d]", i+1, len(chunks))
		faint.Fprintf(w, " %d chars\n", len([]rune(chunk)))
		fmt.Fprintf(w, "%s\n\n", chunk)
	}
}
