package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggurbet/onchainsurveys/config"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "onchainsurveys",
		Short: "Casper Wallet sign-in for OnChain Surveys",
		Long: `onchainsurveys runs the wallet authentication server and a terminal
client that signs in with a local Casper key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before the environment")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, nil, err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		slog.SetDefault(logger)
		return cfg, logger, nil
	}

	rootCmd.AddCommand(
		serveCmd(load),
		keygenCmd(load),
		signinCmd(load),
		logoutCmd(load),
		statusCmd(load),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, *slog.Logger, error)
