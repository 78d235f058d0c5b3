package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ggurbet/onchainsurveys"
	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/adapters/gateway"
	"github.com/ggurbet/onchainsurveys/adapters/sessionstore"
	"github.com/ggurbet/onchainsurveys/adapters/wallet"
	"github.com/ggurbet/onchainsurveys/config"
	"github.com/ggurbet/onchainsurveys/core"
)

// promptApprover asks on the terminal before every signature.
func promptApprover(in io.Reader, out io.Writer) wallet.Approver {
	reader := bufio.NewReader(in)
	return func(_ context.Context, message string) (bool, error) {
		fmt.Fprintf(out, "Sign message %q? [y/N] ", message)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

type walletSession struct {
	client  onchainsurveys.Client
	wallet  *wallet.KeyfileWallet
	gateway *gateway.Client
}

func openSession(cfg config.Client, logger *slog.Logger, approve wallet.Approver) (*walletSession, error) {
	kp, err := casper.LoadKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("loading wallet key (run keygen first): %w", err)
	}

	w := wallet.NewKeyfileWallet(kp, wallet.NewEventTarget(), approve)
	gw := gateway.NewClient(cfg.AuthURL, cfg.GatewayTimeout)

	client, err := onchainsurveys.New(onchainsurveys.Options{
		Wallet:      w,
		Events:      w.Events(),
		Store:       sessionstore.NewFileStore(cfg.SessionFile),
		Gateway:     gw,
		SignTimeout: cfg.SignTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return &walletSession{client: client, wallet: w, gateway: gw}, nil
}

func signinCmd(load loader) *cobra.Command {
	var (
		email string
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with the local wallet key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			approve := promptApprover(cmd.InOrStdin(), cmd.OutOrStdout())
			if yes {
				approve = wallet.AutoApprove
			}

			s, err := openSession(cfg.Client, logger, approve)
			if err != nil {
				return err
			}
			defer s.client.Close()

			s.wallet.Connect()
			s.client.Wait()

			session, err := s.client.SignIn(cmd.Context(), email)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), core.Notice(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s with %s\n", session.UserID, core.ShortKey(session.ActivePublicKeyHex))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "email for first registration")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "sign without prompting")

	return cmd
}

func logoutCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session and revoke its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			s, err := openSession(cfg.Client, logger, nil)
			if err != nil {
				return err
			}
			defer s.client.Close()

			if err := s.client.Logout(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), core.Notice(err))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func statusCmd(load loader) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			stored, ok := sessionstore.NewFileStore(cfg.Client.SessionFile).Read()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:       %s\n", stored.UserID)
			fmt.Fprintf(out, "Public key: %s\n", stored.ActivePublicKeyHex)
			fmt.Fprintf(out, "Registered: %t\n", stored.AlreadyRegistered)

			if verify {
				me, err := gateway.NewClient(cfg.Client.AuthURL, cfg.Client.GatewayTimeout).Me(cmd.Context(), stored.Token)
				if err != nil {
					return fmt.Errorf("token rejected by server: %w", err)
				}
				fmt.Fprintf(out, "Server:     token valid for %s\n", me.UserID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "check the token against the auth server")

	return cmd
}
