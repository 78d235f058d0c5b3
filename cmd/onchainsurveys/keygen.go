package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/adapters/tokenizer"
)

func keygenCmd(load loader) *cobra.Command {
	var (
		algorithm string
		out       string
		jwtKey    bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a wallet key or a JWT signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			if jwtKey {
				key, err := tokenizer.GenerateSigningKey()
				if err != nil {
					return err
				}
				encoded, err := tokenizer.EncodeSigningKey(key)
				if err != nil {
					return err
				}
				if out == "" {
					_, err = cmd.OutOrStdout().Write(encoded)
					return err
				}
				return os.WriteFile(out, encoded, 0o600)
			}

			algo, err := casper.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Client.KeyFile
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			}

			kp, err := casper.GenerateKeyPair(algo)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
				return err
			}
			if err := kp.SaveKeyFile(out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Public key:   %s\n", kp.PublicKeyHex())
			fmt.Fprintf(cmd.OutOrStdout(), "Account hash: %s\n", kp.PublicKey().AccountHash())
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to:     %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", "ed25519", "key algorithm: ed25519 or secp256k1")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (defaults to WALLET_KEY_FILE)")
	cmd.Flags().BoolVar(&jwtKey, "jwt", false, "generate a P-256 JWT signing key instead")

	return cmd
}
