package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cashierlink/link-sdk-go/wallet"
)

func newKeystoreCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Manage local wallets",
	}

	var importKey string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create (or import with --private-key) a wallet; password from LINK_KEYSTORE_PASSWORD",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("LINK_KEYSTORE_PASSWORD")
			if password == "" {
				return errors.New("LINK_KEYSTORE_PASSWORD is not set")
			}
			km, err := wallet.NewKeystoreManager(a.cfg.Keystore.Dir)
			if err != nil {
				return err
			}

			var w wallet.Wallet
			if importKey != "" {
				w, err = wallet.NewWalletFromPrivateKey(importKey)
			} else {
				w, err = wallet.NewWallet()
			}
			if err != nil {
				return err
			}
			path, err := km.SaveWallet(w, password)
			if err != nil {
				return err
			}
			a.logger.Info("Wallet saved", "principal", w.Principal().String(), "path", path)
			fmt.Fprintln(cmd.OutOrStdout(), w.Principal().String())
			return nil
		},
	}
	newCmd.Flags().StringVar(&importKey, "private-key", "", "hex secp256k1 private key to import")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List wallets in the keystore directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			km, err := wallet.NewKeystoreManager(a.cfg.Keystore.Dir)
			if err != nil {
				return err
			}
			principals, err := km.List()
			if err != nil {
				return err
			}
			for _, p := range principals {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.AddCommand(newCmd, listCmd)
	return cmd
}
