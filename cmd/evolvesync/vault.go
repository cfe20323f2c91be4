package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	vaultadapter "github.com/ericfisherdev/evolvesync/internal/adapter/driven/vault"
	"github.com/ericfisherdev/evolvesync/internal/config"
	"github.com/ericfisherdev/evolvesync/internal/domain/port/driven"
)

func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage portal accounts in the encrypted credential vault",
	}
	cmd.PersistentFlags().String("master", "", "vault master secret")

	cmd.AddCommand(newVaultAddCmd())
	cmd.AddCommand(newVaultRemoveCmd())
	cmd.AddCommand(newVaultListCmd())
	return cmd
}

func openVault() (*vaultadapter.Vault, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return vaultadapter.New(cfg.VaultPath), nil
}

func newVaultAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a portal account (creates the vault on first use)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			master, err := masterSecret(cmd)
			if err != nil {
				return err
			}
			username, err := cmd.Flags().GetString("username")
			if err != nil {
				return err
			}
			password, err := cmd.Flags().GetString("password")
			if err != nil {
				return err
			}
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}

			v, err := openVault()
			if err != nil {
				return err
			}
			added, err := v.Add(username, password, master)
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "account %q already exists\n", username)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %q added\n", username)
			return nil
		},
	}
	cmd.Flags().String("username", "", "portal username")
	cmd.Flags().String("password", "", "portal password")
	return cmd
}

func newVaultRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a portal account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			master, err := masterSecret(cmd)
			if err != nil {
				return err
			}
			username, err := cmd.Flags().GetString("username")
			if err != nil {
				return err
			}
			if username == "" {
				return errors.New("--username is required")
			}

			v, err := openVault()
			if err != nil {
				return err
			}
			removed, err := v.Remove(username, master)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "account %q not found\n", username)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %q removed\n", username)
			return nil
		},
	}
	cmd.Flags().String("username", "", "portal username")
	return cmd
}

func newVaultListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List portal accounts (usernames only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			master, err := masterSecret(cmd)
			if err != nil {
				return err
			}

			v, err := openVault()
			if err != nil {
				return err
			}
			creds, err := v.List(master)
			if err != nil {
				if errors.Is(err, driven.ErrVaultNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "no vault yet; add an account first")
					return nil
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "found %d account(s):\n", len(creds))
			for i, cred := range creds {
				fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s\n", i+1, cred.Username)
			}
			return nil
		},
	}
}
