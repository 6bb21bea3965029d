package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	apperrors "github.com/jrsteele09/backoffice-session/internal/errors"
	"github.com/jrsteele09/backoffice-session/session"
	"github.com/spf13/cobra"
)

var (
	signInEmail    string
	signInPassword string
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Restores the stored session and prints the current user and profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.start(cmd.Context(), cfg.GetBootstrapBackstop()); err != nil {
			return err
		}
		return printSnapshot(a.manager.Snapshot())
	},
}

var signInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Signs in with email and password and stores the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if signInPassword == "" {
			signInPassword = os.Getenv("BACKOFFICE_PASSWORD")
		}
		if signInEmail == "" || signInPassword == "" {
			return errors.New("--email and --password (or BACKOFFICE_PASSWORD) are required")
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.start(cmd.Context(), cfg.GetBootstrapBackstop()); err != nil {
			return err
		}
		if _, err := a.client.SignInWithPassword(cmd.Context(), signInEmail, signInPassword); err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
				return errors.New("invalid email or password")
			}
			return err
		}
		return printSnapshot(a.manager.Snapshot())
	},
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Ends the stored session and clears the cached profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.start(cmd.Context(), cfg.GetBootstrapBackstop()); err != nil {
			return err
		}
		if err := a.manager.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

func init() {
	signInCmd.Flags().StringVarP(&signInEmail, "email", "e", "", "account email")
	signInCmd.Flags().StringVarP(&signInPassword, "password", "p", "", "account password")

	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(signInCmd)
	rootCmd.AddCommand(signOutCmd)
}

func printSnapshot(snap session.Snapshot) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
