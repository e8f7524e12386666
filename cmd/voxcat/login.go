package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var loginPassword string

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (or set VOXCAT_PASSWORD)")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Exchange credentials for a session token and cache it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		password := loginPassword
		if password == "" {
			password = os.Getenv("VOXCAT_PASSWORD")
		}
		if password == "" {
			return fmt.Errorf("no password; pass --password or set VOXCAT_PASSWORD")
		}

		cfg, err := loadRunConfig()
		if err != nil {
			return err
		}
		state, err := openState(cfg)
		if err != nil {
			return err
		}
		defer state.Close()

		c := buildClient(cfg, state)
		token, err := c.ConnectWithCredentials(email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		defer c.Disconnect()

		me := c.CurrentUser()
		if err := state.SetToken(email, token); err != nil {
			return fmt.Errorf("failed to cache token: %w", err)
		}
		if cfg.API.Account == "" {
			// Remember the account so later runs find the token.
			if err := state.SetConfig("account", email); err != nil {
				return fmt.Errorf("failed to remember account: %w", err)
			}
		}

		if me != nil {
			fmt.Printf("Logged in as %s#%s\n", me.Name, me.Discriminator)
		} else {
			fmt.Println("Logged in")
		}
		return nil
	},
}
