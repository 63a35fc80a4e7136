package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in or register, then save the API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		fmt.Print("Username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(username)

		fmt.Print("Do you have an account? [y/n]: ")
		answer, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		register := strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "n")

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		c := newClient(baseURL(cmd), "")
		var creds *keyData
		if register {
			creds, err = c.register(cmd.Context(), username, string(password))
		} else {
			creds, err = c.login(cmd.Context(), username, string(password))
		}
		if err != nil {
			return err
		}

		path, err := saveAPIKey(creds.APIKey)
		if err != nil {
			return err
		}
		fmt.Printf("[ok] logged in as %s, API key saved to %s\n", username, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
