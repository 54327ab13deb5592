package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials against the service",
	Long: `Login runs the zero-knowledge verification round trip. Only a
purpose-separated verification value leaves this machine; the password
never does.`,
	Example: `  logvault login --tenant t1 --username alice
  logvault login --tenant t1 --username alice --password -`,
	RunE: runLogin,
}

var (
	loginTenant   string
	loginUsername string
	loginPassword string
)

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginTenant, "tenant", "t", "",
		"Tenant ID (required)")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "",
		"Username (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "",
		"Password (will prompt if not provided)")

	_ = loginCmd.MarkFlagRequired("tenant")
	_ = loginCmd.MarkFlagRequired("username")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if loginTenant == "" && cfg.Auth.TenantID != "" {
		loginTenant = cfg.Auth.TenantID
	}

	// Get password if not provided
	if loginPassword == "" {
		var err error
		loginPassword, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	session, err := apiClient.Auth.Login(ctx, loginTenant, loginUsername, loginPassword)
	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		} else {
			printError("Login failed: %v", err)
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":    true,
			"tenant_id":  session.TenantID,
			"expires_at": session.ExpiresAt,
		})
	} else {
		printSuccess("Authenticated to tenant %s (session expires %s)",
			session.TenantID, session.ExpiresAt.Format("15:04:05"))
	}

	return nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return "", err
	}

	return string(password), nil
}
