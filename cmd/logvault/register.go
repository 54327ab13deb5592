package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Enroll a credential with the local verifier",
	Long: `Register derives the verification value for a credential and
stores its one-way hash in the local identity store. Only available
with the memory backend; remote tenants enroll through the service.`,
	Example: `  logvault register --backend memory --tenant t1 --username alice`,
	RunE:    runRegister,
}

var (
	registerTenant   string
	registerUsername string
	registerPassword string
)

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().StringVarP(&registerTenant, "tenant", "t", "", "Tenant ID (required)")
	registerCmd.Flags().StringVarP(&registerUsername, "username", "u", "", "Username (required)")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Password (prompts if omitted)")

	_ = registerCmd.MarkFlagRequired("tenant")
	_ = registerCmd.MarkFlagRequired("username")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if registerPassword == "" {
		var err error
		registerPassword, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	if err := apiClient.Register(ctx, registerTenant, registerUsername, registerPassword); err != nil {
		printError("Registration failed: %v", err)
		return err
	}

	printSuccess("Registered %s in tenant %s", registerUsername, registerTenant)
	return nil
}
