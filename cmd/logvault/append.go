package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var appendCmd = &cobra.Command{
	Use:   "append <log-name> [message]",
	Short: "Encrypt and append a record to a log",
	Long: `Append encrypts the message client-side, derives blind-index
tokens for later search, and submits only ciphertext and tokens to the
storage backend. Reads the message from stdin when omitted.`,
	Example: `  logvault append app "user login failed"
  cat event.json | logvault append app`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAppend,
}

var (
	appendTenant   string
	appendUsername string
	appendPassword string
)

func init() {
	rootCmd.AddCommand(appendCmd)

	appendCmd.Flags().StringVarP(&appendTenant, "tenant", "t", "", "Tenant ID")
	appendCmd.Flags().StringVarP(&appendUsername, "username", "u", "", "Username")
	appendCmd.Flags().StringVarP(&appendPassword, "password", "p", "", "Password (prompts if omitted)")
}

func runAppend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logName := args[0]

	var message []byte
	if len(args) > 1 {
		message = []byte(args[1])
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		message = data
	}

	session, root, err := authenticate(ctx, appendTenant, appendUsername, appendPassword)
	if err != nil {
		printError("Authentication failed: %v", err)
		return err
	}
	defer root.Wipe()

	id, err := apiClient.Logs.Append(ctx, session, root, logName, message)
	if err != nil {
		printError("Append failed: %v", err)
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":   true,
			"record_id": id,
			"log_name":  logName,
		})
	} else {
		printSuccess("Appended record %s to %s", id, logName)
	}

	return nil
}
