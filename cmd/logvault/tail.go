package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/logvault/internal/crypto"
)

var tailCmd = &cobra.Command{
	Use:   "tail <log-name>",
	Short: "Stream and decrypt live records from a log",
	Long: `Tail opens a streaming connection carrying ciphertext only and
decrypts each record as it arrives. Records failing verification are
dropped and counted, never shown altered.`,
	Example: `  logvault tail app`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTail,
}

var (
	tailTenant   string
	tailUsername string
	tailPassword string
)

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().StringVarP(&tailTenant, "tenant", "t", "", "Tenant ID")
	tailCmd.Flags().StringVarP(&tailUsername, "username", "u", "", "Username")
	tailCmd.Flags().StringVarP(&tailPassword, "password", "p", "", "Password (prompts if omitted)")
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on Ctrl-C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logName := args[0]

	session, root, err := authenticate(ctx, tailTenant, tailUsername, tailPassword)
	if err != nil {
		printError("Authentication failed: %v", err)
		return err
	}
	defer root.Wipe()

	entries, err := apiClient.Logs.Tail(ctx, session, root, logName)
	if err != nil {
		printError("Tail failed: %v", err)
		return err
	}

	printInfo("Tailing %s (Ctrl-C to stop)", logName)

	for e := range entries {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"record_id": e.ID,
				"message":   string(e.Plaintext),
			})
		} else {
			printInfo("%s  %s", e.ID, string(e.Plaintext))
		}
		crypto.Wipe(e.Plaintext)
	}

	return nil
}
