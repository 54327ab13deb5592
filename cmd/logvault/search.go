package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/logvault/internal/crypto"
	"github.com/TheMichaelB/logvault/internal/services/logs"
)

var searchCmd = &cobra.Command{
	Use:   "search <log-name> <query>",
	Short: "Search a log by encrypted keyword match",
	Long: `Search derives deterministic query tokens from the normalized
terms and lets the storage backend match them against the blind index.
Matching records are decrypted locally; the backend never sees the
terms or the plaintext.`,
	Example: `  logvault search app error
  logvault search app "timeout database"`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

var listCmd = &cobra.Command{
	Use:     "list <log-name>",
	Short:   "Fetch and decrypt all records of a log",
	Example: `  logvault list app`,
	Args:    cobra.ExactArgs(1),
	RunE:    runList,
}

var (
	searchTenant   string
	searchUsername string
	searchPassword string
)

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(listCmd)

	for _, c := range []*cobra.Command{searchCmd, listCmd} {
		c.Flags().StringVarP(&searchTenant, "tenant", "t", "", "Tenant ID")
		c.Flags().StringVarP(&searchUsername, "username", "u", "", "Username")
		c.Flags().StringVarP(&searchPassword, "password", "p", "", "Password (prompts if omitted)")
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logName, query := args[0], args[1]

	session, root, err := authenticate(ctx, searchTenant, searchUsername, searchPassword)
	if err != nil {
		printError("Authentication failed: %v", err)
		return err
	}
	defer root.Wipe()

	result, err := apiClient.Logs.Search(ctx, session, root, logName, query)
	if err != nil {
		printError("Search failed: %v", err)
		return err
	}

	printResult(logName, result)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logName := args[0]

	session, root, err := authenticate(ctx, searchTenant, searchUsername, searchPassword)
	if err != nil {
		printError("Authentication failed: %v", err)
		return err
	}
	defer root.Wipe()

	result, err := apiClient.Logs.List(ctx, session, root, logName)
	if err != nil {
		printError("List failed: %v", err)
		return err
	}

	printResult(logName, result)
	return nil
}

func printResult(logName string, result *logs.Result) {
	defer func() {
		for i := range result.Entries {
			crypto.Wipe(result.Entries[i].Plaintext)
		}
	}()

	if jsonOutput {
		entries := make([]map[string]interface{}, 0, len(result.Entries))
		for _, e := range result.Entries {
			entries = append(entries, map[string]interface{}{
				"record_id":   e.ID,
				"key_version": e.KeyVersion,
				"message":     string(e.Plaintext),
			})
		}
		printJSON(map[string]interface{}{
			"log_name": logName,
			"entries":  entries,
			"dropped":  len(result.Dropped),
		})
		return
	}

	for _, e := range result.Entries {
		printInfo("%s  %s", e.ID, string(e.Plaintext))
	}
	if n := len(result.Dropped); n > 0 {
		printError("%d record(s) failed verification and were dropped", n)
	}
	printSuccess("%d record(s)", len(result.Entries))
}
