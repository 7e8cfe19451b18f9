package main

import (
	"github.com/spf13/cobra"

	"swedify/internal/credential"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the model provider API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set [api-key]",
	Short: "Store the API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := keys.Set(args[0]); err != nil {
			return err
		}
		cmd.Printf("API key stored in %s\n", keys.Path())
		return nil
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := keys.Clear(); err != nil {
			return err
		}
		cmd.Println("Stored API key removed")
		return nil
	},
}

var keyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an API key is configured",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, src := keys.Lookup()
		switch src {
		case credential.SourceFile:
			cmd.Printf("API key %s (from %s)\n", credential.Mask(key), keys.Path())
		case credential.SourceEnv:
			cmd.Printf("API key %s (from the environment)\n", credential.Mask(key))
		default:
			cmd.Println("No API key configured. Run: swedify key set <api-key>")
		}
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyClearCmd)
	keyCmd.AddCommand(keyStatusCmd)
	rootCmd.AddCommand(keyCmd)
}
