package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"swedify/internal/recipe"
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "Manage saved recipes",
	Long:  `List, search, show, delete, export, import or print saved recipes.`,
}

var recipesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recipes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := recipeStore.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list recipes: %w", err)
		}
		return printList(cmd, all)
	},
}

var recipesSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search titles, ingredients, instructions and notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		found, err := recipeStore.Search(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to search recipes: %w", err)
		}
		return printList(cmd, found)
	},
}

var recipesShowCmd = &cobra.Command{
	Use:   "show [recipe-id]",
	Short: "Print a saved recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := recipeStore.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagShowJSON {
			return writeJSON(cmd.OutOrStdout(), saved)
		}
		printRecipe(cmd.OutOrStdout(), &saved.Recipe)
		return nil
	},
}

var recipesDeleteCmd = &cobra.Command{
	Use:   "delete [recipe-id]",
	Short: "Delete a saved recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := recipeStore.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var recipesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved recipe",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !flagYes {
			return errors.New("refusing to delete every recipe without --yes")
		}
		if err := recipeStore.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear recipes: %w", err)
		}
		cmd.Println("All recipes deleted")
		return nil
	},
}

var recipesExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export saved recipes as JSON (- for stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := recipeStore.Export(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to export recipes: %w", err)
		}
		path := exportFileName(time.Now())
		if len(args) == 1 {
			path = args[0]
		}
		if path == "-" {
			_, err := cmd.OutOrStdout().Write(blob)
			return err
		}
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		cmd.Printf("Exported to %s\n", path)
		return nil
	},
}

var recipesImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Append recipes from an export file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			blob []byte
			err  error
		)
		if args[0] == "-" {
			blob, err = io.ReadAll(cmd.InOrStdin())
		} else {
			blob, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read import: %w", err)
		}
		n, err := recipeStore.Import(cmd.Context(), blob)
		if err != nil {
			return err
		}
		cmd.Printf("Imported %d recipes\n", n)
		return nil
	},
}

var recipesPDFCmd = &cobra.Command{
	Use:   "pdf [recipe-id] [file]",
	Short: "Write a saved recipe as a printable PDF",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := recipeStore.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		doc, err := recipe.RenderPDF(saved)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], doc, 0o644); err != nil {
			return fmt.Errorf("failed to write pdf: %w", err)
		}
		cmd.Printf("Wrote %s\n", args[1])
		return nil
	},
}

var (
	flagShowJSON bool
	flagYes      bool
)

func init() {
	recipesShowCmd.Flags().BoolVar(&flagShowJSON, "json", false, "Print the recipe as JSON")
	recipesClearCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Confirm deleting every recipe")

	recipesCmd.AddCommand(recipesListCmd)
	recipesCmd.AddCommand(recipesSearchCmd)
	recipesCmd.AddCommand(recipesShowCmd)
	recipesCmd.AddCommand(recipesDeleteCmd)
	recipesCmd.AddCommand(recipesClearCmd)
	recipesCmd.AddCommand(recipesExportCmd)
	recipesCmd.AddCommand(recipesImportCmd)
	recipesCmd.AddCommand(recipesPDFCmd)
	rootCmd.AddCommand(recipesCmd)
}

func exportFileName(now time.Time) string {
	return fmt.Sprintf("swedish-recipes-%s.json", now.Format("2006-01-02"))
}

func printList(cmd *cobra.Command, list []*recipe.SavedRecipe) error {
	if len(list) == 0 {
		cmd.Println("No recipes found")
		return nil
	}
	for _, r := range list {
		cmd.Printf("  %s  %s  %s\n", r.ID, r.SavedAt.Local().Format("2006-01-02"), r.Title)
	}
	cmd.Printf("\nTotal: %d recipes\n", len(list))
	return nil
}
