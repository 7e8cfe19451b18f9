package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"swedify/internal/convert"
	"swedify/internal/imaging"
	"swedify/internal/recipe"
)

// Flag variables.
var (
	flagURL      string
	flagText     string
	flagTextFile string
	flagImage    string
	flagQuality  bool
	flagSave     bool
	flagJSON     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a recipe for a Swedish kitchen",
	Long: `Convert fetches a recipe page, reads pasted text or a photo and asks the
model for a Swedish version of the recipe.

Examples:
  swedify convert --url https://www.allrecipes.com/recipe/219164/
  swedify convert --text-file pancakes.txt --quality
  swedify convert --image recipe.jpg --save`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	// Input flags (exactly one).
	convertCmd.Flags().StringVar(&flagURL, "url", "", "Recipe page address")
	convertCmd.Flags().StringVar(&flagText, "text", "", "Recipe text")
	convertCmd.Flags().StringVar(&flagTextFile, "text-file", "", "File with the recipe text (- for stdin)")
	convertCmd.Flags().StringVar(&flagImage, "image", "", "Photo or screenshot of the recipe")

	convertCmd.Flags().BoolVar(&flagQuality, "quality", false, "Use the quality model instead of the fast one")
	convertCmd.Flags().BoolVar(&flagSave, "save", false, "Save the converted recipe")
	convertCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the recipe as JSON")
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, err := convertInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	key, _ := keys.Lookup()
	r, err := converter.Convert(cmd.Context(), key, in, convert.Options{UseFastModel: !flagQuality})
	if err != nil {
		var f *convert.Failure
		if errors.As(err, &f) {
			return fmt.Errorf("%s (%s)", f.Message, f.Category)
		}
		return err
	}

	if flagSave {
		saved, err := recipeStore.Save(cmd.Context(), *r)
		if err != nil {
			return fmt.Errorf("failed to save recipe: %w", err)
		}
		log.Info("saved recipe %q as %s", saved.Title, saved.ID)
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	printRecipe(cmd.OutOrStdout(), r)
	return nil
}

// convertInput builds the input named by the flags.
func convertInput(stdin io.Reader) (convert.Input, error) {
	set := 0
	for _, v := range []string{flagURL, flagText, flagTextFile, flagImage} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("give exactly one of --url, --text, --text-file or --image")
	}

	switch {
	case flagURL != "":
		return convert.URLInput{URL: flagURL}, nil
	case flagText != "":
		return convert.TextInput{Text: flagText}, nil
	case flagTextFile != "":
		var (
			raw []byte
			err error
		)
		if flagTextFile == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(flagTextFile)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recipe text: %w", err)
		}
		return convert.TextInput{Text: string(raw)}, nil
	default:
		raw, err := os.ReadFile(flagImage)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		dataURL, err := imaging.Prepare(raw)
		if err != nil {
			return nil, err
		}
		return convert.ImageInput{DataURL: dataURL}, nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecipe(w io.Writer, r *recipe.Recipe) {
	fmt.Fprintln(w, r.PlainText())

	if meta := r.MetaLine(); meta != "" {
		fmt.Fprintf(w, "\n%s\n", meta)
	}
	if len(r.Notes) > 0 {
		fmt.Fprintln(w, "\nTips:")
		for _, n := range r.Notes {
			fmt.Fprintf(w, "- %s\n", n)
		}
	}
	if r.OriginalURL != "" {
		fmt.Fprintf(w, "\nKälla: %s\n", r.OriginalURL)
	}
}
