package recipe

import (
	"fmt"
	"strings"
	"time"
)

// Recipe is the Swedified recipe returned by the model. The JSON field names
// are the output contract the rulebook asks the model to follow.
type Recipe struct {
	Title         string   `json:"title"`
	OriginalTitle string   `json:"originalTitle,omitempty"`
	Servings      string   `json:"servings,omitempty"`
	PrepTime      string   `json:"prepTime,omitempty"`
	CookTime      string   `json:"cookTime,omitempty"`
	Ingredients   []string `json:"ingredients"`
	Instructions  []string `json:"instructions"`
	Notes         []string `json:"notes"`
	OriginalURL   string   `json:"originalUrl,omitempty"`
}

// SavedRecipe is a Recipe persisted by a Store.
type SavedRecipe struct {
	Recipe
	ID      string    `json:"id"`
	SavedAt time.Time `json:"savedAt"`
}

// Normalize replaces nil sequences with empty ones so the JSON shape is
// stable ("ingredients": [] instead of null).
func (r *Recipe) Normalize() {
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Instructions == nil {
		r.Instructions = []string{}
	}
	if r.Notes == nil {
		r.Notes = []string{}
	}
}

// Matches reports whether query occurs, case-insensitively, in the title,
// original title, ingredients, instructions or notes. An empty query matches.
func (r *Recipe) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.OriginalTitle), q) {
		return true
	}
	for _, list := range [][]string{r.Ingredients, r.Instructions, r.Notes} {
		for _, line := range list {
			if strings.Contains(strings.ToLower(line), q) {
				return true
			}
		}
	}
	return false
}

// PlainText renders the recipe the way it is copied to the clipboard.
func (r *Recipe) PlainText() string {
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteString("\n\n")
	if r.OriginalTitle != "" {
		fmt.Fprintf(&b, "Original: %s\n\n", r.OriginalTitle)
	}
	b.WriteString("Ingredienser:\n")
	b.WriteString(strings.Join(r.Ingredients, "\n"))
	b.WriteString("\n\nInstruktioner:\n")
	for i, step := range r.Instructions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, step)
	}
	return b.String()
}

// MetaLine joins servings and times, e.g. "Portioner: 4  |  Tillagning: 30 min".
func (r *Recipe) MetaLine() string {
	var parts []string
	if r.Servings != "" {
		parts = append(parts, "Portioner: "+r.Servings)
	}
	if r.PrepTime != "" {
		parts = append(parts, "Förberedelse: "+r.PrepTime)
	}
	if r.CookTime != "" {
		parts = append(parts, "Tillagning: "+r.CookTime)
	}
	return strings.Join(parts, "  |  ")
}
