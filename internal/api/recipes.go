package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"swedify/internal/recipe"
)

// maxImportBytes bounds the body of POST /recipes/import.
const maxImportBytes = 32 << 20

// ListRecipes returns all saved recipes, or those matching ?q=.
func (h *Handler) ListRecipes(c *gin.Context) {
	var (
		recipes []*recipe.SavedRecipe
		err     error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		recipes, err = h.RecipeStore.Search(c.Request.Context(), q)
	} else {
		recipes, err = h.RecipeStore.List(c.Request.Context())
	}
	if err != nil {
		h.storeError(c, err)
		return
	}
	if recipes == nil {
		recipes = []*recipe.SavedRecipe{}
	}
	c.JSON(http.StatusOK, recipes)
}

// SaveRecipe stores a converted recipe.
func (h *Handler) SaveRecipe(c *gin.Context) {
	r, ok := bindRecipe(c)
	if !ok {
		return
	}
	saved, err := h.RecipeStore.Save(c.Request.Context(), r)
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.Log.Info("saved recipe %q as %s", saved.Title, saved.ID)
	c.JSON(http.StatusCreated, saved)
}

// GetRecipe returns one saved recipe.
func (h *Handler) GetRecipe(c *gin.Context) {
	saved, err := h.RecipeStore.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// ReplaceRecipe overwrites a saved recipe, keeping its id and save time.
func (h *Handler) ReplaceRecipe(c *gin.Context) {
	r, ok := bindRecipe(c)
	if !ok {
		return
	}
	saved, err := h.RecipeStore.Replace(c.Request.Context(), c.Param("id"), r)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeleteRecipe removes one saved recipe.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	if err := h.RecipeStore.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearRecipes removes every saved recipe.
func (h *Handler) ClearRecipes(c *gin.Context) {
	if err := h.RecipeStore.Clear(c.Request.Context()); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExportRecipes downloads the collection as a JSON array.
func (h *Handler) ExportRecipes(c *gin.Context) {
	blob, err := h.RecipeStore.Export(c.Request.Context())
	if err != nil {
		h.storeError(c, err)
		return
	}
	name := fmt.Sprintf("swedish-recipes-%s.json", h.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/json; charset=utf-8", blob)
}

// ImportRecipes appends an exported JSON array to the collection.
func (h *Handler) ImportRecipes(c *gin.Context) {
	blob, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read body err: %s", err.Error())})
		return
	}
	n, err := h.RecipeStore.Import(c.Request.Context(), blob)
	if err != nil {
		h.storeError(c, err)
		return
	}
	h.Log.Info("imported %d recipes", n)
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

// RecipeText returns the plain-text rendering used for copying.
func (h *Handler) RecipeText(c *gin.Context) {
	saved, err := h.RecipeStore.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.String(http.StatusOK, saved.PlainText())
}

// RecipePDF returns a printable PDF of a saved recipe.
func (h *Handler) RecipePDF(c *gin.Context) {
	saved, err := h.RecipeStore.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err)
		return
	}
	doc, err := recipe.RenderPDF(saved)
	if err != nil {
		h.Log.Error("could not render pdf for %s: %v", saved.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", saved.ID+".pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func bindRecipe(c *gin.Context) (recipe.Recipe, bool) {
	var r recipe.Recipe
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid recipe: %s", err.Error())})
		return r, false
	}
	if strings.TrimSpace(r.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return r, false
	}
	return r, true
}

func (h *Handler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, recipe.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, recipe.ErrInvalidImport):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.Log.Error("recipe store: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
