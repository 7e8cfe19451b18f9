package recipe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no saved recipe has the requested id.
var ErrNotFound = errors.New("recipe not found")

// ErrInvalidImport is returned when an import blob is not an array of
// recipes.
var ErrInvalidImport = errors.New("invalid format: expected an array of recipes")

// Store defines the operations on the saved-recipe collection.
type Store interface {
	Save(ctx context.Context, r Recipe) (*SavedRecipe, error)
	List(ctx context.Context) ([]*SavedRecipe, error)
	Get(ctx context.Context, id string) (*SavedRecipe, error)
	Replace(ctx context.Context, id string, r Recipe) (*SavedRecipe, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]*SavedRecipe, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, blob []byte) (int, error)
	Clear(ctx context.Context) error
}

var _ Store = (*SQLStore)(nil)

// newSaved stamps r with a fresh time-ordered id and save time.
func newSaved(r Recipe, now time.Time) (*SavedRecipe, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate recipe id: %w", err)
	}
	r.Normalize()
	return &SavedRecipe{Recipe: r, ID: id.String(), SavedAt: now.UTC()}, nil
}

// decodeImport parses an export blob. Entries without id or savedAt get
// fresh ones; nothing is de-duplicated.
func decodeImport(blob []byte, now time.Time) ([]*SavedRecipe, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrInvalidImport
	}

	var entries []*SavedRecipe
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	out := make([]*SavedRecipe, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.ID == "" {
			fresh, err := newSaved(e.Recipe, now)
			if err != nil {
				return nil, err
			}
			e.ID = fresh.ID
		}
		if e.SavedAt.IsZero() {
			e.SavedAt = now.UTC()
		}
		e.Normalize()
		out = append(out, e)
	}
	return out, nil
}

func filter(all []*SavedRecipe, query string) []*SavedRecipe {
	out := make([]*SavedRecipe, 0, len(all))
	for _, r := range all {
		if r.Matches(query) {
			out = append(out, r)
		}
	}
	return out
}

func exportJSON(all []*SavedRecipe) ([]byte, error) {
	if all == nil {
		all = []*SavedRecipe{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipes: %w", err)
	}
	return data, nil
}

// SQLStore keeps saved recipes in a SQL table. It works with the "postgres"
// (lib/pq) and "sqlite" (modernc.org/sqlite) drivers.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var schemas = map[string]string{
	"postgres": `
	CREATE TABLE IF NOT EXISTS saved_recipes (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		title TEXT NOT NULL,
		document TEXT NOT NULL
	);
	`,
	"sqlite": `
	CREATE TABLE IF NOT EXISTS saved_recipes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		title TEXT NOT NULL,
		document TEXT NOT NULL
	);
	`,
}

type recipeRow struct {
	Seq      int64  `db:"seq"`
	ID       string `db:"id"`
	SavedAt  string `db:"saved_at"`
	Title    string `db:"title"`
	Document string `db:"document"`
}

// NewSQLStore connects to the database and creates the table if needed.
func NewSQLStore(driver, dataSourceName string) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create saved_recipes table: %w", err)
	}

	return &SQLStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) insert(ctx context.Context, ext sqlx.ExtContext, r *SavedRecipe) error {
	doc, err := json.Marshal(r.Recipe)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe: %w", err)
	}
	_, err = ext.ExecContext(ctx,
		s.db.Rebind("INSERT INTO saved_recipes (id, saved_at, title, document) VALUES (?, ?, ?, ?)"),
		r.ID,
		r.SavedAt.UTC().Format(time.RFC3339Nano),
		r.Title,
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	return nil
}

// Save stores a new recipe.
func (s *SQLStore) Save(ctx context.Context, r Recipe) (*SavedRecipe, error) {
	saved, err := newSaved(r, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, s.db, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func decodeRow(row recipeRow) (*SavedRecipe, error) {
	var r SavedRecipe
	if err := json.Unmarshal([]byte(row.Document), &r.Recipe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe %s: %w", row.ID, err)
	}
	savedAt, err := time.Parse(time.RFC3339Nano, row.SavedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse saved_at of recipe %s: %w", row.ID, err)
	}
	r.ID = row.ID
	r.SavedAt = savedAt
	r.Normalize()
	return &r, nil
}

// List returns all saved recipes in insertion order.
func (s *SQLStore) List(ctx context.Context) ([]*SavedRecipe, error) {
	var rows []recipeRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT seq, id, saved_at, title, document FROM saved_recipes ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	out := make([]*SavedRecipe, 0, len(rows))
	for _, row := range rows {
		r, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLStore) first(ctx context.Context, id string) (*recipeRow, error) {
	var rows []recipeRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind("SELECT seq, id, saved_at, title, document FROM saved_recipes WHERE id = ? ORDER BY seq LIMIT 1"), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Get returns the first recipe with the given id.
func (s *SQLStore) Get(ctx context.Context, id string) (*SavedRecipe, error) {
	row, err := s.first(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeRow(*row)
}

// Replace overwrites the recipe body of id, keeping its id and save time.
func (s *SQLStore) Replace(ctx context.Context, id string, r Recipe) (*SavedRecipe, error) {
	row, err := s.first(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := decodeRow(*row)
	if err != nil {
		return nil, err
	}

	r.Normalize()
	doc, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipe: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE saved_recipes SET title = ?, document = ? WHERE seq = ?"),
		r.Title, string(doc), row.Seq)
	if err != nil {
		return nil, fmt.Errorf("failed to replace recipe: %w", err)
	}
	return &SavedRecipe{Recipe: r, ID: existing.ID, SavedAt: existing.SavedAt}, nil
}

// Delete removes every recipe with the given id.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM saved_recipes WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Search scans all recipes for query.
func (s *SQLStore) Search(ctx context.Context, query string) ([]*SavedRecipe, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, query), nil
}

// Export serializes the whole collection as an indented JSON array.
func (s *SQLStore) Export(ctx context.Context) ([]byte, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return exportJSON(all)
}

// Import appends every recipe in blob and returns how many were added.
func (s *SQLStore) Import(ctx context.Context, blob []byte) (int, error) {
	entries, err := decodeImport(blob, s.now())
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	for _, e := range entries {
		if err := s.insert(ctx, tx, e); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return len(entries), nil
}

// Clear removes all saved recipes.
func (s *SQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM saved_recipes"); err != nil {
		return fmt.Errorf("failed to clear recipes: %w", err)
	}
	return nil
}
