package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/platform/logger"
	"github.com/guojun21/banana-slides/internal/store"
)

// PostgresPageStore implements the store.PageStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPageStore creates a new PostgreSQL implementation of the
// PageStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresPageStore(db store.DBTX, logger *slog.Logger) *PostgresPageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPageStore{
		db:     db,
		logger: logger.With(slog.String("component", "page_store")),
	}
}

// Ensure PostgresPageStore implements store.PageStore interface
var _ store.PageStore = (*PostgresPageStore)(nil)

const pageColumns = `id, project_id, order_index, status, description_content, outline_content,
	generated_image_path, cached_image_path, created_at, updated_at`

// CreatePages implements store.PageStore.CreatePages
// All pages are inserted in one statement so a duplicate order index
// fails the whole batch. Returns store.ErrOrderIndexExists on conflict.
func (s *PostgresPageStore) CreatePages(ctx context.Context, pages []*domain.Page) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(pages) == 0 {
		return nil
	}
	for _, page := range pages {
		if err := page.Validate(); err != nil {
			return err
		}
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO pages (` + pageColumns + `)
		VALUES `)
	args := make([]any, 0, len(pages)*10)
	for i, page := range pages {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 10
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10)
		args = append(args,
			page.ID, page.ProjectID, page.OrderIndex, page.Status,
			nullableJSON(page.DescriptionContent), nullableJSON(page.OutlineContent),
			page.GeneratedImagePath, page.CachedImagePath,
			page.CreatedAt, page.UpdatedAt,
		)
	}

	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrOrderIndexExists, err)
		}
		log.Error("failed to create pages",
			slog.Int("count", len(pages)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("pages created", slog.Int("count", len(pages)))
	return nil
}

// GetPage implements store.PageStore.GetPage
// Returns store.ErrPageNotFound if the page does not exist.
func (s *PostgresPageStore) GetPage(ctx context.Context, pageID uuid.UUID) (*domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = $1`
	return s.getPage(ctx, query, pageID)
}

// GetPageForUpdate implements store.PageStore.GetPageForUpdate
// It locks the page row for the duration of the surrounding transaction.
func (s *PostgresPageStore) GetPageForUpdate(ctx context.Context, pageID uuid.UUID) (*domain.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages WHERE id = $1 FOR UPDATE`
	return s.getPage(ctx, query, pageID)
}

func (s *PostgresPageStore) getPage(ctx context.Context, query string, pageID uuid.UUID) (*domain.Page, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	page, err := scanPage(s.db.QueryRowContext(ctx, query, pageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPageNotFound
		}
		log.Error("failed to get page",
			slog.String("page_id", pageID.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return page, nil
}

// ListPages implements store.PageStore.ListPages
func (s *PostgresPageStore) ListPages(ctx context.Context, projectID uuid.UUID) ([]*domain.Page, error) {
	query := `
		SELECT ` + pageColumns + `
		FROM pages
		WHERE project_id = $1
		ORDER BY order_index ASC
	`
	return s.listPages(ctx, query, projectID)
}

// ListPagesByIDs implements store.PageStore.ListPagesByIDs
// An empty ids slice means all pages of the project.
func (s *PostgresPageStore) ListPagesByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*domain.Page, error) {
	if len(ids) == 0 {
		return s.ListPages(ctx, projectID)
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, projectID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := `
		SELECT ` + pageColumns + `
		FROM pages
		WHERE project_id = $1 AND id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY order_index ASC
	`
	return s.listPages(ctx, query, args...)
}

func (s *PostgresPageStore) listPages(ctx context.Context, query string, args ...any) ([]*domain.Page, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query pages", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	var pages []*domain.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			log.Error("failed to scan page row", slog.String("error", err.Error()))
			return nil, err
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, err
	}

	if pages == nil {
		pages = []*domain.Page{}
	}
	return pages, nil
}

// UpdatePageStatus implements store.PageStore.UpdatePageStatus
// Returns store.ErrPageNotFound if the page does not exist.
func (s *PostgresPageStore) UpdatePageStatus(ctx context.Context, pageID uuid.UUID, status domain.PageStatus) error {
	query := `
		UPDATE pages
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	return s.updatePage(ctx, pageID, query, status, time.Now().UTC(), pageID)
}

// UpdatePageDescription implements store.PageStore.UpdatePageDescription
func (s *PostgresPageStore) UpdatePageDescription(ctx context.Context, pageID uuid.UUID, content domain.DescriptionContent, status domain.PageStatus) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode description content: %w", err)
	}

	query := `
		UPDATE pages
		SET description_content = $1, status = $2, updated_at = $3
		WHERE id = $4
	`
	return s.updatePage(ctx, pageID, query, raw, status, time.Now().UTC(), pageID)
}

// UpdatePageContent implements store.PageStore.UpdatePageContent
// It stores the outline entry and description content in one write.
func (s *PostgresPageStore) UpdatePageContent(ctx context.Context, pageID uuid.UUID, entry domain.OutlineEntry, content domain.DescriptionContent, status domain.PageStatus) error {
	outline, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode outline entry: %w", err)
	}
	description, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode description content: %w", err)
	}

	query := `
		UPDATE pages
		SET outline_content = $1, description_content = $2, status = $3, updated_at = $4
		WHERE id = $5
	`
	return s.updatePage(ctx, pageID, query, outline, description, status, time.Now().UTC(), pageID)
}

// UpdateImagePaths implements store.PageStore.UpdateImagePaths
func (s *PostgresPageStore) UpdateImagePaths(ctx context.Context, pageID uuid.UUID, imagePath, cachedPath string, status domain.PageStatus) error {
	query := `
		UPDATE pages
		SET generated_image_path = $1, cached_image_path = $2, status = $3, updated_at = $4
		WHERE id = $5
	`
	return s.updatePage(ctx, pageID, query, imagePath, cachedPath, status, time.Now().UTC(), pageID)
}

func (s *PostgresPageStore) updatePage(ctx context.Context, pageID uuid.UUID, query string, args ...any) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update page",
			slog.String("page_id", pageID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "page"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrPageNotFound, pageID)
	}
	return nil
}

// WithTxPageStore implements store.PageStore.WithTxPageStore
// It returns a new store instance that uses the provided transaction.
func (s *PostgresPageStore) WithTxPageStore(tx *sql.Tx) store.PageStore {
	return &PostgresPageStore{db: tx, logger: s.logger}
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanPage(row scanner) (*domain.Page, error) {
	var page domain.Page
	var description, outline []byte
	var generatedPath, cachedPath sql.NullString

	err := row.Scan(
		&page.ID,
		&page.ProjectID,
		&page.OrderIndex,
		&page.Status,
		&description,
		&outline,
		&generatedPath,
		&cachedPath,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	page.DescriptionContent = description
	page.OutlineContent = outline
	page.GeneratedImagePath = generatedPath.String
	page.CachedImagePath = cachedPath.String
	return &page, nil
}

// nullableJSON maps empty content to NULL so the JSONB column never
// stores an empty string.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
