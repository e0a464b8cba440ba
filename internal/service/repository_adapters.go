package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/store"
)

// NewVersionRepositoryAdapter creates an adapter that allows a
// store.VersionStore to be used where a VersionRepository is expected.
func NewVersionRepositoryAdapter(versionStore store.VersionStore) VersionRepository {
	return &versionRepositoryAdapter{versionStore: versionStore}
}

// versionRepositoryAdapter adapts a store.VersionStore to the
// VersionRepository interface.
type versionRepositoryAdapter struct {
	versionStore store.VersionStore
}

func (a *versionRepositoryAdapter) CreateVersion(ctx context.Context, version *domain.PageImageVersion) error {
	return a.versionStore.CreateVersion(ctx, version)
}

func (a *versionRepositoryAdapter) MaxVersionNumber(ctx context.Context, pageID uuid.UUID) (int, error) {
	return a.versionStore.MaxVersionNumber(ctx, pageID)
}

func (a *versionRepositoryAdapter) MarkAllNotCurrent(ctx context.Context, pageID uuid.UUID) error {
	return a.versionStore.MarkAllNotCurrent(ctx, pageID)
}

func (a *versionRepositoryAdapter) SetCurrent(ctx context.Context, versionID uuid.UUID) error {
	return a.versionStore.SetCurrent(ctx, versionID)
}

func (a *versionRepositoryAdapter) GetVersion(ctx context.Context, pageID uuid.UUID, versionNumber int) (*domain.PageImageVersion, error) {
	return a.versionStore.GetVersion(ctx, pageID, versionNumber)
}

func (a *versionRepositoryAdapter) ListVersions(ctx context.Context, pageID uuid.UUID) ([]*domain.PageImageVersion, error) {
	return a.versionStore.ListVersions(ctx, pageID)
}

func (a *versionRepositoryAdapter) WithTx(tx *sql.Tx) VersionRepository {
	return &versionRepositoryAdapter{versionStore: a.versionStore.WithTxVersionStore(tx)}
}

// NewPageRepositoryAdapter creates an adapter that allows a
// store.PageStore to be used where a PageRepository is expected.
func NewPageRepositoryAdapter(pageStore store.PageStore, db *sql.DB) PageRepository {
	return &pageRepositoryAdapter{pageStore: pageStore, db: db}
}

// pageRepositoryAdapter adapts a store.PageStore to the PageRepository
// interface.
type pageRepositoryAdapter struct {
	pageStore store.PageStore
	db        *sql.DB
}

func (a *pageRepositoryAdapter) GetForUpdate(ctx context.Context, pageID uuid.UUID) (*domain.Page, error) {
	return a.pageStore.GetPageForUpdate(ctx, pageID)
}

func (a *pageRepositoryAdapter) UpdateImagePaths(ctx context.Context, pageID uuid.UUID, imagePath, cachedPath string, status domain.PageStatus) error {
	return a.pageStore.UpdateImagePaths(ctx, pageID, imagePath, cachedPath, status)
}

func (a *pageRepositoryAdapter) WithTx(tx *sql.Tx) PageRepository {
	return &pageRepositoryAdapter{pageStore: a.pageStore.WithTxPageStore(tx), db: a.db}
}

func (a *pageRepositoryAdapter) DB() *sql.DB {
	return a.db
}
