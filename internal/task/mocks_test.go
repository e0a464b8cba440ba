package task

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guojun21/banana-slides/internal/domain"
	"github.com/guojun21/banana-slides/internal/generation"
	"github.com/guojun21/banana-slides/internal/store"
)

// memTaskStore is an in-memory TaskStore that records every status
// transition for assertions.
type memTaskStore struct {
	mu            sync.Mutex
	records       map[uuid.UUID]*Record
	statusHistory map[uuid.UUID][]Status
	failCreate    error
	failProgress  error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{
		records:       make(map[uuid.UUID]*Record),
		statusHistory: make(map[uuid.UUID][]Status),
	}
}

func (s *memTaskStore) CreateTask(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	clone := *record
	s.records[record.ID] = &clone
	s.statusHistory[record.ID] = append(s.statusHistory[record.ID], record.Status)
	return nil
}

func (s *memTaskStore) GetTask(_ context.Context, taskID uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *memTaskStore) UpdateTaskStatus(_ context.Context, taskID uuid.UUID, status Status, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	record.Status = status
	record.ErrorMessage = errorMsg
	if status == StatusCompleted || status == StatusFailed {
		now := time.Now().UTC()
		record.CompletedAt = &now
	}
	s.statusHistory[taskID] = append(s.statusHistory[taskID], status)
	return nil
}

func (s *memTaskStore) GetTaskProgress(_ context.Context, taskID uuid.UUID) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[taskID]
	if !ok {
		return Progress{}, store.ErrTaskNotFound
	}
	return record.Progress, nil
}

func (s *memTaskStore) SetTaskProgress(_ context.Context, taskID uuid.UUID, progress Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failProgress != nil {
		return s.failProgress
	}
	record, ok := s.records[taskID]
	if !ok {
		// Tracker tests run without a prior Submit; create on demand.
		record = &Record{ID: taskID}
		s.records[taskID] = record
	}
	record.Progress = progress
	return nil
}

func (s *memTaskStore) WithTx(_ *sql.Tx) TaskStore { return s }

func (s *memTaskStore) history(taskID uuid.UUID) []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.statusHistory[taskID]))
	copy(out, s.statusHistory[taskID])
	return out
}

func (s *memTaskStore) progress(taskID uuid.UUID) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[taskID].Progress
}

// memPageStore is an in-memory PageStore.
type memPageStore struct {
	mu    sync.Mutex
	pages map[uuid.UUID]*domain.Page
}

func newMemPageStore(pages ...*domain.Page) *memPageStore {
	s := &memPageStore{pages: make(map[uuid.UUID]*domain.Page)}
	for _, page := range pages {
		clone := *page
		s.pages[page.ID] = &clone
	}
	return s
}

func (s *memPageStore) GetPage(_ context.Context, pageID uuid.UUID) (*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return nil, store.ErrPageNotFound
	}
	clone := *page
	return &clone, nil
}

func (s *memPageStore) ListPages(_ context.Context, projectID uuid.UUID) ([]*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Page
	for _, page := range s.pages {
		if page.ProjectID == projectID {
			clone := *page
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (s *memPageStore) ListPagesByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]*domain.Page, error) {
	if len(ids) == 0 {
		return s.ListPages(ctx, projectID)
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	all, err := s.ListPages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var out []*domain.Page
	for _, page := range all {
		if wanted[page.ID] {
			out = append(out, page)
		}
	}
	return out, nil
}

func (s *memPageStore) UpdatePageStatus(_ context.Context, pageID uuid.UUID, status domain.PageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return store.ErrPageNotFound
	}
	return page.UpdateStatus(status)
}

func (s *memPageStore) UpdatePageDescription(_ context.Context, pageID uuid.UUID, content domain.DescriptionContent, status domain.PageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return store.ErrPageNotFound
	}
	if err := page.SetDescriptionContent(content); err != nil {
		return err
	}
	return page.UpdateStatus(status)
}

func (s *memPageStore) UpdatePageContent(_ context.Context, pageID uuid.UUID, entry domain.OutlineEntry, content domain.DescriptionContent, status domain.PageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[pageID]
	if !ok {
		return store.ErrPageNotFound
	}
	if err := page.SetOutlineContent(entry); err != nil {
		return err
	}
	if err := page.SetDescriptionContent(content); err != nil {
		return err
	}
	return page.UpdateStatus(status)
}

func (s *memPageStore) page(pageID uuid.UUID) *domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *s.pages[pageID]
	return &clone
}

// memProjectStore is an in-memory ProjectStore.
type memProjectStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*domain.Project
}

func newMemProjectStore(projects ...*domain.Project) *memProjectStore {
	s := &memProjectStore{projects: make(map[uuid.UUID]*domain.Project)}
	for _, project := range projects {
		clone := *project
		s.projects[project.ID] = &clone
	}
	return s
}

func (s *memProjectStore) GetProject(_ context.Context, projectID uuid.UUID) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	clone := *project
	return &clone, nil
}

func (s *memProjectStore) UpdateProjectStatus(_ context.Context, projectID uuid.UUID, status domain.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return store.ErrProjectNotFound
	}
	return project.UpdateStatus(status)
}

func (s *memProjectStore) UpdateProjectTexts(_ context.Context, projectID uuid.UUID, outlineText, descriptionText string, status domain.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return store.ErrProjectNotFound
	}
	project.OutlineText = outlineText
	project.DescriptionText = descriptionText
	return project.UpdateStatus(status)
}

func (s *memProjectStore) status(projectID uuid.UUID) domain.ProjectStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[projectID].Status
}

// memMaterialStore is an in-memory MaterialStore.
type memMaterialStore struct {
	mu        sync.Mutex
	materials []*domain.Material
}

func (s *memMaterialStore) CreateMaterial(_ context.Context, material *domain.Material) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *material
	s.materials = append(s.materials, &clone)
	return nil
}

// stubTextGenerator delegates to a function so each test shapes its own
// behavior.
type stubTextGenerator struct {
	fn func(ctx context.Context, prompt string, opts generation.TextOptions) (string, error)
}

func (g *stubTextGenerator) GenerateText(ctx context.Context, prompt string, opts generation.TextOptions) (string, error) {
	return g.fn(ctx, prompt, opts)
}

// stubImageGenerator delegates to a function.
type stubImageGenerator struct {
	fn func(ctx context.Context, req generation.ImageRequest) (image.Image, error)
}

func (g *stubImageGenerator) GenerateImage(ctx context.Context, req generation.ImageRequest) (image.Image, error) {
	return g.fn(ctx, req)
}

// memArtifacts records SaveWithVersion calls and assigns monotonically
// increasing versions per page.
type memArtifacts struct {
	mu       sync.Mutex
	versions map[uuid.UUID]int
	failFor  map[uuid.UUID]error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{
		versions: make(map[uuid.UUID]int),
		failFor:  make(map[uuid.UUID]error),
	}
}

func (a *memArtifacts) SaveWithVersion(_ context.Context, _ image.Image, projectID, pageID uuid.UUID) (string, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failFor[pageID]; err != nil {
		return "", 0, err
	}
	a.versions[pageID]++
	version := a.versions[pageID]
	path := fmt.Sprintf("projects/%s/pages/%s/v%d.png", projectID, pageID, version)
	return path, version, nil
}

func (a *memArtifacts) versionOf(pageID uuid.UUID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.versions[pageID]
}

// staticResolver prefixes relative paths with a fixed root.
type staticResolver struct{ root string }

func (r staticResolver) AbsolutePath(relativePath string) string {
	return r.root + "/" + relativePath
}

// testImage returns a solid image with the given dimensions.
func testImage(width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// testOutline builds a flat outline with n pages.
func testOutline(n int) domain.Outline {
	section := domain.OutlineSection{Part: "Main"}
	for i := 0; i < n; i++ {
		section.Pages = append(section.Pages, domain.OutlineEntry{
			Title:  fmt.Sprintf("Slide %d", i+1),
			Points: []string{"point one", "point two"},
		})
	}
	return domain.Outline{Title: "Test Deck", Sections: []domain.OutlineSection{section}}
}

// testProjectWithPages creates a project and n pages in page order.
func testProjectWithPages(n int) (*domain.Project, []*domain.Page) {
	project := domain.NewProject("Test Deck")
	pages := make([]*domain.Page, n)
	for i := 0; i < n; i++ {
		page, err := domain.NewPage(project.ID, i)
		if err != nil {
			panic(err)
		}
		pages[i] = page
	}
	return project, pages
}
