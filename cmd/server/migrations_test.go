package main

import (
	"io/fs"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.True(t, sort.StringsAreSorted(names), "migrations must apply in filename order")

	for _, name := range names {
		data, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+name)
		require.NoError(t, err)

		content := string(data)
		assert.Contains(t, content, "-- +goose Up", "%s missing up section", name)
		assert.Contains(t, content, "-- +goose Down", "%s missing down section", name)
		assert.True(t, strings.HasSuffix(name, ".sql"), "%s is not a SQL migration", name)
	}
}

func TestEmbeddedMigrationsCoverSchema(t *testing.T) {
	t.Parallel()

	var all strings.Builder
	err := fs.WalkDir(migrationsFS, migrationsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, readErr := fs.ReadFile(migrationsFS, path)
		if readErr != nil {
			return readErr
		}
		all.Write(data)
		return nil
	})
	require.NoError(t, err)

	schema := all.String()
	for _, table := range []string{"projects", "pages", "page_image_versions", "materials", "tasks"} {
		assert.Contains(t, schema, "CREATE TABLE "+table, "missing table %s", table)
	}
	assert.Contains(t, schema, "pages_project_order_key")
	assert.Contains(t, schema, "idx_page_image_versions_current")
}
