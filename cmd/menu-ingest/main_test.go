package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bits-and-blooms/bloom/v3"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/dormdash/internal/domain/validation"
	"github.com/xenking/dormdash/internal/domain/vendor"
)

// --- Mock implementations ---

type mockMenu struct {
	mu      sync.Mutex
	names   map[string]bool
	lookups int
	created []vendor.MenuInput
}

func newMockMenu(existing ...[2]string) *mockMenu {
	m := &mockMenu{names: make(map[string]bool)}
	for _, e := range existing {
		m.names[itemKey(e[0], e[1])] = true
	}
	return m
}

func (m *mockMenu) HasName(_ context.Context, vendorID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	return m.names[itemKey(vendorID, name)], nil
}

func (m *mockMenu) CreateItem(_ context.Context, vendorID string, in vendor.MenuInput) (*vendor.MenuItem, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, validation.Invalid("name", "is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[itemKey(vendorID, in.Name)] = true
	m.created = append(m.created, in)
	return &vendor.MenuItem{VendorID: vendorID, Name: in.Name, Price: in.Price}, nil
}

// --- Helpers ---

func writeExport(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func newImporter(menu *mockMenu, existing ...[2]string) *importer {
	seen := bloom.NewWithEstimates(1_000, bloomFPR)
	for _, e := range existing {
		seen.AddString(itemKey(e[0], e[1]))
	}
	return &importer{
		vendors: map[string]bool{"ven-1": true, "ven-2": true},
		seen:    seen,
		names:   menu,
		items:   menu,
	}
}

// --- Tests ---

func TestStreamGzFile_ReadsEveryLine(t *testing.T) {
	path := writeExport(t, t.TempDir(), "a.jsonl.gz", `{"a":1}`, `{"a":2}`, `{"a":3}`)

	var got []string
	err := streamGzFile(context.Background(), path, func(line []byte) error {
		got = append(got, string(line))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`, `{"a":3}`}, got)
}

func TestStreamGzFile_MissingFile(t *testing.T) {
	err := streamGzFile(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl.gz"), func([]byte) error { return nil })
	assert.Error(t, err)
}

func TestIngest_SkipsDuplicatesAndBadLines(t *testing.T) {
	dir := t.TempDir()
	existing := [2]string{"ven-1", "Masala Dosa"}
	menu := newMockMenu(existing)
	imp := newImporter(menu, existing)

	a := writeExport(t, dir, "a.jsonl.gz",
		`{"vendorId":"ven-1","name":"masala dosa ","price":"60"}`,
		`{"vendorId":"ven-1","name":"Idli","price":"40","isVeg":true}`,
		`not json`,
		``,
	)
	b := writeExport(t, dir, "b.jsonl.gz",
		`{"vendorId":"ven-2","name":"Ramen","price":"180.50","isAvailable":false}`,
		`{"vendorId":"ven-9","name":"Ghost Burger","price":"99"}`,
		`{"vendorId":"ven-2","name":"","price":"10"}`,
	)

	require.NoError(t, imp.ingest(context.Background(), []string{a, b}))

	assert.Equal(t, 5, imp.stats.read)
	assert.Equal(t, 2, imp.stats.inserted)
	assert.Equal(t, 1, imp.stats.duplicates)
	assert.Equal(t, 1, imp.stats.unknown)
	assert.Equal(t, 1, imp.stats.invalid)

	byName := map[string]vendor.MenuInput{}
	for _, in := range menu.created {
		byName[in.Name] = in
	}
	require.Contains(t, byName, "Ramen")
	assert.False(t, byName["Ramen"].IsAvailable)
	assert.Equal(t, "180.5", byName["Ramen"].Price.String())
	require.Contains(t, byName, "Idli")
	assert.True(t, byName["Idli"].IsAvailable)
	assert.True(t, byName["Idli"].IsVeg)
}

func TestIngest_ReplayIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	menu := newMockMenu()
	path := writeExport(t, dir, "a.jsonl.gz",
		`{"vendorId":"ven-1","name":"Chai","price":"15"}`,
		`{"vendorId":"ven-1","name":"Chai","price":"15"}`,
	)

	imp := newImporter(menu)
	require.NoError(t, imp.ingest(context.Background(), []string{path}))
	assert.Equal(t, 1, imp.stats.inserted)
	assert.Equal(t, 1, imp.stats.duplicates)

	again := newImporter(menu, [2]string{"ven-1", "Chai"})
	require.NoError(t, again.ingest(context.Background(), []string{path}))
	assert.Zero(t, again.stats.inserted)
	assert.Equal(t, 2, again.stats.duplicates)
	assert.Len(t, menu.created, 1)
}

func TestIngest_CanceledContext(t *testing.T) {
	path := writeExport(t, t.TempDir(), "a.jsonl.gz", `{"vendorId":"ven-1","name":"Chai","price":"15"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newImporter(newMockMenu()).ingest(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
