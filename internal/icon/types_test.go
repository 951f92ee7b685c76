package icon

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want string
	}{
		{id: "10-icon-service-virtual-machines", want: "Virtual Machines"},
		{id: "00028-icon-service-Storage-Accounts", want: "Storage Accounts"},
		{id: "icon-service-keep-prefix", want: "Icon Service Keep Prefix"},
		{id: "02-icon-service-", want: ""},
		{id: "azure_sql-db", want: "Azure_sql Db"},
		{id: "app-service-v2", want: "App Service V2"},
		{id: "x-10-icon-service-y", want: "X 10 Icon Service Y"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DisplayName(tt.id))
		})
	}
}

func TestDisplayNameDeterministic(t *testing.T) {
	t.Parallel()

	id := "10-icon-service-virtual-machines"
	assert.Equal(t, DisplayName(id), DisplayName(id))
}

func TestNewRecord(t *testing.T) {
	t.Parallel()

	rec := NewRecord("compute", "10-icon-service-virtual-machines.svg")
	assert.Equal(t, Record{
		ID:           "10-icon-service-virtual-machines",
		Name:         "Virtual Machines",
		Category:     "compute",
		FileName:     "10-icon-service-virtual-machines.svg",
		RelativePath: "icons/compute/10-icon-service-virtual-machines.svg",
	}, rec)
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Virtual-Machines", SanitizeFileName("Virtual Machines"))
	assert.Equal(t, "SQL-Server--Stretch-", SanitizeFileName("SQL Server (Stretch)"))
	assert.Equal(t, "abc123", SanitizeFileName("abc123"))
	assert.Equal(t, "caf-", SanitizeFileName("café"))
}

func TestLibraryLookup(t *testing.T) {
	t.Parallel()

	lib := Library{Icons: []Record{{ID: "a"}, {ID: "b", Name: "B"}}}
	rec, ok := lib.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "B", rec.Name)
	_, ok = lib.Lookup("missing")
	assert.False(t, ok)
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	var scanErr *ScanError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", &ScanError{Path: "/x", Err: base}), &scanErr)
	assert.ErrorIs(t, scanErr, base)

	fetchErr := &FetchError{Path: "icons/a.svg", StatusCode: 404}
	assert.Contains(t, fetchErr.Error(), "status 404")

	exportErr := &ExportError{Op: "download", Err: base}
	assert.ErrorIs(t, exportErr, base)
	assert.Contains(t, exportErr.Error(), "export download")
}
