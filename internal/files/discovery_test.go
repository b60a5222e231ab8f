package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	return path
}

func TestIsExportFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "export.csv", want: true},
		{name: "EXPORT.CSV", want: true},
		{name: "register.xlsx", want: true},
		{name: "register.xlsm", want: true},
		{name: "dump.txt", want: true},
		{name: "report.pdf", want: false},
		{name: "notes.md", want: false},
		{name: "noextension", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExportFile(tt.name))
		})
	}
}

func TestFindExportFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_export.csv")
	writeFile(t, dir, "a_export.xlsx")
	writeFile(t, dir, "ignore.pdf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0755))

	found, err := NewDiscovery("").FindExportFiles(dir)
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "a_export.xlsx", found[0].Name)
	assert.Equal(t, "b_export.csv", found[1].Name)
	assert.Equal(t, filepath.Join(dir, "b_export.csv"), found[1].Path)
	assert.Equal(t, int64(4), found[0].Size)
}

func TestFindExportFiles_RelativeToBase(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "exports"), 0755))
	writeFile(t, filepath.Join(base, "exports"), "day.csv")

	found, err := NewDiscovery(base).FindExportFiles("exports")
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, "day.csv", found[0].Name)
}

func TestFindExportFiles_MissingDirectory(t *testing.T) {
	_, err := NewDiscovery("").FindExportFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestLatest(t *testing.T) {
	now := time.Now()
	found := []FileInfo{
		{Name: "old.csv", ModTime: now.Add(-2 * time.Hour)},
		{Name: "new.csv", ModTime: now},
		{Name: "mid.csv", ModTime: now.Add(-time.Hour)},
	}

	latest, ok := Latest(found)
	require.True(t, ok)
	assert.Equal(t, "new.csv", latest.Name)

	_, ok = Latest(nil)
	assert.False(t, ok)
}
