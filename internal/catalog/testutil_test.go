package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func rec(bv, title, author string) Record {
	return Record{Title: title, Author: author, Date: "2024-01-01", URL: "https://www.bilibili.com/video/" + bv, BV: bv}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
