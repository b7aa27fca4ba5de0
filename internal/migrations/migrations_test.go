package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionsAreSequential(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)
	require.Equal(t, []uint{1, 2, 3}, versions)
}

func TestEveryUpHasDown(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.Equal(t, ups, downs)
}

func TestDriverURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/studio?sslmode=disable", DriverURL("postgres://u:p@db:5432/studio?sslmode=disable"))
	require.Equal(t, "pgx5://db/studio", DriverURL("postgresql://db/studio"))
	require.Equal(t, "pgx5://db/studio", DriverURL("pgx5://db/studio"))
}
