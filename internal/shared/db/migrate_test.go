package db_conn

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// Migrate вызывается из bootstrap как Migrate(ctx, pool) — фиксируем
// сигнатуру на этапе компиляции.
var _ func(context.Context, *pgxpool.Pool) error = Migrate

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := MigrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		require.True(t, strings.HasSuffix(e.Name(), ".sql"), "unexpected file %s", e.Name())

		body, err := MigrationsFS.ReadFile("migrations/" + e.Name())
		require.NoError(t, err)
		require.NotEmpty(t, body)
	}
}
