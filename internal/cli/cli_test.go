package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/groupinviter/internal/repository"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func useTempDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bot.db")
	t.Setenv("DATABASE_URL", path)
	t.Setenv("NATS_URL", "")
	t.Setenv("LIMITS_FILE", "")
	return path
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "stats", "search", "events"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestMigrateUpAndVersion(t *testing.T) {
	useTempDB(t)

	out, err := run(t, "migrate", "version", "--log-file", "inviter.log")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0")

	out, err = run(t, "migrate", "up", "--log-file", "inviter.log")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 2 migration(s)")

	out, err = run(t, "migrate", "up", "--log-file", "inviter.log")
	require.NoError(t, err)
	assert.Contains(t, out, "applied 0 migration(s)")

	out, err = run(t, "migrate", "version", "--log-file", "inviter.log")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2 (latest 2)")
}

func TestStats_JSON(t *testing.T) {
	useTempDB(t)

	out, err := run(t, "stats", "--json", "--log-file", "inviter.log")
	require.NoError(t, err)

	var stats repository.DashboardStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Zero(t, stats.Groups)
}

func TestSearch_RequiresKeyword(t *testing.T) {
	_, err := run(t, "search")
	assert.Error(t, err)
}

func TestEvents_RequiresNATS(t *testing.T) {
	useTempDB(t)
	_, err := run(t, "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NATS_URL")
}

func TestFormatEvent(t *testing.T) {
	line := formatEvent("inviter.campaign.progress",
		[]byte(`{"type":"campaign.progress","time":"2026-01-02T10:11:12Z","payload":{"processed":3}}`))
	assert.Equal(t, `10:11:12 campaign.progress  {"processed":3}`, line)

	assert.Equal(t, "inviter.x not json", formatEvent("inviter.x", []byte("not json")))
}
