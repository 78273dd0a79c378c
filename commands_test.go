package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"actrack/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTotals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTotals(&buf, types.EntityDomain, []types.ActivityTotal{
		{Name: "example.com", Seconds: 3725},
		{Name: "github.com", Seconds: 5},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "DOMAIN"))
	assert.Contains(t, lines[1], "1h2m5s")
	assert.Contains(t, lines[2], "github.com")
}

func TestWriteTotals_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTotals(&buf, types.EntityApplication, nil))
	assert.Equal(t, "No activity recorded.\n", buf.String())
}

func TestRecordThenReport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ACTRACK_DB_PATH", filepath.Join(dir, "activity.db"))
	settings := filepath.Join(dir, "settings.toml")

	record := newRecordCommand(&settings)
	record.SetArgs([]string{"--app", "editor", "--seconds", "90"})
	require.NoError(t, record.Execute())

	var out bytes.Buffer
	report := newReportCommand(&settings)
	report.SetOut(&out)
	report.SetArgs([]string{"apps", "--json"})
	require.NoError(t, report.Execute())

	var totals []types.ActivityTotal
	require.NoError(t, json.Unmarshal(out.Bytes(), &totals))
	assert.Equal(t, []types.ActivityTotal{{Name: "editor", Seconds: 90}}, totals)
}

func TestRecordRequiresEntity(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "settings.toml")
	cmd := newRecordCommand(&settings)
	cmd.SetArgs([]string{"--seconds", "5"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	require.Error(t, cmd.Execute())
}

func TestSettingsInit(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "actrack", "settings.toml")

	cmd := newSettingsCommand(&settings)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"init"})
	require.NoError(t, cmd.Execute())

	again := newSettingsCommand(&settings)
	again.SetOut(&bytes.Buffer{})
	again.SilenceErrors = true
	again.SilenceUsage = true
	again.SetArgs([]string{"init"})
	require.Error(t, again.Execute())
}
