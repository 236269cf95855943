package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/health-content-resolver/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", "", "--content", "../../content"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	out, err := run(t, "resolve", "hbp", "xyzzy")
	require.NoError(t, err)

	assert.Contains(t, out, "condition-hypertension")
	assert.Contains(t, out, "alias")
	assert.Contains(t, out, "unresolved")
}

func TestResolveCommandStrict(t *testing.T) {
	_, err := run(t, "resolve", "--strict", "asthma", "xyzzy")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnresolved))
	assert.Contains(t, err.Error(), "xyzzy")
}

func TestResolveCommandJSON(t *testing.T) {
	out, err := run(t, "--json", "resolve", "--lang", "es", "--explain", "asma")
	require.NoError(t, err)

	var rows []struct {
		Input      string `json:"input"`
		Resolution struct {
			EntryID string `json:"entry_id"`
			Source  string `json:"source"`
		} `json:"resolution"`
		Attempts []struct {
			Name string `json:"name"`
		} `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "condition-asthma", rows[0].Resolution.EntryID)
	assert.Equal(t, "exact_name", rows[0].Resolution.Source)
	require.Len(t, rows[0].Attempts, 2)
	assert.Equal(t, "strategy.exact_name", rows[0].Attempts[1].Name)
}

func TestSearchCommand(t *testing.T) {
	out, err := run(t, "search", "--type", "test", "blood", "sugar")
	require.NoError(t, err)

	assert.Contains(t, out, "test-blood-glucose")
	assert.NotContains(t, out, "condition-type-2-diabetes")
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestValidateCommandReportsDangling(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"entries.yaml", "curated.yaml"} {
		data, err := os.ReadFile(filepath.Join("../../content", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aliases.yaml"), []byte("condition-gone: [ghost]\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "modules"), 0o755))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", "", "--content", dir, "validate"})
	err := cmd.Execute()

	require.Error(t, err)
	assert.True(t, errors.Is(err, errDanglingReferences))
	assert.Contains(t, out.String(), `alias "ghost" -> "condition-gone"`)
}

func TestModulesCommand(t *testing.T) {
	out, err := run(t, "modules")
	require.NoError(t, err)
	assert.Equal(t, "conditions\nmental-health\n", out)

	out, err = run(t, "modules", "--records")
	require.NoError(t, err)
	assert.Contains(t, out, "localized-conditions-dengue-grave")
	assert.Contains(t, out, "Severe dengue")
}
