package destination

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitops/atsync/pkg/canonical"
)

func TestLoadFieldMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom_fields_mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"candidates":   {"location": "cf-100", "work_model": "cf-101"},
		"applications": {"referral": "cf-200"}
	}`), 0o644))

	m, err := LoadFieldMap(path)
	require.NoError(t, err)

	assert.Equal(t, "cf-100", m.ID(canonical.KindCandidate, "location"))
	assert.Equal(t, "cf-200", m.ID(canonical.KindApplication, "referral"))
	assert.Empty(t, m.ID(canonical.KindCandidate, "unknown"))
	assert.Empty(t, m.ID(canonical.KindJob, "location"), "jobs carry no custom field section")
}

func TestLoadFieldMapMissingFile(t *testing.T) {
	m, err := LoadFieldMap(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, m.ID(canonical.KindCandidate, "location"))
}

func TestLoadFieldMapMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := LoadFieldMap(path)
	require.Error(t, err)
}
