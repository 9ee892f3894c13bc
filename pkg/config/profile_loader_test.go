package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strictProfile = `
name: strict
requires: ">= 0.1.0, < 1.0.0"
strict_hard_max: true
require_signature: true
require_patch_hash: true
require_chain: true
trusted_keys:
  - ed25519:3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29
rules:
  - "epsilon <= 1000"
  - "margin >= 0"
`

func TestParseProfile_Strict(t *testing.T) {
	p, err := ParseProfile([]byte(strictProfile))
	require.NoError(t, err)

	assert.Equal(t, "strict", p.Name)
	assert.True(t, p.StrictHardMax)
	assert.True(t, p.RequireSignature)
	assert.True(t, p.RequirePatchHash)
	assert.True(t, p.RequireChain)
	assert.Len(t, p.TrustedKeys, 1)
	assert.Equal(t, []string{"epsilon <= 1000", "margin >= 0"}, p.Rules)
}

func TestParseProfile_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "strict_hard_max: true\n"},
		{"unknown field", "name: x\nsignature: true\n"},
		{"wrong type", "name: x\nrequire_chain: \"yes\"\n"},
		{"short key", "name: x\ntrusted_keys: [abcd]\n"},
		{"empty rule", "name: x\nrules: [\"\"]\n"},
		{"number for bool", "name: x\nrequire_chain: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "schema validation failed")
		})
	}
}

func TestParseProfile_JSONDocument(t *testing.T) {
	p, err := ParseProfile([]byte(`{"name": "json", "strict_hard_max": true, "rules": ["cost < 1000"]}`))
	require.NoError(t, err)
	assert.Equal(t, "json", p.Name)
	assert.True(t, p.StrictHardMax)
	assert.Equal(t, []string{"cost < 1000"}, p.Rules)
}

func TestParseProfile_BadYAML(t *testing.T) {
	_, err := ParseProfile([]byte("name: [unterminated"))
	assert.Error(t, err)
}

func TestProfile_CheckVersion(t *testing.T) {
	p := &Profile{Name: "p", Requires: ">= 2.0.0"}
	err := p.CheckVersion("1.4.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires >= 2.0.0")

	assert.NoError(t, p.CheckVersion("2.1.0"))
	assert.Error(t, p.CheckVersion("not-a-version"))

	p.Requires = "bogus"
	assert.Error(t, p.CheckVersion("1.0.0"))

	p.Requires = ""
	assert.NoError(t, p.CheckVersion("anything"))
}

func TestParseProfile_VersionMismatch(t *testing.T) {
	_, err := ParseProfile([]byte("name: future\nrequires: \">= 99.0.0\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires")
}

func TestLoadProfile_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strict.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strictProfile), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "strict", p.Name)

	_, err = LoadProfile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "load profile"))
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	assert.Equal(t, "default", p.Name)
	assert.True(t, p.RequirePatchHash)
	assert.False(t, p.RequireSignature)
	assert.NoError(t, p.CheckVersion(Version))
}
