package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed profile.schema.json
var profileSchemaJSON []byte

const profileSchemaURL = "https://opengate.schemas.local/profile.schema.json"

// Profile selects which trust checks run around the core validator.
type Profile struct {
	Name             string   `yaml:"name" json:"name"`
	Requires         string   `yaml:"requires,omitempty" json:"requires,omitempty"`
	StrictHardMax    bool     `yaml:"strict_hard_max" json:"strict_hard_max"`
	RequireSignature bool     `yaml:"require_signature" json:"require_signature"`
	RequirePatchHash bool     `yaml:"require_patch_hash" json:"require_patch_hash"`
	RequireChain     bool     `yaml:"require_chain" json:"require_chain"`
	TrustedKeys      []string `yaml:"trusted_keys,omitempty" json:"trusted_keys,omitempty"`
	Rules            []string `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// DefaultProfile checks patch hashes and nothing else beyond the core.
func DefaultProfile() *Profile {
	return &Profile{Name: "default", RequirePatchHash: true}
}

// LoadProfile reads a YAML profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	return p, nil
}

// ParseProfile decodes, schema-validates and version-checks a YAML profile.
func ParseProfile(data []byte) (*Profile, error) {
	// The schema validator wants JSON values, so round-trip through a
	// generic document first.
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	schema, err := compileProfileSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := p.CheckVersion(Version); err != nil {
		return nil, err
	}
	return &p, nil
}

func compileProfileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(profileSchemaURL, bytes.NewReader(profileSchemaJSON)); err != nil {
		return nil, fmt.Errorf("profile schema load failed: %w", err)
	}
	schema, err := c.Compile(profileSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("profile schema compile failed: %w", err)
	}
	return schema, nil
}

// CheckVersion verifies the profile's "requires" constraint against version.
// An empty constraint matches every version.
func (p *Profile) CheckVersion(version string) error {
	if p.Requires == "" {
		return nil
	}
	constraint, err := semver.NewConstraint(p.Requires)
	if err != nil {
		return fmt.Errorf("invalid version constraint in profile %s: %w", p.Name, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid version %s: %w", version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("profile %s requires %s, but running %s", p.Name, p.Requires, version)
	}
	return nil
}
