// Package model defines core types for the CLI catalog: profiles (one per
// logical tool), their install recipes, auth flows and command specs, the
// append-only listing versions, and per-agent compatibility records.
package model

import (
	"sort"
	"strings"
	"time"
)

// VerificationStatus describes how much a profile's content has been vetted.
type VerificationStatus string

const (
	Unverified       VerificationStatus = "unverified"
	CommunityCurated VerificationStatus = "community-curated"
	Verified         VerificationStatus = "verified"
)

// Valid reports whether s is a known verification status.
func (s VerificationStatus) Valid() bool {
	switch s {
	case Unverified, CommunityCurated, Verified:
		return true
	}
	return false
}

// Provenance tags where a change came from. Scrapes are low trust; curation
// events may overwrite verified content.
type Provenance string

const (
	ProvenanceScrape   Provenance = "scrape"
	ProvenanceCuration Provenance = "curation"
)

// Profile is the catalog entry for one logical CLI tool. Slug is the primary
// key and never changes once assigned.
type Profile struct {
	Slug          string                `json:"slug" yaml:"slug"`
	Name          string                `json:"name" yaml:"name"`
	Publisher     string                `json:"publisher" yaml:"publisher"`
	Description   string                `json:"description" yaml:"description"`
	Categories    []string              `json:"categories,omitempty" yaml:"categories,omitempty"`
	Tags          []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	Website       string                `json:"website,omitempty" yaml:"website,omitempty"`
	Repository    string                `json:"repository,omitempty" yaml:"repository,omitempty"`
	Docs          string                `json:"docs,omitempty" yaml:"docs,omitempty"`
	Binaries      []string              `json:"binaries" yaml:"binaries"`
	Packages      []string              `json:"packages,omitempty" yaml:"packages,omitempty"`
	Verification  VerificationStatus    `json:"verification" yaml:"verification"`
	LatestVersion string                `json:"latest_version,omitempty" yaml:"latest_version,omitempty"`
	Popularity    float64               `json:"popularity" yaml:"popularity,omitempty"`
	Trust         float64               `json:"trust" yaml:"trust,omitempty"`
	Downloads     int64                 `json:"downloads,omitempty" yaml:"downloads,omitempty"`
	Permissions   []string              `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Install       []InstallRecipe       `json:"install,omitempty" yaml:"install,omitempty"`
	Auth          *AuthFlow             `json:"auth,omitempty" yaml:"auth,omitempty"`
	Commands      []CommandSpec         `json:"commands,omitempty" yaml:"commands,omitempty"`
	Compatibility []CompatibilityRecord `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`
	Version       int                   `json:"version" yaml:"-"`
	CreatedAt     time.Time             `json:"created_at" yaml:"-"`
	UpdatedAt     time.Time             `json:"updated_at" yaml:"-"`
}

// Clone returns a deep copy of p so merges never alias the stored state.
func (p Profile) Clone() Profile {
	c := p
	c.Categories = cloneStrings(p.Categories)
	c.Tags = cloneStrings(p.Tags)
	c.Binaries = cloneStrings(p.Binaries)
	c.Packages = cloneStrings(p.Packages)
	c.Permissions = cloneStrings(p.Permissions)
	if p.Install != nil {
		c.Install = make([]InstallRecipe, len(p.Install))
		for i, r := range p.Install {
			r.Dependencies = cloneStrings(r.Dependencies)
			c.Install[i] = r
		}
	}
	if p.Auth != nil {
		a := *p.Auth
		a.Steps = append([]AuthStep(nil), p.Auth.Steps...)
		a.EnvVars = cloneStrings(p.Auth.EnvVars)
		a.Scopes = cloneStrings(p.Auth.Scopes)
		c.Auth = &a
	}
	if p.Commands != nil {
		c.Commands = make([]CommandSpec, len(p.Commands))
		for i, cmd := range p.Commands {
			c.Commands[i] = cmd.Clone()
		}
	}
	c.Compatibility = append([]CompatibilityRecord(nil), p.Compatibility...)
	return c
}

// ActiveCommands returns the commands that have not been soft-deleted.
func (p Profile) ActiveCommands() []CommandSpec {
	var out []CommandSpec
	for _, c := range p.Commands {
		if c.DeletedAt == nil {
			out = append(out, c)
		}
	}
	return out
}

// HasCommand reports whether an active command with the given id exists.
func (p Profile) HasCommand(id string) bool {
	for _, c := range p.Commands {
		if c.ID == id && c.DeletedAt == nil {
			return true
		}
	}
	return false
}

// PrimaryBinary returns the first binary of the profile, or "".
func (p Profile) PrimaryBinary() string {
	if len(p.Binaries) == 0 {
		return ""
	}
	return p.Binaries[0]
}

// InstallRecipe installs a tool on one (os, package manager) combination.
type InstallRecipe struct {
	OS             string   `json:"os" yaml:"os"`
	PackageManager string   `json:"package_manager" yaml:"package_manager"`
	Command        string   `json:"command" yaml:"command"`
	Checksum       string   `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Key identifies a recipe within a profile.
func (r InstallRecipe) Key() string {
	return strings.ToLower(r.OS) + "/" + strings.ToLower(r.PackageManager)
}

// AuthType enumerates how a CLI authenticates.
type AuthType string

const (
	AuthNone         AuthType = "none"
	AuthLoginCommand AuthType = "login_command"
	AuthConfigFile   AuthType = "config_file"
	AuthTokenEnv     AuthType = "token_env"
)

// Valid reports whether t is a known auth type.
func (t AuthType) Valid() bool {
	switch t {
	case AuthNone, AuthLoginCommand, AuthConfigFile, AuthTokenEnv:
		return true
	}
	return false
}

// AuthFlow describes the setup an agent must perform before using a CLI.
type AuthFlow struct {
	Type    AuthType   `json:"type" yaml:"type"`
	Steps   []AuthStep `json:"steps,omitempty" yaml:"steps,omitempty"`
	EnvVars []string   `json:"env_vars,omitempty" yaml:"env_vars,omitempty"`
	Refresh string     `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Scopes  []string   `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// AuthStep is one ordered setup instruction.
type AuthStep struct {
	Order       int    `json:"order" yaml:"order"`
	Instruction string `json:"instruction" yaml:"instruction"`
	Command     string `json:"command,omitempty" yaml:"command,omitempty"`
}

// Param is a command parameter.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// CommandSpec documents one command of a CLI. IDs are unique within a slug
// for all time: removed commands are soft-deleted, never reused.
type CommandSpec struct {
	ID             string     `json:"id" yaml:"id"`
	Command        string     `json:"command" yaml:"command"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Required       []Param    `json:"required,omitempty" yaml:"required,omitempty"`
	Optional       []Param    `json:"optional,omitempty" yaml:"optional,omitempty"`
	Examples       []string   `json:"examples,omitempty" yaml:"examples,omitempty"`
	ExpectedOutput string     `json:"expected_output,omitempty" yaml:"expected_output,omitempty"`
	CommonErrors   []string   `json:"common_errors,omitempty" yaml:"common_errors,omitempty"`
	Workflows      []string   `json:"workflows,omitempty" yaml:"workflows,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" yaml:"-"`
}

// Clone returns a deep copy of c.
func (c CommandSpec) Clone() CommandSpec {
	out := c
	out.Required = append([]Param(nil), c.Required...)
	out.Optional = append([]Param(nil), c.Optional...)
	out.Examples = cloneStrings(c.Examples)
	out.CommonErrors = cloneStrings(c.CommonErrors)
	out.Workflows = cloneStrings(c.Workflows)
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	return out
}

// SortedSet lowercases, trims, deduplicates and sorts values. Empty strings
// are dropped. The result is nil when nothing remains.
func SortedSet(values ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, vs := range values {
		for _, v := range vs {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
