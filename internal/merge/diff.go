package merge

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/scbrown/clicat/internal/model"
)

// Versioned field names, in the order changes and changelogs list them.
const (
	FieldName          = "name"
	FieldPublisher     = "publisher"
	FieldDescription   = "description"
	FieldWebsite       = "website"
	FieldRepository    = "repository"
	FieldDocs          = "docs"
	FieldCategories    = "categories"
	FieldTags          = "tags"
	FieldBinaries      = "binaries"
	FieldPackages      = "packages"
	FieldInstall       = "install"
	FieldAuth          = "auth"
	FieldCommands      = "commands"
	FieldPermissions   = "permissions"
	FieldVerification  = "verification"
	FieldLatestVersion = "latest_version"
)

// Fields is the canonical field order. Scores, downloads and compatibility
// are derived signals and are not listing content.
var Fields = []string{
	FieldName, FieldPublisher, FieldDescription, FieldWebsite, FieldRepository,
	FieldDocs, FieldCategories, FieldTags, FieldBinaries, FieldPackages,
	FieldInstall, FieldAuth, FieldCommands, FieldPermissions, FieldVerification,
	FieldLatestVersion,
}

var fieldRank = func() map[string]int {
	m := make(map[string]int, len(Fields))
	for i, f := range Fields {
		m[f] = i
	}
	return m
}()

// Rank returns the position of field in the canonical order. Unknown fields
// sort last.
func Rank(field string) int {
	if r, ok := fieldRank[field]; ok {
		return r
	}
	return len(Fields)
}

// SortFields orders field names canonically.
func SortFields(fields []string) {
	sort.SliceStable(fields, func(i, j int) bool { return Rank(fields[i]) < Rank(fields[j]) })
}

// Diff returns the changes between two profile states in canonical order.
func Diff(before, after model.Profile) []model.FieldChange {
	var out []model.FieldChange
	for _, f := range Fields {
		b, a := render(f, before), render(f, after)
		if b != a {
			out = append(out, model.FieldChange{Field: f, Before: b, After: a})
		}
	}
	return out
}

// render returns a stable string form of one field.
func render(field string, p model.Profile) string {
	switch field {
	case FieldName:
		return p.Name
	case FieldPublisher:
		return p.Publisher
	case FieldDescription:
		return p.Description
	case FieldWebsite:
		return p.Website
	case FieldRepository:
		return p.Repository
	case FieldDocs:
		return p.Docs
	case FieldCategories:
		return joinList(p.Categories)
	case FieldTags:
		return joinList(p.Tags)
	case FieldBinaries:
		return joinList(p.Binaries)
	case FieldPackages:
		return joinList(p.Packages)
	case FieldInstall:
		parts := make([]string, len(p.Install))
		for i, r := range p.Install {
			parts[i] = renderRecipe(r)
		}
		return strings.Join(parts, "; ")
	case FieldAuth:
		if p.Auth == nil {
			return ""
		}
		return renderJSON(p.Auth)
	case FieldCommands:
		active := p.ActiveCommands()
		if len(active) == 0 {
			return ""
		}
		return renderJSON(active)
	case FieldPermissions:
		return joinList(p.Permissions)
	case FieldVerification:
		return string(p.Verification)
	case FieldLatestVersion:
		return p.LatestVersion
	}
	return ""
}

func renderRecipe(r model.InstallRecipe) string {
	s := r.Key() + ": " + r.Command
	if r.Checksum != "" {
		s += " (" + r.Checksum + ")"
	}
	if len(r.Dependencies) > 0 {
		s += " [" + joinList(r.Dependencies) + "]"
	}
	return s
}

func renderJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func joinList(v []string) string {
	return strings.Join(v, ", ")
}
