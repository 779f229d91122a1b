// Package normalize canonicalizes raw registry scrape records into
// candidates for identity resolution. Everything here is pure: no I/O,
// no clocks, no shared state.
package normalize

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	packageurl "github.com/package-url/packageurl-go"
	"github.com/scbrown/clicat/internal/model"
)

// Reason codes for rejected records.
const (
	ReasonMissingSlug   = "missing_slug"
	ReasonMissingBinary = "missing_binary"
	ReasonInvalidSlug   = "invalid_slug"
)

// RejectError reports a structurally invalid record. Rejected records are
// counted and dropped, never merged.
type RejectError struct {
	Reason string
	Slug   string
	Err    error
}

func (e *RejectError) Error() string {
	msg := "reject: " + e.Reason
	if e.Slug != "" {
		msg = fmt.Sprintf("reject %s: %s", e.Slug, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RejectError) Unwrap() error { return e.Err }

// DefaultRegistry is the purl type assumed when a record does not name one.
const DefaultRegistry = "npm"

// wrapperPrefixes are launcher invocations scrapers sometimes leave in the
// binary field. Longer prefixes first.
var wrapperPrefixes = []string{
	"pnpm dlx ",
	"yarn dlx ",
	"pipx run ",
	"go run ",
	"bunx ",
	"npx ",
	"uvx ",
	"./",
}

// wellKnownTools are CLIs commonly wrapped by third-party packages.
var wellKnownTools = map[string]bool{
	"aws": true, "az": true, "docker": true, "gcloud": true, "gh": true,
	"git": true, "helm": true, "kubectl": true, "npm": true, "terraform": true,
	"pulumi": true, "vercel": true, "wrangler": true, "supabase": true,
	"firebase": true, "heroku": true, "stripe": true, "ffmpeg": true,
}

// codeHosts are hosts whose URLs identify a source repository.
var codeHosts = map[string]bool{
	"github.com":    true,
	"gitlab.com":    true,
	"bitbucket.org": true,
	"codeberg.org":  true,
}

var (
	reNonSlug  = regexp.MustCompile(`[^a-z0-9]+`)
	reToken    = regexp.MustCompile(`[a-z0-9]+`)
	reSplitter = regexp.MustCompile(`[-_./]+`)
)

// Normalize converts a raw scrape record into a candidate.
func Normalize(r model.RawRecord) (model.Candidate, error) {
	if strings.TrimSpace(r.Slug) == "" {
		return model.Candidate{}, &RejectError{Reason: ReasonMissingSlug}
	}
	slug := Slug(r.Slug)
	if slug == "" {
		return model.Candidate{}, &RejectError{Reason: ReasonInvalidSlug, Slug: r.Slug}
	}
	binary := Binary(r.Binary)
	if binary == "" {
		return model.Candidate{}, &RejectError{Reason: ReasonMissingBinary, Slug: slug}
	}

	registry := strings.ToLower(strings.TrimSpace(r.Registry))
	if registry == "" {
		registry = DefaultRegistry
	}
	pkgName := strings.TrimSpace(r.PackageName)
	if pkgName == "" {
		pkgName = slug
	}
	scope, bare := SplitScope(pkgName)

	c := model.Candidate{
		Provenance:     model.ProvenanceScrape,
		Slug:           slug,
		Name:           strings.TrimSpace(r.Name),
		Binary:         binary,
		PackageName:    pkgName,
		Scope:          scope,
		BareName:       bare,
		PURL:           PURL(registry, scope, bare),
		Registry:       registry,
		Publisher:      strings.TrimSpace(r.Publisher),
		PublisherToken: PublisherToken(r.Publisher),
		Description:    strings.Join(strings.Fields(r.Description), " "),
		Category:       strings.ToLower(strings.TrimSpace(r.Category)),
		Tags:           model.SortedSet(r.Tags, []string{r.Category}),
		Docs:           strings.TrimSpace(r.Docs),
		Downloads:      r.Downloads,
		Version:        strings.TrimSpace(r.Version),
	}
	if c.Name == "" {
		c.Name = bare
	}

	c.Repository = RepositoryURL(r.Repository)
	if c.Repository == "" {
		c.Repository = RepositoryURL(r.Docs)
	}
	c.Website = strings.TrimSpace(r.Website)
	if c.Website == "" && c.Docs != "" && RepositoryURL(c.Docs) == "" {
		c.Website = c.Docs
	}

	c.WrapsTool = WrapsTool(binary, bare)
	c.Install = InstallFor(registry, pkgName)
	return c, nil
}

// Slug canonicalizes a natural slug: lowercase, runs of anything outside
// [a-z0-9] collapsed to a single hyphen, no leading or trailing hyphens.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = reNonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Binary lowercases and trims a binary name and strips launcher prefixes
// and directory components.
func Binary(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for changed := true; changed; {
		changed = false
		for _, p := range wrapperPrefixes {
			if s == strings.TrimSpace(p) {
				return ""
			}
			if strings.HasPrefix(s, p) {
				s = strings.TrimSpace(strings.TrimPrefix(s, p))
				changed = true
			}
		}
	}
	// Anything after the first space is an argument, not the binary.
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	if strings.Contains(s, "/") {
		s = path.Base(s)
	}
	return s
}

// SplitScope splits "@scope/name" into ("scope", "name"). Unscoped names
// return an empty scope.
func SplitScope(pkg string) (scope, bare string) {
	pkg = strings.TrimSpace(pkg)
	if strings.HasPrefix(pkg, "@") {
		if i := strings.IndexByte(pkg, '/'); i > 1 {
			return strings.ToLower(pkg[1:i]), strings.ToLower(pkg[i+1:])
		}
	}
	return "", strings.ToLower(pkg)
}

// PURL builds the canonical, versionless package URL for a package.
func PURL(registry, scope, bare string) string {
	if bare == "" {
		return ""
	}
	ns := ""
	if scope != "" {
		ns = scope
		if registry == "npm" {
			ns = "@" + scope
		}
	}
	return packageurl.NewPackageURL(registry, ns, bare, "", nil, "").ToString()
}

// PublisherToken returns the first alphanumeric token of a publisher name,
// used as a deterministic disambiguation suffix.
func PublisherToken(publisher string) string {
	return reToken.FindString(strings.ToLower(publisher))
}

// RepositoryURL canonicalizes a code-host URL to "host/owner/repo". A
// tree or blob link into the repository keeps its directory as
// "host/owner/repo/sub/dir", so tools living side by side in a monorepo stay
// distinct. Any other page under the repository collapses to the root.
// Non-code-host URLs return "".
func RepositoryURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.TrimPrefix(raw, "git+")
	if strings.HasPrefix(raw, "git@") {
		// git@github.com:owner/repo.git
		raw = "https://" + strings.Replace(strings.TrimPrefix(raw, "git@"), ":", "/", 1)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !codeHosts[host] {
		return ""
	}
	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) < 2 {
		return ""
	}
	owner := strings.ToLower(parts[0])
	repo := strings.TrimSuffix(strings.ToLower(parts[1]), ".git")
	if owner == "" || repo == "" {
		return ""
	}
	id := host + "/" + owner + "/" + repo
	if sub := repoSubpath(parts[2:]); len(sub) > 0 {
		id += "/" + strings.ToLower(strings.Join(sub, "/"))
	}
	return id
}

// repoSubpath extracts the directory named by the path segments after
// owner/repo: "tree/<ref>/dir..." or "blob/<ref>/dir.../file" (GitHub),
// "-/tree/<ref>/dir..." (GitLab), "src/<ref>/dir..." (Bitbucket, Gitea).
// Refs containing slashes are not recognized and yield a deeper subpath.
func repoSubpath(rest []string) []string {
	if len(rest) > 0 && rest[0] == "-" {
		rest = rest[1:]
	}
	if len(rest) < 3 {
		return nil
	}
	switch rest[0] {
	case "tree", "src":
		return rest[2:]
	case "blob":
		return rest[2 : len(rest)-1]
	}
	return nil
}

// PackageID canonicalizes a package reference to its versionless purl. Bare
// names ("tsx", "@scope/name") are taken as DefaultRegistry packages.
// Unparseable purls return "".
func PackageID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "pkg:") {
		pu, err := packageurl.FromString(s)
		if err != nil {
			return ""
		}
		typ := strings.ToLower(pu.Type)
		ns := strings.ToLower(pu.Namespace)
		if typ == "npm" {
			ns = strings.TrimPrefix(ns, "@")
		}
		return PURL(typ, ns, strings.ToLower(pu.Name))
	}
	scope, bare := SplitScope(s)
	return PURL(DefaultRegistry, scope, bare)
}

// WrapsTool reports which well-known tool a binary or package appears to
// wrap, or "" when it is the tool itself or unrelated.
func WrapsTool(binary, bareName string) string {
	if wellKnownTools[binary] {
		return ""
	}
	for _, name := range []string{binary, bareName} {
		for _, tok := range reSplitter.Split(name, -1) {
			if wellKnownTools[tok] {
				return tok
			}
		}
	}
	return ""
}

// InstallFor returns the install recipe implied by a registry, or nil for
// registries without a standard global install command.
func InstallFor(registry, pkg string) *model.InstallRecipe {
	r := &model.InstallRecipe{OS: "any", PackageManager: registry}
	switch registry {
	case "npm":
		r.Command = "npm install -g " + pkg
	case "pypi":
		r.PackageManager = "pipx"
		r.Command = "pipx install " + pkg
	case "cargo":
		r.Command = "cargo install " + pkg
	case "golang":
		r.PackageManager = "go"
		r.Command = "go install " + pkg + "@latest"
	case "gem":
		r.Command = "gem install " + pkg
	case "brew":
		r.OS = "macos"
		r.Command = "brew install " + pkg
	default:
		return nil
	}
	return r
}
