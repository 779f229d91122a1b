package model

// RawRecord is one package-registry scrape entry as produced by the external
// crawler. It only lives for the duration of an ingestion run.
type RawRecord struct {
	Slug        string   `json:"slug" yaml:"slug"`
	PackageName string   `json:"packageName" yaml:"packageName"`
	Binary      string   `json:"binary" yaml:"binary"`
	Name        string   `json:"name" yaml:"name"`
	Publisher   string   `json:"publisher" yaml:"publisher"`
	Description string   `json:"description" yaml:"description"`
	Category    string   `json:"category" yaml:"category"`
	Tags        []string `json:"tags" yaml:"tags"`
	Docs        string   `json:"docs" yaml:"docs"`

	// Optional extensions some crawlers emit.
	Registry   string `json:"registry,omitempty" yaml:"registry,omitempty"`
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
	Website    string `json:"website,omitempty" yaml:"website,omitempty"`
	Downloads  int64  `json:"downloads,omitempty" yaml:"downloads,omitempty"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Candidate is a normalized record ready for identity resolution. Scrape
// candidates come from RawRecords; curation candidates carry a full Profile.
type Candidate struct {
	Provenance Provenance `json:"provenance"`

	// Slug is the natural slug derived from the record; the resolver and
	// collision policy decide the slug actually assigned.
	Slug           string   `json:"slug"`
	Name           string   `json:"name"`
	Binary         string   `json:"binary"`
	PackageName    string   `json:"package_name"`
	Scope          string   `json:"scope,omitempty"`
	BareName       string   `json:"bare_name"`
	PURL           string   `json:"purl,omitempty"`
	Registry       string   `json:"registry"`
	Publisher      string   `json:"publisher"`
	PublisherToken string   `json:"publisher_token,omitempty"`
	Description    string   `json:"description"`
	Category       string   `json:"category,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Docs           string   `json:"docs,omitempty"`
	Repository     string   `json:"repository,omitempty"`
	Website        string   `json:"website,omitempty"`
	WrapsTool      string   `json:"wraps_tool,omitempty"`
	Downloads      int64    `json:"downloads,omitempty"`
	Version        string   `json:"version,omitempty"`

	// Install is the recipe implied by the source registry, if any.
	Install *InstallRecipe `json:"install,omitempty"`

	// Curated holds the authoritative profile for curation candidates.
	Curated *Profile `json:"curated,omitempty"`
}

// IsWrapper reports whether the candidate looks like a wrapper around a
// well-known tool rather than the tool itself.
func (c Candidate) IsWrapper() bool {
	return c.WrapsTool != ""
}

// Key returns a stable identifier for logs and curation dedupe.
func (c Candidate) Key() string {
	if c.PURL != "" {
		return c.PURL
	}
	return c.Slug
}
