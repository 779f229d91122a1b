package model

import "time"

// CompatStatus is the derived health of a (tool, agent) pair.
type CompatStatus string

const (
	CompatVerified CompatStatus = "verified"
	CompatPartial  CompatStatus = "partial"
	CompatBroken   CompatStatus = "broken"
	CompatUnknown  CompatStatus = "unknown"
)

// CompatibilityRecord tracks how reliably an agent can drive a CLI.
// SuccessRate is an exponentially weighted moving average in [0, 1].
type CompatibilityRecord struct {
	Slug         string       `json:"slug" yaml:"-"`
	Agent        string       `json:"agent" yaml:"agent"`
	Status       CompatStatus `json:"status" yaml:"status"`
	SuccessRate  float64      `json:"success_rate" yaml:"success_rate"`
	Samples      int          `json:"samples" yaml:"-"`
	LastVerified time.Time    `json:"last_verified" yaml:"last_verified"`
}

// VerificationResult is one sample from the external verification harness.
type VerificationResult struct {
	Slug      string    `json:"slug"`
	Agent     string    `json:"agent"`
	CommandID string    `json:"command_id"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkflowChain composes several CLIs into one task. Chains are authored
// elsewhere and read-only here.
type WorkflowChain struct {
	ID    string      `json:"id" yaml:"id"`
	Slug  string      `json:"slug" yaml:"slug"`
	Title string      `json:"title" yaml:"title"`
	Steps []ChainStep `json:"steps" yaml:"steps"`
}

// ChainStep references commands of one profile.
type ChainStep struct {
	Slug         string   `json:"slug" yaml:"slug"`
	Commands     []string `json:"commands" yaml:"commands"`
	AuthRequired bool     `json:"auth_required,omitempty" yaml:"auth_required,omitempty"`
}
