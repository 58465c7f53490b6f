package domain

import (
	"fmt"
	"strings"
	"time"
)

// Skill is one capability tag a peer advertises on its card.
type Skill struct {
	ID          string   `json:"id"          yaml:"id"`
	Name        string   `json:"name"        yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// AgentDescriptor is a peer's capability card as cached by the registry.
// It is never mutated after being fetched.
type AgentDescriptor struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Skills      []Skill   `json:"skills"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// SkillNames returns skill names in declared order.
func (d AgentDescriptor) SkillNames() []string {
	names := make([]string, 0, len(d.Skills))
	for _, s := range d.Skills {
		names = append(names, s.Name)
	}
	return names
}

// Summary renders the one-line description shown to the reasoning step.
func (d AgentDescriptor) Summary() string {
	skills := "general"
	if len(d.Skills) > 0 {
		skills = strings.Join(d.SkillNames(), ", ")
	}
	if d.Description == "" {
		return "(Skills: " + skills + ")"
	}
	return d.Description + " (Skills: " + skills + ")"
}

// Stale reports whether the descriptor is older than window at now.
// A zero window never goes stale.
func (d AgentDescriptor) Stale(window time.Duration, now time.Time) bool {
	if window <= 0 {
		return false
	}
	return now.Sub(d.FetchedAt) > window
}

// SummarizeAgents renders descs as the "Available agents" block used in
// prompts and by the list_available_agents tool.
func SummarizeAgents(descs []AgentDescriptor) string {
	if len(descs) == 0 {
		return "No remote agents available."
	}
	var b strings.Builder
	b.WriteString("Available agents:")
	for _, d := range descs {
		fmt.Fprintf(&b, "\n  - %s: %s", d.Name, d.Summary())
	}
	return b.String()
}
