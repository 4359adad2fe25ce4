package embedding

import (
	"strings"

	"oppradar/internal/model"
)

// opportunityDescriptionLimit caps how much of a record's description goes
// into its embedding document.
const opportunityDescriptionLimit = 2000

// techCanon expands common shorthand so the provider sees real words.
var techCanon = map[string]string{
	"js":      "JavaScript",
	"ts":      "TypeScript",
	"py":      "Python",
	"ml":      "Machine Learning",
	"ai":      "Artificial Intelligence",
	"dl":      "Deep Learning",
	"nlp":     "Natural Language Processing",
	"cv":      "Computer Vision",
	"k8s":     "Kubernetes",
	"golang":  "Go",
	"rb":      "Ruby",
	"rs":      "Rust",
	"sol":     "Solidity",
	"defi":    "Decentralized Finance",
	"nft":     "Non-Fungible Tokens",
	"ar":      "Augmented Reality",
	"vr":      "Virtual Reality",
	"iot":     "Internet of Things",
	"db":      "Databases",
	"devops":  "DevOps",
	"fintech": "Financial Technology",
}

// goalPhrases turns intent tags into the sentences the profile document
// carries.
var goalPhrases = map[string]string{
	"funding":    "Looking for funding, grants, and financial support",
	"exposure":   "Looking for visibility and exposure for our work",
	"learning":   "Looking to learn new skills and technologies",
	"networking": "Looking to meet collaborators, mentors, and peers",
	"prizes":     "Looking to win prizes and awards",
	"equity":     "Looking for equity investment",
	"mentorship": "Looking for mentorship and guidance",
}

// CanonicalTech expands a tech shorthand, passing unknown values through
// unchanged.
func CanonicalTech(s string) string {
	if full, ok := techCanon[strings.ToLower(strings.TrimSpace(s))]; ok {
		return full
	}
	return strings.TrimSpace(s)
}

// GoalPhrase expands an intent tag into its natural-language phrase.
func GoalPhrase(s string) string {
	if phrase, ok := goalPhrases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return phrase
	}
	return strings.TrimSpace(s)
}

// ProfileDocument synthesizes the deterministic embedding input for a
// profile. Section order is fixed; empty sections are omitted.
func ProfileDocument(p *model.Profile) string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	add(p.DisplayName)
	add(p.Bio)
	add(p.ProfileType)
	add(p.Stage)

	if len(p.TechStack) > 0 {
		expanded := make([]string, 0, len(p.TechStack))
		for _, t := range p.TechStack {
			if c := CanonicalTech(t); c != "" {
				expanded = append(expanded, c)
			}
		}
		add("Skills: " + strings.Join(expanded, ", "))
	}
	if len(p.Industries) > 0 {
		add("Industries: " + strings.Join(trimAll(p.Industries), ", "))
	}
	for _, intent := range p.Intents {
		add(GoalPhrase(intent))
	}

	return truncateChars(strings.Join(parts, ". "), MaxInputChars)
}

// OpportunityDocument synthesizes the deterministic embedding input for an
// opportunity: title, category, truncated description, then the tag lists.
func OpportunityDocument(o *model.Opportunity) string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	add(o.Title)
	add(string(o.Type))
	if o.Description != "" {
		add(truncateChars(o.Description, opportunityDescriptionLimit))
	} else {
		add(o.ShortDescription)
	}
	if len(o.Themes) > 0 {
		add("Tags: " + strings.Join(trimAll(o.Themes), ", "))
	}
	if len(o.Technologies) > 0 {
		add("Technologies: " + strings.Join(trimAll(o.Technologies), ", "))
	}

	return truncateChars(strings.Join(parts, ". "), MaxInputChars)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
