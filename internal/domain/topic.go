package domain

import (
	"fmt"
	"sort"
	"strings"
)

// topicCatalog holds every topic tag an exercise may carry.
var topicCatalog = map[string]struct{}{
	"verbs":        {},
	"nouns":        {},
	"adjectives":   {},
	"adverbs":      {},
	"articles":     {},
	"pronouns":     {},
	"prepositions": {},
	"conjunctions": {},
	"present":      {},
	"past":         {},
	"future":       {},
	"subjunctive":  {},
	"imperative":   {},
	"conditional":  {},
	"vocabulary":   {},
}

// IsKnownTopic reports whether topic is in the catalog.
func IsKnownTopic(topic string) bool {
	_, ok := topicCatalog[topic]
	return ok
}

// Topics returns the catalog sorted alphabetically.
func Topics() []string {
	out := make([]string, 0, len(topicCatalog))
	for t := range topicCatalog {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NormalizeTopics lowercases, de-duplicates and sorts topics, rejecting
// anything outside the catalog. An empty result means "any topic".
func NormalizeTopics(values []string) ([]string, error) {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		t := strings.ToLower(strings.TrimSpace(v))
		if t == "" {
			continue
		}
		if !IsKnownTopic(t) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, v)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// ContainsTopic reports whether topic is allowed by topics. An empty list allows any topic.
func ContainsTopic(topics []string, topic string) bool {
	if len(topics) == 0 {
		return true
	}
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}
