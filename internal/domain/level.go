package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Level is a CEFR proficiency tier.
type Level string

// CEFR levels in ascending order.
const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// AllLevels lists every level from easiest to hardest.
var AllLevels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// ParseLevel converts user input such as " b1 " into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

// ParseLevels parses, de-duplicates and orders a list of levels.
// An empty input is rejected with ErrNoLevels.
func ParseLevels(values []string) ([]Level, error) {
	seen := make(map[Level]struct{}, len(values))
	levels := make([]Level, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		l, err := ParseLevel(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		levels = append(levels, l)
	}
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	SortLevels(levels)
	return levels, nil
}

// IsValid reports whether l is one of the six CEFR levels.
func (l Level) IsValid() bool {
	return l.Index() >= 0
}

// Index returns the position of l in AllLevels, or -1.
func (l Level) Index() int {
	for i, candidate := range AllLevels {
		if candidate == l {
			return i
		}
	}
	return -1
}

// DefaultDifficulty maps the level onto (0,1) so that harder levels score higher.
func (l Level) DefaultDifficulty() float64 {
	idx := l.Index()
	if idx < 0 {
		return DefaultDifficultyScore
	}
	return float64(idx+1) / float64(len(AllLevels)+1)
}

// SortLevels orders levels from easiest to hardest in place.
func SortLevels(levels []Level) {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Index() < levels[j].Index() })
}

// ContainsLevel reports whether l is in levels.
func ContainsLevel(levels []Level, l Level) bool {
	for _, candidate := range levels {
		if candidate == l {
			return true
		}
	}
	return false
}

// LevelStrings converts levels to their string form, preserving order.
func LevelStrings(levels []Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
