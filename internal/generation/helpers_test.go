package generation_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var testLanguages = []string{"en", "es"}

// candidate returns a valid model candidate; mutate tweaks it before encoding.
func candidate(n int, mutate ...func(map[string]any)) map[string]any {
	c := map[string]any{
		"sentence":       fmt.Sprintf("Ayer yo ___ al mercado número %d.", n),
		"correct_answer": fmt.Sprintf("fui%d", n),
		"distractors":    []string{"iba", "voy"},
		"level":          "A2",
		"topic":          "past",
		"explanations":   map[string]string{"en": "Preterite of ir.", "es": "Pretérito de ir."},
		"hint":           map[string]string{"infinitive": "ir", "form": "preterite"},
	}
	for _, m := range mutate {
		m(c)
	}
	return c
}

func encode(t *testing.T, v any) string {
	t.Helper()
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return string(out)
}
