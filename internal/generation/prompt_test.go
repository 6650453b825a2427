package generation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptBuilder_Build(t *testing.T) {
	t.Parallel()

	b, err := generation.NewPromptBuilder("", testLanguages)
	require.NoError(t, err)

	t.Run("encodes levels topics and avoid list", func(t *testing.T) {
		t.Parallel()

		prompt, err := b.Build(generation.Request{
			Levels:       []domain.Level{domain.LevelB1, domain.LevelA2},
			Topics:       []string{"verbs", "past"},
			Count:        7,
			AvoidAnswers: []string{"fui", "era", "fui"},
		})
		require.NoError(t, err)

		assert.Contains(t, prompt, "exactly 7 new exercises")
		assert.Contains(t, prompt, "A2, B1")
		assert.Contains(t, prompt, "Topics: past, verbs.")
		assert.Contains(t, prompt, "Do not use any of these answers: era, fui.")
		assert.Contains(t, prompt, `"explanations": {"en":"...","es":"..."}`)
	})

	t.Run("any topic and no avoid list", func(t *testing.T) {
		t.Parallel()

		prompt, err := b.Build(generation.Request{Levels: []domain.Level{domain.LevelC2}, Count: 1})
		require.NoError(t, err)
		assert.Contains(t, prompt, "Topics: any.")
		assert.NotContains(t, prompt, "Do not use")
	})

	t.Run("deterministic regardless of input order", func(t *testing.T) {
		t.Parallel()

		a, err := b.Build(generation.Request{
			Levels:       []domain.Level{domain.LevelA1, domain.LevelB2},
			Topics:       []string{"nouns", "articles"},
			Count:        3,
			AvoidAnswers: []string{"la", "el"},
		})
		require.NoError(t, err)
		c, err := b.Build(generation.Request{
			Levels:       []domain.Level{domain.LevelB2, domain.LevelA1},
			Topics:       []string{"articles", "nouns"},
			Count:        3,
			AvoidAnswers: []string{"el", "la"},
		})
		require.NoError(t, err)
		assert.Equal(t, a, c)
	})

	t.Run("rejects invalid request", func(t *testing.T) {
		t.Parallel()

		_, err := b.Build(generation.Request{Levels: []domain.Level{domain.LevelA1}})
		assert.ErrorIs(t, err, generation.ErrInvalidRequest)
	})
}

func TestNewPromptBuilder(t *testing.T) {
	t.Parallel()

	t.Run("template override", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "prompt.tmpl")
		require.NoError(t, os.WriteFile(path, []byte("N={{.Count}} T={{.Topics}}"), 0o600))

		b, err := generation.NewPromptBuilder(path, testLanguages)
		require.NoError(t, err)
		prompt, err := b.Build(generation.Request{Levels: []domain.Level{domain.LevelA1}, Count: 2})
		require.NoError(t, err)
		assert.Equal(t, "N=2 T=any", prompt)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := generation.NewPromptBuilder(filepath.Join(t.TempDir(), "missing"), testLanguages)
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})

	t.Run("bad template", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.tmpl")
		require.NoError(t, os.WriteFile(path, []byte("{{.Count"), 0o600))
		_, err := generation.NewPromptBuilder(path, testLanguages)
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})

	t.Run("no languages", func(t *testing.T) {
		t.Parallel()

		_, err := generation.NewPromptBuilder("", nil)
		assert.ErrorIs(t, err, generation.ErrInvalidConfig)
	})
}
