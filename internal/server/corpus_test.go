package server_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alkime/voicebank/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCorpus_Default(t *testing.T) {
	t.Parallel()

	c, err := server.LoadCorpus("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Keywords)
	assert.NotEmpty(t, c.Sentences)
	for _, s := range c.Sentences {
		assert.Contains(t, s.Text, s.Keyword, "sentence %s should contain its keyword", s.ID)
	}
}

func TestLoadCorpus_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "corpus.yaml")
	data := `
keywords:
  - id: k1
    text: lights
sentences:
  - id: s1
    text: Turn the lights off.
    keyword: lights
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	c, err := server.LoadCorpus(path)
	require.NoError(t, err)
	require.Len(t, c.Keywords, 1)
	assert.Equal(t, "lights", c.Keywords[0].Text)
	require.Len(t, c.Sentences, 1)
	assert.Equal(t, "s1", c.Sentences[0].ID)
}

func TestLoadCorpus_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := server.LoadCorpus(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseCorpus_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{name: "not yaml", data: "keywords: [unterminated"},
		{name: "no keywords", data: "sentences:\n  - {id: s1, text: a b, keyword: a}\n"},
		{name: "no sentences", data: "keywords:\n  - {id: k1, text: a}\n"},
		{
			name: "duplicate id",
			data: "keywords:\n  - {id: x, text: a}\nsentences:\n  - {id: x, text: a b, keyword: a}\n",
		},
		{
			name: "sentence without keyword",
			data: "keywords:\n  - {id: k1, text: a}\nsentences:\n  - {id: s1, text: a b}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := server.ParseCorpus([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
