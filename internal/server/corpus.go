package server

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/alkime/voicebank/internal/api"
	"gopkg.in/yaml.v3"
)

//go:embed default_corpus.yaml
var defaultCorpus []byte

// Corpus is the keyword and sentence catalogue handed out to donors.
type Corpus struct {
	Keywords  []api.Keyword  `yaml:"keywords"`
	Sentences []api.Sentence `yaml:"sentences"`
}

// LoadCorpus reads a YAML corpus from path. An empty path loads the built-in
// corpus.
func LoadCorpus(path string) (*Corpus, error) {
	data := defaultCorpus
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
		}
	}

	return ParseCorpus(data)
}

// ParseCorpus decodes and checks a YAML corpus.
func ParseCorpus(data []byte) (*Corpus, error) {
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Corpus) validate() error {
	if len(c.Keywords) == 0 {
		return errors.New("corpus has no keywords")
	}
	if len(c.Sentences) == 0 {
		return errors.New("corpus has no sentences")
	}

	seen := make(map[string]bool, len(c.Keywords)+len(c.Sentences))
	for _, k := range c.Keywords {
		if k.ID == "" || k.Text == "" {
			return fmt.Errorf("keyword %q: id and text are required", k.ID)
		}
		if seen[k.ID] {
			return fmt.Errorf("duplicate corpus id %q", k.ID)
		}
		seen[k.ID] = true
	}
	for _, s := range c.Sentences {
		if s.ID == "" || s.Text == "" || s.Keyword == "" {
			return fmt.Errorf("sentence %q: id, text and keyword are required", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate corpus id %q", s.ID)
		}
		seen[s.ID] = true
	}

	return nil
}

func (c *Corpus) keyword(id string) (api.Keyword, bool) {
	for _, k := range c.Keywords {
		if k.ID == id {
			return k, true
		}
	}
	return api.Keyword{}, false
}

func (c *Corpus) sentence(id string) (api.Sentence, bool) {
	for _, s := range c.Sentences {
		if s.ID == id {
			return s, true
		}
	}
	return api.Sentence{}, false
}
