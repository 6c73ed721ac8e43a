// Package snippets holds the texts players race over.
package snippets

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// MaxLength caps a single snippet.
const MaxLength = 4000

type file struct {
	Snippets []string `yaml:"snippets"`
}

// Pool is an immutable set of snippets. Pick is safe for concurrent use.
type Pool struct {
	texts []string
}

// Default returns the built-in pool.
func Default() *Pool {
	pool, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("snippets: built-in pool: %v", err))
	}
	return pool
}

// Load reads a YAML pool from path.
func Load(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snippets: %w", err)
	}
	pool, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pool, nil
}

func Parse(data []byte) (*Pool, error) {
	var parsed file
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse snippets: %w", err)
	}
	texts := make([]string, 0, len(parsed.Snippets))
	for i, raw := range parsed.Snippets {
		text := strings.Join(strings.Fields(raw), " ")
		if text == "" {
			continue
		}
		if len(text) > MaxLength {
			return nil, fmt.Errorf("snippet %d exceeds %d bytes", i+1, MaxLength)
		}
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return nil, errors.New("no snippets defined")
	}
	return &Pool{texts: texts}, nil
}

// Pick returns a uniformly random snippet.
func (p *Pool) Pick() string {
	return p.texts[rand.IntN(len(p.texts))]
}

func (p *Pool) Len() int {
	return len(p.texts)
}

func (p *Pool) Texts() []string {
	return append([]string(nil), p.texts...)
}
