package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"simonzone.ai/internal/sim/tasks"
)

// ObeyPrefix is the framing that makes an announcement binding. It is used
// for obey-framed contradictions whatever order prefixes has.
const ObeyPrefix = "Simon says"

type Catalogs struct {
	Tasks   TaskCatalog
	Phrases PhraseCatalog
}

type TaskCatalog struct {
	Defs   []tasks.Definition
	ByID   map[string]tasks.Definition
	Digest string
}

type PhraseCatalog struct {
	Prefixes   []string
	Adjectives []string
}

type taskFile struct {
	Prefixes   []string  `yaml:"prefixes"`
	Adjectives []string  `yaml:"adjectives"`
	Tasks      []taskDef `yaml:"tasks"`
}

type taskDef struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Hint        string `yaml:"hint"`
	Check       string `yaml:"check"`
}

func Load(configDir string) (*Catalogs, error) {
	raw, err := os.ReadFile(filepath.Join(configDir, "tasks.yaml"))
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("tasks.yaml: %w", err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalogs, error) {
	var f taskFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if len(f.Tasks) == 0 {
		return nil, errors.New("no tasks defined")
	}
	if len(f.Prefixes) == 0 {
		return nil, errors.New("no prefixes defined")
	}
	if len(f.Adjectives) == 0 {
		return nil, errors.New("no adjectives defined")
	}

	c := &Catalogs{
		Tasks: TaskCatalog{
			ByID:   make(map[string]tasks.Definition, len(f.Tasks)),
			Digest: sha256Hex(raw),
		},
		Phrases: PhraseCatalog{Prefixes: f.Prefixes, Adjectives: f.Adjectives},
	}
	for _, td := range f.Tasks {
		if td.ID == "" || td.Description == "" {
			return nil, fmt.Errorf("task %q: id and description required", td.ID)
		}
		if _, dup := c.Tasks.ByID[td.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", td.ID)
		}
		check, ok := tasks.Lookup(td.Check)
		if !ok {
			return nil, fmt.Errorf("task %q: unknown check %q", td.ID, td.Check)
		}
		def := tasks.Definition{
			ID:          td.ID,
			Description: td.Description,
			Hint:        td.Hint,
			CheckName:   td.Check,
			Check:       check,
		}
		c.Tasks.Defs = append(c.Tasks.Defs, def)
		c.Tasks.ByID[td.ID] = def
	}
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
