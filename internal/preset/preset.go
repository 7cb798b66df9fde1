// Package preset loads the operator's pre-authored question catalog from a
// JSON file. The loader is deliberately forgiving: malformed entries are
// dropped silently so one bad row never blocks the session.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const maxOptions = 10

type Preset struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Options []string `json:"options"`
}

var ErrNotFound = errors.New("preset not found")

// Load reads the catalog at path. A missing file is an empty catalog, not an
// error; so is a file that does not parse as a JSON list.
func Load(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Preset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []Preset{}, nil
	}

	out := make([]Preset, 0, len(raw))
	for _, item := range raw {
		var p struct {
			ID      string        `json:"id"`
			Content string        `json:"content"`
			Options []interface{} `json:"options"`
		}
		if err := json.Unmarshal(item, &p); err != nil {
			continue
		}
		id := strings.TrimSpace(p.ID)
		content := strings.TrimSpace(p.Content)
		if id == "" || content == "" || len(p.Options) < 1 {
			continue
		}
		options := make([]string, 0, len(p.Options))
		for _, o := range p.Options {
			options = append(options, fmt.Sprint(o))
			if len(options) == maxOptions {
				break
			}
		}
		out = append(out, Preset{ID: id, Content: content, Options: options})
	}
	return out, nil
}

// Catalog is a handle on the preset file; every call re-reads it, so the
// operator can edit the file mid-session without restarting.
type Catalog struct {
	path string
}

func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

func (c *Catalog) List() ([]Preset, error) {
	return Load(c.path)
}

func (c *Catalog) Find(id string) (Preset, error) {
	return Find(c.path, id)
}

// Find returns the preset with the given id from the catalog at path.
func Find(path, id string) (Preset, error) {
	presets, err := Load(path)
	if err != nil {
		return Preset{}, err
	}
	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, ErrNotFound
}
