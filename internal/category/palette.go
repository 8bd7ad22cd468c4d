package category

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed palette.yaml
var defaultPalette []byte

// Palette maps normalised category keys to display colours. It is immutable
// after loading.
type Palette struct {
	colors     map[string]string
	defaultKey string
}

type paletteFile struct {
	Default string            `yaml:"default"`
	Colors  map[string]string `yaml:"colors"`
}

// DefaultPalette returns the palette compiled into the binary.
func DefaultPalette() *Palette {
	p, err := ParsePalette(defaultPalette)
	if err != nil {
		panic(fmt.Sprintf("category: embedded palette: %v", err))
	}
	return p
}

// LoadPalette reads a palette YAML file. An empty path returns the default palette.
func LoadPalette(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open palette: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read palette %s: %w", path, err)
	}
	p, err := ParsePalette(data)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", path, err)
	}
	return p, nil
}

// ParsePalette decodes and validates palette YAML. Keys are normalised; the
// default key must have a colour.
func ParsePalette(data []byte) (*Palette, error) {
	var pf paletteFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode palette: %w", err)
	}

	colors := make(map[string]string, len(pf.Colors))
	for raw, color := range pf.Colors {
		if color == "" {
			return nil, fmt.Errorf("category %q has no colour", raw)
		}
		key := Normalize(raw)
		if prev, ok := colors[key]; ok && prev != color {
			return nil, fmt.Errorf("category %q defined twice with colours %s and %s", key, prev, color)
		}
		colors[key] = color
	}

	def := Normalize(pf.Default)
	if def == "" {
		def = Normalize(Sentinel)
	}
	if _, ok := colors[def]; !ok {
		return nil, fmt.Errorf("default category %q has no colour", def)
	}

	return &Palette{colors: colors, defaultKey: def}, nil
}

// DefaultKey is the key whose colour is used for unknown categories.
func (p *Palette) DefaultKey() string {
	return p.defaultKey
}

// Color returns the colour of a normalised key, falling back to the default.
func (p *Palette) Color(key string) string {
	if c, ok := p.colors[key]; ok {
		return c
	}
	return p.colors[p.defaultKey]
}

// ColorFor resolves the colour of a feature's category list via its primary category.
func (p *Palette) ColorFor(categories []string) string {
	return p.Color(Key(categories))
}

// Keys lists the configured keys in lexical order.
func (p *Palette) Keys() []string {
	keys := make([]string, 0, len(p.colors))
	for k := range p.colors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
