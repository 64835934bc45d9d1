package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/devprofile/internal/overlay"
	"github.com/danmuck/devprofile/internal/profile"
	"github.com/pelletier/go-toml/v2"
)

var ErrEmptyMapping = errors.New("config: mapping file is empty")

// MappingFile is the on-disk overlay mapping. Revision selects the base
// layout; any of classes, fields or property tables present in the file
// replace the corresponding part of that base.
type MappingFile struct {
	Revision   string           `toml:"revision"`
	Classes    []string         `toml:"classes"`
	Fields     []string         `toml:"fields"`
	Properties []PropertyConfig `toml:"property"`
}

type PropertyConfig struct {
	Name  string `toml:"name"`
	Field string `toml:"field"`
}

func LoadMapping(path string) (overlay.Mapping, error) {
	var file MappingFile
	if err := loadToml(path, &file); err != nil {
		return overlay.Mapping{}, err
	}
	m, err := file.Mapping()
	if err != nil {
		return overlay.Mapping{}, fmt.Errorf("config mapping invalid (%s): %w", path, err)
	}
	return m, nil
}

// ParseMapping decodes mapping TOML already held in memory.
func ParseMapping(data []byte) (overlay.Mapping, error) {
	var file MappingFile
	if err := decodeStrict(data, &file); err != nil {
		return overlay.Mapping{}, err
	}
	return file.Mapping()
}

// Mapping layers the file over its base revision and validates the result.
func (f MappingFile) Mapping() (overlay.Mapping, error) {
	m, err := overlay.MappingFor(overlay.Revision(f.Revision))
	if err != nil {
		return overlay.Mapping{}, err
	}

	if f.Classes != nil {
		m.Classes = make([]string, 0, len(f.Classes))
		for _, class := range f.Classes {
			m.Classes = append(m.Classes, strings.TrimSpace(class))
		}
	}
	if f.Fields != nil {
		m.Fields = make([]profile.Field, 0, len(f.Fields))
		for _, name := range f.Fields {
			m.Fields = append(m.Fields, normalizeField(name))
		}
	}
	if f.Properties != nil {
		m.Properties = make([]overlay.PropertyBinding, 0, len(f.Properties))
		for _, p := range f.Properties {
			m.Properties = append(m.Properties, overlay.PropertyBinding{
				Name:  strings.TrimSpace(p.Name),
				Field: normalizeField(p.Field),
			})
		}
	}

	if err := m.Validate(); err != nil {
		return overlay.Mapping{}, err
	}
	return m, nil
}

func normalizeField(name string) profile.Field {
	return profile.Field(strings.ToUpper(strings.TrimSpace(name)))
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := decodeStrict(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func decodeStrict(data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyMapping
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
