package od

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// RawDefinition is a dictionary definition loaded from YAML.
type RawDefinition struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Objects     []RawObjectDef `yaml:"objects"`
}

// RawObjectDef represents one object definition.
type RawObjectDef struct {
	Index       uint16      `yaml:"index"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Subs        []RawSubDef `yaml:"subs"`
}

// RawSubDef represents one sub-index definition.
type RawSubDef struct {
	Sub         uint8         `yaml:"sub"`
	Count       uint8         `yaml:"count"` // consecutive sub-indices sharing the layout
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Access      string        `yaml:"access"` // "r", "w", "rw"
	Persist     bool          `yaml:"persist"`
	Type        string        `yaml:"type"`     // "uint8", "uint16", "int16", "uint32", "record", "domain"
	ReadType    string        `yaml:"readType"` // optional, when reads return another layout
	Unit        string        `yaml:"unit"`
	MinSize     int           `yaml:"minSize"`
	MaxSize     int           `yaml:"maxSize"`
	Sizes       []int         `yaml:"sizes"` // exact domain lengths, sets min and max size when those are 0
	Min         *int64        `yaml:"min"`
	Max         *int64        `yaml:"max"`
	Fields      []RawFieldDef `yaml:"fields"`
}

// RawFieldDef represents one member of a record layout.
type RawFieldDef struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Unit string `yaml:"unit"`
}

// ParseDefinition parses a dictionary definition from YAML bytes.
func ParseDefinition(data []byte) (*RawDefinition, error) {
	var def RawDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing dictionary definition: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("dictionary definition missing name")
	}
	return &def, nil
}

// LoadDefinition loads and parses a dictionary definition from a file.
func LoadDefinition(path string) (*RawDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// Build converts the definition into a Dictionary.
func (def *RawDefinition) Build() (*Dictionary, error) {
	d := NewDictionary(def.Name)
	for _, obj := range def.Objects {
		e, err := obj.entry()
		if err != nil {
			return nil, err
		}
		if err := d.Add(e); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (obj RawObjectDef) entry() (*Entry, error) {
	if obj.Name == "" {
		return nil, fmt.Errorf("object 0x%04X missing name", obj.Index)
	}

	e := &Entry{
		Index:       Index(obj.Index),
		Name:        obj.Name,
		Description: obj.Description,
	}

	for _, raw := range obj.Subs {
		s, err := raw.subEntry()
		if err != nil {
			return nil, fmt.Errorf("object %s (%s): %w", e.Index, obj.Name, err)
		}
		e.Subs = append(e.Subs, s)
	}
	return e, nil
}

func (raw RawSubDef) subEntry() (*SubEntry, error) {
	access, err := ParseAccess(raw.Access)
	if err != nil {
		return nil, fmt.Errorf("sub %d: %w", raw.Sub, err)
	}
	typ, err := ParseDataType(raw.Type)
	if err != nil {
		return nil, fmt.Errorf("sub %d: %w", raw.Sub, err)
	}

	s := &SubEntry{
		Sub:         SubIndex(raw.Sub),
		Count:       raw.Count,
		Name:        raw.Name,
		Description: raw.Description,
		Access:      access,
		Persist:     raw.Persist,
		Type:        typ,
		Unit:        raw.Unit,
		MinSize:     raw.MinSize,
		MaxSize:     raw.MaxSize,
		Min:         raw.Min,
		Max:         raw.Max,
	}
	if s.Count == 0 {
		s.Count = 1
	}
	if len(raw.Sizes) > 0 {
		s.Sizes = slices.Sorted(slices.Values(raw.Sizes))
		if s.MinSize == 0 {
			s.MinSize = s.Sizes[0]
		}
		if s.MaxSize == 0 {
			s.MaxSize = s.Sizes[len(s.Sizes)-1]
		}
	}

	if raw.ReadType != "" {
		if s.ReadType, err = ParseDataType(raw.ReadType); err != nil {
			return nil, fmt.Errorf("sub %d read type: %w", raw.Sub, err)
		}
	}

	for _, f := range raw.Fields {
		ft, err := ParseDataType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("sub %d field %q: %w", raw.Sub, f.Name, err)
		}
		if !ft.IsScalar() {
			return nil, fmt.Errorf("sub %d field %q: fields must be scalar", raw.Sub, f.Name)
		}
		s.Fields = append(s.Fields, Field{Name: f.Name, Type: ft, Unit: f.Unit})
	}

	return s, nil
}
