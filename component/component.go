// Package component provides loading, parsing, and serialization of tool
// spec files. A tool.yaml file declares one or more tool specs — identity,
// parameter schema, and resilience configuration — and is the only
// configuration format the execution core consumes.
package component

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/toolweave-ai/sdk/tool"
)

// File is the top-level structure of a tool.yaml file.
type File struct {
	// Tools holds the spec declarations.
	Tools []tool.Spec `yaml:"tools" json:"tools"`
}

// Load reads and parses a tool spec file from the given path. If the path is
// a directory, it looks for tool.yaml or tool.yml in that directory. Every
// loaded spec is validated.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range []string{"tool.yaml", "tool.yml"} {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("no tool.yaml or tool.yml found in %s", path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML spec declarations and validates each spec.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse spec file: %w", err)
	}
	for i := range file.Tools {
		if err := file.Tools[i].Validate(); err != nil {
			return nil, fmt.Errorf("spec %d (%s): %w", i, file.Tools[i].ID, err)
		}
	}
	return &file, nil
}

// Spec returns the declared spec with the given id, or nil.
func (f *File) Spec(id string) *tool.Spec {
	for i := range f.Tools {
		if f.Tools[i].ID == id {
			return &f.Tools[i]
		}
	}
	return nil
}

// MarshalYAML serializes the file back to YAML.
func (f *File) MarshalYAML() ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize spec file: %w", err)
	}
	return data, nil
}

// MarshalSpecJSON serializes one spec to JSON, for registry storage and
// transport.
func MarshalSpecJSON(spec *tool.Spec) ([]byte, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize spec: %w", err)
	}
	return data, nil
}

// UnmarshalSpecJSON reconstructs a spec from its JSON form and validates it.
func UnmarshalSpecJSON(data []byte) (*tool.Spec, error) {
	var spec tool.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
