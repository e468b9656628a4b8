package filter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type configFile struct {
	Filters []Configuration `yaml:"filters"`
}

// LoadConfigurations reads the explicit filter configurations from a YAML
// file. The order in the file is the configuration order.
func LoadConfigurations(path string) ([]Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter config %s: %w", path, err)
	}
	return ParseConfigurations(b)
}

// ParseConfigurations decodes and validates YAML filter configurations.
func ParseConfigurations(data []byte) ([]Configuration, error) {
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode filter config: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Filters))
	for i, c := range f.Filters {
		if c.Key == "" {
			return nil, fmt.Errorf("filter #%d: missing key", i)
		}
		if !c.Type.Valid() {
			return nil, fmt.Errorf("filter %q: unknown type %q", c.Key, c.Type)
		}
		if _, dup := seen[c.Key]; dup {
			return nil, fmt.Errorf("filter %q: duplicate key", c.Key)
		}
		seen[c.Key] = struct{}{}
	}
	return f.Filters, nil
}

// Find returns the configuration with the given key.
func Find(configs []Configuration, key string) (Configuration, bool) {
	for _, c := range configs {
		if c.Key == key {
			return c, true
		}
	}
	return Configuration{}, false
}
