package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// prefixFile is the on-disk layout of COMMUNITY_PREFIX_FILE:
//
//	communities:
//	  jardim cachoeira: JC
//	  pereque: PQ
type prefixFile struct {
	Communities map[string]string `yaml:"communities"`
}

// LoadPrefixes reads the community to matrícula prefix table from the file
// named by PrefixConfig.File. It returns (nil, nil) when no file is
// configured so callers can fall back to the built-in table.
func (p PrefixConfig) LoadPrefixes() (map[string]string, error) {
	if p.File == "" {
		return nil, nil
	}

	data, err := os.ReadFile(p.File)
	if err != nil {
		return nil, fmt.Errorf("read prefix file: %w", err)
	}
	return ParsePrefixes(data)
}

// ParsePrefixes decodes a YAML prefix table. Prefixes must be non-empty
// uppercase letters; community names are kept as written.
func ParsePrefixes(data []byte) (map[string]string, error) {
	var f prefixFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prefix file: %w", err)
	}
	if len(f.Communities) == 0 {
		return nil, fmt.Errorf("parse prefix file: no communities defined")
	}

	out := make(map[string]string, len(f.Communities))
	for community, prefix := range f.Communities {
		prefix = strings.TrimSpace(prefix)
		if strings.TrimSpace(community) == "" {
			return nil, fmt.Errorf("parse prefix file: empty community name")
		}
		if prefix == "" || strings.ToUpper(prefix) != prefix || strings.ContainsAny(prefix, "0123456789%_ ") {
			return nil, fmt.Errorf("parse prefix file: invalid prefix %q for %q", prefix, community)
		}
		out[community] = prefix
	}
	return out, nil
}
