package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DomainProfiles maps a profile name to the host suffixes it allows.
// Profiles come from an optional YAML file; the built-in "official" profile
// is always present so allow-list lookups have a fallback.
type DomainProfiles map[string][]string

// DefaultDomainProfiles returns the built-in allow lists used when no
// profile file is configured.
func DefaultDomainProfiles() DomainProfiles {
	return DomainProfiles{
		"official": {"go.kr", "ac.kr", "or.kr", "gov", "edu"},
		"news":     {"news.naver.com", "zdnet.co.kr", "bbc.com", "cnn.com", "reuters.com"},
	}
}

type profileFile struct {
	Profiles map[string][]string `yaml:"profiles"`
}

// LoadDomainProfiles reads profiles from a YAML file and merges them over
// the defaults. An empty path returns the defaults unchanged.
func LoadDomainProfiles(path string) (DomainProfiles, error) {
	profiles := DefaultDomainProfiles()
	if path == "" {
		return profiles, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain profiles: %w", err)
	}

	var parsed profileFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse domain profiles: %w", err)
	}
	for name, suffixes := range parsed.Profiles {
		if name == "" || len(suffixes) == 0 {
			continue
		}
		profiles[name] = suffixes
	}
	return profiles, nil
}
