package sqlchatctl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the optional YAML config file for the CLI. Flags and
// environment variables override anything loaded from it.
type Profile struct {
	BaseURL    string           `yaml:"base_url"`
	APIKey     string           `yaml:"api_key"`
	Connection ConnectionParams `yaml:"connection"`
}

func LoadProfile(path string) (Profile, error) {
	var profile Profile
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return profile, nil
}
