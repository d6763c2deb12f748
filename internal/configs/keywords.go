package configs

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"rental-ingest-service/internal/core/domain"
)

//go:embed default_keywords.yaml
var defaultKeywordsYAML []byte

// FeatureKeywordSets holds the three keyword tiers of one feature.
type FeatureKeywordSets struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
	Optional []string `yaml:"optional"`
}

// KeywordConfig maps feature names to their keyword tiers.
type KeywordConfig map[string]FeatureKeywordSets

// LoadKeywords parses the keyword dictionaries, from the override file when
// path is non-empty, otherwise from the embedded defaults. Every classified
// feature must have an entry.
func LoadKeywords(path string) (KeywordConfig, error) {
	raw := defaultKeywordsYAML
	if path != "" {
		fileBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read keywords file %s: %w", path, err)
		}
		raw = fileBytes
	}

	var cfg KeywordConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse keywords YAML: %w", err)
	}

	for _, name := range domain.FeatureNames {
		if _, ok := cfg[name]; !ok {
			return nil, fmt.Errorf("keywords config is missing feature %q", name)
		}
	}
	return cfg, nil
}
