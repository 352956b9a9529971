// Package config loads engine configuration in order of increasing
// precedence: hardcoded defaults, a project YAML file, then environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TokenizerConfig configures text tokenization.
type TokenizerConfig struct {
	Lowercase bool     `yaml:"lowercase" json:"lowercase"`
	Stopwords []string `yaml:"stopwords" json:"stopwords"`
	Stemmer   string   `yaml:"stemmer" json:"stemmer"`
	MinLength int      `yaml:"min_length" json:"min_length"`
	MaxLength int      `yaml:"max_length" json:"max_length"`
}

// BM25Config configures ranking constants.
type BM25Config struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
}

// SearchConfig configures per-request search defaults.
type SearchConfig struct {
	Limit        int     `yaml:"limit" json:"limit"`
	MinScore     float64 `yaml:"min_score" json:"min_score"`
	TimeoutMs    int     `yaml:"timeout_ms" json:"timeout_ms"`
	MinResponses int     `yaml:"min_responses" json:"min_responses"`
}

// ClusterConfig configures the distributed subscription coordinator.
type ClusterConfig struct {
	AckTimeoutMs int `yaml:"ack_timeout_ms" json:"ack_timeout_ms"`
	RRFK         int `yaml:"rrf_k" json:"rrf_k"`
}

// Config is the complete engine configuration.
type Config struct {
	Tokenizer TokenizerConfig `yaml:"tokenizer" json:"tokenizer"`
	BM25      BM25Config      `yaml:"bm25" json:"bm25"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Cluster   ClusterConfig   `yaml:"cluster" json:"cluster"`
}

// New returns the hardcoded defaults.
func New() *Config {
	return &Config{
		Tokenizer: TokenizerConfig{
			Lowercase: true,
			Stopwords: nil, // nil means "use the built-in English list"
			Stemmer:   "porter",
			MinLength: 2,
			MaxLength: 40,
		},
		BM25: BM25Config{K1: 1.2, B: 0.75},
		Search: SearchConfig{
			Limit:        20,
			MinScore:     0,
			TimeoutMs:    5000,
			MinResponses: 1,
		},
		Cluster: ClusterConfig{
			AckTimeoutMs: 5000,
			RRFK:         60,
		},
	}
}

// Load builds a Config in order of increasing precedence: hardcoded
// defaults, then a project config file (livefts.yaml or livefts.yml in
// dir), then LIVEFTS_* environment variable overrides.
func Load(dir string) (*Config, error) {
	cfg := New()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"livefts.yaml", "livefts.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return c.loadYAML(path)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields of other onto c. Zero-valued fields
// in a project YAML file (an omitted key) never clobber a default.
func (c *Config) mergeWith(other *Config) {
	if len(other.Tokenizer.Stopwords) > 0 {
		c.Tokenizer.Stopwords = other.Tokenizer.Stopwords
	}
	if other.Tokenizer.Stemmer != "" {
		c.Tokenizer.Stemmer = other.Tokenizer.Stemmer
	}
	if other.Tokenizer.MinLength != 0 {
		c.Tokenizer.MinLength = other.Tokenizer.MinLength
	}
	if other.Tokenizer.MaxLength != 0 {
		c.Tokenizer.MaxLength = other.Tokenizer.MaxLength
	}
	// Lowercase has no unset sentinel in a plain bool; a project file
	// that explicitly sets it false cannot be told apart from one that
	// omits the key, so a project YAML only ever turns it on here.
	c.Tokenizer.Lowercase = other.Tokenizer.Lowercase || c.Tokenizer.Lowercase

	if other.BM25.K1 != 0 {
		c.BM25.K1 = other.BM25.K1
	}
	if other.BM25.B != 0 {
		c.BM25.B = other.BM25.B
	}

	if other.Search.Limit != 0 {
		c.Search.Limit = other.Search.Limit
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.TimeoutMs != 0 {
		c.Search.TimeoutMs = other.Search.TimeoutMs
	}
	if other.Search.MinResponses != 0 {
		c.Search.MinResponses = other.Search.MinResponses
	}

	if other.Cluster.AckTimeoutMs != 0 {
		c.Cluster.AckTimeoutMs = other.Cluster.AckTimeoutMs
	}
	if other.Cluster.RRFK != 0 {
		c.Cluster.RRFK = other.Cluster.RRFK
	}
}

// applyEnvOverrides applies LIVEFTS_* environment variable overrides,
// the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LIVEFTS_BM25_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BM25.K1 = f
		}
	}
	if v := os.Getenv("LIVEFTS_BM25_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BM25.B = f
		}
	}
	if v := os.Getenv("LIVEFTS_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.Limit = n
		}
	}
	if v := os.Getenv("LIVEFTS_SEARCH_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TimeoutMs = n
		}
	}
	if v := os.Getenv("LIVEFTS_CLUSTER_ACK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cluster.AckTimeoutMs = n
		}
	}
	if v := os.Getenv("LIVEFTS_CLUSTER_RRF_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cluster.RRFK = n
		}
	}
	if v := os.Getenv("LIVEFTS_TOKENIZER_STEMMER"); v != "" {
		c.Tokenizer.Stemmer = v
	}
}

// Validate rejects a configuration that would misbehave silently.
func (c *Config) Validate() error {
	if c.BM25.K1 < 0 {
		return fmt.Errorf("bm25.k1 must be >= 0, got %v", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be within [0, 1], got %v", c.BM25.B)
	}
	if c.Tokenizer.MinLength < 0 {
		return fmt.Errorf("tokenizer.min_length must be >= 0, got %v", c.Tokenizer.MinLength)
	}
	if c.Tokenizer.MaxLength > 0 && c.Tokenizer.MaxLength < c.Tokenizer.MinLength {
		return fmt.Errorf("tokenizer.max_length (%v) must be >= min_length (%v)", c.Tokenizer.MaxLength, c.Tokenizer.MinLength)
	}
	if c.Cluster.AckTimeoutMs <= 0 {
		return fmt.Errorf("cluster.ack_timeout_ms must be > 0, got %v", c.Cluster.AckTimeoutMs)
	}
	if c.Cluster.RRFK <= 0 {
		return fmt.Errorf("cluster.rrf_k must be > 0, got %v", c.Cluster.RRFK)
	}
	return nil
}

// AckTimeout returns the cluster ACK timeout as a time.Duration.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Cluster.AckTimeoutMs) * time.Millisecond
}

// SearchTimeout returns the search request timeout as a time.Duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutMs) * time.Millisecond
}
