// Copyright (c) 2024 Neomantra Corp

// Package rules implements the Rule Engine: declarative, schema-specific
// field mappings, per-field transformations, defaults, and nullable
// integer normalization, ending in a call into the validator.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marketdata-eng/histfeed/models"
)

// SchemaRules is one schema's declarative mapping configuration, as
// decoded from the rule engine's YAML config file.
type SchemaRules struct {
	FieldMappings              map[string]string        `yaml:"field_mappings"`
	Transformations            []Transformation          `yaml:"transformations"`
	Defaults                   map[string]any            `yaml:"defaults"`
	ConditionalTransformations []ConditionalTransformation `yaml:"conditional_transformations"`
}

// Transformation is one unconditional per-field rule.
type Transformation struct {
	Field  string         `yaml:"field"`
	Kind   string         `yaml:"kind"` // decimal_conversion | datetime_conversion | symbol_normalization | calculated_field | rule
	Params map[string]any `yaml:"params"`
}

// ConditionalTransformation applies its Transformations only when When
// evaluates true against the record (see EvalPredicate).
type ConditionalTransformation struct {
	When            string           `yaml:"when"`
	Transformations []Transformation `yaml:"transformations"`
}

// Config is the full set of SchemaRules, one per internal schema name.
type Config struct {
	Schemas map[models.Schema]SchemaRules `yaml:"schemas"`
}

// LoadConfig reads and decodes a rule engine configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("rules: parse config: %w", err)
	}
	return &cfg, nil
}

// ForSchema returns the rules for schema, or the zero SchemaRules (no
// mappings, transforms, or defaults) if the config declares none.
func (c *Config) ForSchema(schema models.Schema) SchemaRules {
	if c == nil {
		return SchemaRules{}
	}
	return c.Schemas[schema]
}

// DefaultConfig returns the built-in rule set used when no config file
// path is supplied: granularity and data_source defaults for each OHLCV
// schema. It declares no field mappings or transformations, so rows
// reach validation with the field names the adapter produced.
func DefaultConfig() *Config {
	return &Config{
		Schemas: map[models.Schema]SchemaRules{
			models.SchemaOhlcv1D: {
				Defaults: map[string]any{"granularity": "1d", "data_source": "databento"},
			},
			models.SchemaOhlcv1H: {
				Defaults: map[string]any{"granularity": "1h", "data_source": "databento"},
			},
			models.SchemaOhlcv15M: {
				Defaults: map[string]any{"granularity": "15m", "data_source": "databento"},
			},
			models.SchemaOhlcv5M: {
				Defaults: map[string]any{"granularity": "5m", "data_source": "databento"},
			},
			models.SchemaOhlcv1M: {
				Defaults: map[string]any{"granularity": "1m", "data_source": "databento"},
			},
			models.SchemaOhlcv1S: {
				Defaults: map[string]any{"granularity": "1s", "data_source": "databento"},
			},
			models.SchemaTrades:     {},
			models.SchemaTbbo:       {},
			models.SchemaStatistics: {},
			models.SchemaDefinition: {},
		},
	}
}
