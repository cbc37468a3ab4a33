// Copyright (c) 2024 Neomantra Corp

// Package config decodes the job configuration file the CLI collaborator
// loads before driving the orchestrator: vendor API settings, the job
// list, retry policy, and the rule engine/validator config paths.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig names the environment variable holding the vendor API key
// and the endpoint/timeout to use.
type APIConfig struct {
	KeyEnvVar string `yaml:"key_env_var"`
	BaseURL   string `yaml:"base_url"`
	TimeoutS  int    `yaml:"timeout"`
}

// JobSpec is one entry in the config file's jobs list.
type JobSpec struct {
	Name                  string   `yaml:"name"`
	Dataset               string   `yaml:"dataset"`
	Schema                string   `yaml:"schema"`
	Symbols               []string `yaml:"symbols"`
	StypeIn               string   `yaml:"stype_in"`
	StartDate             string   `yaml:"start_date"`
	EndDate               string   `yaml:"end_date"`
	DateChunkIntervalDays int      `yaml:"date_chunk_interval_days"`
}

// ParseStartDate parses JobSpec.StartDate as a UTC calendar date.
func (j JobSpec) ParseStartDate() (time.Time, error) {
	return time.Parse("2006-01-02", j.StartDate)
}

// ParseEndDate parses JobSpec.EndDate as a UTC calendar date.
func (j JobSpec) ParseEndDate() (time.Time, error) {
	return time.Parse("2006-01-02", j.EndDate)
}

// RetryPolicy is the adapter's transient-failure retry configuration.
type RetryPolicy struct {
	MaxRetries         int     `yaml:"max_retries"`
	BaseDelay          float64 `yaml:"base_delay"`
	MaxDelay           float64 `yaml:"max_delay"`
	BackoffMultiplier  float64 `yaml:"backoff_multiplier"`
	RetryOnStatusCodes []int   `yaml:"retry_on_status_codes"`
	RespectRetryAfter  bool    `yaml:"respect_retry_after"`
}

// DefaultRetryPolicy matches the Databento reference adapter's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:         3,
		BaseDelay:          1.0,
		MaxDelay:           60.0,
		BackoffMultiplier:  2.0,
		RetryOnStatusCodes: []int{429, 500, 502, 503, 504},
		RespectRetryAfter:  true,
	}
}

// TransformationConfig points at the Rule Engine's mapping config file.
type TransformationConfig struct {
	MappingConfigPath string `yaml:"mapping_config_path"`
}

// ValidationConfig configures validator strictness and quarantine
// behavior.
type ValidationConfig struct {
	ValidationSchemaPaths    []string `yaml:"validation_schema_paths"`
	StrictValidation         bool     `yaml:"strict_validation"`
	QuarantineInvalidRecords bool     `yaml:"quarantine_invalid_records"`
}

// File is the full job configuration file.
type File struct {
	API            APIConfig            `yaml:"api"`
	Jobs           []JobSpec            `yaml:"jobs"`
	RetryPolicy    RetryPolicy          `yaml:"retry_policy"`
	Transformation TransformationConfig `yaml:"transformation"`
	Validation     ValidationConfig     `yaml:"validation"`
}

// Load reads and decodes a job configuration file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	rp := f.RetryPolicy
	if rp.MaxRetries == 0 && rp.BaseDelay == 0 && rp.MaxDelay == 0 && rp.BackoffMultiplier == 0 &&
		len(rp.RetryOnStatusCodes) == 0 && !rp.RespectRetryAfter {
		f.RetryPolicy = DefaultRetryPolicy()
	}
	return &f, nil
}

// JobByName looks up a predefined job by its configured name.
func (f *File) JobByName(name string) (JobSpec, bool) {
	for _, j := range f.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobSpec{}, false
}

// APIKey resolves the vendor API key from the environment variable
// named by APIConfig.KeyEnvVar.
func (f *File) APIKey() (string, error) {
	envVar := f.API.KeyEnvVar
	if envVar == "" {
		envVar = "DATABENTO_API_KEY"
	}
	key := os.Getenv(envVar)
	if key == "" {
		return "", fmt.Errorf("config: %s not set", envVar)
	}
	return key, nil
}
