// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inference runs the pinned-environment model subprocess and
// parses its structured output. The model bundle is a directory holding
// the serialized model plus a meta file declaring the feature contract.
package inference

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Meta is the model bundle descriptor. meta.yaml is preferred; meta.json
// is the fallback for bundles produced before the YAML switch.
type Meta struct {
	Name             string   `yaml:"name" json:"name"`
	ModelFile        string   `yaml:"model_file" json:"model_file"`
	Features         []string `yaml:"features" json:"features"`
	ThrCV            *float64 `yaml:"thr_cv" json:"thr_cv"`
	ThresholdDefault *float64 `yaml:"threshold_default" json:"threshold_default"`
	PosLabel         int      `yaml:"pos_label" json:"pos_label"`
}

// Threshold returns the decision threshold: the cross-validated value
// when present, then the declared default, then 0.5.
func (m *Meta) Threshold() float64 {
	if m.ThrCV != nil {
		return *m.ThrCV
	}
	if m.ThresholdDefault != nil {
		return *m.ThresholdDefault
	}
	return 0.5
}

// LoadMeta reads the bundle descriptor from modelDir. An existing but
// empty meta.yaml falls through to meta.json.
func LoadMeta(modelDir string) (*Meta, error) {
	var m Meta

	yamlPath := filepath.Join(modelDir, "meta.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil && strings.TrimSpace(string(data)) != "" {
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", yamlPath, err)
		}
		return validateMeta(&m, yamlPath)
	}

	jsonPath := filepath.Join(modelDir, "meta.json")
	if data, err := os.ReadFile(jsonPath); err == nil && strings.TrimSpace(string(data)) != "" {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", jsonPath, err)
		}
		return validateMeta(&m, jsonPath)
	}

	return nil, fmt.Errorf("no meta.yaml or meta.json in %s", modelDir)
}

func validateMeta(m *Meta, path string) (*Meta, error) {
	if len(m.Features) == 0 {
		return nil, fmt.Errorf("%s declares no features", path)
	}
	if m.ModelFile == "" {
		m.ModelFile = "model.joblib"
	}
	return m, nil
}
