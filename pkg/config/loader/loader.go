// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package config_loader reads YAML configuration files, expanding {{ENV_VAR}}
// placeholders before parsing.
package config_loader

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

var envVarPlaceholder = regexp.MustCompile(`({{ *\w+.*?}})`)

// YAMLMetadata keeps track of the top level keys present in a YAML document.
type YAMLMetadata map[string]bool

// Contains returns true if the key was defined in the YAML document.
func (p YAMLMetadata) Contains(key string) bool {
	_, ok := p[key]
	return ok
}

// LoadYamlConfig populates configObject (a struct pointer) from the first of the
// given paths that exists. Finding none is not an error, configObject keeps its defaults.
func LoadYamlConfig(configObject interface{}, configFilePaths ...string) (YAMLMetadata, error) {
	for _, filePath := range configFilePaths {
		if filePath == "" || !fileExists(filePath) {
			continue
		}

		rawConfig, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}

		rawConfig, err = ExpandEnvVars(rawConfig)
		if err != nil {
			return nil, err
		}

		return ParseConfig(rawConfig, configObject)
	}
	return YAMLMetadata{}, nil
}

// ParseConfig unmarshals rawConfig into configObject and reports which keys were set.
func ParseConfig(rawConfig []byte, configObject interface{}) (YAMLMetadata, error) {
	if err := yaml.Unmarshal(rawConfig, configObject); err != nil {
		return nil, err
	}

	metadata := yaml.MapSlice{}
	if err := yaml.Unmarshal(rawConfig, &metadata); err != nil {
		return nil, err
	}

	keys := YAMLMetadata{}
	for _, item := range metadata {
		if k, ok := item.Key.(string); ok {
			keys[k] = true
		}
	}
	return keys, nil
}

// ExpandEnvVars replaces {{NAME}} placeholders by the value of the NAME
// environment variable. Non numeric values are quoted. A missing variable is an error.
func ExpandEnvVars(content []byte) ([]byte, error) {
	matches := envVarPlaceholder.FindAllIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var expanded []byte
	var last int
	for _, idx := range matches {
		name := strings.TrimSpace(string(content[idx[0]+2 : idx[1]-2]))
		val, ok := os.LookupEnv(name)
		if !ok {
			return nil, fmt.Errorf("cannot replace configuration environment variables, missing env-var: %s", name)
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			val = strconv.Quote(val)
		}
		expanded = append(expanded, content[last:idx[0]]...)
		expanded = append(expanded, val...)
		last = idx[1]
	}
	return append(expanded, content[last:]...), nil
}

func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
