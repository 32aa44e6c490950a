package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	engine "github.com/rxtech-lab/argo-ashare/internal/backtest/engine/engine_v1"
	"gopkg.in/yaml.v3"
)

const (
	schemaName       = "backtest-engine-v1-config.json"
	sampleConfigName = "backtest-engine-v1-config.yaml"
)

func validatePaths(schemaPath string, sampleConfigPath string) error {
	if schemaPath == "" {
		return fmt.Errorf("schema path cannot be empty")
	}

	if sampleConfigPath == "" {
		return fmt.Errorf("sample config path cannot be empty")
	}

	return nil
}

func validateSchemaName(name string) error {
	if name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}

	if !strings.HasSuffix(name, ".json") {
		return fmt.Errorf("schema name %q must have .json extension", name)
	}

	return nil
}

func getSchemaReference(name string) string {
	return "# yaml-language-server: $schema=" + name + "\n"
}

func generateSchemaFile(config engine.BacktestEngineV1Config, schemaPath string) error {
	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	return nil
}

// generateSampleConfig writes config as YAML to samplePath unless the file
// already exists.
func generateSampleConfig(config engine.BacktestEngineV1Config, samplePath string, schema string) error {
	if _, err := os.Stat(samplePath); err == nil {
		return nil
	}

	yamlBytes, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
	}

	yamlBytes = append([]byte(getSchemaReference(schema)), yamlBytes...)

	if err := os.MkdirAll(filepath.Dir(samplePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(samplePath, yamlBytes, 0644); err != nil {
		return fmt.Errorf("failed to write sample config to file: %w", err)
	}

	log.Printf("Sample config successfully generated at %s", samplePath)

	return nil
}

func main() {
	config := engine.DefaultConfig()

	schemaPath := filepath.Join("./config", schemaName)
	sampleConfigPath := filepath.Join("./config", sampleConfigName)

	if err := validatePaths(schemaPath, sampleConfigPath); err != nil {
		log.Fatal(err)
	}

	if err := validateSchemaName(schemaName); err != nil {
		log.Fatal(err)
	}

	if err := generateSchemaFile(config, schemaPath); err != nil {
		log.Fatal(err)
	}

	if err := generateSampleConfig(config, sampleConfigPath, schemaName); err != nil {
		log.Fatal(err)
	}

	log.Printf("Schema successfully generated at %s", schemaPath)
}
