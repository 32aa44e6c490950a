package strategy

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-ashare/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ToJSONSchema reflects a strategy config into an indented JSON schema keyed
// by the config's yaml field names, the names a strategy config file uses.
func ToJSONSchema[T any](config T) (string, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
		FieldNameTag:              "yaml",
	}
	schema := r.Reflect(config)

	jsonSchemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// ParseConfig decodes a YAML strategy config over defaults. Fields missing
// from config keep their default, unknown fields are rejected and an empty
// config returns defaults unchanged.
func ParseConfig[T any](name string, config string, defaults T) (T, error) {
	cfg := defaults

	decoder := yaml.NewDecoder(bytes.NewBufferString(config))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return defaults, errors.Wrapf(errors.ErrCodeStrategyConfigError, err, "failed to parse %s config", name)
	}

	return cfg, nil
}
