package config

import (
	"bytes"
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads the YAML file at path into v after expanding ${VAR} and
// $VAR references from the environment.
func LoadYAML[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingFile, err)
	}

	return DecodeYAML([]byte(os.ExpandEnv(string(raw))), v)
}

// DecodeYAML decodes YAML bytes into v, rejecting unknown fields.
func DecodeYAML[T any](data []byte, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrDecodingFile, err)
	}
	return nil
}
