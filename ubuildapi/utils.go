// Licensed under the MIT License.

package ubuildapi

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type HasIsValid interface {
	IsValid() error
}

func UnmarshalAndValidateYamlFile[ValueType HasIsValid](yamlFilePath string, value ValueType) error {
	yamlData, err := os.ReadFile(yamlFilePath)
	if err != nil {
		return fmt.Errorf("failed to read config file (%s):\n%w", yamlFilePath, err)
	}

	return UnmarshalAndValidateYaml(yamlData, value)
}

func UnmarshalAndValidateYaml[ValueType HasIsValid](yamlData []byte, value ValueType) error {
	err := UnmarshalYaml(yamlData, value)
	if err != nil {
		return err
	}

	err = value.IsValid()
	if err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	return nil
}

func UnmarshalYaml[ValueType any](yamlData []byte, value ValueType) error {
	decoder := yaml.NewDecoder(bytes.NewReader(yamlData))
	// Reject unknown fields so that typos fail loudly instead of silently
	// building a misconfigured image.
	decoder.KnownFields(true)

	err := decoder.Decode(value)
	if err != nil {
		return fmt.Errorf("failed to parse config:\n%w", err)
	}

	return nil
}
