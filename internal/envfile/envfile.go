// Licensed under the MIT License.

// Package envfile parses files containing only shell-style variable
// assignments, such as /etc/os-release.
package envfile

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// ParseEnvFile returns the variable assignments of the file as a map.
// Quoted values are unquoted.
func ParseEnvFile(path string) (map[string]string, error) {
	loadOptions := ini.LoadOptions{
		// os-release values may contain '#' inside quoted strings.
		IgnoreInlineComment: true,
	}

	envFile, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file (%s):\n%w", path, err)
	}

	result := map[string]string{}
	for _, key := range envFile.Section("").Keys() {
		result[key.Name()] = key.String()
	}

	return result, nil
}
