// Licensed under the MIT License.

package ubuildapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Release:      "noble",
		Architecture: ArchitectureAmd64,
		Mirror:       "http://archive.ubuntu.com/ubuntu/",
		Hostname:     "ubuntu-live",
		LiveUser: LiveUser{
			Name: "ubuntu",
		},
	}
}

func TestConfigIsValid(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.IsValid())
}

func TestConfigIsValid_UnknownRelease(t *testing.T) {
	config := validConfig()
	config.Release = "warty"

	err := config.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "warty")
}

func TestConfigIsValid_UnknownArchitecture(t *testing.T) {
	config := validConfig()
	config.Architecture = "riscv64"

	err := config.IsValid()
	assert.Error(t, err)
}

func TestConfigIsValid_MissingMirror(t *testing.T) {
	config := validConfig()
	config.Mirror = ""

	err := config.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "mirror")
}

func TestConfigIsValid_InvalidMirror(t *testing.T) {
	config := validConfig()
	config.Mirror = "not a url"

	err := config.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "invalid mirror URL")
}

func TestConfigIsValid_InvalidHostname(t *testing.T) {
	config := validConfig()
	config.Hostname = "under_scores_are_not_dns"

	err := config.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "invalid hostname")
}

func TestConfigIsValid_EmptyHostnameIsAllowed(t *testing.T) {
	config := validConfig()
	config.Hostname = ""

	assert.NoError(t, config.IsValid())
}

func TestConfigIsValid_InvalidCompression(t *testing.T) {
	config := validConfig()
	config.Compression = Compression{Codec: "lzma2"}

	err := config.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "invalid 'compression' field")
}

func TestConfigIsValid_InvalidIso(t *testing.T) {
	config := validConfig()
	config.Iso = Iso{VolumeLabel: "HAS SPACES"}

	err := config.IsValid()
	assert.Error(t, err)
	assert.ErrorContains(t, err, "invalid 'iso' field")
}
