// Licensed under the MIT License.

package ubuildapi

import (
	"fmt"

	"github.com/snnbyyds/ubuntu-build/internal/sliceutils"
)

// CompressionCodec is the squashfs compressor.
type CompressionCodec string

const (
	CompressionCodecXz   CompressionCodec = "xz"
	CompressionCodecZstd CompressionCodec = "zstd"
	CompressionCodecGzip CompressionCodec = "gzip"
	CompressionCodecLz4  CompressionCodec = "lz4"
)

func supportedCompressionCodecs() []CompressionCodec {
	return []CompressionCodec{CompressionCodecXz, CompressionCodecZstd, CompressionCodecGzip, CompressionCodecLz4}
}

func (c CompressionCodec) IsValid() error {
	if !sliceutils.ContainsValue(supportedCompressionCodecs(), c) {
		return fmt.Errorf("invalid compression codec (%s)", c)
	}
	return nil
}

// Compression holds the parameters forwarded to the filesystem compressor.
// They are configuration, not per-call constants.
type Compression struct {
	Codec CompressionCodec `yaml:"codec" json:"codec,omitempty"`
	// BlockSize is the squashfs block size, e.g. "1M" or "131072".
	BlockSize string `yaml:"blockSize" json:"blockSize,omitempty"`
	// BcjFilter overrides the architecture-derived byte-transform filter.
	// Only meaningful for the xz codec.
	BcjFilter string `yaml:"bcjFilter" json:"bcjFilter,omitempty"`
	// Processors limits the compressor's worker threads; 0 lets the tool
	// use every core.
	Processors int `yaml:"processors" json:"processors,omitempty"`
}

// DefaultCompression is used when the config omits the compression section.
func DefaultCompression() Compression {
	return Compression{
		Codec:     CompressionCodecXz,
		BlockSize: "1M",
	}
}

func (c *Compression) IsValid() error {
	if c.Codec != "" {
		err := c.Codec.IsValid()
		if err != nil {
			return err
		}
	}

	if c.Processors < 0 {
		return fmt.Errorf("invalid compressor processor count (%d)", c.Processors)
	}

	if c.BcjFilter != "" && c.Codec != "" && c.Codec != CompressionCodecXz {
		return fmt.Errorf("bcjFilter requires the xz codec, not (%s)", c.Codec)
	}

	return nil
}

// WithDefaults returns the compression settings with unset fields filled
// from DefaultCompression.
func (c Compression) WithDefaults() Compression {
	defaults := DefaultCompression()
	if c.Codec == "" {
		c.Codec = defaults.Codec
	}
	if c.BlockSize == "" {
		c.BlockSize = defaults.BlockSize
	}
	return c
}
