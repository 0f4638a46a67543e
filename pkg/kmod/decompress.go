// SPDX-License-Identifier: MPL-2.0

package kmod

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const (
	compressionNone compression = iota
	compressionGzip
	compressionXZ
	compressionZstd
)

// compression identifies how a module file is stored on disk.
type compression int

// compressedSuffixes lists the module file suffixes produced by
// CONFIG_MODULE_COMPRESS_*, in the order they are tried.
var compressedSuffixes = []struct {
	suffix string
	kind   compression
}{
	{".gz", compressionGzip},
	{".xz", compressionXZ},
	{".zst", compressionZstd},
}

func (c compression) String() string {
	switch c {
	case compressionGzip:
		return "gzip"
	case compressionXZ:
		return "xz"
	case compressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// compressionOf detects the compression of a module file from its name.
func compressionOf(path string) compression {
	for _, s := range compressedSuffixes {
		if strings.HasSuffix(path, s.suffix) {
			return s.kind
		}
	}
	return compressionNone
}

// decompress reads the whole module image from r.
func decompress(r io.Reader, c compression) ([]byte, error) {
	switch c {
	case compressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		return readImage(gz, c)
	case compressionXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		return readImage(xr, c)
	case compressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer dec.Close()
		return readImage(dec, c)
	default:
		return readImage(r, c)
	}
}

func readImage(r io.Reader, c compression) ([]byte, error) {
	image, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s module image: %w", c, err)
	}
	return image, nil
}
