// Package compress reverses the at-rest compression applied to uploads.
//
// The file record carries an algorithm id; zstd and gzip are understood,
// anything else passes the bytes through untouched so the retriever never
// has to special-case uncompressed assets.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm ids stored on file records.
const (
	AlgorithmNone = "none"
	AlgorithmGzip = "gzip"
	AlgorithmZstd = "zstd"
)

// Decompress reverses the named algorithm. Unknown or empty algorithms
// return the data unchanged.
func Decompress(algorithm string, data []byte) ([]byte, error) {
	switch algorithm {
	case AlgorithmZstd:
		reader, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer reader.Close()
		out, err := reader.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case AlgorithmGzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer reader.Close()
		out, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}
