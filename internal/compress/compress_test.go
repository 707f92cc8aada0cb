package compress

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestDecompressZstd(t *testing.T) {
	plain := []byte("zstd compressed upload contents")
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	data := enc.EncodeAll(plain, nil)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := Decompress(AlgorithmZstd, data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestDecompressGzip(t *testing.T) {
	plain := []byte("gzip compressed upload contents")
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(plain); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := Decompress(AlgorithmGzip, buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestDecompressPassThrough(t *testing.T) {
	data := []byte("raw bytes")
	for _, algorithm := range []string{"", AlgorithmNone, "lz4"} {
		got, err := Decompress(algorithm, data)
		if err != nil {
			t.Fatalf("%s: %v", algorithm, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("%s: data changed", algorithm)
		}
	}
}

func TestDecompressCorruptGzip(t *testing.T) {
	if _, err := Decompress(AlgorithmGzip, []byte("not gzip")); err == nil {
		t.Fatal("expected error for corrupt stream")
	}
}
