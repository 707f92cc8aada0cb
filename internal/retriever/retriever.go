// Package retriever fetches a stored original into a job workspace,
// transparently reversing at-rest encryption and compression.
package retriever

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"prism/internal/catalog"
	"prism/internal/compress"
	"prism/internal/logging"
	"prism/internal/storage"
	"prism/internal/vault"
	"prism/internal/workspace"
)

// Retriever copies originals from the files device into workspaces.
type Retriever struct {
	files  storage.Device
	keys   vault.KeySource
	logger *slog.Logger
}

// New constructs a retriever reading from the given files device.
func New(files storage.Device, keys vault.KeySource, logger *slog.Logger) *Retriever {
	return &Retriever{
		files:  files,
		keys:   keys,
		logger: logging.NewComponentLogger(logger, "retriever"),
	}
}

// Retrieve fetches the file into the workspace input directory and returns
// the local path. Encrypted or compressed assets are read fully, decrypted
// and decompressed; plain assets stream device to device.
func (r *Retriever) Retrieve(file *catalog.File, ws *workspace.Workspace) (string, error) {
	name := filepath.Base(file.Path)
	dst := ws.InPath(name)

	encrypted := file.Cipher != ""
	compressed := file.Algorithm != "" && file.Algorithm != compress.AlgorithmNone

	if !encrypted && !compressed {
		if err := r.files.Transfer(file.Path, dst, storage.NewLocal("")); err != nil {
			return "", err
		}
		r.logger.Debug("asset transferred", logging.String("path", file.Path))
		return dst, nil
	}

	data, err := r.files.Read(file.Path)
	if err != nil {
		return "", err
	}

	if encrypted {
		key, ok := r.keys.Key(file.CipherVersion)
		if !ok {
			return "", &vault.Error{Cipher: file.Cipher, Err: fmt.Errorf("no key for version %q", file.CipherVersion)}
		}
		data, err = vault.Decrypt(data, file.Cipher, key, file.IVHex, file.TagHex)
		if err != nil {
			return "", err
		}
	}

	data, err = compress.Decompress(file.Algorithm, data)
	if err != nil {
		return "", fmt.Errorf("decompress %s: %w", file.Algorithm, err)
	}

	local := storage.NewLocal("")
	if err := local.Write(dst, data, file.MimeType); err != nil {
		return "", err
	}
	r.logger.Debug("asset decoded",
		logging.String("path", file.Path),
		logging.Bool("encrypted", encrypted),
		logging.String("algorithm", file.Algorithm),
	)
	return dst, nil
}
