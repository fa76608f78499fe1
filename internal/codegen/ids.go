package codegen

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// IDGenerator hands out block, variable, list, broadcast and comment ids.
// A generator serves one target build at a time.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates time-sortable UUIDv7 ids.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDGenerator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// AssetHasher computes the content digest that names an asset inside the
// project archive.
type AssetHasher interface {
	Digest(path string) (string, error)
}

// FileHasher reads the file on every call.
type FileHasher struct{}

// Digest returns the hex MD5 of the file at path.
func (FileHasher) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read asset: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read asset %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
