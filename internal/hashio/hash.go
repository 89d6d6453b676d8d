// Package hashio provides content hashing and atomic structured file
// I/O primitives shared by the manifest, job, and engine packages.
package hashio

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/google/uuid"
)

// ComputeFileHash returns the hex-encoded SHA-256 digest of a file's
// contents.
func ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is caller-supplied and expected
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ShortInputFingerprint computes the leading 64 bits (16 hex chars) of
// the SHA-256 digest over a canonical encoding of inputs: keys sorted,
// values rendered as their JSON representation. Two calls with equal
// inputs (in any map-construction order) produce equal fingerprints.
func ShortInputFingerprint(inputs map[string]string) (string, error) {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	canonical := make([]struct {
		K string `json:"k"`
		V string `json:"v"`
	}, len(keys))
	for i, k := range keys {
		canonical[i].K = k
		canonical[i].V = inputs[k]
	}

	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil // leading 64 bits = 8 bytes = 16 hex chars
}

// AtomicWriteFile writes data to path by creating a uniquely-suffixed
// temp file in the same directory and renaming it into place, so
// readers never observe a partially-written file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := path + ".tmp-" + uuid.NewString()

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errorkind.Wrap(errorkind.Workspace, "creating parent directory", err)
		}
	}

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// WriteJSON atomically marshals v as indented JSON and writes it to path.
func WriteJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return AtomicWriteFile(path, data, perm)
}

// ReadJSON reads and unmarshals path into v. A missing file is treated
// as "nothing to read": it returns (false, nil) rather than an error.
func ReadJSON(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is caller-supplied and expected
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}
