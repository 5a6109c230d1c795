package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// pepperLength is the number of random bytes in a generated pepper.
const pepperLength = 32

// ErrPepperNotFound is returned by LoadPepper when no pepper file exists at
// the given path.
var ErrPepperNotFound = errors.New("cryptox: pepper file not found")

// LoadPepper reads an existing pepper. A missing file is ErrPepperNotFound;
// it is never created here. An empty path means no pepper.
func LoadPepper(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}

	path = filepath.Clean(path)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPepperNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read pepper: %w", err)
	}

	pepper := strings.TrimSpace(string(b))
	if pepper == "" {
		return nil, fmt.Errorf("pepper file %s is empty", path)
	}
	return []byte(pepper), nil
}

// LoadOrCreatePepper reads the pepper stored at path, generating and writing
// a fresh one (mode 0600) when the file does not exist yet. An empty path
// means no pepper.
func LoadOrCreatePepper(path string) ([]byte, error) {
	pepper, err := LoadPepper(path)
	if !errors.Is(err, ErrPepperNotFound) {
		return pepper, err
	}

	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create pepper dir: %w", err)
	}

	raw := make([]byte, pepperLength)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	fresh := base64.RawURLEncoding.EncodeToString(raw)

	// The pepper is written in full to a temp file and then linked into
	// place. Readers never see a partial file, and link fails rather than
	// replacing a pepper another process published first.
	tmp, err := os.CreateTemp(dir, ".pepper-*")
	if err != nil {
		return nil, fmt.Errorf("write pepper: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(fresh); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write pepper: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("write pepper: %w", err)
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadPepper(path)
		}
		return nil, fmt.Errorf("write pepper: %w", err)
	}
	return []byte(fresh), nil
}
