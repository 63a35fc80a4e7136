package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const keyFileName = ".imagehost_key"

func keyFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, keyFileName), nil
}

// saveAPIKey writes the key to the user's home directory, readable only by
// them, and returns the path.
func saveAPIKey(key string) (string, error) {
	path, err := keyFilePath()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(key)+"\n"), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func loadAPIKey() (string, error) {
	path, err := keyFilePath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", errors.New("no API key found, run `imagehost login` first")
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
