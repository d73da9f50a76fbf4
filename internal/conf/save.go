package conf

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/scopelog/internal/errors"
)

// ConfigFilePermissions is the mode of files written by Save.
const ConfigFilePermissions = 0o644

// Marshal renders s as YAML.
func Marshal(s *Settings) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, errors.New(fmt.Errorf("error encoding settings: %w", err)).
			Component(componentConf).
			Build()
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save validates s and writes it to path on fs. The file is written to a
// temporary name first and renamed over path.
func Save(fs afero.Fs, path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := Marshal(s)
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return saveError(path, err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, ConfigFilePermissions); err != nil {
		return saveError(path, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return saveError(path, err)
	}
	return nil
}

func saveError(path string, err error) error {
	return errors.New(fmt.Errorf("error writing config file: %w", err)).
		Component(componentConf).
		Category(errors.CategoryFileIO).
		Setting("config", path).
		Build()
}
