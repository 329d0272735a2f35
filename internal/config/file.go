package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfigInvalid is returned for a malformed or unknown-key config
// file. The engine-level error kind (ConfigInvalid) wraps this at the
// call site that builds the task outcome, if any.
var ErrConfigInvalid = errors.New("config: invalid config file")

// LoadFile reads a YAML or JSON config file (selected by extension) into
// cfg, overriding only the fields the file sets. Unknown keys are
// rejected. A path of "" is a no-op.
func LoadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrConfigInvalid, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, path, err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrConfigInvalid, path, err)
		}
	default:
		return fmt.Errorf("%w: %s: unrecognized extension, want .yaml/.yml/.json", ErrConfigInvalid, path)
	}

	return nil
}
