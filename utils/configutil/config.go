// Package configutil loads and validates YAML configuration files.
//
// A file may extend one other file via an "extends" directive:
//
//	production.yaml:
//	extends: base.yaml
//
// Base files are applied first, so the extending file's values win. The
// chain is a linked list; cycles are rejected.
package configutil

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ErrCycleRef is returned when configuration files extend each other in a
// cycle.
var ErrCycleRef = errors.New("cyclic reference in configuration extends detected")

type extends struct {
	Extends string `yaml:"extends"`
}

// ValidationError is returned when a configuration fails validation.
type ValidationError struct {
	errorMap validator.ErrorMap
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validate config: %s", e.errorMap)
}

// Load reads the file chain rooted at filename into config and validates
// the result.
func Load(filename string, config interface{}) error {
	chain, err := resolveChain(filename)
	if err != nil {
		return err
	}
	// Apply base files first so later files override.
	for i := len(chain) - 1; i >= 0; i-- {
		data, err := ioutil.ReadFile(chain[i])
		if err != nil {
			return fmt.Errorf("read config: %s", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("unmarshal %s: %s", chain[i], err)
		}
	}
	if err := validator.Validate(config); err != nil {
		if errs, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errs}
		}
		return err
	}
	return nil
}

func resolveChain(filename string) ([]string, error) {
	var chain []string
	seen := map[string]bool{}
	for filename != "" {
		abs, err := filepath.Abs(filename)
		if err != nil {
			return nil, err
		}
		if seen[abs] {
			return nil, ErrCycleRef
		}
		seen[abs] = true
		chain = append(chain, abs)

		data, err := ioutil.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("read config: %s", err)
		}
		var e extends
		if err := yaml.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal extends: %s", err)
		}
		if e.Extends == "" {
			break
		}
		filename = filepath.Join(filepath.Dir(abs), e.Extends)
	}
	return chain, nil
}
