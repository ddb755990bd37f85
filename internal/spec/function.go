// Package spec parses the YAML function manifests used to register
// functions with the platform, and converts them into domain.Function
// records.
package spec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nimbusrun/fnrun/internal/domain"
	"gopkg.in/yaml.v3"
)

// FunctionSpec is the YAML shape a function manifest is written in.
type FunctionSpec struct {
	APIVersion string `yaml:"apiVersion,omitempty"`
	Kind       string `yaml:"kind,omitempty"`

	Name  string `yaml:"name"`
	Route string `yaml:"route"`

	Language string `yaml:"language"`         // python, javascript
	Code     string `yaml:"code"`              // inline source, or a path resolved relative to the manifest
	CodeFile bool   `yaml:"codeFile,omitempty"` // true: Code is a path to read from disk

	MemoryMB int `yaml:"memory,omitempty"`
	TimeoutS int `yaml:"timeout,omitempty"`

	Env map[string]string `yaml:"env,omitempty"`
}

// MultiSpec holds every function spec decoded from one manifest file. A
// manifest may contain several `---`-separated YAML documents.
type MultiSpec struct {
	Functions []FunctionSpec
}

// ParseFile reads and parses a manifest file from disk.
func ParseFile(path string) (*MultiSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f, filepath.Dir(path))
}

// Parse decodes one or more YAML documents from r. baseDir resolves any
// Code path that is given as a relative path.
func Parse(r io.Reader, baseDir string) (*MultiSpec, error) {
	decoder := yaml.NewDecoder(r)
	var specs []FunctionSpec

	for {
		var s FunctionSpec
		err := decoder.Decode(&s)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}

		if s.Name == "" && s.Language == "" {
			continue
		}

		if s.CodeFile && s.Code != "" && !filepath.IsAbs(s.Code) {
			s.Code = filepath.Join(baseDir, s.Code)
		}

		specs = append(specs, s)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no valid function specs found")
	}

	return &MultiSpec{Functions: specs}, nil
}

// Validate enforces the manifest-level invariants, ahead of the stricter
// domain.Function.Validate check applied after conversion.
func (s *FunctionSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Route == "" {
		return fmt.Errorf("route is required")
	}
	if s.Language == "" {
		return fmt.Errorf("language is required")
	}
	if s.Code == "" {
		return fmt.Errorf("code is required")
	}
	if !domain.Language(s.Language).IsValid() {
		return fmt.Errorf("invalid language: %s (valid: python, javascript)", s.Language)
	}
	if s.CodeFile {
		if _, err := os.Stat(s.Code); os.IsNotExist(err) {
			return fmt.Errorf("code path not found: %s", s.Code)
		}
	}
	return nil
}

// ToFunction validates the spec and converts it into a domain.Function,
// applying the platform defaults (128MB / 30s) and reading the handler
// source from disk when CodeFile is set.
func (s *FunctionSpec) ToFunction(id string) (*domain.Function, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	code := s.Code
	if s.CodeFile {
		b, err := os.ReadFile(s.Code)
		if err != nil {
			return nil, fmt.Errorf("read code file: %w", err)
		}
		code = string(b)
	}

	fn := &domain.Function{
		ID:       id,
		Name:     s.Name,
		Route:    s.Route,
		Language: domain.Language(s.Language),
		Code:     code,
		MemoryMB: s.MemoryMB,
		TimeoutS: s.TimeoutS,
		EnvVars:  s.Env,
	}

	if fn.MemoryMB == 0 {
		fn.MemoryMB = 128
	}
	if fn.TimeoutS == 0 {
		fn.TimeoutS = 30
	}

	if err := fn.Validate(); err != nil {
		return nil, err
	}
	return fn, nil
}
