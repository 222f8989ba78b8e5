package config

import (
	_ "embed"
	"fmt"
	"io"
	"maps"

	"gopkg.in/yaml.v3"

	"github.com/localz/localzpush-go/internal/sdkerrors"
)

//go:embed environments.yaml
var builtinEnvironments []byte

// Environments is the parsed form of an environments file
type Environments struct {
	// Active names the environment selected when none is requested
	Active string `yaml:"active"`

	// Default holds values shared by every environment
	Default map[string]any `yaml:"default"`

	// Environments holds per-environment values keyed by environment name
	Environments map[string]map[string]any `yaml:"environments"`
}

// DefaultEnvironments returns the built-in environment definitions
func DefaultEnvironments() *Environments {
	envs, err := parseEnvironments(builtinEnvironments)
	if err != nil {
		panic(fmt.Sprintf("config: built-in environments are invalid: %v", err))
	}
	return envs
}

// LoadEnvironments parses an environments document from r
func LoadEnvironments(r io.Reader) (*Environments, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, sdkerrors.NewInvalidConfig("failed to read environments", err)
	}
	return parseEnvironments(data)
}

func parseEnvironments(data []byte) (*Environments, error) {
	var envs Environments
	if err := yaml.Unmarshal(data, &envs); err != nil {
		return nil, sdkerrors.NewInvalidConfig("failed to parse environments", err)
	}

	if envs.Default == nil {
		envs.Default = make(map[string]any)
	}
	if envs.Environments == nil {
		envs.Environments = make(map[string]map[string]any)
	}
	for name, values := range envs.Environments {
		if values == nil {
			envs.Environments[name] = make(map[string]any)
		}
	}

	if envs.Active == "" {
		return nil, sdkerrors.NewInvalidConfig("environments file does not name an active environment", nil)
	}
	if _, ok := envs.Environments[envs.Active]; !ok {
		return nil, sdkerrors.NewInvalidConfig(fmt.Sprintf("active environment %q is not defined", envs.Active), nil)
	}

	return &envs, nil
}

// Names returns the defined environment names
func (e *Environments) Names() []string {
	names := make([]string, 0, len(e.Environments))
	for name := range e.Environments {
		names = append(names, name)
	}
	return names
}

func (e *Environments) clone() *Environments {
	c := &Environments{
		Active:       e.Active,
		Default:      maps.Clone(e.Default),
		Environments: make(map[string]map[string]any, len(e.Environments)),
	}
	for name, values := range e.Environments {
		c.Environments[name] = maps.Clone(values)
	}
	return c
}
