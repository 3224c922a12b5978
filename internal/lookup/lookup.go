// Package lookup resolves named credentials from layered sources.
//
// A credential such as an upstream bearer token is referenced by name in
// configuration; the actual value is resolved at startup through a chain of
// sources — CLI arguments first, then the process environment. Each source
// tries the exact name, then its upper-case form, then its lower-case form.
// The empty string means "not found": sources never distinguish an unset
// name from a name set to the empty value.
package lookup

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Source resolves a credential name to a value.
// Returns the empty string when the name is not present.
type Source interface {
	Lookup(name string) string
}

// Env resolves names from the process environment.
type Env struct {
	// getenv allows tests to substitute the environment.
	getenv func(string) string
}

// NewEnv returns an environment-backed source.
func NewEnv(getenv func(string) string) *Env {
	return &Env{getenv: getenv}
}

// Lookup returns the environment value for name, or "" if unset.
func (e *Env) Lookup(name string) string {
	if e.getenv == nil {
		return ""
	}
	return e.getenv(name)
}

// Args resolves names from key=value CLI arguments.
// Arguments without "=" are ignored.
type Args struct {
	values map[string]string
}

// NewArgs parses key=value pairs into an argument-backed source.
func NewArgs(pairs []string) *Args {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	return &Args{values: values}
}

// Lookup returns the argument value for name, or "" if absent.
func (a *Args) Lookup(name string) string {
	return a.values[name]
}

// Map resolves names from a fixed map. Useful in tests.
type Map map[string]string

// Lookup returns the mapped value for name, or "" if absent.
func (m Map) Lookup(name string) string {
	return m[name]
}

// Chain resolves a name across sources in order. Within each source the
// exact name is tried first, then the upper-case and lower-case forms, so
// a config naming "api_token" still matches an API_TOKEN environment
// variable. The first non-empty value wins.
type Chain struct {
	sources []Source
}

// NewChain builds a chain that consults sources in the given order.
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// Lookup resolves name through the chain. Returns "" when no source has it.
func (c *Chain) Lookup(name string) string {
	if name == "" {
		return ""
	}
	candidates := []string{name}
	if upper := strings.ToUpper(name); upper != name {
		candidates = append(candidates, upper)
	}
	if lower := strings.ToLower(name); lower != name {
		candidates = append(candidates, lower)
	}
	for _, source := range c.sources {
		for _, candidate := range candidates {
			if value := source.Lookup(candidate); value != "" {
				return value
			}
		}
	}
	return ""
}

// LoadDotEnv loads variables from a .env file in the working directory
// into the process environment. Missing files are not an error; existing
// environment variables are never overwritten.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}
