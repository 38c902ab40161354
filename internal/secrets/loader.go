package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes where a secret may come from. The first non-empty
// location wins in the order File, Env, Value.
type Source struct {
	// Name is used in error messages.
	Name string
	// File points to a file holding the secret, e.g. a password file.
	File string
	// Env names an environment variable holding the secret.
	Env string
	// Value is an inline secret from configuration or flags.
	Value string
}

// Configured reports whether any location is set.
func (s Source) Configured() bool {
	return strings.TrimSpace(s.File) != "" || strings.TrimSpace(s.Env) != "" || strings.TrimSpace(s.Value) != ""
}

// Load resolves the secret. Surrounding whitespace, including the trailing
// newline most editors add to files, is removed.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	return "", fmt.Errorf("%s is not configured", name)
}
