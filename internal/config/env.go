package config

import (
	"fmt"
	"os"
	"regexp"
)

// envPlaceholder matches "${NAME}" references anywhere in the raw config
// text, per spec.md §6 ("any config string value of the form ${NAME} is
// replaced by the value of environment variable NAME at load time").
var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnv replaces every ${NAME} occurrence in data with the value
// of the environment variable NAME. An unset variable is a load error —
// spec.md §6: "Unset variable → load error."
func interpolateEnv(data []byte) ([]byte, error) {
	var firstErr error

	result := envPlaceholder.ReplaceAllFunc(data, func(match []byte) []byte {
		if firstErr != nil {
			return match
		}

		name := envPlaceholder.FindSubmatch(match)[1]
		value, ok := os.LookupEnv(string(name))
		if !ok {
			firstErr = fmt.Errorf("%w: unresolved environment variable %q", ErrConfig, name)
			return match
		}

		return []byte(value)
	})

	if firstErr != nil {
		return nil, firstErr
	}

	return result, nil
}
