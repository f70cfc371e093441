package config

import "errors"

// ErrConfig is the root sentinel for every configuration problem: malformed
// YAML, missing required fields, an unknown destination name, or a failed
// ${NAME} environment interpolation. Per spec.md §7, ConfigError is always
// fatal at startup — callers should not attempt to run with a partially
// loaded Config.
var ErrConfig = errors.New("config error")
