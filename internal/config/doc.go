// Package config reads .piiscan.yml from the scan root and the global
// config.yml under the user config directory. Fields are pointers so callers
// can tell "unset" from a zero value and layer CLI > local > global.
package config
