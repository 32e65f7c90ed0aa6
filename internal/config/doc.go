// Package config holds the settings of a linkcrawl run: defaults, validation,
// seed URL checks and the optional .linkcrawl YAML file with per-origin
// overrides.
package config
