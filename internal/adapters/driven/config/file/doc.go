// Package file keeps user configuration on disk under the ragkit home
// directory: settings in config.toml and prompt templates in prompts/.
package file
