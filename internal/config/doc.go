// Package config loads overlay mapping files and renders starter
// configuration templates.
//
// Ownership boundary:
// - TOML mapping decode with unknown keys rejected
// - layering a mapping file over a built-in revision
// - helper and mapping templates for operators
package config
