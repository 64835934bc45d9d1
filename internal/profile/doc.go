// Package profile owns device profile resolution.
//
// Ownership boundary:
// - configuration document parsing (JSON with comments)
// - membership list -> profile object lookup
// - package identifier extraction from app data directories
//
// Resolution is pure: it performs no I/O and keeps no state between calls.
package profile
