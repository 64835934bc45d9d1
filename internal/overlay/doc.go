// Package overlay applies a resolved device profile to a target process.
//
// Ownership boundary:
// - native property overlay
// - managed-runtime static field overlay
// - overlay mappings (which property names receive which profile field)
//
// Both surfaces are best effort and field independent; a failed field never
// stops the remaining ones and empty profile values are never written.
package overlay
