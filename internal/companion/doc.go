// Package companion owns the privileged side of configuration delivery.
//
// Ownership boundary:
// - reading the root-only configuration file
// - serving exactly one length-prefixed document per connection
// - the helper's unix socket listener and diagnostics endpoint
//
// The provider is stateless between connections. A missing or unreadable
// file is served as an empty document, never as an error to the client.
package companion
