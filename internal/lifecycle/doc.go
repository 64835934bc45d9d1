// Package lifecycle drives one spawned process through the overlay
// callbacks delivered by the injection host.
//
// Ownership boundary:
// - phase transitions from fresh to applied or not_targeted
// - fetching the configuration before specialization completes
// - unload and overlay-unmount requests to the host
// - dropping package and profile state once the overlay is applied
//
// The controller never retries and never surfaces a failure to the host;
// every failed step ends in not_targeted.
package lifecycle
