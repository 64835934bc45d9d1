package main

import (
	"github.com/danmuck/devprofile/internal/overlay"
	"github.com/danmuck/devprofile/internal/profile"
)

// planProperties accepts every property write without touching the host.
type planProperties struct{}

func (planProperties) SetProperty(string, string) error { return nil }

// planRuntime resolves every managed field on the first candidate class.
type planRuntime struct{}

func (planRuntime) StaticStringField(class, name string) (overlay.FieldHandle, error) {
	return class + "." + name, nil
}

func (planRuntime) NewString(value string) (overlay.StringRef, error) {
	return value, nil
}

func (planRuntime) SetStaticField(string, overlay.FieldHandle, overlay.StringRef) error {
	return nil
}

func (planRuntime) ClearFault() {}

// planOverlay runs the applier against no-op surfaces to list the writes
// a targeted process would receive.
func planOverlay(mapping overlay.Mapping, dev profile.Device) (overlay.Report, error) {
	return overlay.NewApplier(mapping, planProperties{}, planRuntime{}).Apply(dev)
}
