package overlay

import (
	"errors"
	"fmt"

	"github.com/danmuck/devprofile/internal/profile"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyProfile  = errors.New("overlay: empty device profile")
	ErrFieldNotFound = errors.New("overlay: managed field not found")
)

// PropertyStore is the native key/value property capability.
type PropertyStore interface {
	SetProperty(name, value string) error
}

// FieldHandle and StringRef are opaque runtime handles.
type (
	FieldHandle any
	StringRef   any
)

// Runtime is the managed-runtime reflection capability. A failed call
// leaves a pending fault that must be cleared with ClearFault before the
// next call.
type Runtime interface {
	StaticStringField(class, name string) (FieldHandle, error)
	NewString(value string) (StringRef, error)
	SetStaticField(class string, field FieldHandle, value StringRef) error
	ClearFault()
}

type Surface string

const (
	SurfaceProperty Surface = "property"
	SurfaceField    Surface = "field"
)

type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusMissing Status = "missing"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one property or managed field.
type Outcome struct {
	Surface Surface
	Target  string
	Field   profile.Field
	Status  Status
	Err     error
}

// Report lists every outcome of one Apply pass in plan order.
type Report struct {
	Outcomes []Outcome
}

func (r Report) Count(surface Surface, status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Surface == surface && o.Status == status {
			n++
		}
	}
	return n
}

// Failures returns outcomes that failed on either surface.
func (r Report) Failures() []Outcome {
	out := make([]Outcome, 0)
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Applier pushes one device profile onto the property store and runtime.
// Either capability may be nil, in which case that surface is skipped.
type Applier struct {
	mapping Mapping
	props   PropertyStore
	runtime Runtime
}

func NewApplier(mapping Mapping, props PropertyStore, runtime Runtime) *Applier {
	return &Applier{mapping: mapping, props: props, runtime: runtime}
}

// Apply is best effort: every field is attempted independently and no
// failure stops the pass. Empty profile values are never written.
func (a *Applier) Apply(dev profile.Device) (Report, error) {
	if dev.IsEmpty() {
		return Report{}, ErrEmptyProfile
	}

	report := Report{Outcomes: make([]Outcome, 0, len(a.mapping.Properties)+len(a.mapping.Fields))}
	switch {
	case a.runtime == nil:
		log.Warn().Msg("overlay.Applier.Apply runtime unavailable, skipping managed fields")
	case !dev.HasCore():
		// Extended-only profiles still reach the property surface.
		log.Debug().Msg("overlay.Applier.Apply no core identity, skipping managed fields")
		a.skipFields(&report)
	default:
		a.applyFields(dev, &report)
	}
	if a.props != nil {
		a.applyProperties(dev, &report)
	} else {
		log.Warn().Msg("overlay.Applier.Apply property store unavailable, skipping properties")
	}

	log.Debug().
		Int("properties_applied", report.Count(SurfaceProperty, StatusApplied)).
		Int("fields_applied", report.Count(SurfaceField, StatusApplied)).
		Int("failures", len(report.Failures())).
		Msg("overlay.Applier.Apply complete")
	return report, nil
}

func (a *Applier) applyProperties(dev profile.Device, report *Report) {
	for _, binding := range a.mapping.Properties {
		out := Outcome{Surface: SurfaceProperty, Target: binding.Name, Field: binding.Field}
		value := dev.Value(binding.Field)
		switch {
		case value == "":
			out.Status = StatusSkipped
		default:
			if err := a.props.SetProperty(binding.Name, value); err != nil {
				out.Status = StatusFailed
				out.Err = err
				log.Error().Err(err).Str("property", binding.Name).Msg("overlay.Applier property set failed")
			} else {
				out.Status = StatusApplied
				log.Debug().Str("property", binding.Name).Str("value", value).Msg("overlay.Applier property set")
			}
		}
		report.Outcomes = append(report.Outcomes, out)
	}
}

func (a *Applier) applyFields(dev profile.Device, report *Report) {
	for _, field := range a.mapping.Fields {
		out := Outcome{Surface: SurfaceField, Target: string(field), Field: field}
		value := dev.Value(field)
		if value == "" {
			out.Status = StatusSkipped
			report.Outcomes = append(report.Outcomes, out)
			continue
		}

		class, handle, err := a.lookupField(string(field))
		if err != nil {
			out.Status = StatusMissing
			out.Err = err
			log.Debug().Str("field", string(field)).Msg("overlay.Applier managed field not found")
			report.Outcomes = append(report.Outcomes, out)
			continue
		}
		out.Target = class + "." + string(field)

		if err := a.assign(class, handle, value); err != nil {
			out.Status = StatusFailed
			out.Err = err
			log.Error().Err(err).Str("field", out.Target).Msg("overlay.Applier managed field set failed")
		} else {
			out.Status = StatusApplied
			log.Debug().Str("field", out.Target).Str("value", value).Msg("overlay.Applier managed field set")
		}
		report.Outcomes = append(report.Outcomes, out)
	}
}

func (a *Applier) skipFields(report *Report) {
	for _, field := range a.mapping.Fields {
		report.Outcomes = append(report.Outcomes, Outcome{
			Surface: SurfaceField,
			Target:  string(field),
			Field:   field,
			Status:  StatusSkipped,
		})
	}
}

// lookupField tries each class candidate in order; the first hit wins.
func (a *Applier) lookupField(name string) (string, FieldHandle, error) {
	for _, class := range a.mapping.Classes {
		handle, err := a.runtime.StaticStringField(class, name)
		if err != nil {
			a.runtime.ClearFault()
			continue
		}
		if handle != nil {
			return class, handle, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
}

func (a *Applier) assign(class string, handle FieldHandle, value string) error {
	ref, err := a.runtime.NewString(value)
	if err != nil {
		a.runtime.ClearFault()
		return fmt.Errorf("overlay: create string: %w", err)
	}
	if err := a.runtime.SetStaticField(class, handle, ref); err != nil {
		a.runtime.ClearFault()
		return fmt.Errorf("overlay: set %s: %w", class, err)
	}
	return nil
}
