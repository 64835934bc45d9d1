package overlay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/devprofile/internal/profile"
)

var (
	ErrUnknownRevision = errors.New("overlay: unknown mapping revision")
	ErrInvalidMapping  = errors.New("overlay: invalid mapping")
)

// Revision selects one of the built-in property layouts.
type Revision string

const (
	// RevisionExtended writes ro.product.name, the extended hardware fields
	// and the vendor/system scoped duplicates.
	RevisionExtended Revision = "extended"
	// RevisionCore writes only the six core identities and uses
	// ro.product.product for the product field.
	RevisionCore Revision = "core"
)

const (
	ClassBuild        = "android/os/Build"
	ClassBuildVersion = "android/os/Build$VERSION"
)

// PropertyBinding sets native property Name from profile field Field.
type PropertyBinding struct {
	Name  string
	Field profile.Field
}

// Mapping is the ordered overlay plan for both identity surfaces.
type Mapping struct {
	Properties []PropertyBinding
	// Fields are the managed static field names, which match profile field names.
	Fields []profile.Field
	// Classes are tried in order when looking up a managed field.
	Classes []string
}

func DefaultMapping() Mapping {
	m, _ := MappingFor(RevisionExtended)
	return m
}

func MappingFor(rev Revision) (Mapping, error) {
	switch Revision(strings.ToLower(strings.TrimSpace(string(rev)))) {
	case RevisionExtended, "":
		return extendedMapping(), nil
	case RevisionCore:
		return coreMapping(), nil
	default:
		return Mapping{}, fmt.Errorf("%w: %q", ErrUnknownRevision, rev)
	}
}

func defaultClasses() []string {
	return []string{ClassBuild, ClassBuildVersion}
}

func coreMapping() Mapping {
	return Mapping{
		Properties: []PropertyBinding{
			{Name: "ro.product.brand", Field: profile.FieldBrand},
			{Name: "ro.product.device", Field: profile.FieldDevice},
			{Name: "ro.product.manufacturer", Field: profile.FieldManufacturer},
			{Name: "ro.product.model", Field: profile.FieldModel},
			{Name: "ro.product.product", Field: profile.FieldProduct},
			{Name: "ro.build.fingerprint", Field: profile.FieldFingerprint},
		},
		Fields:  append([]profile.Field(nil), profile.CoreFields...),
		Classes: defaultClasses(),
	}
}

func extendedMapping() Mapping {
	props := []PropertyBinding{
		{Name: "ro.product.brand", Field: profile.FieldBrand},
		{Name: "ro.product.device", Field: profile.FieldDevice},
		{Name: "ro.product.manufacturer", Field: profile.FieldManufacturer},
		{Name: "ro.product.model", Field: profile.FieldModel},
		{Name: "ro.product.name", Field: profile.FieldProduct},
		{Name: "ro.build.fingerprint", Field: profile.FieldFingerprint},
		{Name: "ro.build.product", Field: profile.FieldProduct},
		{Name: "ro.product.board", Field: profile.FieldBoard},
		{Name: "ro.hardware", Field: profile.FieldHardware},
		{Name: "ro.serialno", Field: profile.FieldSerial},
	}
	for _, scope := range []string{"vendor", "system"} {
		props = append(props,
			PropertyBinding{Name: "ro.product." + scope + ".brand", Field: profile.FieldBrand},
			PropertyBinding{Name: "ro.product." + scope + ".device", Field: profile.FieldDevice},
			PropertyBinding{Name: "ro.product." + scope + ".manufacturer", Field: profile.FieldManufacturer},
			PropertyBinding{Name: "ro.product." + scope + ".model", Field: profile.FieldModel},
			PropertyBinding{Name: "ro.product." + scope + ".name", Field: profile.FieldProduct},
		)
	}
	return Mapping{
		Properties: props,
		Fields:     profile.AllFields(),
		Classes:    defaultClasses(),
	}
}

// Validate rejects unknown fields, blank names and an empty class list.
func (m Mapping) Validate() error {
	if len(m.Properties) == 0 && len(m.Fields) == 0 {
		return fmt.Errorf("%w: nothing to apply", ErrInvalidMapping)
	}
	for i, p := range m.Properties {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: property %d has no name", ErrInvalidMapping, i)
		}
		if !p.Field.Valid() {
			return fmt.Errorf("%w: property %q uses unknown field %q", ErrInvalidMapping, p.Name, p.Field)
		}
	}
	for _, f := range m.Fields {
		if !f.Valid() {
			return fmt.Errorf("%w: unknown managed field %q", ErrInvalidMapping, f)
		}
	}
	if len(m.Fields) > 0 && len(m.Classes) == 0 {
		return fmt.Errorf("%w: managed fields without classes", ErrInvalidMapping)
	}
	for _, c := range m.Classes {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: blank class name", ErrInvalidMapping)
		}
	}
	return nil
}

// Writes reports whether applying dev would write at least one value.
func (m Mapping) Writes(dev profile.Device) bool {
	for _, p := range m.Properties {
		if dev.Value(p.Field) != "" {
			return true
		}
	}
	if !dev.HasCore() {
		return false
	}
	for _, f := range m.Fields {
		if dev.Value(f) != "" {
			return true
		}
	}
	return false
}
