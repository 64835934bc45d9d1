package profile

// Field names a single profile value as it appears in a profile object.
type Field string

const (
	FieldBrand        Field = "BRAND"
	FieldDevice       Field = "DEVICE"
	FieldManufacturer Field = "MANUFACTURER"
	FieldModel        Field = "MODEL"
	FieldFingerprint  Field = "FINGERPRINT"
	FieldProduct      Field = "PRODUCT"
	FieldBoard        Field = "BOARD"
	FieldHardware     Field = "HARDWARE"
	FieldSerial       Field = "SERIAL"
)

// CoreFields are the six identity fields every group is expected to carry.
var CoreFields = []Field{
	FieldBrand,
	FieldDevice,
	FieldManufacturer,
	FieldModel,
	FieldFingerprint,
	FieldProduct,
}

// ExtendedFields are optional hardware fields.
var ExtendedFields = []Field{
	FieldBoard,
	FieldHardware,
	FieldSerial,
}

// AllFields returns core then extended fields.
func AllFields() []Field {
	out := make([]Field, 0, len(CoreFields)+len(ExtendedFields))
	out = append(out, CoreFields...)
	return append(out, ExtendedFields...)
}

// Valid reports whether f is one of the known profile fields.
func (f Field) Valid() bool {
	for _, known := range AllFields() {
		if f == known {
			return true
		}
	}
	return false
}

// Device is one resolved identity overlay. Empty values mean "leave unchanged".
type Device struct {
	Brand        string
	Device       string
	Manufacturer string
	Model        string
	Fingerprint  string
	Product      string

	Board    string
	Hardware string
	Serial   string
}

// Value returns the profile value for f, or "" for unknown fields.
func (d Device) Value(f Field) string {
	switch f {
	case FieldBrand:
		return d.Brand
	case FieldDevice:
		return d.Device
	case FieldManufacturer:
		return d.Manufacturer
	case FieldModel:
		return d.Model
	case FieldFingerprint:
		return d.Fingerprint
	case FieldProduct:
		return d.Product
	case FieldBoard:
		return d.Board
	case FieldHardware:
		return d.Hardware
	case FieldSerial:
		return d.Serial
	default:
		return ""
	}
}

func (d *Device) set(f Field, v string) {
	switch f {
	case FieldBrand:
		d.Brand = v
	case FieldDevice:
		d.Device = v
	case FieldManufacturer:
		d.Manufacturer = v
	case FieldModel:
		d.Model = v
	case FieldFingerprint:
		d.Fingerprint = v
	case FieldProduct:
		d.Product = v
	case FieldBoard:
		d.Board = v
	case FieldHardware:
		d.Hardware = v
	case FieldSerial:
		d.Serial = v
	}
}

// IsEmpty is true when no field carries a value.
func (d Device) IsEmpty() bool {
	for _, f := range AllFields() {
		if d.Value(f) != "" {
			return false
		}
	}
	return true
}

// HasCore reports whether at least one core identity field is set.
func (d Device) HasCore() bool {
	for _, f := range CoreFields {
		if d.Value(f) != "" {
			return true
		}
	}
	return false
}
