package profile

import (
	"errors"
	"testing"

	"github.com/danmuck/devprofile/internal/testutil/testlog"
)

const alphaDoc = `{
  "P_ALPHA": ["com.example.app"],
  "P_ALPHA_DEVICE": {"BRAND": "Acme", "MODEL": "X1"}
}`

func shortResolver() Resolver {
	return Resolver{Prefix: "P_", Suffix: "_DEVICE"}
}

func TestResolvePositive(t *testing.T) {
	testlog.Start(t)

	res, err := shortResolver().Resolve([]byte(alphaDoc), "com.example.app")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Matched || res.Group != "ALPHA" {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := Device{Brand: "Acme", Model: "X1"}
	if res.Device != want {
		t.Fatalf("unexpected device: %+v", res.Device)
	}
}

func TestResolveMissingProfile(t *testing.T) {
	testlog.Start(t)

	doc := `{"P_ALPHA": ["com.example.app"]}`
	res, err := shortResolver().Resolve([]byte(doc), "com.example.app")
	if !errors.Is(err, ErrMissingProfile) {
		t.Fatalf("expected ErrMissingProfile, got %v", err)
	}
	if res.Matched {
		t.Fatalf("expected no match: %+v", res)
	}
}

func TestResolveProfileWrongShape(t *testing.T) {
	testlog.Start(t)

	for _, value := range []string{`"Acme"`, `null`, `["BRAND"]`, `7`} {
		doc := `{"P_ALPHA": ["com.example.app"], "P_ALPHA_DEVICE": ` + value + `}`
		if _, err := shortResolver().Resolve([]byte(doc), "com.example.app"); !errors.Is(err, ErrMissingProfile) {
			t.Fatalf("value=%s expected ErrMissingProfile, got %v", value, err)
		}
	}
}

func TestResolveNegative(t *testing.T) {
	testlog.Start(t)

	res, err := shortResolver().Resolve([]byte(alphaDoc), "com.other.app")
	if !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}
	if res != (Result{}) {
		t.Fatalf("expected zero result, got %+v", res)
	}
}

func TestResolveIsPure(t *testing.T) {
	testlog.Start(t)

	r := shortResolver()
	first, err := r.Resolve([]byte(alphaDoc), "com.example.app")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.Resolve([]byte(alphaDoc), "com.example.app")
		if err != nil {
			t.Fatalf("resolve #%d: %v", i, err)
		}
		if again != first {
			t.Fatalf("resolve #%d differs: %+v vs %+v", i, again, first)
		}
		if _, err := r.Resolve([]byte(alphaDoc), "com.other.app"); !errors.Is(err, ErrNotListed) {
			t.Fatalf("interleaved miss #%d: %v", i, err)
		}
	}
}

func TestResolveDefaultsAndExtendedFields(t *testing.T) {
	testlog.Start(t)

	doc := `{
	  // comments and trailing commas are tolerated
	  "PACKAGES_PAD": ["com.tablet.app", 42, null],
	  "PACKAGES_PAD_DEVICE": {
	    "BRAND": "Acme",
	    "DEVICE": "pad",
	    "MANUFACTURER": "Acme Corp",
	    "MODEL": "Pad 2",
	    "FINGERPRINT": "acme/pad/pad:14/AP1A/1:user/release-keys",
	    "PRODUCT": "pad_global",
	    "BOARD": "lahaina",
	    "HARDWARE": "qcom",
	    "SERIAL": 12345,
	  },
	} trailing noise is ignored`

	res, err := Resolver{}.Resolve([]byte(doc), "com.tablet.app")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Group != "PAD" {
		t.Fatalf("unexpected group: %q", res.Group)
	}
	d := res.Device
	if d.Brand != "Acme" || d.Device != "pad" || d.Manufacturer != "Acme Corp" || d.Model != "Pad 2" {
		t.Fatalf("unexpected core fields: %+v", d)
	}
	if d.Fingerprint == "" || d.Product != "pad_global" {
		t.Fatalf("unexpected build fields: %+v", d)
	}
	if d.Board != "lahaina" || d.Hardware != "qcom" {
		t.Fatalf("unexpected extended fields: %+v", d)
	}
	if d.Serial != "" {
		t.Fatalf("non-string serial should stay empty: %q", d.Serial)
	}
}

func TestResolveFirstGroupInDocumentOrderWins(t *testing.T) {
	testlog.Start(t)

	doc := `{
	  "P_ZETA": ["com.example.app"],
	  "P_ALPHA": ["com.example.app"],
	  "P_ALPHA_DEVICE": {"BRAND": "Alpha"},
	  "P_ZETA_DEVICE": {"BRAND": "Zeta"}
	}`
	res, err := shortResolver().Resolve([]byte(doc), "com.example.app")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Group != "ZETA" || res.Device.Brand != "Zeta" {
		t.Fatalf("expected first listed group to win: %+v", res)
	}
}

func TestResolveSkipsProfileObjectsWithMembershipPrefix(t *testing.T) {
	testlog.Start(t)

	doc := `{"P_ALPHA_DEVICE": {"BRAND": "Acme"}, "P_": ["com.example.app"], "OTHER": ["com.example.app"]}`
	if _, err := shortResolver().Resolve([]byte(doc), "com.example.app"); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}
}

func TestResolveMalformedInputIsNoMatch(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "", want: ErrEmptyDocument},
		{name: "whitespace", raw: " \n\t", want: ErrEmptyDocument},
		{name: "array", raw: `["com.example.app"]`, want: ErrNotObject},
		{name: "string", raw: `"P_ALPHA"`, want: ErrNotObject},
		{name: "truncated", raw: `{"P_ALPHA": ["com.example.app"`, want: ErrParse},
		{name: "garbage", raw: `{{{`, want: ErrParse},
		{name: "empty object", raw: `{}`, want: ErrNotListed},
	}
	for _, tc := range cases {
		res, err := shortResolver().Resolve([]byte(tc.raw), "com.example.app")
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if res.Matched {
			t.Fatalf("%s: unexpected match", tc.name)
		}
	}
}

func TestResolveEmptyPackage(t *testing.T) {
	testlog.Start(t)

	if _, err := shortResolver().Resolve([]byte(alphaDoc), ""); !errors.Is(err, ErrEmptyPackage) {
		t.Fatalf("expected ErrEmptyPackage, got %v", err)
	}
}

func TestGroupsListing(t *testing.T) {
	testlog.Start(t)

	doc, err := ParseDocument([]byte(`{
	  "P_ALPHA": ["a", "b"],
	  "P_ALPHA_DEVICE": {"BRAND": "Acme"},
	  "P_BETA": ["c"],
	  "UNRELATED": 1
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Len() != 4 {
		t.Fatalf("unexpected key count: %d", doc.Len())
	}
	if keys := doc.Keys(); keys[0] != "P_ALPHA" || keys[3] != "UNRELATED" {
		t.Fatalf("keys not in document order: %v", keys)
	}
	groups := shortResolver().Groups(doc)
	if len(groups) != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[0] != (Group{Name: "ALPHA", Members: 2, HasProfile: true}) {
		t.Fatalf("unexpected alpha: %+v", groups[0])
	}
	if groups[1] != (Group{Name: "BETA", Members: 1, HasProfile: false}) {
		t.Fatalf("unexpected beta: %+v", groups[1])
	}
}
