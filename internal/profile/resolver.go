package profile

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultMembershipPrefix = "PACKAGES_"
	DefaultProfileSuffix    = "_DEVICE"
)

var (
	ErrEmptyPackage   = errors.New("profile: empty package identifier")
	ErrNotListed      = errors.New("profile: package not listed in any group")
	ErrMissingProfile = errors.New("profile: group has no profile object")
)

// Result is the outcome of one resolution. Group is kept for diagnostics.
type Result struct {
	Matched bool
	Group   string
	Device  Device
}

// Resolver maps a package identifier to a device profile group.
// The zero value uses the default key conventions.
type Resolver struct {
	Prefix string
	Suffix string
}

func NewResolver() Resolver {
	return Resolver{Prefix: DefaultMembershipPrefix, Suffix: DefaultProfileSuffix}
}

func (r Resolver) withDefaults() Resolver {
	if r.Prefix == "" {
		r.Prefix = DefaultMembershipPrefix
	}
	if r.Suffix == "" {
		r.Suffix = DefaultProfileSuffix
	}
	return r
}

// Resolve parses raw and looks up pkg. A nil error means Matched is true;
// every error is a "no match" and carries the reason.
func (r Resolver) Resolve(raw []byte, pkg string) (Result, error) {
	if pkg == "" {
		return Result{}, ErrEmptyPackage
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return Result{}, err
	}
	return r.ResolveDocument(doc, pkg)
}

// ResolveDocument runs the lookup against an already parsed document.
// Membership lists are scanned in document order and the first hit wins.
func (r Resolver) ResolveDocument(doc *Document, pkg string) (Result, error) {
	if pkg == "" {
		return Result{}, ErrEmptyPackage
	}
	if doc == nil {
		return Result{}, ErrEmptyDocument
	}
	r = r.withDefaults()

	group, ok := r.findGroup(doc, pkg)
	if !ok {
		return Result{}, ErrNotListed
	}

	key := r.ProfileKey(group)
	obj, ok := doc.object(key)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingProfile, key)
	}

	var dev Device
	for _, f := range AllFields() {
		if v, ok := obj[string(f)].(string); ok {
			dev.set(f, v)
		}
	}
	return Result{Matched: true, Group: group, Device: dev}, nil
}

// ProfileKey returns the profile object key for group.
func (r Resolver) ProfileKey(group string) string {
	r = r.withDefaults()
	return r.Prefix + group + r.Suffix
}

func (r Resolver) findGroup(doc *Document, pkg string) (string, bool) {
	for _, key := range doc.keys {
		group, ok := strings.CutPrefix(key, r.Prefix)
		if !ok || group == "" {
			continue
		}
		members, ok := doc.stringList(key)
		if !ok {
			continue
		}
		for _, member := range members {
			if member == pkg {
				return group, true
			}
		}
	}
	return "", false
}

// Group summarizes one membership list for inspection tooling.
type Group struct {
	Name       string
	Members    int
	HasProfile bool
}

// Groups lists every membership list in document order.
func (r Resolver) Groups(doc *Document) []Group {
	r = r.withDefaults()
	out := make([]Group, 0)
	for _, key := range doc.keys {
		name, ok := strings.CutPrefix(key, r.Prefix)
		if !ok || name == "" {
			continue
		}
		members, ok := doc.stringList(key)
		if !ok {
			continue
		}
		_, hasProfile := doc.object(r.ProfileKey(name))
		out = append(out, Group{Name: name, Members: len(members), HasProfile: hasProfile})
	}
	return out
}
