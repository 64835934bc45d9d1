package profile

import (
	"errors"
	"strings"
)

var ErrInvalidDataDir = errors.New("profile: invalid app data directory")

// PackageFromDataDir extracts the package identifier from an app data
// directory such as /data/user/0/com.example.app:helper. The final path
// segment is used and any ":component" suffix is dropped.
func PackageFromDataDir(dir string) (string, error) {
	idx := strings.LastIndexByte(dir, '/')
	if idx < 0 || idx+1 >= len(dir) {
		return "", ErrInvalidDataDir
	}
	pkg := dir[idx+1:]
	if cut, _, found := strings.Cut(pkg, ":"); found {
		pkg = cut
	}
	if pkg == "" {
		return "", ErrInvalidDataDir
	}
	return pkg, nil
}
