package emit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ErrOutsideModule is returned when generated units could not import the
// protocol package from their output directory.
var ErrOutsideModule = errors.New("output directory cannot import module")

// FindModFile returns the path of the nearest go.mod at or above dir. The
// directory itself need not exist yet.
func FindModFile(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, "go.mod")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w: no go.mod at or above %s", ErrOutsideModule, dir)
		}
		abs = parent
	}
}

// CheckOutDir verifies that units written under dir can import modulePath:
// the enclosing go.mod must either be that module or require it. The
// Makefile builds units with "go build ./t<ID>" from dir, so this is the
// module they compile in.
func CheckOutDir(dir, modulePath string) error {
	path, err := FindModFile(dir)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if f.Module != nil && f.Module.Mod.Path == modulePath {
		return nil
	}
	for _, r := range f.Require {
		if r.Mod.Path == modulePath {
			return nil
		}
	}
	return fmt.Errorf("%w %s: %s neither declares nor requires it", ErrOutsideModule, modulePath, path)
}
