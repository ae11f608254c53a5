package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Permissions for the staging directory and the source file. The directory is
// world-writable because the container user differs from the host user and
// compiled languages write their binaries next to the source.
const (
	DirPermission  = 0o777
	FilePermission = 0o644
)

const namePattern = "runbox-*"

// ErrReleased is returned when a released workspace is used again.
var ErrReleased = errors.New("workspace already released")

// Workspace is an ephemeral directory owning at most one source file.
type Workspace struct {
	fs   FileSystem
	dir  string
	file string

	mu       sync.Mutex
	released bool
}

// Create acquires a fresh, uniquely named directory under root. An empty root
// means the OS temp directory.
func Create(fs FileSystem, root string) (*Workspace, error) {
	if fs == nil {
		fs = RealFileSystem{}
	}
	dir, err := fs.MkdirTemp(root, namePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace dir: %w", err)
	}
	if err := fs.Chmod(dir, DirPermission); err != nil {
		_ = fs.RemoveAll(dir)
		return nil, fmt.Errorf("failed to set workspace permissions: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = fs.RemoveAll(dir)
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	return &Workspace{fs: fs, dir: abs}, nil
}

// Dir returns the absolute host path of the workspace.
func (w *Workspace) Dir() string {
	return w.dir
}

// File returns the name of the file currently held, if any.
func (w *Workspace) File() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file
}

// Write stores content under fileName, replacing any previously written file.
func (w *Workspace) Write(fileName, content string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return ErrReleased
	}
	if fileName == "" || fileName != filepath.Base(fileName) || strings.HasPrefix(fileName, ".") {
		return fmt.Errorf("invalid source file name %q", fileName)
	}

	if w.file != "" && w.file != fileName {
		if err := w.fs.Remove(filepath.Join(w.dir, w.file)); err != nil {
			return fmt.Errorf("failed to remove previous file %s: %w", w.file, err)
		}
		w.file = ""
	}

	path := filepath.Join(w.dir, fileName)
	if err := w.fs.WriteFile(path, []byte(content), FilePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", fileName, err)
	}
	w.file = fileName
	return nil
}

// Release removes the directory and everything in it. It is safe to call
// more than once; only the first call touches the file system.
func (w *Workspace) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return nil
	}
	w.released = true
	w.file = ""
	if err := w.fs.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.dir, err)
	}
	return nil
}
