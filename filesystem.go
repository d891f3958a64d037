package ledgrator

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Filesystem is the read-only view of the migration tree.
type Filesystem interface {
	Exists(dir string) bool
	// List returns the names of the regular files in dir.
	List(dir string) ([]string, error)
	ReadFile(name string) (string, error)
}

// OSFilesystem reads from the local disk.
type OSFilesystem struct{}

func (OSFilesystem) Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func (OSFilesystem) List(dir string) ([]string, error) {
	return listDir(os.ReadDir(dir))
}

func (OSFilesystem) ReadFile(name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FSFilesystem reads from an fs.FS such as an embed.FS. Paths are cleaned to
// slash form relative to the FS root.
type FSFilesystem struct {
	FS fs.FS
}

func (f FSFilesystem) Exists(dir string) bool {
	info, err := fs.Stat(f.FS, fsPath(dir))
	return err == nil && info.IsDir()
}

func (f FSFilesystem) List(dir string) ([]string, error) {
	return listDir(fs.ReadDir(f.FS, fsPath(dir)))
}

func (f FSFilesystem) ReadFile(name string) (string, error) {
	data, err := fs.ReadFile(f.FS, fsPath(name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fsPath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

func listDir(entries []fs.DirEntry, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
