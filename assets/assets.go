// Package assets serves the static pages of the registry from a directory.
package assets

import (
	"errors"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned for missing files, directories and paths that
// escape the root.
var ErrNotFound = errors.New("assets: file not found")

// DefaultContentType is used when the extension says nothing.
const DefaultContentType = "text/html; charset=utf-8"

// Asset is a file read from the root.
type Asset struct {
	Content     []byte
	ContentType string
}

// Dir reads assets from a file system root.
type Dir struct {
	fsys fs.FS
}

// NewDir returns a Dir rooted at the directory root on disk.
func NewDir(root string) *Dir {
	return &Dir{fsys: os.DirFS(root)}
}

// NewFS returns a Dir reading from fsys.
func NewFS(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys}
}

// Read returns the asset addressed by the URL path p. "/" maps to
// "index.html"; the leading slash is dropped.
func (d *Dir) Read(p string) (Asset, error) {
	name := strings.TrimPrefix(p, "/")
	if name == "" {
		name = "index.html"
	}
	if !fs.ValidPath(name) {
		return Asset{}, ErrNotFound
	}

	info, err := fs.Stat(d.fsys, name)
	if err != nil || info.IsDir() {
		return Asset{}, ErrNotFound
	}
	content, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Asset{}, ErrNotFound
		}
		return Asset{}, err
	}
	return Asset{Content: content, ContentType: contentType(name)}, nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return DefaultContentType
}
