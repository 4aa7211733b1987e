// Package fileops implements the file mutations an installation applies to a
// project tree: copying plugin files in, and deleting them again while pruning
// directories that the deletion left empty.
//
// Every operation works on a go-billy filesystem rooted at the caller's root,
// so relative paths can never escape it.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

var (
	// ErrSourceNotFound reports a declared source path that does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrTargetAlreadyExists reports a destination that is already populated.
	ErrTargetAlreadyExists = errors.New("target already exists")
)

// CopyFile copies srcRoot/relSrc to destRoot/relDest, creating intermediate
// directories. It never overwrites: an existing destination fails with
// ErrTargetAlreadyExists. Errors carry the absolute offending path.
func CopyFile(srcRoot, relSrc, destRoot, relDest string) error {
	src := osfs.New(srcRoot)
	dst := osfs.New(destRoot)

	info, err := statSource(src, srcRoot, relSrc)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("source %s is a directory", filepath.Join(srcRoot, relSrc))
	}

	if err := checkTarget(dst, destRoot, relDest); err != nil {
		return err
	}

	return copyOne(src, relSrc, dst, relDest, info.Mode().Perm())
}

// CopyTree behaves like CopyFile but also accepts a directory source, which is
// copied recursively. The collision check applies to the destination root only.
func CopyTree(srcRoot, relSrc, destRoot, relDest string) error {
	src := osfs.New(srcRoot)
	dst := osfs.New(destRoot)

	info, err := statSource(src, srcRoot, relSrc)
	if err != nil {
		return err
	}

	if err := checkTarget(dst, destRoot, relDest); err != nil {
		return err
	}

	if !info.IsDir() {
		return copyOne(src, relSrc, dst, relDest, info.Mode().Perm())
	}
	return copyDir(src, relSrc, dst, relDest)
}

// DeleteAndPrune removes destRoot/relDest if present, then walks upward
// removing each parent directory that is now empty. The walk stops at the
// first non-empty directory, at boundary (relative to destRoot, "" meaning
// destRoot) or at destRoot itself, which is never removed.
func DeleteAndPrune(destRoot, relDest, boundary string) error {
	fsys := osfs.New(destRoot)
	rel := filepath.Clean(relDest)

	if err := fsys.Remove(rel); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Join(destRoot, rel), err)
	}

	stop := filepath.Clean(boundary)
	for dir := filepath.Dir(rel); insideRoot(dir) && dir != stop; dir = filepath.Dir(dir) {
		entries, err := fsys.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filepath.Join(destRoot, dir), err)
		}
		if len(entries) > 0 {
			break
		}
		if err := fsys.Remove(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", filepath.Join(destRoot, dir), err)
		}
	}

	return nil
}

// RemoveAll removes root/rel and everything below it. A missing path is not
// an error.
func RemoveAll(root, rel string) error {
	fsys := osfs.New(root)
	if _, err := fsys.Lstat(rel); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := util.RemoveAll(fsys, rel); err != nil {
		return fmt.Errorf("failed to remove %s: %w", filepath.Join(root, rel), err)
	}
	return nil
}

// Exists reports whether root/rel exists.
func Exists(root, rel string) (bool, error) {
	_, err := osfs.New(root).Lstat(rel)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func statSource(src billy.Filesystem, root, rel string) (os.FileInfo, error) {
	info, err := src.Stat(rel)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &fs.PathError{Op: "copy", Path: filepath.Join(root, rel), Err: ErrSourceNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	return info, nil
}

func checkTarget(dst billy.Filesystem, root, rel string) error {
	_, err := dst.Lstat(rel)
	if err == nil {
		return &fs.PathError{Op: "copy", Path: filepath.Join(root, rel), Err: ErrTargetAlreadyExists}
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat target: %w", err)
	}
	return nil
}

func copyOne(src billy.Filesystem, relSrc string, dst billy.Filesystem, relDest string, perm os.FileMode) error {
	if err := dst.MkdirAll(filepath.Dir(relDest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := src.Open(relSrc)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := dst.OpenFile(relDest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create target: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", relSrc, err)
	}

	return out.Close()
}

func copyDir(src billy.Filesystem, relSrc string, dst billy.Filesystem, relDest string) error {
	if err := dst.MkdirAll(relDest, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	entries, err := src.ReadDir(relSrc)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, entry := range entries {
		from := filepath.Join(relSrc, entry.Name())
		to := filepath.Join(relDest, entry.Name())
		if entry.IsDir() {
			if err := copyDir(src, from, dst, to); err != nil {
				return err
			}
			continue
		}
		if err := copyOne(src, from, dst, to, entry.Mode().Perm()); err != nil {
			return err
		}
	}

	return nil
}

// insideRoot reports whether a cleaned relative directory lies strictly
// below the filesystem root.
func insideRoot(dir string) bool {
	return dir != "." && dir != string(filepath.Separator) && dir != ".." &&
		!filepath.IsAbs(dir) && !hasParentPrefix(dir)
}

func hasParentPrefix(dir string) bool {
	return len(dir) >= 3 && dir[:3] == ".."+string(filepath.Separator)
}
