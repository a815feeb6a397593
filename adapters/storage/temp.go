// Package storage provides TempStorage implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// Temp keeps short-lived files under a single directory.  Files are named
// tmp<random>.<ext>.
type Temp struct {
	dir         string
	permissions os.FileMode
}

// NewTemp creates a Temp adapter rooted at dir.  An empty dir means
// os.TempDir().
func NewTemp(dir string, perm os.FileMode) (*Temp, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if perm == 0 {
		perm = 0o600
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("temp storage: mkdir %s: %w", dir, err)
	}
	return &Temp{dir: dir, permissions: perm}, nil
}

// Dir returns the directory new files are created in.
func (t *Temp) Dir() string { return t.dir }

func (t *Temp) Create(ctx context.Context, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryIO, "temp.create", err)
	}
	path, err := t.write(t.dir, ext, data)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CategoryIO, "temp.create", err)
	}
	return path, nil
}

// Replace writes data to a sibling file and renames it over path, so readers
// never observe a partial file.
func (t *Temp) Replace(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "temp.replace", err)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	tmp, err := t.write(filepath.Dir(path), ext, data)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "temp.replace", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.Wrap(apperrors.CategoryIO, "temp.replace.rename", err)
	}
	return nil
}

func (t *Temp) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "temp.remove", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryIO, "temp.remove", err)
	}
	return nil
}

func (t *Temp) write(dir, ext string, data []byte) (string, error) {
	pattern := "tmp*"
	if ext != "" {
		pattern += "." + ext
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Chmod(t.permissions); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

var _ core.TempStorage = (*Temp)(nil)
