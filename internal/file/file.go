// Licensed under the MIT License.

// Package file provides small helpers for file manipulation.
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
)

// Read returns the contents of the file as a string.
func Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file (%s):\n%w", path, err)
	}
	return string(content), nil
}

// Write writes the string to the file, creating parent directories as needed.
func Write(content string, path string) error {
	err := os.MkdirAll(filepath.Dir(path), os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create directory for (%s):\n%w", path, err)
	}

	err = os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write file (%s):\n%w", path, err)
	}
	return nil
}

// Copy copies a single file, creating parent directories of the destination
// as needed. The destination permissions mirror the source.
func Copy(src string, dst string) error {
	return NewFileCopyBuilder(src, dst).Run()
}

// Exists reports whether the path exists.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetAbsPathWithBase resolves a possibly relative path against a base
// directory.
func GetAbsPathWithBase(base string, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// FileCopyBuilder configures a single file copy.
type FileCopyBuilder struct {
	Src            string
	Dst            string
	DirFileMode    os.FileMode
	ChangeFileMode bool
	FileMode       os.FileMode
}

func NewFileCopyBuilder(src string, dst string) FileCopyBuilder {
	return FileCopyBuilder{
		Src:         src,
		Dst:         dst,
		DirFileMode: os.ModePerm,
	}
}

func (b FileCopyBuilder) SetFileMode(fileMode os.FileMode) FileCopyBuilder {
	b.ChangeFileMode = true
	b.FileMode = fileMode
	return b
}

func (b FileCopyBuilder) Run() (err error) {
	logger.Log.Debugf("Copying (%s) to (%s)", b.Src, b.Dst)

	srcFile, err := os.Open(b.Src)
	if err != nil {
		return fmt.Errorf("failed to open source file (%s):\n%w", b.Src, err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file (%s):\n%w", b.Src, err)
	}

	mode := srcInfo.Mode().Perm()
	if b.ChangeFileMode {
		mode = b.FileMode
	}

	err = os.MkdirAll(filepath.Dir(b.Dst), b.DirFileMode)
	if err != nil {
		return fmt.Errorf("failed to create destination directory for (%s):\n%w", b.Dst, err)
	}

	dstFile, err := os.OpenFile(b.Dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create destination file (%s):\n%w", b.Dst, err)
	}
	defer func() {
		closeErr := dstFile.Close()
		if err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(dstFile, srcFile)
	if err != nil {
		return fmt.Errorf("failed to copy (%s) to (%s):\n%w", b.Src, b.Dst, err)
	}

	return nil
}
