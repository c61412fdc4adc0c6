package securefs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

const (
	// DirPermissions is used for directories created inside the sandbox
	DirPermissions = 0o750
	// FilePermissions is used for files copied into the sandbox
	FilePermissions = 0o640

	tempPrefix = ".tmp-"
)

// GetLogger returns the securefs package logger scoped to the securefs module.
// Fetched on each call so it follows the current central logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// SecureFS provides filesystem operations restricted to one base directory
// using os.Root. Paths given to its methods may be absolute or relative to
// the working directory; they must resolve inside the base directory.
type SecureFS struct {
	baseDir string     // absolute base directory all operations are restricted to
	root    *os.Root   // sandboxed filesystem root
	cache   *PathCache // memoized resolution and validation results
}

// New creates a secure filesystem rooted at baseDir, creating it if needed.
func New(baseDir string) (*SecureFS, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, DirPermissions); err != nil {
		return nil, errors.New(fmt.Errorf("failed to create base directory: %w", err)).
			Component("securefs").
			Category(errors.CategoryFileIO).
			Context("base_dir", absPath).
			Build()
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem sandbox: %w", err)
	}

	return &SecureFS{
		baseDir: absPath,
		root:    root,
		cache:   NewPathCache(),
	}, nil
}

// IsPathWithinBase checks if targetPath is within or equal to basePath
func IsPathWithinBase(basePath, targetPath string) (bool, error) {
	return IsPathWithinBaseWithCache(nil, basePath, targetPath)
}

func resolveAbsPath(cache *PathCache, path string) (string, error) {
	if cache != nil {
		return cache.GetAbsPath(path, filepath.Abs)
	}
	return filepath.Abs(path)
}

// isPathPrefix checks if target is within or equal to base
func isPathPrefix(absBase, absTarget string) bool {
	return strings.HasPrefix(absTarget, absBase+string(filepath.Separator)) || absTarget == absBase
}

// IsPathWithinBaseWithCache checks if targetPath is within or equal to basePath.
// The check is lexical; os.Root enforces the boundary for symlinks.
func IsPathWithinBaseWithCache(cache *PathCache, basePath, targetPath string) (bool, error) {
	absBase, err := resolveAbsPath(cache, basePath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve base path: %w", err)
	}

	absTarget, err := resolveAbsPath(cache, targetPath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve target path: %w", err)
	}

	return isPathPrefix(filepath.Clean(absBase), filepath.Clean(absTarget)), nil
}

// RelativePath converts a path to one relative to the base directory,
// rejecting paths outside it.
func (sfs *SecureFS) RelativePath(path string) (string, error) {
	path = filepath.Clean(path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	cacheKey := sfs.baseDir + "|" + absPath
	isWithin, err := sfs.cache.GetWithinBase(cacheKey, func() (bool, error) {
		return IsPathWithinBaseWithCache(sfs.cache, sfs.baseDir, absPath)
	})
	if err != nil {
		return "", fmt.Errorf("path validation error: %w", err)
	}

	if !isWithin {
		return "", fmt.Errorf("%w: path %s is outside allowed directory %s", ErrPathTraversal, path, sfs.baseDir)
	}

	relPath, err := filepath.Rel(sfs.baseDir, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to make path relative: %w", err)
	}

	return strings.TrimPrefix(relPath, string(filepath.Separator)), nil
}

// ValidateRelativePath validates a path assumed to be relative to the base directory
// and returns its cleaned form.
func (sfs *SecureFS) ValidateRelativePath(relPath string) (string, error) {
	return sfs.cache.GetValidatePath(relPath, func(path string) (string, error) {
		cleanedPath := filepath.Clean(path)

		if filepath.IsAbs(cleanedPath) {
			return "", fmt.Errorf("%w: path must be relative, but got '%s'", ErrInvalidPath, path)
		}

		if strings.HasPrefix(cleanedPath, ".."+string(filepath.Separator)) || cleanedPath == ".." {
			return "", fmt.Errorf("%w: '%s' (cleaned from '%s')", ErrPathTraversal, cleanedPath, path)
		}

		return cleanedPath, nil
	})
}

// Join returns the absolute path of a sandbox-relative path after validating it
func (sfs *SecureFS) Join(relPath string) (string, error) {
	cleaned, err := sfs.ValidateRelativePath(relPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(sfs.baseDir, cleaned), nil
}

// MkdirAll creates a directory and all necessary parents inside the sandbox
func (sfs *SecureFS) MkdirAll(path string, perm os.FileMode) error {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return err
	}
	return sfs.mkdirAllRelative(relPath, perm)
}

func (sfs *SecureFS) mkdirAllRelative(relPath string, perm os.FileMode) error {
	if relPath == "" || relPath == "." {
		return nil
	}

	currentPath := ""
	for component := range strings.SplitSeq(relPath, string(filepath.Separator)) {
		if component == "" {
			continue
		}
		currentPath = filepath.Join(currentPath, component)
		if err := sfs.root.Mkdir(currentPath, perm); err != nil && !os.IsExist(err) {
			return fmt.Errorf("failed to create directory component %s: %w", currentPath, err)
		}
	}

	return nil
}

// removeAllRelative removes a path using an already-validated relative path
func (sfs *SecureFS) removeAllRelative(relPath string) error {
	info, err := sfs.root.Lstat(relPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return sfs.root.Remove(relPath)
	}

	dir, err := sfs.root.Open(relPath)
	if err != nil {
		return err
	}
	entries, err := dir.ReadDir(0)
	if closeErr := dir.Close(); closeErr != nil {
		GetLogger().Warn("failed to close directory",
			logger.String("path", relPath),
			logger.Error(closeErr))
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := sfs.removeAllRelative(filepath.Join(relPath, entry.Name())); err != nil {
			return err
		}
	}

	return sfs.root.Remove(relPath)
}

// RemoveAll removes a directory and all its contents inside the sandbox.
// Removing the sandbox root itself is refused.
func (sfs *SecureFS) RemoveAll(path string) error {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return err
	}
	if relPath == "" || relPath == "." {
		return fmt.Errorf("%w: refusing to remove sandbox root", ErrInvalidPath)
	}
	defer sfs.cache.Invalidate()
	return sfs.removeAllRelative(relPath)
}

// Remove removes a file inside the sandbox
func (sfs *SecureFS) Remove(path string) error {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return err
	}
	return sfs.root.Remove(relPath)
}

// Rename renames oldpath to newpath within the sandbox
func (sfs *SecureFS) Rename(oldpath, newpath string) error {
	oldRelPath, err := sfs.RelativePath(oldpath)
	if err != nil {
		return err
	}

	newRelPath, err := sfs.RelativePath(newpath)
	if err != nil {
		return err
	}

	return sfs.root.Rename(oldRelPath, newRelPath)
}

// OpenFile opens a file inside the sandbox
func (sfs *SecureFS) OpenFile(path string, flag int, perm os.FileMode) (*os.File, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	return sfs.root.OpenFile(relPath, flag, perm)
}

// Open opens a file inside the sandbox for reading
func (sfs *SecureFS) Open(path string) (*os.File, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	return sfs.root.Open(relPath)
}

// Stat returns file info for a path inside the sandbox
func (sfs *SecureFS) Stat(path string) (fs.FileInfo, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	return sfs.root.Stat(relPath)
}

// Exists reports whether path exists inside the sandbox
func (sfs *SecureFS) Exists(path string) (bool, error) {
	_, err := sfs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadDir lists a directory inside the sandbox. A missing directory yields
// fs.ErrNotExist.
func (sfs *SecureFS) ReadDir(path string) ([]os.DirEntry, error) {
	relPath, err := sfs.RelativePath(path)
	if err != nil {
		return nil, err
	}
	if relPath == "" {
		relPath = "."
	}

	dirFile, err := sfs.root.Open(relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}
	defer func() {
		if err := dirFile.Close(); err != nil {
			GetLogger().Warn("failed to close directory", logger.Error(err))
		}
	}()

	entries, err := dirFile.ReadDir(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory entries: %w", err)
	}

	return entries, nil
}

// CopyIn copies the regular file at srcPath, which may live anywhere, to
// destPath inside the sandbox. The data is written to a uniquely named
// temporary file in the destination directory and renamed into place, so
// destPath never holds a partial copy. Missing parent directories are created.
// The source is never modified.
func (sfs *SecureFS) CopyIn(srcPath, destPath string) (written int64, err error) {
	destRel, err := sfs.RelativePath(destPath)
	if err != nil {
		return 0, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s", ErrNotRegularFile, srcPath)
	}

	destDir := filepath.Dir(destRel)
	if err := sfs.mkdirAllRelative(destDir, DirPermissions); err != nil {
		return 0, err
	}

	tempRel := filepath.Join(destDir, tempPrefix+uuid.NewString())
	tmp, err := sfs.root.OpenFile(tempRel, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FilePermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			if rmErr := sfs.root.Remove(tempRel); rmErr != nil && !os.IsNotExist(rmErr) {
				GetLogger().Warn("failed to remove temporary file",
					logger.String("path", tempRel),
					logger.Error(rmErr))
			}
		}
	}()

	written, err = io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return 0, errors.FileError(fmt.Errorf("failed to copy %s: %w", filepath.Base(srcPath), err), srcPath, info.Size())
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err = sfs.root.Rename(tempRel, destRel); err != nil {
		return 0, fmt.Errorf("failed to move copy into place: %w", err)
	}

	return written, nil
}

// BaseDir returns the absolute base directory path
func (sfs *SecureFS) BaseDir() string {
	return sfs.baseDir
}

// GetCacheStats returns statistics about cache usage
func (sfs *SecureFS) GetCacheStats() CacheStats {
	return sfs.cache.GetCacheStats()
}

// Close closes the underlying Root
func (sfs *SecureFS) Close() error {
	if sfs.root != nil {
		return sfs.root.Close()
	}
	return nil
}
