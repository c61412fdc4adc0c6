package datastore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
	"github.com/AlanZ-Git/HealthDatabase/internal/observability/metrics"
	"github.com/AlanZ-Git/HealthDatabase/internal/securefs"
)

// MaxEntityNameLength is the longest accepted entity name, in characters
const MaxEntityNameLength = 100

// reservedNameChars cannot appear in an entity name because the name is
// used verbatim as a file and directory name on every supported platform.
const reservedNameChars = `<>:"/\|?*`

// sqliteSidecars are the files SQLite may leave next to a database file
var sqliteSidecars = []string{"-journal", "-wal", "-shm"}

// Registry enumerates entities and creates or destroys their storage.
// Each entity is one SQLite file in the data directory.
type Registry struct {
	dataDir     string
	appendixDir string
	opts        options
}

// NewRegistry creates a registry over dataDir with attachments kept under
// appendixDir. Neither directory has to exist yet. Relative directories are
// resolved against the current working directory once, here, so stored
// attachment paths stay valid after the process changes directory.
func NewRegistry(dataDir, appendixDir string, opts ...Option) *Registry {
	return &Registry{
		dataDir:     absPath(dataDir),
		appendixDir: absPath(appendixDir),
		opts:        newOptions(opts),
	}
}

// List returns the names of all entities, sorted. A missing data directory
// yields an empty list.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.New(fmt.Errorf("failed to read data directory: %w", err)).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("data_dir", r.dataDir).
			Build()
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), storageExt)
		if !ok || name == "" {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Exists reports whether the named entity has a storage file
func (r *Registry) Exists(name string) bool {
	name = canonicalEntityName(name)
	if !validEntityName(name) {
		return false
	}
	info, err := os.Stat(r.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Path returns the storage file path of the named entity
func (r *Registry) Path(name string) string {
	return filepath.Join(r.dataDir, canonicalEntityName(name)+storageExt)
}

// AttachmentDir returns the directory holding the entity's attachment files
func (r *Registry) AttachmentDir(name string) string {
	return filepath.Join(r.appendixDir, canonicalEntityName(name))
}

// Create allocates a storage file for a new entity and initializes its schema.
// It fails with ErrEntityExists when the name is already taken.
func (r *Registry) Create(name string) (err error) {
	start := time.Now()
	defer func() { r.observe(metrics.OpEntityCreate, start, err) }()

	name, err = normalizeEntityName(name)
	if err != nil {
		return err
	}

	existing, err := r.List()
	if err != nil {
		return err
	}
	if slices.Contains(existing, name) {
		return conflictError(ErrEntityExists, "create_entity", "entity", name)
	}

	if err := os.MkdirAll(r.dataDir, securefs.DirPermissions); err != nil {
		return errors.New(fmt.Errorf("failed to create data directory: %w", err)).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("data_dir", r.dataDir).
			Build()
	}

	path := r.Path(name)

	// O_EXCL catches names that differ from an existing file only in a way
	// the filesystem ignores, such as letter case on Windows and macOS.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, securefs.FilePermissions)
	if err != nil {
		if os.IsExist(err) {
			return conflictError(ErrEntityExists, "create_entity", "entity", name)
		}
		return fileError(fmt.Errorf("failed to create storage file: %w", err), "create_entity", path)
	}
	if err := f.Close(); err != nil {
		return fileError(fmt.Errorf("failed to create storage file: %w", err), "create_entity", path)
	}

	if err := r.initSchema(path); err != nil {
		r.removeStorage(path)
		return dbError(err, "create_entity", "entity", name)
	}

	r.opts.log.Info("entity created",
		logger.String("entity", name),
		logger.String("path", path))
	return nil
}

func (r *Registry) initSchema(path string) error {
	db, err := openSQLite(path, r.opts.log, r.opts.slowThreshold, r.opts.now)
	if err != nil {
		return err
	}
	migrateErr := performAutoMigration(context.Background(), db)
	closeErr := closeSQLite(db)
	if migrateErr != nil {
		return migrateErr
	}
	return closeErr
}

// Destroy removes the named entity's storage file together with its records
// and attachment rows. Attachment files stay on disk; use PurgeAttachments
// to remove them.
func (r *Registry) Destroy(name string) (err error) {
	start := time.Now()
	defer func() { r.observe(metrics.OpEntityDestroy, start, err) }()

	name = canonicalEntityName(name)
	if !validEntityName(name) || !r.Exists(name) {
		return notFoundError(ErrEntityNotFound, "entity", name)
	}

	path := r.Path(name)
	if err := os.Remove(path); err != nil {
		return fileError(fmt.Errorf("failed to remove storage file: %w", err), "destroy_entity", path)
	}
	r.removeSidecars(path)

	r.opts.log.Info("entity destroyed",
		logger.String("entity", name),
		logger.String("attachment_dir", r.AttachmentDir(name)))
	return nil
}

// PurgeAttachments removes the entity's attachment directory and returns the
// number of files it held. It works whether or not the entity still exists,
// so it can clean up after Destroy.
func (r *Registry) PurgeAttachments(name string) (removed int, err error) {
	start := time.Now()
	defer func() { r.observe(metrics.OpEntityPurge, start, err) }()

	name, err = normalizeEntityName(name)
	if err != nil {
		return 0, err
	}

	sfs, err := securefs.New(r.appendixDir)
	if err != nil {
		return 0, err
	}
	defer sfs.Close()

	dir := r.AttachmentDir(name)
	entries, err := sfs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fileError(err, "purge_attachments", dir)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			removed++
		}
	}

	if err := sfs.RemoveAll(dir); err != nil {
		return 0, fileError(err, "purge_attachments", dir)
	}

	r.opts.log.Info("entity attachments purged",
		logger.String("entity", name),
		logger.Int("files", removed))
	return removed, nil
}

// Store returns a RecordStore bound to the named entity. The entity does not
// have to exist; see RecordStore for how unknown entities behave.
func (r *Registry) Store(name string) *RecordStore {
	return &RecordStore{
		entity:   canonicalEntityName(name),
		registry: r,
		opts:     r.opts,
	}
}

func (r *Registry) removeStorage(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.opts.log.Warn("failed to remove storage file",
			logger.String("path", path),
			logger.Error(err))
	}
	r.removeSidecars(path)
}

func (r *Registry) removeSidecars(path string) {
	for _, suffix := range sqliteSidecars {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			r.opts.log.Warn("failed to remove storage sidecar file",
				logger.String("path", path+suffix),
				logger.Error(err))
		}
	}
}

func (r *Registry) observe(operation string, start time.Time, err error) {
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	r.opts.metrics.RecordOperation(operation, status, time.Since(start).Seconds())
}

// canonicalEntityName is the form an entity name takes on disk: trimmed and
// NFC-normalized. Every lookup goes through it so that a name accepted by
// Create reaches the same files everywhere else.
func canonicalEntityName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// normalizeEntityName canonicalizes name and validates the result
func normalizeEntityName(name string) (string, error) {
	name = canonicalEntityName(name)
	if !validEntityName(name) {
		return "", validationError(ErrInvalidEntityName, "entity", name)
	}
	return name, nil
}

func validEntityName(name string) bool {
	switch {
	case name == "", name == ".", name == "..":
		return false
	case utf8.RuneCountInString(name) > MaxEntityNameLength:
		return false
	case strings.ContainsAny(name, reservedNameChars), strings.ContainsRune(name, 0):
		return false
	case strings.TrimSpace(name) != name:
		return false
	}
	return true
}
