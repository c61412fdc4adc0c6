package datastore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
	"github.com/AlanZ-Git/HealthDatabase/internal/observability/metrics"
	"github.com/AlanZ-Git/HealthDatabase/internal/securefs"
)

// AddAttachment copies sourcePath into the entity's attachment directory and
// links it to the record. The source file is left untouched. It fails with
// ErrRecordNotFound or ErrSourceMissing without changing anything.
func (s *RecordStore) AddAttachment(ctx context.Context, recordID int64, sourcePath string) (att Attachment, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpAttachmentAdd, start, err) }()

	err = s.withDB(ctx, metrics.OpAttachmentAdd, func(db *gorm.DB) error {
		return s.withFS(func(sfs *securefs.SecureFS) error {
			var err error
			att, err = s.addAttachment(ctx, db, sfs, recordID, sourcePath)
			return err
		})
	})
	return att, err
}

// AddAttachments adds several files to a record on one handle. Missing
// sources are skipped with a warning; other failures are skipped as well and
// returned joined together with the attachments that were added.
func (s *RecordStore) AddAttachments(ctx context.Context, recordID int64, sourcePaths []string) (added []Attachment, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpAttachmentAdd, start, err) }()

	err = s.withDB(ctx, metrics.OpAttachmentAdd, func(db *gorm.DB) error {
		exists, err := recordExists(db, recordID)
		if err != nil {
			return err
		}
		if !exists {
			return notFoundError(ErrRecordNotFound, "record", recordID)
		}
		return s.withFS(func(sfs *securefs.SecureFS) error {
			var errs []error
			added, errs = s.ingestAttachments(ctx, db, sfs, recordID, sourcePaths, false)
			return errors.Join(errs...)
		})
	})
	return added, err
}

// ingestAttachments adds each source in order. Missing sources are always
// skipped with a warning. Other failures are collected, or only logged when
// lenient is set.
func (s *RecordStore) ingestAttachments(ctx context.Context, db *gorm.DB, sfs *securefs.SecureFS, recordID int64, sourcePaths []string, lenient bool) ([]Attachment, []error) {
	added := make([]Attachment, 0, len(sourcePaths))
	var errs []error
	for _, src := range sourcePaths {
		att, err := s.addAttachment(ctx, db, sfs, recordID, src)
		switch {
		case err == nil:
			added = append(added, att)
		case errors.Is(err, ErrSourceMissing):
			s.entityLogger(ctx).Warn("attachment source missing, skipped",
				logger.Int64("record_id", recordID),
				logger.String("source", src))
		case lenient:
			s.entityLogger(ctx).Warn("attachment could not be added, skipped",
				logger.Int64("record_id", recordID),
				logger.String("source", src),
				logger.Error(err))
		default:
			errs = append(errs, err)
		}
	}
	return added, errs
}

// addAttachment inserts the row, copies the file under the name derived from
// the row's identity and stores the path, all in one transaction. The copy
// is removed again if the transaction does not commit.
func (s *RecordStore) addAttachment(ctx context.Context, db *gorm.DB, sfs *securefs.SecureFS, recordID int64, sourcePath string) (Attachment, error) {
	if err := checkSource(sourcePath); err != nil {
		return Attachment{}, err
	}

	var att Attachment
	var copied string
	err := db.Transaction(func(tx *gorm.DB) error {
		exists, err := recordExists(tx, recordID)
		if err != nil {
			return err
		}
		if !exists {
			return notFoundError(ErrRecordNotFound, "record", recordID)
		}

		row := AttachmentRecord{VisitRecordID: recordID}
		if err := tx.Create(&row).Error; err != nil {
			return dbError(err, "add_attachment", "record_id", recordID)
		}

		dest := filepath.Join(s.attachmentDir(), ComputeAttachmentFilename(recordID, row.ID, sourcePath))
		if err := s.copyIn(sfs, sourcePath, dest); err != nil {
			return err
		}
		copied = dest

		if err := tx.Model(&AttachmentRecord{}).Where("id = ?", row.ID).Update("file_path", dest).Error; err != nil {
			return dbError(err, "add_attachment", "attachment_id", row.ID)
		}

		att = Attachment{ID: row.ID, RecordID: recordID, Path: dest}
		return nil
	})
	if err != nil {
		if copied != "" {
			s.removeFile(ctx, sfs, copied)
		}
		return Attachment{}, err
	}

	s.entityLogger(ctx).Debug("attachment added",
		logger.Int64("record_id", recordID),
		logger.Int64("attachment_id", att.ID),
		logger.String("path", att.Path))
	return att, nil
}

// ListAttachments returns the attachments of a record ordered by identity.
// An unknown entity or record has no attachments.
func (s *RecordStore) ListAttachments(ctx context.Context, recordID int64) (infos []AttachmentInfo, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpAttachmentList, start, err) }()

	return s.listAttachments(ctx, recordID)
}

func (s *RecordStore) listAttachments(ctx context.Context, recordID int64) ([]AttachmentInfo, error) {
	infos := []AttachmentInfo{}
	if !s.Exists() {
		return infos, nil
	}

	err := s.withDB(ctx, metrics.OpAttachmentList, func(db *gorm.DB) error {
		var rows []AttachmentRecord
		if err := db.Where("visit_record_id = ?", recordID).Order("id").Find(&rows).Error; err != nil {
			return dbError(err, "list_attachments", "record_id", recordID)
		}
		for i := range rows {
			infos = append(infos, rows[i].info())
		}
		return nil
	})
	return infos, err
}

func (a *AttachmentRecord) info() AttachmentInfo {
	return AttachmentInfo{
		ID:          a.ID,
		RecordID:    a.VisitRecordID,
		Path:        a.FilePath,
		DisplayName: displayName(a.FilePath, a.VisitRecordID, a.ID),
	}
}

// DeleteAttachment removes an attachment row and then its file. A file that
// is already gone is not an error.
func (s *RecordStore) DeleteAttachment(ctx context.Context, attachmentID int64) (err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpAttachmentDelete, start, err) }()

	var path string
	err = s.withDB(ctx, metrics.OpAttachmentDelete, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			row, err := findAttachment(tx, attachmentID)
			if err != nil {
				return err
			}
			if err := tx.Delete(&AttachmentRecord{}, row.ID).Error; err != nil {
				return dbError(err, "delete_attachment", "attachment_id", attachmentID)
			}
			path = row.FilePath
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, []string{path})
	return nil
}

// ReplaceAttachment swaps the file of an existing attachment for a copy of
// newSourcePath. The stored name is recomputed from the same identities and
// the new base name. The old file is removed once the row points at the new
// one. A missing source fails before anything is changed.
func (s *RecordStore) ReplaceAttachment(ctx context.Context, attachmentID int64, newSourcePath string) (att Attachment, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpAttachmentReplace, start, err) }()

	if err := checkSource(newSourcePath); err != nil {
		return Attachment{}, err
	}

	err = s.withDB(ctx, metrics.OpAttachmentReplace, func(db *gorm.DB) error {
		return s.withFS(func(sfs *securefs.SecureFS) error {
			row, err := findAttachment(db, attachmentID)
			if err != nil {
				return err
			}

			dest := filepath.Join(s.attachmentDir(), ComputeAttachmentFilename(row.VisitRecordID, row.ID, newSourcePath))
			if err := s.copyIn(sfs, newSourcePath, dest); err != nil {
				return err
			}

			if err := db.Model(&AttachmentRecord{}).Where("id = ?", row.ID).Update("file_path", dest).Error; err != nil {
				if !samePath(dest, row.FilePath) {
					s.removeFile(ctx, sfs, dest)
				}
				return dbError(err, "replace_attachment", "attachment_id", attachmentID)
			}

			renamed := row.FilePath != "" && !samePath(dest, row.FilePath)
			if renamed {
				s.removeFile(ctx, sfs, row.FilePath)
			}

			att = Attachment{ID: row.ID, RecordID: row.VisitRecordID, Path: dest}
			s.entityLogger(ctx).Debug("attachment replaced",
				logger.Int64("attachment_id", row.ID),
				logger.String("path", dest),
				logger.Bool("renamed", renamed))
			return nil
		})
	})
	return att, err
}

// checkSource fails with ErrSourceMissing unless path is an existing regular file
func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return validationError(ErrSourceMissing, "source_path", path)
	}
	return nil
}

func recordExists(db *gorm.DB, recordID int64) (bool, error) {
	var count int64
	if err := db.Model(&VisitRecord{}).Where("id = ?", recordID).Count(&count).Error; err != nil {
		return false, dbError(err, "record_exists", "record_id", recordID)
	}
	return count > 0, nil
}

func findAttachment(db *gorm.DB, attachmentID int64) (AttachmentRecord, error) {
	var row AttachmentRecord
	if err := db.Take(&row, attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, notFoundError(ErrAttachmentNotFound, "attachment", attachmentID)
		}
		return row, dbError(err, "find_attachment", "attachment_id", attachmentID)
	}
	return row, nil
}

// copyIn copies a source file into the sandbox and records the outcome
func (s *RecordStore) copyIn(sfs *securefs.SecureFS, src, dest string) error {
	n, err := sfs.CopyIn(src, dest)
	if err != nil {
		s.opts.metrics.RecordFileOperation(metrics.FileCopy, metrics.StatusError)
		return fileError(fmt.Errorf("failed to copy attachment: %w", err), "copy_attachment", src)
	}
	s.opts.metrics.RecordFileOperation(metrics.FileCopy, metrics.StatusSuccess)
	s.opts.metrics.RecordCopiedBytes(n)
	return nil
}

// removeFiles deletes attachment files best-effort in a fresh sandbox
func (s *RecordStore) removeFiles(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	err := s.withFS(func(sfs *securefs.SecureFS) error {
		for _, path := range paths {
			s.removeFile(ctx, sfs, path)
		}
		return nil
	})
	if err != nil {
		s.entityLogger(ctx).Warn("attachment files not removed",
			logger.Int("files", len(paths)),
			logger.Error(err))
	}
}

// removeFile deletes one attachment file. A missing file is logged at
// debug; a path outside the attachment directory is never touched.
func (s *RecordStore) removeFile(ctx context.Context, sfs *securefs.SecureFS, path string) {
	if path == "" {
		return
	}
	log := s.entityLogger(ctx).With(logger.String("path", path))

	err := sfs.Remove(path)
	switch {
	case err == nil:
		s.opts.metrics.RecordFileOperation(metrics.FileRemove, metrics.StatusSuccess)
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("attachment file already missing")
	case errors.Is(err, securefs.ErrPathTraversal):
		log.Warn("attachment path outside attachment directory, file left in place")
	default:
		s.opts.metrics.RecordFileOperation(metrics.FileRemove, metrics.StatusError)
		log.Warn("failed to remove attachment file", logger.Error(err))
	}
}

// samePath reports whether two stored paths name the same file
func samePath(a, b string) bool {
	return absPath(a) == absPath(b)
}
