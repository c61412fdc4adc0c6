package datastore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
	"github.com/AlanZ-Git/HealthDatabase/internal/observability/metrics"
	"github.com/AlanZ-Git/HealthDatabase/internal/securefs"
)

// VerifyAttachments reports, for each attachment of a record, whether its
// stored file is missing. An unknown entity or record has no attachments.
func (s *RecordStore) VerifyAttachments(ctx context.Context, recordID int64) (statuses []AttachmentStatus, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpAttachmentVerify, start, err) }()

	infos, err := s.listAttachments(ctx, recordID)
	if err != nil {
		return nil, err
	}

	statuses = make([]AttachmentStatus, 0, len(infos))
	for _, info := range infos {
		statuses = append(statuses, AttachmentStatus{
			Attachment: info,
			Missing:    !fileExists(info.Path),
		})
	}
	return statuses, nil
}

// OrphanedFiles returns the files in the entity's attachment directory that
// no attachment row references, sorted. Interrupted copies left behind as
// temporary files are included.
func (s *RecordStore) OrphanedFiles(ctx context.Context) (orphans []string, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpOrphanScan, start, err) }()

	return s.orphanedFiles(ctx)
}

func (s *RecordStore) orphanedFiles(ctx context.Context) ([]string, error) {
	orphans := []string{}
	if !s.Exists() {
		return orphans, nil
	}

	referenced := make(map[string]struct{})
	err := s.withDB(ctx, metrics.OpOrphanScan, func(db *gorm.DB) error {
		var paths []string
		if err := db.Model(&AttachmentRecord{}).Pluck("file_path", &paths).Error; err != nil {
			return dbError(err, "orphaned_files")
		}
		for _, p := range paths {
			referenced[absPath(p)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dir := s.attachmentDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return orphans, nil
		}
		return nil, fileError(err, "orphaned_files", dir)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := referenced[absPath(path)]; !ok {
			orphans = append(orphans, path)
		}
	}
	slices.Sort(orphans)
	return orphans, nil
}

// RemoveOrphanedFiles deletes the files OrphanedFiles reports and returns
// how many were removed.
func (s *RecordStore) RemoveOrphanedFiles(ctx context.Context) (removed int, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpOrphanScan, start, err) }()

	orphans, err := s.orphanedFiles(ctx)
	if err != nil || len(orphans) == 0 {
		return 0, err
	}

	err = s.withFS(func(sfs *securefs.SecureFS) error {
		for _, path := range orphans {
			if err := sfs.Remove(path); err != nil {
				s.entityLogger(ctx).Warn("failed to remove orphaned file",
					logger.String("path", path),
					logger.Error(err))
				continue
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fileError(err, "remove_orphaned_files", s.attachmentDir())
	}

	s.entityLogger(ctx).Info("orphaned attachment files removed", logger.Int("files", removed))
	return removed, nil
}

// danglingAttachment is an attachment row joined against its record
type danglingAttachment struct {
	ID            int64
	VisitRecordID int64
	FilePath      string
	RecordMissing bool
}

// PruneMissingAttachments deletes attachment rows whose file no longer
// exists and rows whose record no longer exists, removing the files of the
// latter. It returns the number of rows deleted.
func (s *RecordStore) PruneMissingAttachments(ctx context.Context) (pruned int, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpAttachmentPrune, start, err) }()

	var orphanedFiles []string
	err = s.withDB(ctx, metrics.OpAttachmentPrune, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var rows []danglingAttachment
			err := tx.Table("attachment_records AS a").
				Select("a.id AS id, a.visit_record_id AS visit_record_id, a.file_path AS file_path, r.id IS NULL AS record_missing").
				Joins("LEFT JOIN visit_records AS r ON r.id = a.visit_record_id").
				Order("a.id").
				Scan(&rows).Error
			if err != nil {
				return dbError(err, "prune_attachments")
			}

			var ids []int64
			for i := range rows {
				switch {
				case rows[i].RecordMissing:
					ids = append(ids, rows[i].ID)
					orphanedFiles = append(orphanedFiles, rows[i].FilePath)
				case !fileExists(rows[i].FilePath):
					ids = append(ids, rows[i].ID)
				}
			}
			if len(ids) == 0 {
				return nil
			}

			if err := tx.Delete(&AttachmentRecord{}, ids).Error; err != nil {
				return dbError(err, "prune_attachments", "rows", len(ids))
			}
			pruned = len(ids)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	s.removeFiles(ctx, orphanedFiles)
	if pruned > 0 {
		s.entityLogger(ctx).Info("dangling attachment rows pruned", logger.Int("rows", pruned))
	}
	return pruned, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
