package datastore

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
	"github.com/AlanZ-Git/HealthDatabase/internal/observability/metrics"
	"github.com/AlanZ-Git/HealthDatabase/internal/securefs"
)

// dateLayout is the only accepted record date format
const dateLayout = "2006-01-02"

// normalizeText trims s and converts it to Unicode NFC
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeInput applies the field rules to in and validates the date
func normalizeInput(in RecordInput) (RecordInput, error) {
	out := RecordInput{
		Date:             normalizeText(in.Date),
		Location:         normalizeText(in.Location),
		SubUnit:          normalizeText(in.SubUnit),
		ResponsibleParty: normalizeText(in.ResponsibleParty),
		Category:         normalizeText(in.Category),
		Reason:           normalizeText(in.Reason),
		Outcome:          normalizeText(in.Outcome),
		Treatment:        normalizeText(in.Treatment),
		Remark:           normalizeText(in.Remark),
		AttachmentPaths:  in.AttachmentPaths,
	}

	if out.Date == "" {
		return out, validationError(ErrDateRequired, FieldDate, in.Date)
	}
	if _, err := time.Parse(dateLayout, out.Date); err != nil {
		return out, validationError(ErrInvalidDate, FieldDate, in.Date)
	}
	return out, nil
}

func (in *RecordInput) toRecord() VisitRecord {
	return VisitRecord{
		Date:             in.Date,
		Location:         in.Location,
		SubUnit:          in.SubUnit,
		ResponsibleParty: in.ResponsibleParty,
		Category:         in.Category,
		Reason:           in.Reason,
		Outcome:          in.Outcome,
		Treatment:        in.Treatment,
		Remark:           in.Remark,
	}
}

func (in *RecordInput) columns() map[string]any {
	return map[string]any{
		"date":         in.Date,
		"hospital":     in.Location,
		"department":   in.SubUnit,
		"doctor":       in.ResponsibleParty,
		"organ_system": in.Category,
		"reason":       in.Reason,
		"diagnosis":    in.Outcome,
		"medication":   in.Treatment,
		"remark":       in.Remark,
	}
}

// CreateRecord inserts a record and returns its identity. Attachment paths
// in input are copied in afterwards on the same handle; a source that is
// missing or cannot be copied is skipped with a warning and does not fail
// the record.
func (s *RecordStore) CreateRecord(ctx context.Context, input RecordInput) (id int64, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpRecordCreate, start, err) }()

	input, err = normalizeInput(input)
	if err != nil {
		return 0, err
	}

	err = s.withDB(ctx, metrics.OpRecordCreate, func(db *gorm.DB) error {
		record := input.toRecord()
		if err := db.Create(&record).Error; err != nil {
			return dbError(err, "create_record", "entity", s.entity)
		}
		id = record.ID

		if len(input.AttachmentPaths) == 0 {
			return nil
		}
		return s.withFS(func(sfs *securefs.SecureFS) error {
			s.ingestAttachments(ctx, db, sfs, id, input.AttachmentPaths, true)
			return nil
		})
	})
	if err != nil && id != 0 {
		// The record was committed; only the attachment sandbox could not be opened.
		s.entityLogger(ctx).Warn("record created without attachments",
			logger.Int64("record_id", id),
			logger.Error(err))
		err = nil
	}
	if err != nil {
		return 0, err
	}

	s.entityLogger(ctx).Debug("record created", logger.Int64("record_id", id))
	return id, nil
}

// GetRecord returns the record with the given identity
func (s *RecordStore) GetRecord(ctx context.Context, id int64) (record VisitRecord, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpRecordGet, start, err) }()

	err = s.withDB(ctx, metrics.OpRecordGet, func(db *gorm.DB) error {
		if err := db.Take(&record, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError(ErrRecordNotFound, "record", id)
			}
			return dbError(err, "get_record", "record_id", id)
		}
		return nil
	})
	return record, err
}

// ListRecords returns every record of the entity in the requested order.
// Unrecognized sort values fall back to identity and ascending order
// independently. Equal dates are ordered by identity in the same direction.
func (s *RecordStore) ListRecords(ctx context.Context, sortField SortField, sortOrder SortOrder) (records []VisitRecord, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpRecordList, start, err) }()

	return s.listRecords(ctx, sortField, sortOrder)
}

func (s *RecordStore) listRecords(ctx context.Context, sortField SortField, sortOrder SortOrder) ([]VisitRecord, error) {
	records := []VisitRecord{}
	if !s.Exists() {
		return records, nil
	}

	field, desc := resolveSort(sortField, sortOrder)
	err := s.withDB(ctx, metrics.OpRecordList, func(db *gorm.DB) error {
		q := db.Order(clause.OrderByColumn{Column: clause.Column{Name: string(field)}, Desc: desc})
		if field != SortByID {
			q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: string(SortByID)}, Desc: desc})
		}
		if err := q.Find(&records).Error; err != nil {
			return dbError(err, "list_records", "sort_field", field)
		}
		return nil
	})
	return records, err
}

// resolveSort maps caller sort parameters onto a column and direction
func resolveSort(sortField SortField, sortOrder SortOrder) (SortField, bool) {
	field := SortField(strings.ToLower(strings.TrimSpace(string(sortField))))
	if field != SortByID && field != SortByDate {
		field = SortByID
	}
	order := SortOrder(strings.ToLower(strings.TrimSpace(string(sortOrder))))
	return field, order == SortDescending
}

// UpdateRecord replaces every non-identity field of a record and restamps
// its updated time. Attachments are not touched.
func (s *RecordStore) UpdateRecord(ctx context.Context, id int64, input RecordInput) (err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpRecordUpdate, start, err) }()

	input, err = normalizeInput(input)
	if err != nil {
		return err
	}

	return s.withDB(ctx, metrics.OpRecordUpdate, func(db *gorm.DB) error {
		columns := input.columns()
		columns["updated_at"] = s.opts.now()

		result := db.Model(&VisitRecord{}).Where("id = ?", id).Updates(columns)
		if result.Error != nil {
			return dbError(result.Error, "update_record", "record_id", id)
		}
		if result.RowsAffected == 0 {
			return notFoundError(ErrRecordNotFound, "record", id)
		}
		return nil
	})
}

// DeleteRecord removes a record and all of its attachments. The attachment
// rows and the record row are deleted in one transaction; the attachment
// files are removed after it commits, and a file that cannot be removed is
// logged without failing the delete.
func (s *RecordStore) DeleteRecord(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpRecordDelete, start, err) }()

	var paths []string
	err = s.withDB(ctx, metrics.OpRecordDelete, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var attachments []AttachmentRecord
			if err := tx.Where("visit_record_id = ?", id).Order("id").Find(&attachments).Error; err != nil {
				return dbError(err, "delete_record", "record_id", id)
			}
			if err := tx.Where("visit_record_id = ?", id).Delete(&AttachmentRecord{}).Error; err != nil {
				return dbError(err, "delete_record", "record_id", id)
			}

			result := tx.Delete(&VisitRecord{}, id)
			if result.Error != nil {
				return dbError(result.Error, "delete_record", "record_id", id)
			}
			if result.RowsAffected == 0 {
				return notFoundError(ErrRecordNotFound, "record", id)
			}

			paths = make([]string, 0, len(attachments))
			for i := range attachments {
				paths = append(paths, attachments[i].FilePath)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.removeFiles(ctx, paths)
	s.entityLogger(ctx).Debug("record deleted",
		logger.Int64("record_id", id),
		logger.Int("attachments", len(paths)))
	return nil
}

// DeleteRecords deletes each record independently and returns how many
// were deleted. A failure on one identity does not stop the rest.
func (s *RecordStore) DeleteRecords(ctx context.Context, ids []int64) int {
	deleted := 0
	for _, id := range ids {
		if err := s.DeleteRecord(ctx, id); err != nil {
			continue
		}
		deleted++
	}
	return deleted
}

// SearchRecords returns the records containing every whitespace-separated
// keyword of query, case-insensitively, in the date or any text field.
// A blank query returns all records.
func (s *RecordStore) SearchRecords(ctx context.Context, query string, sortField SortField, sortOrder SortOrder) (matches []VisitRecord, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpRecordSearch, start, err) }()

	records, err := s.listRecords(ctx, sortField, sortOrder)
	if err != nil {
		return nil, err
	}

	keywords := strings.Fields(strings.ToLower(normalizeText(query)))
	if len(keywords) == 0 {
		return records, nil
	}

	matches = make([]VisitRecord, 0, len(records))
	for i := range records {
		if matchesAll(records[i].searchText(), keywords) {
			matches = append(matches, records[i])
		}
	}
	return matches, nil
}

func (r *VisitRecord) searchText() string {
	return strings.ToLower(strings.Join([]string{
		r.Date, r.Location, r.SubUnit, r.ResponsibleParty, r.Category,
		r.Reason, r.Outcome, r.Treatment, r.Remark,
	}, "\n"))
}

func matchesAll(text string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}
