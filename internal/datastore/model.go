// model.go defines the per-entity schema and the values handed to callers
package datastore

import (
	"strconv"
	"time"
)

// VisitRecord is one dated event of an entity. Column names keep the
// layout of existing storage files.
type VisitRecord struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Date             string    `gorm:"column:date;type:TEXT;not null;index:idx_visit_records_date"`
	Location         string    `gorm:"column:hospital;type:TEXT"`
	SubUnit          string    `gorm:"column:department;type:TEXT"`
	ResponsibleParty string    `gorm:"column:doctor;type:TEXT"`
	Category         string    `gorm:"column:organ_system;type:TEXT"`
	Reason           string    `gorm:"column:reason;type:TEXT"`
	Outcome          string    `gorm:"column:diagnosis;type:TEXT"`
	Treatment        string    `gorm:"column:medication;type:TEXT"`
	Remark           string    `gorm:"column:remark;type:TEXT"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;index:idx_visit_records_updated_at"`

	Attachments []AttachmentRecord `gorm:"foreignKey:VisitRecordID;constraint:OnDelete:CASCADE"`
}

// TableName keeps the table name stable regardless of naming strategy
func (VisitRecord) TableName() string { return "visit_records" }

// Field map keys returned by VisitRecord.Fields
const (
	FieldID               = "id"
	FieldDate             = "date"
	FieldLocation         = "location"
	FieldSubUnit          = "sub_unit"
	FieldResponsibleParty = "responsible_party"
	FieldCategory         = "category"
	FieldReason           = "reason"
	FieldOutcome          = "outcome"
	FieldTreatment        = "treatment"
	FieldRemark           = "remark"
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
)

// Fields returns the record as a plain field map for presentation layers.
// Timestamps are RFC 3339 in UTC.
func (r *VisitRecord) Fields() map[string]string {
	return map[string]string{
		FieldID:               strconv.FormatInt(r.ID, 10),
		FieldDate:             r.Date,
		FieldLocation:         r.Location,
		FieldSubUnit:          r.SubUnit,
		FieldResponsibleParty: r.ResponsibleParty,
		FieldCategory:         r.Category,
		FieldReason:           r.Reason,
		FieldOutcome:          r.Outcome,
		FieldTreatment:        r.Treatment,
		FieldRemark:           r.Remark,
		FieldCreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
		FieldUpdatedAt:        r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// AttachmentRecord is the row tying one stored file to a visit record
type AttachmentRecord struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	VisitRecordID int64  `gorm:"column:visit_record_id;not null;index:idx_attachment_records_visit_record_id"`
	FilePath      string `gorm:"column:file_path;type:TEXT;not null"`
}

// TableName keeps the table name stable regardless of naming strategy
func (AttachmentRecord) TableName() string { return "attachment_records" }

// RecordInput carries the caller-supplied fields of a record. Every text
// field is trimmed and NFC-normalized before storage.
type RecordInput struct {
	Date             string
	Location         string
	SubUnit          string
	ResponsibleParty string
	Category         string
	Reason           string
	Outcome          string
	Treatment        string
	Remark           string

	// AttachmentPaths are source files ingested when the record is created.
	// UpdateRecord ignores them.
	AttachmentPaths []string
}

// Attachment is a stored attachment as returned by mutating operations
type Attachment struct {
	ID       int64
	RecordID int64
	Path     string
}

// AttachmentInfo is an attachment as listed for a record
type AttachmentInfo struct {
	ID          int64
	RecordID    int64
	Path        string
	DisplayName string
}

// AttachmentStatus reports whether an attachment's stored file is present
type AttachmentStatus struct {
	Attachment AttachmentInfo
	Missing    bool
}

// HistoryField selects the column DistinctValues draws suggestions from
type HistoryField string

const (
	HistoryLocation         HistoryField = FieldLocation
	HistorySubUnit          HistoryField = FieldSubUnit
	HistoryResponsibleParty HistoryField = FieldResponsibleParty
)

// column returns the storage column of the field and whether the field
// depends on a location scope.
func (f HistoryField) column() (column string, scoped bool, ok bool) {
	switch f {
	case HistoryLocation:
		return "hospital", false, true
	case HistorySubUnit:
		return "department", true, true
	case HistoryResponsibleParty:
		return "doctor", true, true
	default:
		return "", false, false
	}
}

// SortField and SortOrder select ListRecords ordering
type (
	SortField string
	SortOrder string
)

const (
	SortByID   SortField = "id"
	SortByDate SortField = "date"

	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)
