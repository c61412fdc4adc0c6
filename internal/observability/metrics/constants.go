// Package metrics defines the Prometheus collectors for store operations.
package metrics

// Operation labels recorded by the datastore
const (
	OpEntityCreate      = "entity_create"
	OpEntityDestroy     = "entity_destroy"
	OpEntityPurge       = "entity_purge_attachments"
	OpRecordCreate      = "record_create"
	OpRecordGet         = "record_get"
	OpRecordList        = "record_list"
	OpRecordSearch      = "record_search"
	OpRecordUpdate      = "record_update"
	OpRecordDelete      = "record_delete"
	OpHistoryQuery      = "history_query"
	OpAttachmentAdd     = "attachment_add"
	OpAttachmentList    = "attachment_list"
	OpAttachmentDelete  = "attachment_delete"
	OpAttachmentReplace = "attachment_replace"
	OpAttachmentVerify  = "attachment_verify"
	OpAttachmentPrune   = "attachment_prune"
	OpOrphanScan        = "orphan_scan"
)

// Status labels
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// File action labels for attachment file side effects
const (
	FileCopy   = "copy"
	FileRemove = "remove"
)

// Histogram bucket parameters
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketFactor2 is the common exponential growth factor for histogram buckets.
	BucketFactor2 = 2
	// BucketCount15 defines 15 exponential buckets.
	BucketCount15 = 15
	// BucketStart1KB is the starting bucket for byte-size histograms (1KB to ~1GB range).
	BucketStart1KB = 1024.0
	// BucketFactor4 grows byte-size buckets by 4x.
	BucketFactor4 = 4
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
)
