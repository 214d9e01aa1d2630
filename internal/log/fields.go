// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldUploadID  = "upload_id"
	FieldVideoID   = "video_id"

	// Pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Media fields
	FieldEncoder    = "encoder"
	FieldResolution = "resolution"
	FieldVariant    = "variant"

	// Storage fields
	FieldBucket = "bucket"
	FieldKey    = "key"
	FieldPath   = "path"
)
