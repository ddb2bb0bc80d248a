package domain

// Document field names used by queries.
const (
	FieldID         = "id"
	FieldIsActive   = "is_active"
	FieldCreatedAt  = "created_at"
	FieldJobID      = "job_id"
	FieldItemNo     = "item_no"
	FieldSpecimenID = "specimen_id"

	FieldProjectName = "project_name"
	FieldReceivedBy  = "received_by"
	FieldEndUser     = "end_user"
	FieldDescription = "description"
	FieldRequestNo   = "request_no"
	FieldRemarks     = "remarks"

	FieldRequestItems  = "request_items"
	FieldRequestID     = "request_id"
	FieldPreparationID = "preparationId"
	FieldSampleID      = "sampleId"
)
