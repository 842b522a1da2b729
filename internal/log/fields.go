package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldOwner      = "owner"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldSourceID      = "source_id"
	FieldDestinationID = "destination_source_id"
	FieldCategoryID    = "category_id"
	FieldTransactionID = "transaction_id"
	FieldTransferID    = "transfer_id"
	FieldAmount        = "amount"
)

// Components defines standard component names.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "reconciler"
	ComponentSource   = "source"
	ComponentCategory = "category"
	ComponentTransfer = "transfer"
	ComponentReport   = "report"
)
