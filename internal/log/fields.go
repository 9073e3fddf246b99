package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldBytes       = "bytes"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldItemID      = "item_id"
	FieldItemName    = "item_name"
	FieldLabelID     = "label_id"
	FieldLabelName   = "label_name"
	FieldAmountCents = "amount_cents"
	FieldVersion     = "version"
	FieldEventType   = "event_type"
	FieldEventID     = "event_id"
	FieldQuery       = "query"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStore   = "store"
	ComponentEngine  = "engine"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentRedis   = "redis"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpCreate         = "create"
	OpUpdate         = "update"
	OpDelete         = "delete"
	OpList           = "list"
	OpSearch         = "search"
	OpMarkPurchased  = "mark_purchased"
	OpMarkUnpurchase = "mark_unpurchased"
	OpPublish        = "publish"
	OpConsume        = "consume"
	OpShutdown       = "shutdown"
	OpStartup        = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithItem adds item identification fields. Zero ids are skipped.
func (f LogFields) WithItem(id int64, name string) LogFields {
	if id != 0 {
		f[FieldItemID] = id
	}
	if name != "" {
		f[FieldItemName] = name
	}
	return f
}

func (f LogFields) WithLabel(id int64, name string) LogFields {
	if id != 0 {
		f[FieldLabelID] = id
	}
	if name != "" {
		f[FieldLabelName] = name
	}
	return f
}

// WithHTTP adds request and response fields of one HTTP exchange.
func (f LogFields) WithHTTP(method, path string, status, bytes int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = status
	f[FieldBytes] = bytes
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
