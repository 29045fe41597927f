package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwnerID     = "owner_id"
	FieldGroupID     = "group_id"
	FieldRecordCount = "record_count"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldRoleFrom    = "role_from"
	FieldRoleTo      = "role_to"
	FieldTrigger     = "trigger"
	FieldEventType   = "event_type"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentLedger      = "ledger"
	ComponentEntitlement = "entitlement"
	ComponentAnalysis    = "analysis"
	ComponentAdvice      = "advice"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentCache       = "cache"
	ComponentSecurity    = "security"
	ComponentRateLimit   = "rate_limit"
	ComponentTrace       = "trace"
	ComponentBackend     = "backend"
	ComponentAuth        = "auth"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpList       = "list"
	OpCommit     = "commit"
	OpTransition = "transition"
	OpRegister   = "register"
	OpExport     = "export"
	OpAnalyze    = "analyze"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithGroup adds the fields describing a committed ledger batch
func (f LogFields) WithGroup(ownerID, groupID string, records int, amountCents int64) LogFields {
	f[FieldOwnerID] = ownerID
	if groupID != "" {
		f[FieldGroupID] = groupID
	}
	f[FieldRecordCount] = records
	f[FieldAmountCents] = amountCents
	return f
}

// WithRoleChange adds the fields describing a subscription change
func (f LogFields) WithRoleChange(userID, from, to, trigger string) LogFields {
	f[FieldOwnerID] = userID
	f[FieldRoleFrom] = from
	f[FieldRoleTo] = to
	f[FieldTrigger] = trigger
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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
