package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldTxID       = "transaction_id"
	FieldTxType     = "transaction_type"
	FieldAmount     = "amount"
	FieldCurrency   = "currency"
	FieldConverted  = "converted_amount"
	FieldReportID   = "report_id"
	FieldPeriod     = "period"
	FieldStatus     = "status"
	FieldReference  = "reference"
	FieldSource     = "source"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentStorage     = "storage"
	ComponentBackend     = "backend"
	ComponentAMQP        = "amqp"
	ComponentEvents      = "events"
	ComponentCache       = "cache"
	ComponentRates       = "rates"
	ComponentUser        = "user"
	ComponentTransaction = "transaction"
	ComponentReport      = "report"
	ComponentImport      = "import"
	ComponentDashboard   = "dashboard"
	ComponentSecurity    = "security"
	ComponentRateLimit   = "rate_limit"
	ComponentTrace       = "trace"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpList     = "list"
	OpConvert  = "convert"
	OpDraft    = "draft"
	OpSubmit   = "submit"
	OpRefresh  = "refresh"
	OpImport   = "import"
	OpPublish  = "publish"
	OpSeed     = "seed"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields is a small builder for structured log attributes.
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

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

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

// WithTransaction adds the money fields of a ledger entry.
func (f LogFields) WithTransaction(id, userID int64, typ string, amount decimal.Decimal, currency string, converted decimal.Decimal) LogFields {
	f[FieldTxID] = id
	f[FieldUserID] = userID
	f[FieldTxType] = typ
	f[FieldAmount] = amount.String()
	f[FieldCurrency] = currency
	f[FieldConverted] = converted.StringFixed(2)
	return f
}

// WithReport adds the identifying fields of a quarterly return.
func (f LogFields) WithReport(id, userID int64, period, status string) LogFields {
	f[FieldReportID] = id
	f[FieldUserID] = userID
	f[FieldPeriod] = period
	f[FieldStatus] = status
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog. The component key is
// left out because Logger adds it itself.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
