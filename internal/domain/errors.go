package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind groups application errors for propagation decisions.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindDatabase   ErrorKind = "database"
	KindSystem     ErrorKind = "system"
)

// ErrorDef is a stable error definition: numeric code, HTTP status hint, and
// default message. Codes are grouped by category: 2xxx validation, 3xxx
// database, 42xx billing backend, 43xx charge-point backend, 5xxx system.
type ErrorDef struct {
	Code    int
	Status  int
	Message string
}

var (
	// Validation (2000-2099)
	ErrDefMissingParameters = ErrorDef{2000, http.StatusBadRequest, "required field is missing"}
	ErrDefInvalidFormat     = ErrorDef{2001, http.StatusBadRequest, "invalid data format"}
	ErrDefInvalidParameters = ErrorDef{2002, http.StatusBadRequest, "invalid parameters"}
	ErrDefEchoMismatch      = ErrorDef{2004, http.StatusBadGateway, "response does not echo the requested values"}
	ErrDefUserNotFound      = ErrorDef{2010, http.StatusNotFound, "user not found"}
	ErrDefBillingNotLinked  = ErrorDef{2011, http.StatusConflict, "user has no billing account"}
	ErrDefNoCredentials     = ErrorDef{2012, http.StatusConflict, "user has no active billing credentials"}
	ErrDefTagNotLinked      = ErrorDef{2013, http.StatusConflict, "user has no charge-point account"}

	// Database (3000-3099)
	ErrDefConnection     = ErrorDef{3000, http.StatusInternalServerError, "database connection error"}
	ErrDefQuery          = ErrorDef{3001, http.StatusInternalServerError, "database query error"}
	ErrDefRecordNotFound = ErrorDef{3002, http.StatusNotFound, "record not found"}
	ErrDefDuplicateEntry = ErrorDef{3003, http.StatusConflict, "record already exists"}

	// Billing backend (4200-4299)
	ErrDefBillingAlreadyLinked = ErrorDef{4200, http.StatusConflict, "billing account already linked"}
	ErrDefBillingCreateFailed  = ErrorDef{4201, http.StatusBadGateway, "billing user creation failed"}
	ErrDefBillingUserExists    = ErrorDef{4202, http.StatusConflict, "billing backend reports user already exists"}
	ErrDefRotationFailed       = ErrorDef{4203, http.StatusBadGateway, "api key rotation failed"}
	ErrDefIDMismatch           = ErrorDef{4204, http.StatusBadGateway, "billing backend returned a foreign user id"}
	ErrDefHashVerification     = ErrorDef{4205, http.StatusBadGateway, "billing response hash verification failed"}
	ErrDefRotationNotRecorded  = ErrorDef{4206, http.StatusInternalServerError, "rotation acknowledged by billing backend but not recorded locally"}
	ErrDefInvoiceCreateFailed  = ErrorDef{4207, http.StatusBadGateway, "invoice creation failed"}

	// Charge-point backend (4300-4399)
	ErrDefTagExists        = ErrorDef{4300, http.StatusConflict, "ocpp tag already exists in charge-point backend"}
	ErrDefTagCreateFailed  = ErrorDef{4301, http.StatusBadGateway, "ocpp tag creation failed"}
	ErrDefTagNotUnique     = ErrorDef{4302, http.StatusBadGateway, "multiple ocpp tags share one id tag"}
	ErrDefTagStateMismatch = ErrorDef{4304, http.StatusBadGateway, "ocpp tag block state does not match request"}
	ErrDefFetchFailed      = ErrorDef{4305, http.StatusBadGateway, "transaction fetch failed"}

	// System (5000-5099)
	ErrDefUnknown            = ErrorDef{5000, http.StatusInternalServerError, "an unknown error occurred"}
	ErrDefServiceUnavailable = ErrorDef{5002, http.StatusServiceUnavailable, "service temporarily unavailable"}
	ErrDefReconcileBusy      = ErrorDef{5003, http.StatusConflict, "reconciliation already in progress"}
)

// AppError carries a stable code, an HTTP status hint, and an optional
// wrapped cause. The default message is user-safe; the cause is for logs.
type AppError struct {
	Kind   ErrorKind
	Def    ErrorDef
	Detail string
	Err    error
}

func (e *AppError) Error() string {
	msg := e.Def.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Response is the user-safe JSON body; wrapped causes are never exposed.
func (e *AppError) Response() map[string]interface{} {
	msg := e.Def.Message
	if e.Detail != "" {
		msg = e.Detail
	}
	return map[string]interface{}{
		"success": false,
		"code":    e.Def.Code,
		"msg":     msg,
	}
}

func (e *AppError) StatusCode() int {
	if e.Def.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Def.Status
}

func NewValidationError(def ErrorDef, detail string) *AppError {
	return &AppError{Kind: KindValidation, Def: def, Detail: detail}
}

func NewDatabaseError(def ErrorDef, detail string, err error) *AppError {
	return &AppError{Kind: KindDatabase, Def: def, Detail: detail, Err: err}
}

func NewSystemError(def ErrorDef, detail string, err error) *AppError {
	return &AppError{Kind: KindSystem, Def: def, Detail: detail, Err: err}
}

// AsAppError unwraps err to the nearest AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error definition.
func HasCode(err error, def ErrorDef) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Def.Code == def.Code
}

// IsRetryable reports whether the caller's next natural trigger (next login,
// next scheduled sync) may succeed without intervention. Duplicate-entry
// races and busy reconcile leases fall in this class.
func IsRetryable(err error) bool {
	return HasCode(err, ErrDefDuplicateEntry) ||
		HasCode(err, ErrDefReconcileBusy) ||
		HasCode(err, ErrDefServiceUnavailable)
}
