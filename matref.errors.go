package matref

import (
	"errors"
	"strconv"

	"github.com/itsatony/go-cuserr"
)

// Error message constants - ALL error messages must be constants (NO MAGIC STRINGS)
const (
	// Resolution errors
	ErrMsgTransportFailure   = "material store unreachable"
	ErrMsgStoreRejected      = "material store rejected the request"
	ErrMsgEmptyStoreResponse = "material store returned no data"
	ErrMsgNilReferenceStore  = "reference store is nil"
	ErrMsgUnexpectedStatus   = "unexpected HTTP status"
	ErrMsgDecodeResponse     = "failed to decode store response"
	ErrMsgEncodeRequest      = "failed to encode store request"

	// Reference syntax errors
	ErrMsgEmptyLabel        = "reference label cannot be empty"
	ErrMsgEmptyMaterialID   = "material ID cannot be empty"
	ErrMsgInvalidLabel      = "reference label cannot contain ']'"
	ErrMsgInvalidMaterialID = "material ID cannot contain ')'"

	// Material validation errors
	ErrMsgMaterialNotFound     = "material not found"
	ErrMsgInvalidMaterialType  = "invalid material type"
	ErrMsgMissingName          = "material name is required"
	ErrMsgMissingContent       = "material content is required"
	ErrMsgMissingText          = "text material requires non-empty text"
	ErrMsgMissingImageURL      = "image material requires non-empty url"
	ErrMsgMissingReferenceData = "reference material requires reference_type or content"
	ErrMsgContentTypeMismatch  = "material content does not match its type"
	ErrMsgEmptyMaterialIDs     = "material ID list cannot be empty"
	ErrMsgMissingField         = "required field missing"

	// Content decoding errors
	ErrMsgDecodeContent = "failed to decode material content"

	// Configuration errors
	ErrMsgReadConfig     = "failed to read config file"
	ErrMsgParseConfig    = "failed to parse config file"
	ErrMsgReadEnvFile    = "failed to read env file"
	ErrMsgInvalidTimeout = "invalid timeout value"
	ErrMsgEmptyBaseURL   = "material store base URL is required"

	// Server errors
	ErrMsgInvalidRequestBody = "invalid request body"
	ErrMsgRequestTooLarge    = "request body too large"
	ErrMsgUnauthorized       = "invalid or missing API key"
	ErrMsgInternal           = "internal server error"
)

// Error code constants for categorization
const (
	ErrCodeValidation = "MATREF_VALIDATION"
	ErrCodeNotFound   = "MATREF_NOT_FOUND"
	ErrCodeConfig     = "MATREF_CONFIG"
	ErrCodeSyntax     = "MATREF_SYNTAX"
	ErrCodeStorage    = "MATREF_STORAGE"
)

// Metadata keys for cuserr.WithMetadata
const (
	MetaKeyMaterialID = "material_id"
	MetaKeyType       = "type"
	MetaKeyField      = "field"
	MetaKeyLabel      = "label"
	MetaKeyPath       = "path"
	MetaKeyValue      = "value"
	MetaKeyStatus     = "status"
	MetaKeyResource   = "material"
	MetaKeyKind       = "kind"
)

// Error kind values stored under MetaKeyKind
const (
	ErrKindNotFound   = "not_found"
	ErrKindValidation = "validation"
)

// ResolutionErrorKind classifies why a batch could not be resolved.
// Unresolved identifiers are not an error and have no kind.
type ResolutionErrorKind int

const (
	// TransportFailure means the store could not be reached or answered garbage.
	TransportFailure ResolutionErrorKind = iota + 1
	// StoreRejected means the store answered with success=false.
	StoreRejected
)

// Resolution error kind names
const (
	ResolutionErrorKindNameTransport = "transport_failure"
	ResolutionErrorKindNameRejected  = "store_rejected"
	ResolutionErrorKindNameUnknown   = "unknown"
)

// String returns the kind name
func (k ResolutionErrorKind) String() string {
	switch k {
	case TransportFailure:
		return ResolutionErrorKindNameTransport
	case StoreRejected:
		return ResolutionErrorKindNameRejected
	default:
		return ResolutionErrorKindNameUnknown
	}
}

// ResolutionError is returned when a whole batch fails to resolve.
// No partial mapping accompanies it.
type ResolutionError struct {
	Kind    ResolutionErrorKind
	Message string
	Status  int // HTTP status when known
	Cause   error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := e.Message
	if e.Status > 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a resolution error for an unreachable store
func NewTransportError(cause error) *ResolutionError {
	return &ResolutionError{
		Kind:    TransportFailure,
		Message: ErrMsgTransportFailure,
		Cause:   cause,
	}
}

// NewUnexpectedStatusError creates a transport error for a non-envelope HTTP answer
func NewUnexpectedStatusError(status int, cause error) *ResolutionError {
	return &ResolutionError{
		Kind:    TransportFailure,
		Message: ErrMsgUnexpectedStatus,
		Status:  status,
		Cause:   cause,
	}
}

// NewStoreRejectedError creates a resolution error carrying the store's message.
// An empty message falls back to a generic one.
func NewStoreRejectedError(storeMessage string, status int) *ResolutionError {
	if storeMessage == "" {
		storeMessage = ErrMsgStoreRejected
	}
	return &ResolutionError{
		Kind:    StoreRejected,
		Message: storeMessage,
		Status:  status,
	}
}

// IsTransportFailure reports whether err is a transport-level resolution failure
func IsTransportFailure(err error) bool {
	var resErr *ResolutionError
	return errors.As(err, &resErr) && resErr.Kind == TransportFailure
}

// IsStoreRejected reports whether err is a store rejection
func IsStoreRejected(err error) bool {
	var resErr *ResolutionError
	return errors.As(err, &resErr) && resErr.Kind == StoreRejected
}

// NewMaterialNotFoundError creates a not found error for a material ID
func NewMaterialNotFoundError(id string) error {
	return cuserr.NewNotFoundError(MetaKeyResource, ErrMsgMaterialNotFound).
		WithMetadata(MetaKeyKind, ErrKindNotFound).
		WithMetadata(MetaKeyMaterialID, id)
}

// NewInvalidMaterialError creates a validation error for material data
func NewInvalidMaterialError(msg string, materialType MaterialType) error {
	return cuserr.NewValidationError(ErrCodeValidation, msg).
		WithMetadata(MetaKeyKind, ErrKindValidation).
		WithMetadata(MetaKeyType, string(materialType))
}

// NewInvalidMaterialTypeError creates a validation error for an unknown type name
func NewInvalidMaterialTypeError(typeName string) error {
	return cuserr.NewValidationError(ErrCodeValidation, ErrMsgInvalidMaterialType).
		WithMetadata(MetaKeyKind, ErrKindValidation).
		WithMetadata(MetaKeyType, typeName)
}

// NewMissingFieldError creates a validation error for a missing request field
func NewMissingFieldError(field string) error {
	return cuserr.NewValidationError(ErrCodeValidation, ErrMsgMissingField).
		WithMetadata(MetaKeyKind, ErrKindValidation).
		WithMetadata(MetaKeyField, field)
}

// NewEmptyMaterialIDsError creates a validation error for an empty id list
func NewEmptyMaterialIDsError() error {
	return cuserr.NewValidationError(ErrCodeValidation, ErrMsgEmptyMaterialIDs).
		WithMetadata(MetaKeyKind, ErrKindValidation)
}

// NewReferenceSyntaxError creates an error for a label or ID the token grammar cannot carry
func NewReferenceSyntaxError(msg, label, id string) error {
	return cuserr.NewValidationError(ErrCodeSyntax, msg).
		WithMetadata(MetaKeyKind, ErrKindValidation).
		WithMetadata(MetaKeyLabel, label).
		WithMetadata(MetaKeyMaterialID, id)
}

// NewContentDecodeError wraps a content decoding failure
func NewContentDecodeError(materialType MaterialType, cause error) error {
	return cuserr.WrapStdError(cause, ErrCodeValidation, ErrMsgDecodeContent).
		WithMetadata(MetaKeyKind, ErrKindValidation).
		WithMetadata(MetaKeyType, string(materialType))
}

// NewConfigError wraps a configuration failure with the offending path or value
func NewConfigError(msg, path string, cause error) error {
	var err *cuserr.CustomError
	if cause != nil {
		err = cuserr.WrapStdError(cause, ErrCodeConfig, msg)
	} else {
		err = cuserr.NewValidationError(ErrCodeConfig, msg)
	}
	return err.WithMetadata(MetaKeyPath, path)
}

// IsNotFound reports whether err describes a missing material
func IsNotFound(err error) bool {
	return hasErrorKind(err, ErrKindNotFound)
}

// IsValidation reports whether err describes invalid input
func IsValidation(err error) bool {
	return hasErrorKind(err, ErrKindValidation)
}

// hasErrorKind checks the kind metadata set by this package's constructors
func hasErrorKind(err error, kind string) bool {
	var customErr *cuserr.CustomError
	if !errors.As(err, &customErr) {
		return false
	}
	value, ok := customErr.GetMetadata(MetaKeyKind)
	return ok && value == kind
}
