package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeUnknownSite represents a site id missing from the registry
	ErrorTypeUnknownSite ErrorType = "unknown_site"
	// ErrorTypeUnknownCategory represents a category label or index the site does not define
	ErrorTypeUnknownCategory ErrorType = "unknown_category"
	// ErrorTypeRenderTimeout represents a page load that ran past its deadline
	ErrorTypeRenderTimeout ErrorType = "render_timeout"
	// ErrorTypeRenderFailure represents a browser or transport level failure
	ErrorTypeRenderFailure ErrorType = "render_failure"
	// ErrorTypeRateLimit represents a host that answered 429 or is cooling down
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeUnusable represents a container without a product link
	ErrorTypeUnusable ErrorType = "extraction_unusable"
	// ErrorTypeStoreConflict represents a duplicate product link
	ErrorTypeStoreConflict ErrorType = "store_conflict"
	// ErrorTypeStoreConnection represents an unreachable record store
	ErrorTypeStoreConnection ErrorType = "store_connection"
	// ErrorTypeStore represents any other record store error
	ErrorTypeStore ErrorType = "store"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// HarvestError represents a harvest-specific error
type HarvestError struct {
	Type    ErrorType
	Site    string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *HarvestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Site, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Site, e.Message)
}

// Unwrap returns the underlying error
func (e *HarvestError) Unwrap() error {
	return e.Err
}

// New creates a new HarvestError
func New(errType ErrorType, site, message string, err error) *HarvestError {
	return &HarvestError{
		Type:    errType,
		Site:    site,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// TypeOf returns the ErrorType of the first HarvestError in err's chain,
// or the empty string.
func TypeOf(err error) ErrorType {
	var he *HarvestError
	if stderrors.As(err, &he) {
		return he.Type
	}
	return ""
}

// Is reports whether err carries a HarvestError of the given type.
func Is(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// NewUnknownSite creates an unknown site error
func NewUnknownSite(site string) *HarvestError {
	return New(ErrorTypeUnknownSite, site, "site is not registered", nil)
}

// NewUnknownCategory creates an unknown category error
func NewUnknownCategory(site, category string) *HarvestError {
	return New(ErrorTypeUnknownCategory, site, fmt.Sprintf("category %q is not defined", category), nil)
}

// NewRenderTimeout creates a render timeout error
func NewRenderTimeout(site, url string, err error) *HarvestError {
	return New(ErrorTypeRenderTimeout, site, "timed out loading "+url, err)
}

// NewRenderFailure creates a render failure error
func NewRenderFailure(site, message string, err error) *HarvestError {
	return New(ErrorTypeRenderFailure, site, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(site string, duration time.Duration) *HarvestError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, site, message, nil)
}

// NewUnusable creates an extraction unusable error
func NewUnusable(site, message string) *HarvestError {
	return New(ErrorTypeUnusable, site, message, nil)
}

// NewStoreConflict creates a store conflict error
func NewStoreConflict(site, link string) *HarvestError {
	return New(ErrorTypeStoreConflict, site, "duplicate product link "+link, nil)
}

// NewStoreConnection creates a store connection error
func NewStoreConnection(site, message string, err error) *HarvestError {
	return New(ErrorTypeStoreConnection, site, message, err)
}

// NewStore creates a generic store error
func NewStore(site, message string, err error) *HarvestError {
	return New(ErrorTypeStore, site, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(site, message string, err error) *HarvestError {
	return New(ErrorTypePublisher, site, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *HarvestError {
	return New(ErrorTypeConfiguration, "", message, err)
}
