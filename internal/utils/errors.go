package utils

import "errors"

// Common application errors used across services.
var (
	ErrValidation          = errors.New("VALIDATION_ERROR")
	ErrProductNotFound     = errors.New("PRODUCT_NOT_FOUND")
	ErrStoreUnavailable    = errors.New("STORE_UNAVAILABLE")
	ErrLocalCache          = errors.New("LOCAL_CACHE_ERROR")
	ErrOperationInProgress = errors.New("OPERATION_IN_PROGRESS")
	ErrEnrichmentDisabled  = errors.New("ENRICHMENT_UNAVAILABLE")
	ErrEnrichmentFailed    = errors.New("ENRICHMENT_FAILED")
)
