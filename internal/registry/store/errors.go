package store

import "fmt"

// NotFoundError reports a missing resource. Maps to error-kind "not_found".
type NotFoundError struct {
	Resource string
	ID       any
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// DuplicateError reports a content/key collision. Maps to error-kind "duplicate".
// Neither Store.store nor LinkGraph.link returns it: both report a duplicate
// as a normal outcome in their return value.
type DuplicateError struct {
	Resource string
	Key      string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists for key %q", e.Resource, e.Key)
}

// ValidationError reports a caller input problem. Maps to error-kind "invalid_input".
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StorageError wraps any integrity/IO failure below the duplicate-content path.
// Maps to error-kind "storage_fault". The core never catches this: it
// propagates to the adapter, which returns 500.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage fault during %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// QuotaExceededError reports a tenant has hit a tier limit. Maps to
// error-kind "quota_exceeded".
type QuotaExceededError struct {
	Quota string
	Limit int
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("%s limit reached (%d); upgrade your plan for more", e.Quota, e.Limit)
}

// FeatureNotEnabledError reports a tenant's tier doesn't include a feature.
// Maps to error-kind "feature_not_enabled".
type FeatureNotEnabledError struct {
	Feature string
}

func (e FeatureNotEnabledError) Error() string {
	return fmt.Sprintf("%s is not available on your plan", e.Feature)
}
