package gcp

import "time"

const (
	// ServiceUsageOperationTimeout is the maximum time to wait for an API
	// enablement operation to complete.
	ServiceUsageOperationTimeout = 5 * time.Minute

	// CloudRunOperationTimeout is the maximum time to wait for a Cloud Run
	// deployment operation to complete.
	CloudRunOperationTimeout = 10 * time.Minute

	// IAMBindingTimeout is the maximum time for a single policy read-modify-write.
	IAMBindingTimeout = 1 * time.Minute

	// RoleOperationTimeout is the maximum time for a custom role create or update.
	RoleOperationTimeout = 1 * time.Minute

	// ResourcePollInterval is the interval at which to poll long-running operations.
	ResourcePollInterval = 5 * time.Second
)
