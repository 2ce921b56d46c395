package repository

import "errors"

// Sentinel errors returned by repository implementations.
var (
	ErrGlobalRuleNotFound  = errors.New("global rule not found")
	ErrGlobalAlertNotFound = errors.New("global alert not found")
	ErrDeviceNotFound      = errors.New("device not found")
)
