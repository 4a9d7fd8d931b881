// Package services defines the failure taxonomy shared by all components and
// the context annotations used for structured logging. Errors are classified
// by wrapping with sentinel markers; only configuration errors abort a run.
package services
