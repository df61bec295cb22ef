// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package clierr provides error classification and user-friendly error formatting for the CLI.
// It understands diff API status errors, Kubernetes API errors and transport failures.
package clierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/monadic/snapdiff/pkg/diffapi"
)

// Common error types for CLI output.
const (
	TypeNotFound   = "not_found"  // Namespace, resource or artifacts not found
	TypeForbidden  = "forbidden"  // Rejected credentials or RBAC
	TypeNetwork    = "network"    // Connection/network errors
	TypeCanceled   = "canceled"   // Superseded or aborted request
	TypeInternal   = "internal"   // Internal/unexpected errors
	TypeValidation = "validation" // Input validation errors
)

// statusCode returns the HTTP status carried by err, or 0.
func statusCode(err error) int {
	var se *diffapi.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsForbidden checks if the error is an access denied error.
func IsForbidden(err error) bool {
	if err == nil {
		return false
	}
	if code := statusCode(err); code == http.StatusUnauthorized || code == http.StatusForbidden {
		return true
	}
	if apierrors.IsForbidden(err) || apierrors.IsUnauthorized(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "unauthorized")
}

// IsNotFound checks if the error indicates a missing namespace, resource or kind.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if statusCode(err) == http.StatusNotFound || apierrors.IsNotFound(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") ||
		strings.Contains(msg, "no matches for kind") ||
		strings.Contains(msg, "the server could not find")
}

// IsCanceled checks if the request was aborted by the caller.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsNetworkError checks if the error is a connection/network error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if code := statusCode(err); code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "context deadline exceeded")
}

// IsValidation checks if the server rejected the request itself.
func IsValidation(err error) bool {
	return statusCode(err) == http.StatusBadRequest || apierrors.IsBadRequest(err)
}

// ClassifyError determines the type of error for appropriate handling.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if IsCanceled(err) {
		return TypeCanceled
	}
	if IsForbidden(err) {
		return TypeForbidden
	}
	if IsNotFound(err) {
		return TypeNotFound
	}
	if IsValidation(err) {
		return TypeValidation
	}
	if IsNetworkError(err) {
		return TypeNetwork
	}
	return TypeInternal
}

// Pretty formats an error with a user-friendly message and actionable hints.
func Pretty(err error) string {
	if err == nil {
		return ""
	}

	errType := ClassifyError(err)
	baseMsg := err.Error()

	switch errType {
	case TypeForbidden:
		return fmt.Sprintf("Access denied: %s\n\nHint: The diff API rejected your credentials:\n"+
			"  - pass the session cookie with --cookie name=value or SNAPDIFF_COOKIE\n"+
			"  - for snapdiff serve, check the RBAC of its service account (get/list on namespaces and snapshots)", baseMsg)

	case TypeNotFound:
		if strings.Contains(strings.ToLower(baseMsg), "no matches for kind") ||
			strings.Contains(strings.ToLower(baseMsg), "the server could not find") {
			return fmt.Sprintf("CRD not installed: %s\n\nHint: The snapshot Custom Resource Definitions may not be installed.\n"+
				"  - kubectl get crd | grep snapshot\n"+
				"  - check --group/--version/--kind against snapdiff catalog", baseMsg)
		}
		return fmt.Sprintf("Not found: %s", baseMsg)

	case TypeValidation:
		return fmt.Sprintf("Invalid request: %s\n\nHint: Run snapdiff catalog to list the supported groups, versions and kinds.", baseMsg)

	case TypeCanceled:
		return fmt.Sprintf("Canceled: %s", baseMsg)

	case TypeNetwork:
		return fmt.Sprintf("Connection error: %s\n\nHint: Check that the diff API is reachable:\n"+
			"  - curl <api-url>/api/ should list namespaces\n"+
			"  - set --api-url or SNAPDIFF_API_URL", baseMsg)

	default:
		return fmt.Sprintf("Error: %s", baseMsg)
	}
}

// WrapWithHint wraps an error with an additional hint message.
func WrapWithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w\n\nHint: %s", err, hint)
}

// NothingFound returns a user-friendly message when a listing is empty.
// This is different from an error - it's a valid "empty" result.
func NothingFound(what string) string {
	return fmt.Sprintf("No %s found.\n\n"+
		"This might mean:\n"+
		"  - No snapshots of this kind exist in the namespace\n"+
		"  - The selected group/version/kind is wrong (see snapdiff catalog)\n"+
		"  - You may not have permission to list these resources", what)
}

// Unwrap returns the underlying error, stripping any wrapper.
func Unwrap(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}
