package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gizmoapp/gizmo/src/assist"
	"github.com/gizmoapp/gizmo/src/config"
	"github.com/gizmoapp/gizmo/src/snapshot"
	"github.com/gizmoapp/gizmo/src/syncer"
	"github.com/gizmoapp/gizmo/src/transport"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitStorage     = 5 // Local or shared storage error
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

// errAssistantFailed marks a turn the backend answered with an error
var errAssistantFailed = errors.New("assistant reported an error")

// HandleError logs err, prints it and exits with the matching code
func HandleError(logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	logger.Debug("command failed", "error", err)
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	os.Exit(exitCode(err))
}

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	var (
		validationErr  config.ValidationError
		connErr        *transport.ConnectionError
		persistenceErr *snapshot.PersistenceError
		syncErr        *syncer.SyncError
	)

	switch {
	case errors.Is(err, config.ErrMissingAssistant), errors.As(err, &validationErr):
		return ExitConfig
	case errors.Is(err, transport.ErrAuthRejected):
		return ExitAuth
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &connErr), errors.Is(err, assist.ErrNotConnected), errors.Is(err, transport.ErrNotReady):
		return ExitNetwork
	case errors.As(err, &persistenceErr), errors.As(err, &syncErr), errors.Is(err, syncer.ErrNoRemote):
		return ExitStorage
	case errors.Is(err, assist.ErrEmptyMessage), errors.Is(err, errUsage):
		return ExitUsage
	default:
		return ExitError
	}
}

// errUsage wraps invalid command arguments
var errUsage = errors.New("invalid usage")
