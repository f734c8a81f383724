// Package services implements the business logic of the admission workflow:
// intake (drafts, pages, submission), decisions (the guarded state machine),
// side effects, and guild configuration. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors cover expected business conditions. Translation into
// user-facing messages is performed at the bot/handler layer; classified
// transition outcomes (already/terminal/invalid) are NOT errors, see
// TransitionResult.
package services

import "errors"

// Intake-related errors.
var (
	// ErrNoQuestions is returned when a guild has no intake catalog
	// configured, so there is nothing to apply with.
	ErrNoQuestions = errors.New("no questions configured")

	// ErrPageUnavailable is returned when the requested page index does
	// not exist in the current catalog pagination.
	ErrPageUnavailable = errors.New("page unavailable")

	// ErrActiveApplication is returned when a user attempts to start a
	// new draft while an unresolved application is already under review.
	ErrActiveApplication = errors.New("active application already submitted")

	// ErrNoDraft is returned when a save or submit targets a draft that
	// no longer exists; a lost submit race surfaces as this value and
	// must be treated as already-submitted.
	ErrNoDraft = errors.New("no draft to submit")
)

// Decision-related errors.
var (
	// ErrApplicationNotFound indicates the referenced application does
	// not exist.
	ErrApplicationNotFound = errors.New("application not found")

	// ErrReasonRequired is returned when a rejection is attempted with a
	// blank reason.
	ErrReasonRequired = errors.New("reason is required")

	// ErrReviewChannelNotConfigured is returned by flows that need a
	// destination channel when the guild has none configured.
	ErrReviewChannelNotConfigured = errors.New("review channel not configured")
)
