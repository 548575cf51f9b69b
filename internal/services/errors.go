// Package services defines the business logic for receipt submissions,
// payment commits, and the mini-app queries. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrGroupNotRegistered indicates that an inbound message belongs to a
	// chat no group is onboarded for.
	ErrGroupNotRegistered = errors.New("group not registered")

	// ErrRowNotFound indicates that the requested payment row does not exist
	// within the group.
	ErrRowNotFound = errors.New("payment row not found")

	// ErrSubmissionRejected indicates that a submission failed a validation
	// gate; the gate outcome carries the detail.
	ErrSubmissionRejected = errors.New("submission rejected")

	// ErrNoEditTarget is returned when an edit arrives but the user has no
	// recently committed row to amend.
	ErrNoEditTarget = errors.New("no recent submission to edit")

	// ErrEmptySubmission is returned when a flushed batch carries neither
	// typed text nor a usable OCR transcript.
	ErrEmptySubmission = errors.New("submission is empty")

	// ErrInvalidInitData is returned when Telegram mini-app init data fails
	// signature verification.
	ErrInvalidInitData = errors.New("invalid telegram init data")
)
