package workflow

import (
	"errors"

	domainwf "github.com/cando-yeh/reimbursement-sub001/internal/domain/workflow"
)

var (
	// ErrValidationFailed is returned when a claim is malformed or
	// incomplete; the caller corrects the input and retries
	ErrValidationFailed = errors.New("claim validation failed")

	// ErrMissingApprover is returned when an applicant without a designated
	// approver tries to submit
	ErrMissingApprover = errors.New("applicant has no approver")

	// ErrNotDraft is returned when a delete targets a claim that already
	// left draft
	ErrNotDraft = errors.New("claim is not a draft")

	// ErrConflictingTransition is returned when a transition lost a race
	// with a concurrent mutation of the same claim; the caller should
	// re-fetch and may retry once
	ErrConflictingTransition = errors.New("conflicting concurrent transition")

	// ErrInvalidTransition mirrors the state machine's sentinel so callers
	// need only this package to classify transition failures
	ErrInvalidTransition = domainwf.ErrInvalidTransition
)
