package referral

import "errors"

var (
	// ErrUnknownReferralCode means the code resolved to no principal.
	// Non-fatal for signup flows: the caller proceeds without an edge.
	ErrUnknownReferralCode = errors.New("unknown referral code")

	// ErrSelfReferral means a principal presented its own code.
	ErrSelfReferral = errors.New("principal cannot refer itself")

	// ErrAlreadyReferred means the principal already has a direct
	// referrer; level-1 edges are assigned once and immutable.
	ErrAlreadyReferred = errors.New("principal already has a direct referrer")

	// ErrUnknownEvent means the attribution event type is not one the
	// rate table knows about.
	ErrUnknownEvent = errors.New("unknown attribution event")
)
