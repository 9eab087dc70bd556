package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the ledger gateway
// return these (optionally wrapped) so services can translate them into
// domain errors without string matching.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store or on ledger
// - ErrConflict: unique constraint hit (e.g. duplicate payment tx hash)
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: ledger node or backing service temporarily unreachable
// - ErrSigning: the signer rejected or could not produce a signature
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrSigning      = errors.New("signing failed")
)
