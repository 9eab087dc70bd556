// Package domain holds shared domain primitives: identifiers, monetary
// amounts, and enumerated values. Construct values via the Parse functions at
// trust boundaries; direct casting bypasses validation.
package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DonationID identifies a single donor payment.
type DonationID uuid.UUID

// NewDonationID returns a fresh random donation ID.
func NewDonationID() DonationID {
	return DonationID(uuid.New())
}

// ParseDonationID validates and returns a DonationID.
func ParseDonationID(s string) (DonationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return DonationID{}, fmt.Errorf("invalid donation id: %w", err)
	}
	return DonationID(u), nil
}

func (id DonationID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the ID is the zero value.
func (id DonationID) IsNil() bool { return id == DonationID{} }

// Value implements driver.Valuer for database storage.
func (id DonationID) Value() (driver.Value, error) { return id.String(), nil }

// Scan implements sql.Scanner.
func (id *DonationID) Scan(src any) error {
	var u uuid.UUID
	if err := u.Scan(src); err != nil {
		return fmt.Errorf("scan donation id: %w", err)
	}
	*id = DonationID(u)
	return nil
}

// BatchID identifies a threshold-triggered escrow batch, e.g. "batch_1712345678".
type BatchID string

func (id BatchID) String() string { return string(id) }
func (id BatchID) IsNil() bool    { return id == "" }

// DisasterID identifies a triggered emergency allocation, e.g. "disaster_1712345678".
type DisasterID string

func (id DisasterID) String() string { return string(id) }
func (id DisasterID) IsNil() bool    { return id == "" }

// OrgID identifies a registered relief organization.
type OrgID int64

func (id OrgID) IsNil() bool { return id == 0 }

// Address is an XRPL account address (classic form, base58, "r" prefix).
type Address string

// ParseAddress performs shape validation only; existence on ledger is the
// gateway's concern.
func ParseAddress(s string) (Address, error) {
	if len(s) < 25 || len(s) > 35 || !strings.HasPrefix(s, "r") {
		return "", fmt.Errorf("invalid ledger address: %q", s)
	}
	return Address(s), nil
}

func (a Address) String() string { return string(a) }
func (a Address) IsNil() bool    { return a == "" }

// TxHash is a ledger transaction hash (64 hex chars once confirmed).
type TxHash string

func (h TxHash) String() string { return string(h) }
func (h TxHash) IsNil() bool    { return h == "" }
