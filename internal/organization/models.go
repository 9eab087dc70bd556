package organization

import (
	"time"

	"reliefpool/pkg/domain"
)

// Organization is a registered relief organization eligible for emergency
// allocations.
type Organization struct {
	ID            domain.OrgID
	Name          string
	CauseType     domain.CauseType
	WalletAddress domain.Address
	// NeedScore weights this org in disaster allocations, 1..10.
	NeedScore int
	// PasswordHash is the bcrypt hash for the org dashboard login, empty for
	// orgs without dashboard access.
	PasswordHash       string
	TotalReceived      domain.Drops
	TotalRLUSDReceived domain.Drops
	CreatedAt          time.Time
}

// SeedOrg describes an organization ensured at startup.
type SeedOrg struct {
	Name          string
	CauseType     domain.CauseType
	WalletAddress domain.Address
	NeedScore     int
	Password      string
}
