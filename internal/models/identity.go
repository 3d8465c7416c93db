package models

import "time"

type VerificationState string

const (
	VerificationStateUnverified VerificationState = "UNVERIFIED"
	VerificationStateVerifying  VerificationState = "VERIFYING"
	VerificationStateVerified   VerificationState = "VERIFIED"
)

// RealIdentity is the operator's own account number, used only for
// authorization. It never originates bulk traffic itself.
type RealIdentity struct {
	PhoneNumber string            `json:"phoneNumber"`
	State       VerificationState `json:"state"`
	ConnectedAt time.Time         `json:"connectedAt,omitempty"`
}
