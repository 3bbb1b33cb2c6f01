package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"
)

// InviteDisplayStatus is the status shown to admins. Expired and Maxed Out
// are computed from the stored fields at render time.
type InviteDisplayStatus string

const (
	DisplayActive   InviteDisplayStatus = "Active"
	DisplayDisabled InviteDisplayStatus = "Disabled"
	DisplayExpired  InviteDisplayStatus = "Expired"
	DisplayMaxedOut InviteDisplayStatus = "Maxed Out"
)

// DisplayStatus derives the shown status. Precedence: Disabled, then
// Expired, then Maxed Out, else Active.
func (ic InviteCode) DisplayStatus(now time.Time) InviteDisplayStatus {
	switch {
	case ic.Status == InviteDisabled:
		return DisplayDisabled
	case ic.ExpiresAt != nil && ic.ExpiresAt.Before(now):
		return DisplayExpired
	case ic.MaxUses != nil && ic.UseCount >= *ic.MaxUses:
		return DisplayMaxedOut
	default:
		return DisplayActive
	}
}

// Redeemable reports whether the code can admit another student now.
func (ic InviteCode) Redeemable(now time.Time) bool {
	return ic.DisplayStatus(now) == DisplayActive
}

// RemainingUses returns how many redemptions are left, or -1 when unlimited.
func (ic InviteCode) RemainingUses() int {
	if ic.MaxUses == nil {
		return -1
	}
	if left := *ic.MaxUses - ic.UseCount; left > 0 {
		return left
	}
	return 0
}

// ToggledStatus flips the stored status between active and disabled. It
// never touches the derived states.
func (ic InviteCode) ToggledStatus() InviteStatus {
	if ic.Status == InviteDisabled {
		return InviteActive
	}
	return InviteDisabled
}

// inviteAlphabet leaves out 0/O and 1/I/L so codes survive being read aloud.
const inviteAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// InviteCodeLength is the length of generated codes.
const InviteCodeLength = 8

// GenerateInviteCode returns a random code from the unambiguous alphabet.
func GenerateInviteCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode uppercases and trims a code typed by a learner.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RegisterLink is the learner-facing link for an invite code.
func RegisterLink(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/bootcamp/register?code=" + url.QueryEscape(code)
}

// JoinLink is the learner-facing link for a product key. It resolves to the
// invite code currently mapped in the product's enrollment config.
func JoinLink(baseURL, productKey string) string {
	return strings.TrimRight(baseURL, "/") + "/bootcamp/join?product=" + url.QueryEscape(productKey)
}
