// Package user defines the player account domain model.
package user

import "time"

// User is a wallet-identified player account. XP and badges accrue when
// reward transactions confirm.
type User struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Username      string    `json:"username,omitempty"`
	XP            int       `json:"xp"`
	Badges        []string  `json:"badges,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasBadge reports whether the user already holds the badge.
func (u User) HasBadge(badgeID string) bool {
	for _, b := range u.Badges {
		if b == badgeID {
			return true
		}
	}
	return false
}
