package models

import (
	"fmt"

	"gorm.io/gorm"
)

// User is the local profile row for an identity managed by the external
// auth provider. The row is created on first login; the id matches the
// provider's subject claim.
type User struct {
	gorm.Model
	Username  string `gorm:"column:username;size:255;not null" json:"username"`
	AvatarURL string `gorm:"column:avatar_url;size:512" json:"avatar_url,omitempty"`
}

// AuthorSummary is the read-only projection of a User attached to posts
// and comments.
type AuthorSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u *User) Summary() AuthorSummary {
	return AuthorSummary{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
	}
}

// UnknownAuthor is the placeholder summary used when a post's author
// profile cannot be loaded. Feed assembly substitutes it instead of
// failing the whole page.
func UnknownAuthor(id uint) AuthorSummary {
	return AuthorSummary{ID: id, Username: "Unknown"}
}

// DefaultUsername derives a display name for a first login that carries
// no profile data of its own.
func DefaultUsername(id uint) string {
	return fmt.Sprintf("user%d", id)
}
