package models

import (
	"time"

	"gorm.io/gorm"
)

// VoteKind is the direction of a vote on a post.
type VoteKind string

const (
	VoteUp   VoteKind = "up"
	VoteDown VoteKind = "down"
)

func (k VoteKind) Valid() bool {
	return k == VoteUp || k == VoteDown
}

type Post struct {
	gorm.Model
	UserID   uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	Title    string    `gorm:"column:title;size:300;not null" json:"title"`
	Content  string    `gorm:"column:content;type:text;not null" json:"content"`
	ImageURL string    `gorm:"column:image_url;size:512" json:"image_url,omitempty"`
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Votes    []Vote    `gorm:"foreignKey:PostID" json:"votes,omitempty"`
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

// Vote is one user's vote on one post. The unique index is what enforces
// at most one row per (post, voter) pair; the ledger relies on the insert
// failing for the loser of a concurrent first-vote race.
//
// No soft delete here: a toggled-off vote must actually free the unique
// slot so the user can vote again.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"column:post_id;not null;uniqueIndex:idx_votes_post_voter" json:"post_id"`
	VoterID   uint      `gorm:"column:voter_id;not null;uniqueIndex:idx_votes_post_voter" json:"voter_id"`
	Kind      VoteKind  `gorm:"column:kind;size:8;not null" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"column:post_id;not null;index" json:"post_id"`
	UserID    uint      `gorm:"column:user_id;not null" json:"user_id"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	ParentID  *uint     `gorm:"column:parent_id;index" json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
