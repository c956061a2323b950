package feed

import (
	"errors"

	"github.com/threadline/threadline-server/cmd/models"
	"github.com/threadline/threadline-server/cmd/utils"
	"gorm.io/gorm"
)

// VoteAction is what a vote request did to the ledger.
type VoteAction string

const (
	VoteAdded   VoteAction = "added"
	VoteChanged VoteAction = "changed"
	VoteRemoved VoteAction = "removed"
)

type VoteOutcome struct {
	Action   VoteAction      `json:"action"`
	Previous models.VoteKind `json:"previous,omitempty"`
	Current  models.VoteKind `json:"current,omitempty"`
}

// VoteLedger owns the one-row-per-(post, voter) vote records and their
// toggle transitions. Each (post, voter) pair moves between three states:
// absent, up, down. An incoming vote of the same kind removes the row,
// a different kind updates it in place, and no row means insert.
type VoteLedger struct {
	db *gorm.DB
}

func NewVoteLedger(db *gorm.DB) *VoteLedger {
	return &VoteLedger{db: db}
}

// Apply runs one vote action through the toggle state machine. Two
// concurrent first votes by the same voter race on the unique
// (post_id, voter_id) index; the loser's insert fails with
// gorm.ErrDuplicatedKey and is retried once against the row that now
// exists, landing on the update or delete branch instead.
func (l *VoteLedger) Apply(postID, voterID uint, kind models.VoteKind) (VoteOutcome, error) {
	if voterID == 0 {
		return VoteOutcome{}, utils.Unauthorized("voter identity required")
	}
	if !kind.Valid() {
		return VoteOutcome{}, utils.InvalidArgument("vote kind must be 'up' or 'down'")
	}

	for attempt := 0; attempt < 2; attempt++ {
		outcome, err := l.tryApply(postID, voterID, kind)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return outcome, err
	}

	return VoteOutcome{}, utils.Conflict("concurrent vote detected, please retry")
}

func (l *VoteLedger) tryApply(postID, voterID uint, kind models.VoteKind) (VoteOutcome, error) {
	var outcome VoteOutcome

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFound("post not found")
			}
			return utils.Upstream("error loading post", err)
		}

		var existing models.Vote
		err := tx.Where("post_id = ? AND voter_id = ?", postID, voterID).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := models.Vote{
				PostID:  postID,
				VoterID: voterID,
				Kind:    kind,
			}
			if err := tx.Create(&vote).Error; err != nil {
				// surfaced to Apply for the single retry
				return err
			}
			outcome = VoteOutcome{Action: VoteAdded, Current: kind}
			return nil

		case err != nil:
			return utils.Upstream("error loading vote", err)

		case existing.Kind == kind:
			// toggle-off
			if err := tx.Delete(&models.Vote{}, existing.ID).Error; err != nil {
				return utils.Upstream("error removing vote", err)
			}
			outcome = VoteOutcome{Action: VoteRemoved, Previous: existing.Kind}
			return nil

		default:
			if err := tx.Model(&models.Vote{}).Where("id = ?", existing.ID).
				Update("kind", kind).Error; err != nil {
				return utils.Upstream("error updating vote", err)
			}
			outcome = VoteOutcome{Action: VoteChanged, Previous: existing.Kind, Current: kind}
			return nil
		}
	})

	return outcome, err
}

// Get returns the voter's current vote kind on a post, with ok=false when
// no vote exists. Used by the feed assembler to mark the viewer's votes.
func (l *VoteLedger) Get(postID, voterID uint) (models.VoteKind, bool, error) {
	var vote models.Vote
	err := l.db.Where("post_id = ? AND voter_id = ?", postID, voterID).First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, utils.Upstream("error loading vote", err)
	}
	return vote.Kind, true, nil
}

// GetMany returns the voter's votes across a set of posts in one query.
func (l *VoteLedger) GetMany(postIDs []uint, voterID uint) (map[uint]models.VoteKind, error) {
	kinds := make(map[uint]models.VoteKind, len(postIDs))
	if len(postIDs) == 0 || voterID == 0 {
		return kinds, nil
	}

	var votes []models.Vote
	if err := l.db.Where("post_id IN ? AND voter_id = ?", postIDs, voterID).Find(&votes).Error; err != nil {
		return nil, utils.Upstream("error loading votes", err)
	}

	for _, v := range votes {
		kinds[v.PostID] = v.Kind
	}
	return kinds, nil
}
