package feed

import (
	"github.com/threadline/threadline-server/cmd/models"
	"github.com/threadline/threadline-server/cmd/utils"
	"gorm.io/gorm"
)

// Tally is the derived vote summary for a post, recomputed from vote rows
// on every read.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	Score     int `json:"score"`
}

// Aggregator reduces vote and comment rows into per-post counts. It is a
// pure read of the current rows; nothing is cached between calls, so a
// tally always reflects the latest committed ledger state.
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

func (a *Aggregator) Tally(postID uint) (Tally, error) {
	tallies, err := a.TallyMany([]uint{postID})
	if err != nil {
		return Tally{}, err
	}
	return tallies[postID], nil
}

// TallyMany computes tallies for a set of posts with a single grouped
// query. Posts with no votes get a zero tally rather than a missing entry.
func (a *Aggregator) TallyMany(postIDs []uint) (map[uint]Tally, error) {
	tallies := make(map[uint]Tally, len(postIDs))
	for _, id := range postIDs {
		tallies[id] = Tally{}
	}
	if len(postIDs) == 0 {
		return tallies, nil
	}

	var rows []struct {
		PostID uint
		Kind   models.VoteKind
		Count  int
	}
	err := a.db.Model(&models.Vote{}).
		Select("post_id, kind, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id, kind").
		Find(&rows).Error
	if err != nil {
		return nil, utils.Upstream("error counting votes", err)
	}

	for _, row := range rows {
		t := tallies[row.PostID]
		switch row.Kind {
		case models.VoteUp:
			t.Upvotes = row.Count
		case models.VoteDown:
			t.Downvotes = row.Count
		}
		t.Score = t.Upvotes - t.Downvotes
		tallies[row.PostID] = t
	}

	return tallies, nil
}

func (a *Aggregator) CommentCount(postID uint) (int64, error) {
	counts, err := a.CommentCountMany([]uint{postID})
	if err != nil {
		return 0, err
	}
	return counts[postID], nil
}

func (a *Aggregator) CommentCountMany(postIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(postIDs))
	for _, id := range postIDs {
		counts[id] = 0
	}
	if len(postIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		PostID uint
		Count  int64
	}
	err := a.db.Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Find(&rows).Error
	if err != nil {
		return nil, utils.Upstream("error counting comments", err)
	}

	for _, row := range rows {
		counts[row.PostID] = row.Count
	}

	return counts, nil
}
