package feed

import (
	"errors"
	"log"

	"github.com/threadline/threadline-server/cmd/models"
	"github.com/threadline/threadline-server/cmd/utils"
	"gorm.io/gorm"
)

// DefaultPageSize is the fixed feed page size.
const DefaultPageSize = 20

// PostView is the composed representation returned to clients: the post
// plus author summary, tally, comment data and, for authenticated
// viewers, their own vote.
type PostView struct {
	models.Post
	Author       models.AuthorSummary `json:"author"`
	Tally        Tally                `json:"tally"`
	CommentCount int64                `json:"comment_count"`
	ViewerVote   models.VoteKind      `json:"viewer_vote,omitempty"`
	HasVoted     bool                 `json:"has_voted"`
	CommentTree  []*CommentNode       `json:"comments,omitempty"`
}

// Assembler composes the vote ledger, aggregator and comment tree builder
// into feed and single-post views. Every view is recomputed from rows at
// request time.
type Assembler struct {
	db       *gorm.DB
	ledger   *VoteLedger
	agg      *Aggregator
	comments *CommentTreeBuilder
}

func NewAssembler(db *gorm.DB) *Assembler {
	return &Assembler{
		db:       db,
		ledger:   NewVoteLedger(db),
		agg:      NewAggregator(db),
		comments: NewCommentTreeBuilder(db),
	}
}

func (a *Assembler) Ledger() *VoteLedger           { return a.ledger }
func (a *Assembler) Aggregator() *Aggregator       { return a.agg }
func (a *Assembler) Comments() *CommentTreeBuilder { return a.comments }

// ListFeed returns one page of posts ordered by creation time descending.
// page is zero-based; viewerID may be 0 for anonymous requests. A missing
// author profile downgrades to a placeholder, but count failures abort
// the page: partial aggregates are worse than an explicit error.
func (a *Assembler) ListFeed(page, pageSize int, viewerID uint) ([]PostView, int64, error) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var total int64
	if err := a.db.Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, utils.Upstream("error counting posts", err)
	}

	var posts []models.Post
	err := a.db.Order("created_at DESC, id DESC").
		Offset(page * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, utils.Upstream("error retrieving posts", err)
	}

	views, err := a.assemble(posts, viewerID)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// GetPost returns one post with its full threaded comment tree.
func (a *Assembler) GetPost(postID, viewerID uint) (*PostView, error) {
	var post models.Post
	if err := a.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("post not found")
		}
		return nil, utils.Upstream("error loading post", err)
	}

	views, err := a.assemble([]models.Post{post}, viewerID)
	if err != nil {
		return nil, err
	}
	view := views[0]

	tree, err := a.comments.Attach(postID, CommentsThreaded)
	if err != nil {
		return nil, err
	}
	view.CommentTree = tree

	return &view, nil
}

func (a *Assembler) assemble(posts []models.Post, viewerID uint) ([]PostView, error) {
	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	tallies, err := a.agg.TallyMany(postIDs)
	if err != nil {
		return nil, err
	}

	commentCounts, err := a.agg.CommentCountMany(postIDs)
	if err != nil {
		return nil, err
	}

	viewerVotes, err := a.ledger.GetMany(postIDs, viewerID)
	if err != nil {
		return nil, err
	}

	authorIDs := make([]uint, 0, len(posts))
	seen := make(map[uint]bool, len(posts))
	for _, p := range posts {
		if !seen[p.UserID] {
			seen[p.UserID] = true
			authorIDs = append(authorIDs, p.UserID)
		}
	}
	authors, err := loadAuthors(a.db, authorIDs)
	if err != nil {
		return nil, err
	}

	views := make([]PostView, len(posts))
	for i, p := range posts {
		kind, hasVoted := viewerVotes[p.ID]
		views[i] = PostView{
			Post:         p,
			Author:       authorOrUnknown(authors, p.UserID),
			Tally:        tallies[p.ID],
			CommentCount: commentCounts[p.ID],
			ViewerVote:   kind,
			HasVoted:     hasVoted,
		}
	}
	return views, nil
}

// loadAuthors fetches author summaries in one query. Profile lookup is
// best effort enrichment: a query failure propagates, but individual
// missing rows are handled by authorOrUnknown.
func loadAuthors(db *gorm.DB, userIDs []uint) (map[uint]models.AuthorSummary, error) {
	summaries := make(map[uint]models.AuthorSummary, len(userIDs))
	if len(userIDs) == 0 {
		return summaries, nil
	}

	var users []models.User
	if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, utils.Upstream("error loading author profiles", err)
	}

	for i := range users {
		summaries[users[i].ID] = users[i].Summary()
	}
	return summaries, nil
}

func authorOrUnknown(authors map[uint]models.AuthorSummary, userID uint) models.AuthorSummary {
	if summary, ok := authors[userID]; ok {
		return summary
	}
	log.Printf("author profile %d missing, substituting placeholder", userID)
	return models.UnknownAuthor(userID)
}
