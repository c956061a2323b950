package feed

import (
	"errors"
	"strings"

	"github.com/threadline/threadline-server/cmd/models"
	"github.com/threadline/threadline-server/cmd/utils"
	"gorm.io/gorm"
)

// CommentMode selects how a post's comments are shaped on read.
type CommentMode string

const (
	CommentsFlat     CommentMode = "flat"
	CommentsThreaded CommentMode = "threaded"
)

// CommentNode is one comment with its author summary and, in threaded
// mode, its direct replies.
type CommentNode struct {
	models.Comment
	Author  models.AuthorSummary `json:"author"`
	Replies []*CommentNode       `json:"replies,omitempty"`
}

// CommentTreeBuilder creates comments and shapes them into a flat
// chronological list or a parent-linked forest.
type CommentTreeBuilder struct {
	db *gorm.DB
}

func NewCommentTreeBuilder(db *gorm.DB) *CommentTreeBuilder {
	return &CommentTreeBuilder{db: db}
}

// Add validates and inserts one comment. A parent id, when given, must
// resolve to a comment on the same post.
func (b *CommentTreeBuilder) Add(postID, authorID uint, content string, parentID *uint) (*models.Comment, error) {
	if authorID == 0 {
		return nil, utils.Unauthorized("author identity required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, utils.InvalidArgument("comment content is required")
	}

	var post models.Post
	if err := b.db.Select("id").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("post not found")
		}
		return nil, utils.Upstream("error loading post", err)
	}

	if parentID != nil {
		var parent models.Comment
		if err := b.db.Select("id, post_id").First(&parent, *parentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.NotFound("parent comment not found")
			}
			return nil, utils.Upstream("error loading parent comment", err)
		}
		if parent.PostID != postID {
			return nil, utils.NotFound("parent comment belongs to a different post")
		}
	}

	comment := models.Comment{
		PostID:   postID,
		UserID:   authorID,
		Content:  content,
		ParentID: parentID,
	}
	if err := b.db.Create(&comment).Error; err != nil {
		return nil, utils.Upstream("error creating comment", err)
	}

	return &comment, nil
}

// Attach returns a post's comments in the requested mode, ordered by
// creation time ascending with id as the tie-break.
func (b *CommentTreeBuilder) Attach(postID uint, mode CommentMode) ([]*CommentNode, error) {
	nodes, err := b.load(postID)
	if err != nil {
		return nil, err
	}

	if mode == CommentsThreaded {
		return thread(nodes), nil
	}
	return nodes, nil
}

func (b *CommentTreeBuilder) load(postID uint) ([]*CommentNode, error) {
	var comments []models.Comment
	err := b.db.Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, utils.Upstream("error loading comments", err)
	}

	authors, err := loadAuthors(b.db, commentAuthorIDs(comments))
	if err != nil {
		return nil, err
	}

	nodes := make([]*CommentNode, len(comments))
	for i, c := range comments {
		nodes[i] = &CommentNode{Comment: c, Author: authorOrUnknown(authors, c.UserID)}
	}
	return nodes, nil
}

// thread groups an ordered flat list into a forest. Only comments of the
// same post are in the input, so a parent reference pointing at another
// post's comment (or a missing one) finds no node here and the comment is
// kept as a root instead of being dropped.
func thread(nodes []*CommentNode) []*CommentNode {
	byID := make(map[uint]*CommentNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	var roots []*CommentNode
	for _, n := range nodes {
		if n.ParentID != nil {
			if parent, ok := byID[*n.ParentID]; ok && parent != n {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

func commentAuthorIDs(comments []models.Comment) []uint {
	seen := make(map[uint]bool, len(comments))
	var ids []uint
	for _, c := range comments {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			ids = append(ids, c.UserID)
		}
	}
	return ids
}
