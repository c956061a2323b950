package feed

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/threadline/threadline-server/cmd/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a throwaway in-memory database per test. The shared
// cache keeps every pooled connection on the same database; the test name
// in the DSN keeps tests isolated from each other.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Vote{}, &models.Comment{}); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()

	user := models.User{Username: username}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}
	return user
}

func createPost(t *testing.T, db *gorm.DB, userID uint, title string) models.Post {
	t.Helper()

	post := models.Post{UserID: userID, Title: title, Content: "body of " + title}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("creating post %s: %v", title, err)
	}
	return post
}

func createPostAt(t *testing.T, db *gorm.DB, userID uint, title string, createdAt time.Time) models.Post {
	t.Helper()

	post := models.Post{UserID: userID, Title: title, Content: "body of " + title}
	post.CreatedAt = createdAt
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("creating post %s: %v", title, err)
	}
	return post
}

func createComment(t *testing.T, db *gorm.DB, postID, userID uint, content string, parentID *uint, createdAt time.Time) models.Comment {
	t.Helper()

	comment := models.Comment{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		ParentID:  parentID,
		CreatedAt: createdAt,
	}
	if err := db.Create(&comment).Error; err != nil {
		t.Fatalf("creating comment %q: %v", content, err)
	}
	return comment
}

func countVotes(t *testing.T, db *gorm.DB, postID, voterID uint) int64 {
	t.Helper()

	var count int64
	err := db.Model(&models.Vote{}).
		Where("post_id = ? AND voter_id = ?", postID, voterID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("counting votes: %v", err)
	}
	return count
}
