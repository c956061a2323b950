package feed

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/threadline/threadline-server/cmd/models"
	"github.com/threadline/threadline-server/cmd/utils"
	"gorm.io/gorm"
)

type PostHandler struct {
	db        *gorm.DB
	assembler *Assembler
}

func NewPostHandler(db *gorm.DB) *PostHandler {
	return &PostHandler{db: db, assembler: NewAssembler(db)}
}

func (h *PostHandler) RegisterRoutes(router *mux.Router) {
	// Post routes
	router.HandleFunc("/posts", utils.AuthRequired(h.CreatePost)).Methods("POST")
	router.HandleFunc("/posts", utils.AuthOptional(h.GetPosts)).Methods("GET")
	router.HandleFunc("/posts/{id}", utils.AuthOptional(h.GetPost)).Methods("GET")
	router.HandleFunc("/posts/{id}", utils.AuthRequired(h.DeletePost)).Methods("DELETE")

	// Vote routes
	router.HandleFunc("/posts/{id}/vote", utils.AuthRequired(h.VotePost)).Methods("POST")
	router.HandleFunc("/posts/{id}/vote", utils.AuthRequired(h.GetVote)).Methods("GET")

	// Comment routes
	router.HandleFunc("/posts/{id}/comments", utils.AuthRequired(h.AddComment)).Methods("POST")
	router.HandleFunc("/posts/{id}/comments", h.GetComments).Methods("GET")
}

func postIDFromRequest(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	postID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		return 0, utils.InvalidArgument("invalid post ID")
	}
	return uint(postID), nil
}

// CreatePost creates a new post. Accepts JSON or, like the original
// client, multipart form data with an optional image upload.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var title, content, imageURL string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Title    string `json:"title"`
			Content  string `json:"content"`
			ImageURL string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.WriteError(w, utils.InvalidArgument("invalid request body"))
			return
		}
		title, content, imageURL = body.Title, body.Content, body.ImageURL
	} else {
		if err := r.ParseMultipartForm(utils.MaxImageSize); err != nil {
			utils.WriteError(w, utils.InvalidArgument("error parsing form"))
			return
		}
		title = r.FormValue("title")
		content = r.FormValue("content")

		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			file, err := files[0].Open()
			if err != nil {
				utils.WriteError(w, utils.InvalidArgument("error processing image"))
				return
			}
			defer file.Close()

			imageURL, err = utils.SaveImage(file, files[0])
			if err != nil {
				utils.WriteError(w, utils.InvalidArgument(err.Error()))
				return
			}
		}
	}

	if strings.TrimSpace(title) == "" {
		utils.WriteError(w, utils.InvalidArgument("title is required"))
		return
	}
	if strings.TrimSpace(content) == "" {
		utils.WriteError(w, utils.InvalidArgument("content is required"))
		return
	}

	post := models.Post{
		UserID:   userID,
		Title:    title,
		Content:  content,
		ImageURL: imageURL,
	}

	if err := h.db.Create(&post).Error; err != nil {
		utils.WriteError(w, utils.Upstream("error creating post", err))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"post": post,
	})
}

// GetPosts retrieves one feed page with tallies and comment counts.
func (h *PostHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	pageSize := DefaultPageSize

	viewerID := utils.ViewerID(r.Context())

	views, total, err := h.assembler.ListFeed(page, pageSize, viewerID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"posts":       views,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetPost retrieves a single post with its full threaded comment tree.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDFromRequest(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	view, err := h.assembler.GetPost(postID, utils.ViewerID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"post": view,
	})
}

// DeletePost deletes a post and its dependent votes and comments. Only
// the post's author may delete it.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	postID, err := postIDFromRequest(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var post models.Post
	if err := h.db.First(&post, postID).Error; err != nil {
		utils.WriteError(w, utils.NotFound("post not found"))
		return
	}

	if post.UserID != userID {
		utils.WriteError(w, utils.Unauthorized("only the author can delete this post"))
		return
	}

	tx := h.db.Begin()

	if err := tx.Where("post_id = ?", postID).Delete(&models.Vote{}).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, utils.Upstream("error deleting votes", err))
		return
	}

	if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, utils.Upstream("error deleting comments", err))
		return
	}

	if err := tx.Delete(&post).Error; err != nil {
		tx.Rollback()
		utils.WriteError(w, utils.Upstream("error deleting post", err))
		return
	}

	if err := tx.Commit().Error; err != nil {
		utils.WriteError(w, utils.Upstream("error deleting post", err))
		return
	}

	if post.ImageURL != "" {
		utils.DeleteImage(post.ImageURL)
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Post deleted successfully",
	})
}

// VotePost applies one vote action through the toggle state machine and
// returns the outcome with the post's refreshed tally.
func (h *PostHandler) VotePost(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	postID, err := postIDFromRequest(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var body struct {
		Kind models.VoteKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, utils.InvalidArgument("invalid request body"))
		return
	}

	outcome, err := h.assembler.Ledger().Apply(postID, userID, body.Kind)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	tally, err := h.assembler.Aggregator().Tally(postID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"outcome": outcome,
		"tally":   tally,
	})
}

// GetVote returns the viewer's current vote on a post.
func (h *PostHandler) GetVote(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	postID, err := postIDFromRequest(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	kind, hasVoted, err := h.assembler.Ledger().Get(postID, userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"has_voted": hasVoted,
		"kind":      kind,
	})
}

// AddComment adds a comment to a post, optionally threaded under a
// parent comment.
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	postID, err := postIDFromRequest(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var body struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, utils.InvalidArgument("invalid request body"))
		return
	}

	comment, err := h.assembler.Comments().Add(postID, userID, body.Content, body.ParentID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"comment": comment,
	})
}

// GetComments retrieves a post's comments, flat by default or threaded
// with ?mode=threaded.
func (h *PostHandler) GetComments(w http.ResponseWriter, r *http.Request) {
	postID, err := postIDFromRequest(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var post models.Post
	if err := h.db.Select("id").First(&post, postID).Error; err != nil {
		utils.WriteError(w, utils.NotFound("post not found"))
		return
	}

	mode := CommentsFlat
	if r.URL.Query().Get("mode") == string(CommentsThreaded) {
		mode = CommentsThreaded
	}

	comments, err := h.assembler.Comments().Attach(postID, mode)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"comments": comments,
		"mode":     mode,
	})
}
