package user

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/threadline/threadline-server/cmd/models"
	"github.com/threadline/threadline-server/cmd/utils"
	"gorm.io/gorm"
)

// Handler serves the thin profile surface. Identity itself lives with the
// external auth provider; this service only keeps the username/avatar
// projection the feed joins in.
type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me", utils.AuthRequired(h.UpsertProfile)).Methods("POST")
	router.HandleFunc("/users/{id}", h.GetUser).Methods("GET")
	router.HandleFunc("/images/{filename}", h.ServeImage).Methods("GET")
}

// UpsertProfile creates the caller's profile row on first login and
// updates it afterwards.
func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var body struct {
		Username  string `json:"username"`
		AvatarURL string `json:"avatar_url"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	if strings.TrimSpace(body.Username) == "" {
		body.Username = models.DefaultUsername(userID)
	}

	user := models.User{Model: gorm.Model{ID: userID}, Username: body.Username}
	if err := h.db.Where("id = ?", userID).FirstOrCreate(&user).Error; err != nil {
		utils.WriteError(w, utils.Upstream("error creating profile", err))
		return
	}

	user.Username = body.Username
	if body.AvatarURL != "" {
		user.AvatarURL = body.AvatarURL
	}
	if err := h.db.Save(&user).Error; err != nil {
		utils.WriteError(w, utils.Upstream("error updating profile", err))
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user": user.Summary(),
	})
}

// GetUser returns one author summary.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, utils.InvalidArgument("invalid user ID"))
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		utils.WriteError(w, utils.NotFound("user not found"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user": user.Summary(),
	})
}

// ServeImage serves uploaded post images.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	filename := vars["filename"]

	if strings.Contains(filename, "..") {
		utils.WriteError(w, utils.InvalidArgument("invalid path"))
		return
	}

	http.ServeFile(w, r, filepath.Join(utils.ImagePath, filepath.Clean(filename)))
}
