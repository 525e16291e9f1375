package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finlix/backend/internal/models"
	"github.com/finlix/backend/internal/services"
	"github.com/finlix/backend/internal/storage"
	"github.com/finlix/backend/internal/utils"
)

const maxAvatarBytes = 5 << 20

type ProfileHandler struct {
	svc     services.UserService
	uploads storage.Uploader
}

// NewProfileHandler builds the profile routes. uploads may be nil, in which
// case photo uploads answer 503.
func NewProfileHandler(svc services.UserService, uploads storage.Uploader) *ProfileHandler {
	return &ProfileHandler{svc: svc, uploads: uploads}
}

func (h *ProfileHandler) Me(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}

	u, err := h.svc.FindByEmail(c.Request.Context(), email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}

type UpdateProfileRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

func (h *ProfileHandler) Update(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !bindBody(c, "ProfileHandler.Update", &req) {
		return
	}

	if _, err := h.svc.UpdateOwnProfile(c.Request.Context(), email, models.ProfileFields{Name: req.Name, PhotoURL: req.PhotoURL}); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Profile updated successfully"})
}

func (h *ProfileHandler) UploadPhoto(c *gin.Context) {
	const op = "ProfileHandler.UploadPhoto"

	email, ok := requireEmail(c)
	if !ok {
		return
	}
	if h.uploads == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "photo uploads are not configured", nil))
		return
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'photo'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > maxAvatarBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large (max 5MB)", nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	// sniff the real type instead of trusting the part header
	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	head = head[:n]
	ct := http.DetectContentType(head)

	objectName, ok := storage.AvatarObjectName(ct)
	if !ok {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unsupported image type", nil))
		return
	}

	url, err := h.uploads.Upload(c.Request.Context(), objectName, ct, io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "Failed to upload photo", err))
		return
	}

	cur, err := h.svc.FindByEmail(c.Request.Context(), email)
	if err != nil {
		writeError(c, err)
		return
	}
	u, err := h.svc.UpdateOwnProfile(c.Request.Context(), email, models.ProfileFields{Name: cur.Name, PhotoURL: url})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, u)
}
