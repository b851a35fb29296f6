package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vnkhanh/comuni-server/middleware"
)

const maxCoverSize = 5 << 20

// UploadGroupCover stores the "file" form field as the group's cover image.
// RequireGroupAdmin runs first and leaves the group id in the context.
func (h *Handler) UploadGroupCover(c *gin.Context) {
	v, _ := c.Get(middleware.CtxGroupID)
	groupID, ok := v.(uuid.UUID)
	if !ok {
		if groupID, ok = paramUUID(c, "id"); !ok {
			return
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "File is missing"})
		return
	}
	if fileHeader.Size > maxCoverSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Cover images must be 5 MB or smaller"})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"message": "Cover must be an image"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot read file"})
		return
	}
	defer f.Close()

	log.WithFields(log.Fields{"group_id": groupID, "file": fileHeader.Filename, "size": fileHeader.Size}).Info("upload: group cover")

	g, err := h.svc.Groups.SetCover(c.Request.Context(), groupID, fileHeader.Filename, contentType, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cover uploaded", "url": g.CoverURL, "data": g})
}
