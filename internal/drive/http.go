package drive

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/abduss/driveingest/internal/fileinfo"
	"github.com/abduss/driveingest/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type accountStore interface {
	FindAccount(ctx context.Context, id uuid.UUID) (auth.Account, error)
}

// RegisterRoutes mounts drive file endpoints onto the router.
func RegisterRoutes(group *gin.RouterGroup, service *Service, accounts accountStore, log *zap.Logger) {
	handler := &httpHandler{service: service, accounts: accounts, log: log.Named("drive.http")}
	group.POST("/drive/files/create", handler.createFile)
	group.GET("/drive/files", handler.listFiles)
	group.GET("/drive/files/:fileID", handler.showFile)
	group.DELETE("/drive/files/:fileID", handler.deleteFile)
}

type httpHandler struct {
	service  *Service
	accounts accountStore
	log      *zap.Logger
}

func (h *httpHandler) createFile(c *gin.Context) {
	accountID, ok := auth.RequireAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	account, err := h.accounts.FindAccount(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.fail(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	folderID, err := parseOptionalID(c.PostForm("folderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder id"})
		return
	}
	force, err := parseOptionalBool(c.PostForm("force"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid force flag"})
		return
	}
	sensitive, err := parseOptionalBool(c.PostForm("isSensitive"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid isSensitive flag"})
		return
	}

	tmp, err := os.CreateTemp("", "drive-upload-*")
	if err != nil {
		h.fail(c, err)
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		h.fail(c, err)
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = fileHeader.Filename
	}
	var comment *string
	if v, ok := c.GetPostForm("comment"); ok {
		comment = &v
	}

	file, err := h.service.Register(c.Request.Context(), RegisterInput{
		Account:   &account,
		Path:      tmpPath,
		Name:      name,
		Comment:   comment,
		FolderID:  folderID,
		Force:     force != nil && *force,
		Sensitive: sensitive,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Pack(file))
}

func (h *httpHandler) listFiles(c *gin.Context) {
	accountID, ok := auth.RequireAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	folderID, err := parseOptionalID(c.Query("folderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder id"})
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	files, err := h.service.List(c.Request.Context(), accountID, folderID, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	packed := make([]Packed, 0, len(files))
	for _, f := range files {
		packed = append(packed, Pack(f))
	}
	c.JSON(http.StatusOK, gin.H{"files": packed})
}

func (h *httpHandler) showFile(c *gin.Context) {
	accountID, ok := auth.RequireAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	file, err := h.service.Get(c.Request.Context(), accountID, fileID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Pack(file))
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	accountID, ok := auth.RequireAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	file, err := h.service.Get(c.Request.Context(), accountID, fileID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), file); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fileinfo.ErrUnreadable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "file could not be read"})
	case errors.Is(err, ErrQuotaExceeded):
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": "no free space"})
	case errors.Is(err, ErrFolderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
	case errors.Is(err, ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
	default:
		h.log.Error("drive request failed",
			zap.String("correlation_id", logger.CorrelationID(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseOptionalID(raw string) (*uuid.UUID, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
