package folder

import (
	"errors"
	"net/http"

	"github.com/abduss/driveingest/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RegisterRoutes mounts folder endpoints onto the router.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/drive/folders", handler.createFolder)
	group.GET("/drive/folders", handler.listFolders)
	group.GET("/drive/folders/:folderID", handler.getFolder)
}

type httpHandler struct {
	service *Service
}

type createFolderRequest struct {
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parentId"`
}

func (h *httpHandler) createFolder(c *gin.Context) {
	accountID, ok := auth.RequireAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parentID, err := parseOptionalID(req.ParentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent id"})
		return
	}

	folder, err := h.service.CreateFolder(c.Request.Context(), accountID, req.Name, parentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder name"})
		case errors.Is(err, ErrFolderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "parent folder not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create folder"})
		}
		return
	}

	c.JSON(http.StatusCreated, folder)
}

func (h *httpHandler) listFolders(c *gin.Context) {
	accountID, ok := auth.RequireAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var raw *string
	if v, present := c.GetQuery("parentId"); present {
		raw = &v
	}
	parentID, err := parseOptionalID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent id"})
		return
	}

	folders, err := h.service.ListFolders(c.Request.Context(), accountID, parentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list folders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

func (h *httpHandler) getFolder(c *gin.Context) {
	accountID, ok := auth.RequireAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	folderID, err := uuid.Parse(c.Param("folderID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid folder id"})
		return
	}

	folder, err := h.service.GetFolder(c.Request.Context(), accountID, folderID)
	if err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load folder"})
		return
	}

	c.JSON(http.StatusOK, folder)
}

func parseOptionalID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
