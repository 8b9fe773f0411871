package server

import (
	"net/http"

	"github.com/abduss/driveingest/internal/blobstore"
	"github.com/gin-gonic/gin"
)

func registerFileRoutes(router *gin.Engine, local *blobstore.Local) {
	router.GET("/files/:key", func(c *gin.Context) {
		path, err := local.Path(c.Param("key"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.Header("Cache-Control", blobstore.CacheControl)
		c.File(path)
	})
}
