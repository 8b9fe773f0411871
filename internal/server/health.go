package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 5 * time.Second

// HealthCheck probes one backing component for readiness.
type HealthCheck struct {
	Component string
	Check     func(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// PostgresCheck reports whether the pool answers a ping.
func PostgresCheck(db pinger) HealthCheck {
	return HealthCheck{Component: "postgres", Check: db.Ping}
}

// RedisCheck reports whether the event broker answers a ping.
func RedisCheck(client *redis.Client) HealthCheck {
	return HealthCheck{Component: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// ObjectStorageCheck reports whether the drive bucket is reachable.
func ObjectStorageCheck(client *minio.Client, bucket string) HealthCheck {
	return HealthCheck{Component: "object_storage", Check: func(ctx context.Context) error {
		_, err := client.BucketExists(ctx, bucket)
		return err
	}}
}

func registerHealthRoutes(router *gin.Engine, checks []HealthCheck) {
	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "degraded",
					"component": check.Component,
					"error":     err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
