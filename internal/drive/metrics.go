package drive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godrive_drive_registrations_total",
		Help: "Drive file registrations by outcome.",
	}, []string{"result"})
	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "godrive_drive_evictions_total",
		Help: "Remote files scheduled for eviction to free quota.",
	})
	thumbnailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "godrive_drive_thumbnails_total",
		Help: "Thumbnail generation attempts for stored files.",
	}, []string{"result"})
)
