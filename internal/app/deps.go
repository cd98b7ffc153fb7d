package app

import (
	"github.com/rs/zerolog"

	"wakehub/internal/config"
	"wakehub/internal/metrics"
	"wakehub/internal/model"
	"wakehub/internal/registry"
	"wakehub/internal/sched"
	"wakehub/internal/settings"
	"wakehub/internal/store"
	"wakehub/internal/wake"
)

// Deps bundles the long-lived components handed to the HTTP handlers.
type Deps struct {
	Cfg      config.Config
	Log      zerolog.Logger
	Store    *store.Store
	Settings *settings.Service
	Model    *model.Model
	Loop     *sched.Loop
	Registry *registry.Registry
	Wake     *wake.Scheduler
	Metrics  *metrics.Metrics
}
