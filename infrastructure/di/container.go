package di

import (
	"go.uber.org/zap"

	"path-backend/application/services"
	"path-backend/infrastructure/config"
	"path-backend/interfaces/http/rest"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Backend      *Backend
	Memos        *services.MemoService
	Drafts       *services.DraftService
	Reservations *services.ReservationManager
	Router       *rest.Router
}
