package rules

import (
	"github.com/Varun2365/funnelseye/internal/config_handler"
	"github.com/Varun2365/funnelseye/internal/logger"
	"github.com/Varun2365/funnelseye/pkg/models"
)

type Handler = config_handler.Handler

func NewHandler(service *Service, log logger.Logger) *Handler {
	return config_handler.NewHandler(
		models.EventTypeAutomationRuleUpdated,
		service,
		log,
	)
}
