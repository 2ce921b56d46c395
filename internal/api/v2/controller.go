// Package api implements the v2 HTTP API for fleet rules, alerts, and
// ad-hoc aggregation queries.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/fleet"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

// Controller handles all v2 API endpoints.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	fleet     *fleet.Service
	ruleRepo  repository.GlobalRuleRepository
	alertRepo repository.GlobalAlertRepository
	log       logger.Logger
}

// New creates the API controller and registers all routes under /api/v2.
func New(e *echo.Echo, fleetSvc *fleet.Service, ruleRepo repository.GlobalRuleRepository, alertRepo repository.GlobalAlertRepository, log logger.Logger) *Controller {
	c := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v2"),
		fleet:     fleetSvc,
		ruleRepo:  ruleRepo,
		alertRepo: alertRepo,
		log:       log,
	}

	c.initRuleRoutes()
	c.initAlertRoutes()
	c.initFleetRoutes()
	c.initNotificationRoutes()

	return c
}

// HandleError logs the error and returns a JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	if c.log != nil {
		c.log.Error(message,
			logger.String("path", ctx.Request().URL.Path),
			logger.Error(err))
	}
	return ctx.JSON(code, map[string]string{"error": message})
}

// logInfo logs at info level if a logger is configured.
func (c *Controller) logInfo(msg string, fields ...logger.Field) {
	if c.log != nil {
		c.log.Info(msg, fields...)
	}
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func notFound(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusNotFound, map[string]string{"error": message})
}
