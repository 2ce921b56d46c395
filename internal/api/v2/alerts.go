package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 200
)

// initAlertRoutes registers fired-alert endpoints.
func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")

	alerts.GET("", c.ListAlerts)
	alerts.PATCH("/:id/acknowledge", c.AcknowledgeAlert)
}

// ListAlerts returns paginated fired alerts for an organization.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	orgID, err := parseOrganizationID(ctx)
	if err != nil {
		return badRequest(ctx, "Invalid or missing organization_id")
	}

	filter := repository.GlobalAlertFilter{Limit: defaultAlertLimit}

	if ruleParam := ctx.QueryParam("rule_id"); ruleParam != "" {
		ruleID, err := uuid.Parse(ruleParam)
		if err != nil {
			return badRequest(ctx, "Invalid rule_id")
		}
		filter.RuleID = ruleID
	}
	if ackParam := ctx.QueryParam("acknowledged"); ackParam != "" {
		v := ackParam == "true"
		filter.Acknowledged = &v
	}
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		if v, err := strconv.Atoi(limitParam); err == nil && v > 0 {
			filter.Limit = min(v, maxAlertLimit)
		}
	}
	if offsetParam := ctx.QueryParam("offset"); offsetParam != "" {
		if v, err := strconv.Atoi(offsetParam); err == nil && v >= 0 {
			filter.Offset = v
		}
	}

	alerts, total, err := c.alertRepo.ListAlerts(ctx.Request().Context(), orgID, filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// AcknowledgeAlert marks a fired alert acknowledged, removing its devices
// from the alerting count.
func (c *Controller) AcknowledgeAlert(ctx echo.Context) error {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}

	if err := c.alertRepo.AcknowledgeAlert(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrGlobalAlertNotFound) {
			return notFound(ctx, "Alert not found")
		}
		return c.HandleError(ctx, err, "Failed to acknowledge alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "acknowledged": true})
}
