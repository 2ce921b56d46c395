package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/fleet"
	"github.com/sensorvision/sensorvision-go/internal/logger"
)

// initRuleRoutes registers fleet rule management endpoints.
func (c *Controller) initRuleRoutes() {
	rules := c.Group.Group("/rules")

	rules.GET("", c.ListRules)
	rules.GET("/:id", c.GetRule)
	rules.POST("", c.CreateRule)
	rules.PUT("/:id", c.UpdateRule)
	rules.PATCH("/:id/toggle", c.ToggleRule)
	rules.DELETE("/:id", c.DeleteRule)
	rules.POST("/:id/evaluate", c.EvaluateRule)
	rules.POST("/evaluate-due", c.EvaluateDueRules)
}

// ListRules returns all rules of an organization.
func (c *Controller) ListRules(ctx echo.Context) error {
	orgID, err := parseOrganizationID(ctx)
	if err != nil {
		return badRequest(ctx, "Invalid or missing organization_id")
	}

	rules, err := c.ruleRepo.ListRules(ctx.Request().Context(), orgID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list rules", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRule returns a single rule by ID.
func (c *Controller) GetRule(ctx echo.Context) error {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	rule, err := c.ruleRepo.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrGlobalRuleNotFound) {
			return notFound(ctx, "Rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get rule", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, rule)
}

// CreateRule creates a new fleet rule.
func (c *Controller) CreateRule(ctx echo.Context) error {
	var rule entities.GlobalRule
	if err := ctx.Bind(&rule); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	if err := fleet.ValidateRule(&rule); err != nil {
		return badRequest(ctx, err.Error())
	}

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	// Bookkeeping fields are owned by the evaluation engine.
	rule.LastEvaluatedAt = nil
	rule.LastTriggeredAt = nil

	if err := c.ruleRepo.CreateRule(ctx.Request().Context(), &rule); err != nil {
		return c.HandleError(ctx, err, "Failed to create rule", http.StatusInternalServerError)
	}

	c.logInfo("fleet rule created",
		logger.String("rule_id", rule.ID.String()),
		logger.String("name", rule.Name))

	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateRule replaces an existing rule. Evaluation bookkeeping is preserved
// from the stored rule.
func (c *Controller) UpdateRule(ctx echo.Context) error {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	existing, err := c.ruleRepo.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrGlobalRuleNotFound) {
			return notFound(ctx, "Rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get rule", http.StatusInternalServerError)
	}

	var rule entities.GlobalRule
	if err := ctx.Bind(&rule); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	if err := fleet.ValidateRule(&rule); err != nil {
		return badRequest(ctx, err.Error())
	}

	rule.ID = existing.ID
	rule.OrganizationID = existing.OrganizationID
	rule.CreatedAt = existing.CreatedAt
	rule.LastEvaluatedAt = existing.LastEvaluatedAt
	rule.LastTriggeredAt = existing.LastTriggeredAt

	if err := c.ruleRepo.UpdateRule(ctx.Request().Context(), &rule); err != nil {
		return c.HandleError(ctx, err, "Failed to update rule", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, rule)
}

// ToggleRule enables or disables a rule.
func (c *Controller) ToggleRule(ctx echo.Context) error {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	if err := c.ruleRepo.ToggleRule(ctx.Request().Context(), id, body.Enabled); err != nil {
		if errors.Is(err, repository.ErrGlobalRuleNotFound) {
			return notFound(ctx, "Rule not found")
		}
		return c.HandleError(ctx, err, "Failed to toggle rule", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "enabled": body.Enabled})
}

// DeleteRule deletes a rule.
func (c *Controller) DeleteRule(ctx echo.Context) error {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	if err := c.ruleRepo.DeleteRule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrGlobalRuleNotFound) {
			return notFound(ctx, "Rule not found")
		}
		return c.HandleError(ctx, err, "Failed to delete rule", http.StatusInternalServerError)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// EvaluateRule runs a single rule evaluation immediately.
func (c *Controller) EvaluateRule(ctx echo.Context) error {
	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	rule, err := c.ruleRepo.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrGlobalRuleNotFound) {
			return notFound(ctx, "Rule not found")
		}
		return c.HandleError(ctx, err, "Failed to get rule", http.StatusInternalServerError)
	}

	outcome, err := c.fleet.EvaluateRule(ctx.Request().Context(), rule)
	if err != nil {
		return c.HandleError(ctx, err, "Rule evaluation failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"rule_id": rule.ID,
		"outcome": outcome,
	})
}

// EvaluateDueRules runs all rules whose evaluation interval has elapsed.
func (c *Controller) EvaluateDueRules(ctx echo.Context) error {
	evaluated, err := c.fleet.EvaluateDueRules(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Evaluation sweep failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"evaluated": evaluated})
}

// parseUUIDParam parses a UUID route parameter.
func parseUUIDParam(ctx echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(ctx.Param(name))
}

// parseOrganizationID parses the organization_id query parameter.
func parseOrganizationID(ctx echo.Context) (uuid.UUID, error) {
	return uuid.Parse(ctx.QueryParam("organization_id"))
}
