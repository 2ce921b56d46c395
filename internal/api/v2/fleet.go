package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sensorvision/sensorvision-go/internal/datastore/entities"
	"github.com/sensorvision/sensorvision-go/internal/fleet"
)

// initFleetRoutes registers ad-hoc aggregation and statistics endpoints.
func (c *Controller) initFleetRoutes() {
	group := c.Group.Group("/fleet")

	group.GET("/schema", c.GetFleetSchema)
	group.POST("/aggregate", c.ComputeAggregate)
	group.GET("/statistics", c.QueryStatistic)
}

// GetFleetSchema returns the aggregation catalog for UI form building.
func (c *Controller) GetFleetSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, fleet.GetSchema())
}

// aggregateRequest is the body of an ad-hoc aggregation query.
type aggregateRequest struct {
	OrganizationID      uuid.UUID      `json:"organization_id"`
	SelectorType        string         `json:"selector_type"`
	SelectorValue       string         `json:"selector_value"`
	AggregationFunction string         `json:"aggregation_function"`
	AggregationVariable string         `json:"aggregation_variable"`
	AggregationParams   map[string]any `json:"aggregation_params"`
}

// ComputeAggregate runs a one-off fleet aggregation without persisting a rule.
func (c *Controller) ComputeAggregate(ctx echo.Context) error {
	var req aggregateRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if req.OrganizationID == uuid.Nil {
		return badRequest(ctx, "organization_id is required")
	}

	rule := &entities.GlobalRule{
		OrganizationID:      req.OrganizationID,
		SelectorType:        req.SelectorType,
		SelectorValue:       req.SelectorValue,
		AggregationFunction: req.AggregationFunction,
		AggregationVariable: req.AggregationVariable,
		AggregationParams:   req.AggregationParams,
	}

	result, err := c.fleet.ComputeAggregate(ctx.Request().Context(), rule)
	if err != nil {
		if isFleetInputError(err) {
			return badRequest(ctx, err.Error())
		}
		return c.HandleError(ctx, err, "Aggregation failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, result)
}

// QueryStatistic computes a windowed statistic for a single device variable.
func (c *Controller) QueryStatistic(ctx echo.Context) error {
	function := ctx.QueryParam("function")
	device := ctx.QueryParam("device")
	variable := ctx.QueryParam("variable")
	window := ctx.QueryParam("window")

	if function == "" || device == "" || variable == "" || window == "" {
		return badRequest(ctx, "function, device, variable and window are required")
	}

	value, err := c.fleet.QueryStatistic(ctx.Request().Context(), function, device, variable, window)
	if err != nil {
		if isFleetInputError(err) {
			return badRequest(ctx, err.Error())
		}
		return c.HandleError(ctx, err, "Statistic query failed", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"function": function,
		"device":   device,
		"variable": variable,
		"window":   window,
		"value":    value,
	})
}

// isFleetInputError reports whether err stems from invalid caller input
// rather than an internal failure.
func isFleetInputError(err error) bool {
	return errors.Is(err, fleet.ErrInvalidWindow) ||
		errors.Is(err, fleet.ErrUnknownVariable) ||
		errors.Is(err, fleet.ErrUnknownAggregation) ||
		errors.Is(err, fleet.ErrUnknownStatistic) ||
		errors.Is(err, fleet.ErrUnknownOperator) ||
		errors.Is(err, fleet.ErrUnknownSelector) ||
		errors.Is(err, fleet.ErrMissingVariable)
}
