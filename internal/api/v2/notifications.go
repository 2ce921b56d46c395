package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sensorvision/sensorvision-go/internal/notification"
)

const (
	defaultNotificationLimit = 50
	sseHeartbeatInterval     = 30 * time.Second
)

// initNotificationRoutes registers in-app notification endpoints.
func (c *Controller) initNotificationRoutes() {
	group := c.Group.Group("/notifications")

	group.GET("", c.ListNotifications)
	group.PATCH("/:id/read", c.MarkNotificationRead)
	group.GET("/stream", c.StreamNotifications)
}

// ListNotifications returns recent notifications, newest first.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	if !notification.IsInitialized() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Notification service not available",
		})
	}

	limit := defaultNotificationLimit
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		if v, err := strconv.Atoi(limitParam); err == nil && v > 0 {
			limit = v
		}
	}

	items := notification.GetService().List(limit)
	return ctx.JSON(http.StatusOK, map[string]any{
		"notifications": items,
		"count":         len(items),
	})
}

// MarkNotificationRead marks a single notification as read.
func (c *Controller) MarkNotificationRead(ctx echo.Context) error {
	if !notification.IsInitialized() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Notification service not available",
		})
	}

	id, err := parseUUIDParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid notification ID")
	}

	if !notification.GetService().MarkRead(id) {
		return notFound(ctx, "Notification not found")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "read": true})
}

// StreamNotifications pushes new notifications to the client over SSE.
func (c *Controller) StreamNotifications(ctx echo.Context) error {
	if !notification.IsInitialized() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Notification service not available",
		})
	}

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	events, cancel := notification.GetService().Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	reqCtx := ctx.Request().Context()
	for {
		select {
		case <-reqCtx.Done():
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(resp, ": heartbeat\n\n"); err != nil {
				return nil
			}
			resp.Flush()
		case n, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(n)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(resp, "event: notification\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
