package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/usil/eventhos-relay/internal/contracts"
	"github.com/usil/eventhos-relay/internal/dispatch"
	"github.com/usil/eventhos-relay/internal/gate"
	applog "github.com/usil/eventhos-relay/internal/logger"
)

// EventHandler receives inbound event notifications: authenticate,
// resolve contracts, hand off to the orchestrator, answer immediately.
type EventHandler struct {
	Gate         *gate.Gate
	Resolver     *contracts.Resolver
	Orchestrator *dispatch.Orchestrator
	Logger       *zap.Logger
}

func NewEventHandler(g *gate.Gate, r *contracts.Resolver, o *dispatch.Orchestrator, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		Gate:         g,
		Resolver:     r,
		Orchestrator: o,
		Logger:       logger,
	}
}

// ReceiveEvent handles POST/GET /api/v1/event. Credentials travel as
// the access-key and event-identifier query parameters (access-key may
// also arrive as a header). The response is returned once validation
// passes; contract execution proceeds asynchronously.
func (h *EventHandler) ReceiveEvent(c *fiber.Ctx) error {
	accessKey := c.Query("access-key")
	if accessKey == "" {
		accessKey = c.Get("access-key")
	}
	eventIdentifier := c.Query("event-identifier")

	eventID, rejection := h.Gate.Authenticate(accessKey, eventIdentifier)
	if rejection != nil {
		return c.Status(rejection.Status).JSON(rejection)
	}

	snapshot := snapshotFromRequest(c)

	list, err := h.Resolver.ResolveForEvent(eventID)
	if err != nil {
		h.Logger.Error("Failed to resolve contracts",
			applog.EventID(eventID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to resolve event contracts",
		})
	}

	// Zero bound contracts is a valid, auditable outcome: the received
	// event is still recorded.
	if len(list) == 0 {
		if _, err := h.Orchestrator.RecordReceivedEvent(eventID, snapshot); err != nil {
			h.Logger.Error("Failed to record received event without contracts",
				applog.EventID(eventID),
				zap.Error(err),
			)
		}
		return c.Status(fiber.StatusNonAuthoritativeInformation).JSON(fiber.Map{
			"message": "The event has no contracts associated",
		})
	}

	if verr := dispatch.Validate(strconv.FormatInt(eventID, 10), list); verr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": verr.Message,
		})
	}

	correlationID := h.Orchestrator.Dispatch(eventID, list, snapshot)
	h.Logger.Info("Event accepted for dispatch",
		applog.EventID(eventID),
		zap.Int("contract_count", len(list)),
		applog.CorrelationID(correlationID.String()),
	)

	return c.JSON(fiber.Map{
		"message":        "Event accepted",
		"correlation_id": correlationID.String(),
	})
}

// snapshotFromRequest captures the full inbound request as the template
// resolution context and audit payload.
func snapshotFromRequest(c *fiber.Ctx) dispatch.RequestSnapshot {
	headers := make(map[string]any)
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	query := make(map[string]any)
	for key, value := range c.Queries() {
		query[key] = value
	}

	var body any
	if raw := c.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}

	return dispatch.RequestSnapshot{
		Headers: headers,
		Query:   query,
		Body:    body,
		Method:  c.Method(),
		URL:     c.OriginalURL(),
	}
}
