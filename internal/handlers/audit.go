package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/usil/eventhos-relay/internal/crypto"
	"github.com/usil/eventhos-relay/internal/models"
)

// AuditHandler exposes the append-only execution audit trail.
type AuditHandler struct {
	DB     *gorm.DB
	Codec  *crypto.Codec
	Logger *zap.Logger
}

func NewAuditHandler(db *gorm.DB, codec *crypto.Codec, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		DB:     db,
		Codec:  codec,
		Logger: logger,
	}
}

// ReceivedEventsResponse represents the response structure for GET /received-events
type ReceivedEventsResponse struct {
	ReceivedEvents []ReceivedEventDTO `json:"received_events"`
	HasMore        bool               `json:"has_more"`
}

type ReceivedEventDTO struct {
	ID              int64  `json:"id"`
	EventIdentifier string `json:"event_identifier"`
	CorrelationID   string `json:"correlation_id"`
	ReceivedAt      string `json:"received_at"`
}

// GetReceivedEvents handles GET /received-events
// Query parameters:
//   - limit (optional, default 25): Number of rows to return
//   - offset (optional, default 0): Number of rows to skip
func (h *AuditHandler) GetReceivedEvents(c *fiber.Ctx) error {
	limit := 25
	if limitStr := c.Query("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "limit must be a positive integer",
			})
		}
		limit = parsedLimit
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err != nil || parsedOffset < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "offset must be a non-negative integer",
			})
		}
		offset = parsedOffset
	}

	type receivedRow struct {
		ID            int64
		Identifier    string
		CorrelationID string
		ReceivedAt    time.Time
	}

	var rows []receivedRow
	err := h.DB.Table("received_events").
		Select("received_events.id, events.identifier, received_events.correlation_id, received_events.received_at").
		Joins("JOIN events ON received_events.event_id = events.id").
		Order("received_events.received_at DESC").
		Limit(limit + 1). // Fetch one extra to determine has_more
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		h.Logger.Error("Failed to query received events", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch received events",
		})
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	dtos := make([]ReceivedEventDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, ReceivedEventDTO{
			ID:              row.ID,
			EventIdentifier: row.Identifier,
			CorrelationID:   row.CorrelationID,
			ReceivedAt:      row.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(ReceivedEventsResponse{
		ReceivedEvents: dtos,
		HasMore:        hasMore,
	})
}

type ExecutionTryDTO struct {
	ID         int64          `json:"id"`
	State      string         `json:"state"`
	Request    any            `json:"request"`
	Result     any            `json:"result"`
	Summary    map[string]any `json:"summary"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
}

type ExecutionDetailDTO struct {
	ID         int64             `json:"id"`
	ContractID int64             `json:"contract_id"`
	State      string            `json:"state"`
	Tries      []ExecutionTryDTO `json:"tries"`
}

// GetExecutions handles GET /received-events/:id/executions. Snapshots
// are decrypted on the way out; a row that fails to decrypt is returned
// with a null payload rather than failing the whole listing.
func (h *AuditHandler) GetExecutions(c *fiber.Ctx) error {
	receivedEventID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "received event id must be a number",
		})
	}

	var details []models.ContractExecutionDetail
	err = h.DB.Where("received_event_id = ?", receivedEventID).
		Order("id ASC").
		Find(&details).Error
	if err != nil {
		h.Logger.Error("Failed to query execution details",
			zap.Int64("received_event_id", receivedEventID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch executions",
		})
	}

	if len(details) == 0 {
		return c.JSON(fiber.Map{"executions": []ExecutionDetailDTO{}})
	}

	detailIDs := make([]int64, 0, len(details))
	for _, detail := range details {
		detailIDs = append(detailIDs, detail.ID)
	}

	var tries []models.ContractExecutionTry
	err = h.DB.Where("detail_id IN ?", detailIDs).
		Order("id ASC").
		Find(&tries).Error
	if err != nil {
		h.Logger.Error("Failed to query execution tries",
			zap.Int64("received_event_id", receivedEventID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to fetch executions",
		})
	}

	triesByDetail := make(map[int64][]ExecutionTryDTO, len(details))
	for _, try := range tries {
		var summary map[string]any
		if len(try.Summary) > 0 {
			_ = json.Unmarshal(try.Summary, &summary)
		}
		triesByDetail[try.DetailID] = append(triesByDetail[try.DetailID], ExecutionTryDTO{
			ID:         try.ID,
			State:      string(try.State),
			Request:    h.decryptPayload(try.RequestSnapshot),
			Result:     h.decryptPayload(try.ResultSnapshot),
			Summary:    summary,
			StartedAt:  try.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt: try.FinishedAt.UTC().Format(time.RFC3339),
		})
	}

	dtos := make([]ExecutionDetailDTO, 0, len(details))
	for _, detail := range details {
		dtos = append(dtos, ExecutionDetailDTO{
			ID:         detail.ID,
			ContractID: detail.ContractID,
			State:      string(detail.State),
			Tries:      triesByDetail[detail.ID],
		})
	}

	return c.JSON(fiber.Map{"executions": dtos})
}

func (h *AuditHandler) decryptPayload(stored string) any {
	plain, err := h.Codec.Decrypt(stored)
	if err != nil {
		h.Logger.Warn("Failed to decrypt audit snapshot", zap.Error(err))
		return nil
	}
	var payload any
	if err := json.Unmarshal([]byte(plain), &payload); err != nil {
		return plain
	}
	return payload
}
