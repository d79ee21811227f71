package dispatch

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	applog "github.com/usil/eventhos-relay/internal/logger"
	"github.com/usil/eventhos-relay/internal/models"
)

// audit writes one ContractExecutionDetail and one ContractExecutionTry
// for an attempt. A failure here is logged and swallowed; it never
// alters the per-contract result.
func (o *Orchestrator) audit(receivedEventID int64, ec EventContract, req CallRequest, res *CallResult) {
	state := models.StateProcessed
	if res.Err != nil {
		state = models.StateError
	}

	encryptedRequest, err := o.encryptJSON(map[string]any{
		"url":        req.URL,
		"method":     req.Method,
		"headers":    req.Headers,
		"query":      req.Query,
		"body":       req.Body,
		"started_at": res.StartedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		o.logAuditFailure(ec, "failed to encrypt outbound request snapshot", err)
		return
	}

	resultPayload := map[string]any{
		"status":      res.Status,
		"headers":     res.Headers,
		"body":        res.Body,
		"latency_ms":  res.LatencyMs,
		"finished_at": res.FinishedAt.Format(time.RFC3339Nano),
	}
	if res.Err != nil {
		resultPayload["error"] = res.Err.Error()
	}
	encryptedResult, err := o.encryptJSON(resultPayload)
	if err != nil {
		o.logAuditFailure(ec, "failed to encrypt outbound result snapshot", err)
		return
	}

	summary, err := json.Marshal(map[string]any{
		"http_status": res.Status,
		"latency_ms":  res.LatencyMs,
		"url":         req.URL,
		"method":      req.Method,
	})
	if err != nil {
		summary = nil
	}

	err = o.db.Transaction(func(tx *gorm.DB) error {
		detail := models.ContractExecutionDetail{
			ContractID:      ec.Contract.ID,
			ReceivedEventID: receivedEventID,
			State:           state,
		}
		if err := tx.Create(&detail).Error; err != nil {
			return err
		}

		try := models.ContractExecutionTry{
			DetailID:        detail.ID,
			State:           state,
			RequestSnapshot: encryptedRequest,
			ResultSnapshot:  encryptedResult,
			Summary:         datatypes.JSON(summary),
			StartedAt:       res.StartedAt,
			FinishedAt:      res.FinishedAt,
		}
		return tx.Create(&try).Error
	})
	if err != nil {
		o.logAuditFailure(ec, "failed to persist contract execution audit", err)
	}
}

func (o *Orchestrator) encryptJSON(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return o.codec.Encrypt(string(raw))
}

func (o *Orchestrator) logAuditFailure(ec EventContract, msg string, err error) {
	o.logger.Error(msg,
		applog.ContractID(ec.Contract.ID),
		applog.Contract(ec.Contract.Identifier),
		zap.Error(err),
	)
}
