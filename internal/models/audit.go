package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ExecutionState is the terminal state of one contract execution.
type ExecutionState string

const (
	StateProcessed ExecutionState = "processed"
	StateError     ExecutionState = "error"
)

// ReceivedEvent is the immutable record of one inbound event
// notification. ReceivedRequest is the encrypted snapshot of the full
// inbound request (headers/query/body/method/url). Rows are created
// during dispatch and never updated or deleted.
type ReceivedEvent struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID         int64     `gorm:"not null;index" json:"event_id"`
	Event           Event     `gorm:"foreignKey:EventID" json:"event,omitempty"`
	CorrelationID   uuid.UUID `gorm:"type:uuid;not null" json:"correlation_id"`
	ReceivedRequest string    `gorm:"type:text;not null" json:"-"`
	ReceivedAt      time.Time `gorm:"not null;default:now()" json:"received_at"`
}

func (ReceivedEvent) TableName() string {
	return "received_events"
}

// ContractExecutionDetail records the terminal outcome of one
// (contract, received event) pair.
type ContractExecutionDetail struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractID      int64          `gorm:"not null;index" json:"contract_id"`
	Contract        Contract       `gorm:"foreignKey:ContractID" json:"contract,omitempty"`
	ReceivedEventID int64          `gorm:"not null;index" json:"received_event_id"`
	State           ExecutionState `gorm:"type:varchar(16);not null" json:"state"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ContractExecutionDetail) TableName() string {
	return "contract_execution_details"
}

// ContractExecutionTry records one attempt: the encrypted outbound
// request and the encrypted response-or-error snapshot, plus an
// unencrypted summary (status, latency, target) so listing endpoints
// do not need to decrypt.
type ContractExecutionTry struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	DetailID        int64          `gorm:"not null;index" json:"detail_id"`
	State           ExecutionState `gorm:"type:varchar(16);not null" json:"state"`
	RequestSnapshot string         `gorm:"type:text;not null" json:"-"`
	ResultSnapshot  string         `gorm:"type:text;not null" json:"-"`
	Summary         datatypes.JSON `gorm:"type:jsonb" json:"summary"`
	StartedAt       time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt      time.Time      `gorm:"not null" json:"finished_at"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ContractExecutionTry) TableName() string {
	return "contract_execution_tries"
}
