package models

import (
	"time"

	"gorm.io/gorm"
)

// SecurityType is the security mode for invoking an action.
type SecurityType string

const (
	SecurityCustom SecurityType = "custom"
	SecurityOAuth2 SecurityType = "oauth2_client"
)

// Action is an outbound HTTP call a consumer system exposes.
// HTTPConfiguration holds the encrypted call template (url, method,
// headers, query params, body) whose values may contain ${...}
// template expressions.
type Action struct {
	ID                int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SystemID          int64          `gorm:"not null;index" json:"system_id"`
	System            System         `gorm:"foreignKey:SystemID" json:"system,omitempty"`
	Identifier        string         `gorm:"not null" json:"identifier"`
	Name              string         `gorm:"not null" json:"name"`
	Operation         OperationKind  `gorm:"type:varchar(16);not null" json:"operation"`
	HTTPConfiguration string         `gorm:"type:text;not null" json:"-"`
	Description       string         `json:"description"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Action) TableName() string {
	return "actions"
}

// ActionSecurity describes how an action call is authorized. When Type is
// oauth2_client, HTTPConfiguration holds the encrypted template of the
// token request (client_id/client_secret/grant_type); otherwise it is empty.
// Every action has exactly one ActionSecurity row.
type ActionSecurity struct {
	ID                int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ActionID          int64        `gorm:"not null;uniqueIndex" json:"action_id"`
	Type              SecurityType `gorm:"type:varchar(16);not null;default:'custom'" json:"type"`
	HTTPConfiguration string       `gorm:"type:text" json:"-"`
	CreatedAt         time.Time    `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:now()" json:"updated_at"`
}

func (ActionSecurity) TableName() string {
	return "action_securities"
}
