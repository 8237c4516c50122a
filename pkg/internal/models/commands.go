package models

import (
	"time"

	"gorm.io/datatypes"
)

type ChatCommand struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `json:"name" gorm:"uniqueIndex"`
	Description string    `json:"description"`
	Usage       string    `json:"usage"`
	IsEnabled   bool      `json:"is_enabled"`
}

type ExecutionStatus = string

const (
	ExecutionSuccess = ExecutionStatus("success")
	ExecutionFailed  = ExecutionStatus("failed")
)

// ChatCommandExecution is the audit trail of every dispatch attempt.
type ChatCommandExecution struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time         `json:"created_at"`
	CommandID  *uint             `json:"command_id"`
	AccountID  uint              `json:"account_id" gorm:"index"`
	ChannelID  *uint             `json:"channel_id"`
	InputData  datatypes.JSONMap `json:"input_data"`
	Status     ExecutionStatus   `json:"status"`
	ResultData datatypes.JSONMap `json:"result_data"`
}
