package models

import "time"

// Deployment is the persisted history of one deploy attempt.
type Deployment struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	SessionID       string            `gorm:"index;not null" json:"session_id"`
	Attempt         int               `gorm:"not null;default:1" json:"attempt"`
	Chain           Chain             `gorm:"not null" json:"chain"`
	Contract        string            `gorm:"type:text" json:"contract"`
	DeployerAddress string            `json:"deployer_address"`
	TransactionHash string            `gorm:"index" json:"transaction_hash"`
	Status          TransactionStatus `gorm:"default:pending" json:"status"` // pending, confirmed, failed
	Error           string            `gorm:"type:text" json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
