package models

import "time"

// AggregateEncryptionKey is a public key published by the aggregation coordinator
type AggregateEncryptionKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	KeyID     string    `gorm:"size:128;not null;uniqueIndex:idx_msmt_aggregate_encryption_key_key_id" json:"key_id"`
	PublicKey string    `gorm:"type:text;not null" json:"public_key"`
	Expiry    time.Time `gorm:"not null;index:idx_msmt_aggregate_encryption_key_expiry" json:"expiry"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
}

func (AggregateEncryptionKey) TableName() string { return "msmt_aggregate_encryption_key" }
