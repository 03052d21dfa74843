package models

import "time"

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusDirty     = "dirty"

	SessionStatusActive   = "active"
	SessionStatusFinished = "finished"
)

type Table struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TableNumber string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"table_number"`
	Status      string    `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// TableSession is one seating at a table. Cart and payment state are scoped
// to the table while its session is active.
type TableSession struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TableID    uint       `gorm:"not null;index" json:"table_id"`
	Table      Table      `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	SessionKey string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"session_key"`
	Status     string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}
