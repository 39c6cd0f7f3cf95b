package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"size:255;not null" json:"name"`
	Email     string            `gorm:"size:255;not null;uniqueIndex:ux_customers_email" json:"email"`
	Phone     string            `gorm:"size:64" json:"phone,omitempty"`
	Address   string            `gorm:"type:text" json:"address,omitempty"`
	Country   string            `gorm:"size:64;index" json:"country,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}
