package models

import "time"

// Timestamps holds the creation and modification times every entity carries.
type Timestamps struct {
	Created  time.Time `gorm:"autoCreateTime;index"`
	Modified time.Time `gorm:"autoUpdateTime"`
}
