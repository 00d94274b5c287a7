package models

// Tag is a label a recipe may carry, e.g. "breakfast".
type Tag struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:200;uniqueIndex;not null"`
	Slug  string `gorm:"size:200;uniqueIndex;not null"`
	Color string `gorm:"size:7;uniqueIndex;not null"`
	Timestamps
}
