package models

// Ingredient is a named product measured in a fixed unit. The same name may
// appear under several units ("sugar, g" and "sugar, cup") but never twice
// under the same one.
type Ingredient struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit"`
	MeasurementUnit string `gorm:"size:200;not null;uniqueIndex:idx_ingredient_name_unit"`
	Timestamps
}
