package models

// FavoriteItem marks a recipe as one of the user's favorites
type FavoriteItem struct {
	ID       uint `gorm:"primaryKey"`
	UserID   uint `gorm:"not null;uniqueIndex:idx_favorite_user_recipe"`
	RecipeID uint `gorm:"not null;uniqueIndex:idx_favorite_user_recipe;index"`
	Timestamps

	// Relations
	User   User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe Recipe `gorm:"constraint:OnDelete:CASCADE"`
}

// TableName pins the table the membership queries join against
func (FavoriteItem) TableName() string {
	return "favorite_items"
}

// CartItem puts a recipe in the user's shopping cart
type CartItem struct {
	ID       uint `gorm:"primaryKey"`
	UserID   uint `gorm:"not null;uniqueIndex:idx_cart_user_recipe"`
	RecipeID uint `gorm:"not null;uniqueIndex:idx_cart_user_recipe;index"`
	Timestamps

	// Relations
	User   User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe Recipe `gorm:"constraint:OnDelete:CASCADE"`
}

// TableName pins the table the membership queries join against
func (CartItem) TableName() string {
	return "cart_items"
}
