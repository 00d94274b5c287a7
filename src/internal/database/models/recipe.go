package models

// Recipe represents a dish published by its author
type Recipe struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:200;not null"`
	Text        string `gorm:"type:text;not null"`
	CookingTime int    `gorm:"not null;check:chk_recipes_cooking_time,cooking_time >= 1"`
	AuthorID    uint   `gorm:"not null;index"`
	Image       string `gorm:"size:255"`
	Timestamps

	// Computed per viewer, not stored
	IsFavorited      bool `gorm:"-"`
	IsInShoppingCart bool `gorm:"-"`

	// Relations
	Author     User        `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Quantities []Quantity  `gorm:"constraint:OnDelete:CASCADE"`
	RecipeTags []RecipeTag `gorm:"constraint:OnDelete:CASCADE"`
}

// Tags returns the recipe's tags in association order.
// RecipeTags.Tag must be preloaded.
func (r *Recipe) Tags() []Tag {
	tags := make([]Tag, 0, len(r.RecipeTags))
	for _, rt := range r.RecipeTags {
		tags = append(tags, rt.Tag)
	}
	return tags
}

// Quantity is the amount of one ingredient a recipe calls for
type Quantity struct {
	ID           uint `gorm:"primaryKey"`
	RecipeID     uint `gorm:"not null;uniqueIndex:idx_quantity_recipe_ingredient"`
	IngredientID uint `gorm:"not null;uniqueIndex:idx_quantity_recipe_ingredient;index"`
	Amount       int  `gorm:"not null;check:chk_quantities_amount,amount >= 1"`
	Timestamps

	// Relations
	Ingredient Ingredient `gorm:"constraint:OnDelete:CASCADE"`
}

// RecipeTag links a recipe to a tag. It keeps its own identity so exports and
// re-imports see a stable row order.
type RecipeTag struct {
	ID       uint `gorm:"primaryKey"`
	RecipeID uint `gorm:"not null;uniqueIndex:idx_recipe_tag_pair"`
	TagID    uint `gorm:"not null;uniqueIndex:idx_recipe_tag_pair;index"`
	Timestamps

	// Relations
	Tag Tag `gorm:"constraint:OnDelete:CASCADE"`
}
