package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
)

// ShoppingListItem is the total amount of one ingredient across the cart
type ShoppingListItem struct {
	IngredientID    uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	TotalAmount     int    `json:"total_amount"`
}

// ShoppingList is ordered by the first appearance of each ingredient
type ShoppingList []ShoppingListItem

// ReduceCart sums quantities per ingredient. Ingredients are keyed by
// identity, so the same name under two units stays as two lines.
// Quantities.Ingredient must be preloaded.
func ReduceCart(recipes []models.Recipe) ShoppingList {
	list := ShoppingList{}
	index := make(map[uint]int)

	for _, recipe := range recipes {
		for _, q := range recipe.Quantities {
			if i, ok := index[q.IngredientID]; ok {
				list[i].TotalAmount += q.Amount
				continue
			}
			index[q.IngredientID] = len(list)
			list = append(list, ShoppingListItem{
				IngredientID:    q.IngredientID,
				Name:            q.Ingredient.Name,
				MeasurementUnit: q.Ingredient.MeasurementUnit,
				TotalAmount:     q.Amount,
			})
		}
	}

	return list
}

// ShoppingCartService builds the user's shopping list
type ShoppingCartService struct {
	db *gorm.DB
}

// NewShoppingCartService creates a new shopping cart service
func NewShoppingCartService(db *gorm.DB) *ShoppingCartService {
	return &ShoppingCartService{db: db}
}

// CartRecipes returns the recipes in the user's cart in the order they were
// added, with quantities and ingredients loaded.
func (s *ShoppingCartService) CartRecipes(ctx context.Context, userID uint) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := s.db.WithContext(ctx).
		Joins("JOIN cart_items ON cart_items.recipe_id = recipes.id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id").
		Preload("Quantities", func(db *gorm.DB) *gorm.DB {
			return db.Order("quantities.id")
		}).
		Preload("Quantities.Ingredient").
		Find(&recipes).Error
	if err != nil {
		return nil, errors.FromDB(err, "Recipe")
	}
	return recipes, nil
}

// ShoppingList reduces the user's cart to one line per ingredient
func (s *ShoppingCartService) ShoppingList(ctx context.Context, userID uint) (ShoppingList, error) {
	recipes, err := s.CartRecipes(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ReduceCart(recipes), nil
}
