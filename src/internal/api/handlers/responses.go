package handlers

import (
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/services"
)

// UserResponse represents a user in API responses
type UserResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsSubscribed bool   `json:"is_subscribed"`
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Slug  string `json:"slug"`
}

// IngredientResponse represents an ingredient in API responses
type IngredientResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

// RecipeIngredientResponse is an ingredient with the amount a recipe calls for
type RecipeIngredientResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeResponse represents a recipe in API responses
type RecipeResponse struct {
	ID               uint                       `json:"id"`
	Name             string                     `json:"name"`
	Text             string                     `json:"text"`
	CookingTime      int                        `json:"cooking_time"`
	Image            string                     `json:"image"`
	Author           UserResponse               `json:"author"`
	Tags             []TagResponse              `json:"tags"`
	Ingredients      []RecipeIngredientResponse `json:"ingredients"`
	IsFavorited      bool                       `json:"is_favorited"`
	IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
}

// RecipeShortResponse is the compact recipe shape used by favorites, the
// shopping cart and subscriptions
type RecipeShortResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// SubscriptionResponse is a followed author with a preview of their recipes
type SubscriptionResponse struct {
	UserResponse
	Recipes      []RecipeShortResponse `json:"recipes"`
	RecipesCount int64                 `json:"recipes_count"`
}

// TokenResponse is returned by a successful login
type TokenResponse struct {
	AuthToken string `json:"auth_token"`
}

// PageResponse wraps one page of a listing
type PageResponse struct {
	Count    int64       `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: u.IsSubscribed,
	}
}

func newUserResponses(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, newUserResponse(&users[i]))
	}
	return out
}

func newTagResponse(t *models.Tag) TagResponse {
	return TagResponse{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
}

func newTagResponses(tags []models.Tag) []TagResponse {
	out := make([]TagResponse, 0, len(tags))
	for i := range tags {
		out = append(out, newTagResponse(&tags[i]))
	}
	return out
}

func newIngredientResponse(i *models.Ingredient) IngredientResponse {
	return IngredientResponse{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func newIngredientResponses(ingredients []models.Ingredient) []IngredientResponse {
	out := make([]IngredientResponse, 0, len(ingredients))
	for i := range ingredients {
		out = append(out, newIngredientResponse(&ingredients[i]))
	}
	return out
}

// newRecipeResponse expects Author, RecipeTags.Tag and Quantities.Ingredient
// to be preloaded
func newRecipeResponse(r *models.Recipe) RecipeResponse {
	ingredients := make([]RecipeIngredientResponse, 0, len(r.Quantities))
	for _, q := range r.Quantities {
		ingredients = append(ingredients, RecipeIngredientResponse{
			ID:              q.IngredientID,
			Name:            q.Ingredient.Name,
			MeasurementUnit: q.Ingredient.MeasurementUnit,
			Amount:          q.Amount,
		})
	}

	return RecipeResponse{
		ID:               r.ID,
		Name:             r.Name,
		Text:             r.Text,
		CookingTime:      r.CookingTime,
		Image:            r.Image,
		Author:           newUserResponse(&r.Author),
		Tags:             newTagResponses(r.Tags()),
		Ingredients:      ingredients,
		IsFavorited:      r.IsFavorited,
		IsInShoppingCart: r.IsInShoppingCart,
	}
}

func newRecipeResponses(recipes []models.Recipe) []RecipeResponse {
	out := make([]RecipeResponse, 0, len(recipes))
	for i := range recipes {
		out = append(out, newRecipeResponse(&recipes[i]))
	}
	return out
}

func newRecipeShortResponse(r *models.Recipe) RecipeShortResponse {
	return RecipeShortResponse{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

func newSubscriptionResponse(s *services.Subscription) SubscriptionResponse {
	recipes := make([]RecipeShortResponse, 0, len(s.Recipes))
	for i := range s.Recipes {
		recipes = append(recipes, newRecipeShortResponse(&s.Recipes[i]))
	}
	return SubscriptionResponse{
		UserResponse: newUserResponse(&s.User),
		Recipes:      recipes,
		RecipesCount: s.RecipesCount,
	}
}

func newSubscriptionResponses(subs []services.Subscription) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, newSubscriptionResponse(&subs[i]))
	}
	return out
}
