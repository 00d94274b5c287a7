package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/export"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/metrics"
	"github.com/casapps/casrecipes/src/internal/services"
)

// RecipeHandler handles recipes, favorites and the shopping cart
type RecipeHandler struct {
	recipes    *services.RecipeService
	membership *services.MembershipFilter
	cart       *services.ShoppingCartService
	paginator  Paginator
}

// NewRecipeHandler creates a new recipe handler
func NewRecipeHandler(recipes *services.RecipeService, membership *services.MembershipFilter, cart *services.ShoppingCartService, paginator Paginator) *RecipeHandler {
	return &RecipeHandler{
		recipes:    recipes,
		membership: membership,
		cart:       cart,
		paginator:  paginator,
	}
}

// QuantityRequest is one ingredient line of a recipe payload
type QuantityRequest struct {
	ID     uint `json:"id" validate:"required"`
	Amount int  `json:"amount"`
}

// RecipeRequest is the full recipe payload. Tags and ingredients replace
// the current ones on update; an empty image keeps the current image.
type RecipeRequest struct {
	Name        string            `json:"name"`
	Text        string            `json:"text"`
	CookingTime int               `json:"cooking_time"`
	Image       string            `json:"image"`
	Tags        []uint            `json:"tags"`
	Ingredients []QuantityRequest `json:"ingredients" validate:"dive"`
}

func (r RecipeRequest) input() services.RecipeInput {
	ingredients := make([]services.QuantityInput, 0, len(r.Ingredients))
	for _, q := range r.Ingredients {
		ingredients = append(ingredients, services.QuantityInput{IngredientID: q.ID, Amount: q.Amount})
	}
	return services.RecipeInput{
		Name:        r.Name,
		Text:        r.Text,
		CookingTime: r.CookingTime,
		Image:       r.Image,
		TagIDs:      r.Tags,
		Ingredients: ingredients,
	}
}

// listOptions reads the listing filters from the query string
func (h *RecipeHandler) listOptions(c echo.Context) (services.ListRecipesOptions, error) {
	opts := services.ListRecipesOptions{TagSlugs: c.QueryParams()["tags"]}
	v := errors.NewValidator()

	page, err := h.paginator.Page(c)
	v.Merge(err)
	opts.Page = page

	if raw := c.QueryParam("author"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			v.AddError("author", "Select a valid author id.")
		} else {
			author := uint(id)
			opts.AuthorID = &author
		}
	}

	query := c.QueryParams()
	opts.Intents.IsFavorited, err = services.ParseMembershipFlag("is_favorited", query["is_favorited"])
	v.Merge(err)
	opts.Intents.IsInShoppingCart, err = services.ParseMembershipFlag("is_in_shopping_cart", query["is_in_shopping_cart"])
	v.Merge(err)

	return opts, v.CreateValidationError()
}

// List returns one page of recipes ordered by name
func (h *RecipeHandler) List(c echo.Context) error {
	opts, err := h.listOptions(c)
	if err != nil {
		return err
	}

	recipes, total, err := h.recipes.ListRecipes(c.Request().Context(), opts, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.paginator.Response(c, opts.Page, total, newRecipeResponses(recipes)))
}

// Get returns a recipe by id
func (h *RecipeHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id", "Recipe")
	if err != nil {
		return err
	}

	recipe, err := h.recipes.GetRecipe(c.Request().Context(), id, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newRecipeResponse(recipe))
}

// Create publishes a recipe authored by the current user
func (h *RecipeHandler) Create(c echo.Context) error {
	var req RecipeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	recipe, err := h.recipes.CreateRecipe(ctx, *auth.UserID(c), req.input())
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().Uint("recipe_id", recipe.ID).Msg("recipe created")
	return c.JSON(http.StatusCreated, newRecipeResponse(recipe))
}

// Update replaces a recipe. Only its author or an admin may do so.
func (h *RecipeHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id", "Recipe")
	if err != nil {
		return err
	}
	var req RecipeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	recipe, err := h.recipes.UpdateRecipe(c.Request().Context(), id, *auth.UserID(c), auth.IsAdmin(c), req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newRecipeResponse(recipe))
}

// Delete removes a recipe. Only its author or an admin may do so.
func (h *RecipeHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id", "Recipe")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.recipes.DeleteRecipe(ctx, id, *auth.UserID(c), auth.IsAdmin(c)); err != nil {
		return err
	}

	logging.Ctx(ctx).Info().Uint("recipe_id", id).Msg("recipe deleted")
	return c.NoContent(http.StatusNoContent)
}

// AddFavorite puts the recipe in the user's favorites
func (h *RecipeHandler) AddFavorite(c echo.Context) error {
	return h.add(c, "favorite", h.membership.AddFavorite)
}

// RemoveFavorite drops the recipe from the user's favorites
func (h *RecipeHandler) RemoveFavorite(c echo.Context) error {
	return h.remove(c, "favorite", h.membership.RemoveFavorite)
}

// AddToCart puts the recipe in the user's shopping cart
func (h *RecipeHandler) AddToCart(c echo.Context) error {
	return h.add(c, "shopping_cart", h.membership.AddToCart)
}

// RemoveFromCart drops the recipe from the user's shopping cart
func (h *RecipeHandler) RemoveFromCart(c echo.Context) error {
	return h.remove(c, "shopping_cart", h.membership.RemoveFromCart)
}

func (h *RecipeHandler) add(c echo.Context, list string, add func(context.Context, uint, uint) (*models.Recipe, error)) error {
	id, err := parseID(c, "id", "Recipe")
	if err != nil {
		return err
	}

	recipe, err := add(c.Request().Context(), *auth.UserID(c), id)
	if err != nil {
		return err
	}

	metrics.MembershipToggles.WithLabelValues(list, "add").Inc()
	return c.JSON(http.StatusCreated, newRecipeShortResponse(recipe))
}

func (h *RecipeHandler) remove(c echo.Context, list string, remove func(context.Context, uint, uint) error) error {
	id, err := parseID(c, "id", "Recipe")
	if err != nil {
		return err
	}

	if err := remove(c.Request().Context(), *auth.UserID(c), id); err != nil {
		return err
	}

	metrics.MembershipToggles.WithLabelValues(list, "remove").Inc()
	return c.NoContent(http.StatusNoContent)
}

// DownloadShoppingCart sends the user's summed shopping list as a file.
// ?format picks txt, csv or pdf; anything else falls back to txt.
func (h *RecipeHandler) DownloadShoppingCart(c echo.Context) error {
	ctx := c.Request().Context()
	list, err := h.cart.ShoppingList(ctx, *auth.UserID(c))
	if err != nil {
		return err
	}

	format := export.ParseFormat(c.QueryParam("format"))
	file, err := export.Render(list, string(format))
	if err != nil {
		return errors.InternalError("failed to render shopping cart", err)
	}

	metrics.ShoppingCartDownloads.WithLabelValues(string(format)).Inc()
	c.Response().Header().Set(echo.HeaderContentDisposition, file.ContentDisposition())
	return c.Blob(http.StatusOK, file.ContentType, file.Body)
}
