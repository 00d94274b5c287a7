package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/services"
)

// IngredientHandler handles the ingredient catalog
type IngredientHandler struct {
	ingredients *services.IngredientService
}

// NewIngredientHandler creates a new ingredient handler
func NewIngredientHandler(ingredients *services.IngredientService) *IngredientHandler {
	return &IngredientHandler{ingredients: ingredients}
}

// IngredientRequest carries ingredient fields. On PATCH, omitted fields keep
// their value.
type IngredientRequest struct {
	Name            *string `json:"name"`
	MeasurementUnit *string `json:"measurement_unit"`
}

func (r IngredientRequest) input(current services.IngredientInput) services.IngredientInput {
	if r.Name != nil {
		current.Name = *r.Name
	}
	if r.MeasurementUnit != nil {
		current.MeasurementUnit = *r.MeasurementUnit
	}
	return current
}

// List returns ingredients, optionally those whose name starts with ?name
func (h *IngredientHandler) List(c echo.Context) error {
	ingredients, err := h.ingredients.ListIngredients(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newIngredientResponses(ingredients))
}

// Get returns an ingredient by id
func (h *IngredientHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id", "Ingredient")
	if err != nil {
		return err
	}

	ingredient, err := h.ingredients.GetIngredient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newIngredientResponse(ingredient))
}

// Create adds an ingredient (admin only)
func (h *IngredientHandler) Create(c echo.Context) error {
	var req IngredientRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ingredient, err := h.ingredients.CreateIngredient(c.Request().Context(), req.input(services.IngredientInput{}))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newIngredientResponse(ingredient))
}

// Update changes an ingredient (admin only)
func (h *IngredientHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id", "Ingredient")
	if err != nil {
		return err
	}
	var req IngredientRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	current, err := h.ingredients.GetIngredient(ctx, id)
	if err != nil {
		return err
	}

	ingredient, err := h.ingredients.UpdateIngredient(ctx, id, req.input(services.IngredientInput{
		Name:            current.Name,
		MeasurementUnit: current.MeasurementUnit,
	}))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newIngredientResponse(ingredient))
}

// Delete removes an ingredient (admin only)
func (h *IngredientHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id", "Ingredient")
	if err != nil {
		return err
	}

	if err := h.ingredients.DeleteIngredient(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
