package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/services"
)

// TagHandler handles the tag catalog
type TagHandler struct {
	tags *services.TagService
}

// NewTagHandler creates a new tag handler
func NewTagHandler(tags *services.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

// TagRequest carries tag fields. On PATCH, omitted fields keep their value.
type TagRequest struct {
	Name  *string `json:"name"`
	Slug  *string `json:"slug"`
	Color *string `json:"color" validate:"omitempty,hexcolor"`
}

func (r TagRequest) input(current services.TagInput) services.TagInput {
	if r.Name != nil {
		current.Name = *r.Name
	}
	if r.Slug != nil {
		current.Slug = *r.Slug
	}
	if r.Color != nil {
		current.Color = *r.Color
	}
	return current
}

// List returns every tag ordered by name
func (h *TagHandler) List(c echo.Context) error {
	tags, err := h.tags.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTagResponses(tags))
}

// Get returns a tag by id
func (h *TagHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id", "Tag")
	if err != nil {
		return err
	}

	tag, err := h.tags.GetTag(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTagResponse(tag))
}

// Create adds a tag (admin only)
func (h *TagHandler) Create(c echo.Context) error {
	var req TagRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tag, err := h.tags.CreateTag(c.Request().Context(), req.input(services.TagInput{}))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newTagResponse(tag))
}

// Update changes a tag (admin only)
func (h *TagHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id", "Tag")
	if err != nil {
		return err
	}
	var req TagRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	current, err := h.tags.GetTag(ctx, id)
	if err != nil {
		return err
	}

	tag, err := h.tags.UpdateTag(ctx, id, req.input(services.TagInput{
		Name:  current.Name,
		Slug:  current.Slug,
		Color: current.Color,
	}))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTagResponse(tag))
}

// Delete removes a tag (admin only)
func (h *TagHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id", "Tag")
	if err != nil {
		return err
	}

	if err := h.tags.DeleteTag(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
