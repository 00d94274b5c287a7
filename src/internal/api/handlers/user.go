package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/services"
)

// UserHandler handles user and subscription endpoints
type UserHandler struct {
	users     *services.UserService
	paginator Paginator
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService, paginator Paginator) *UserHandler {
	return &UserHandler{users: users, paginator: paginator}
}

// RegisterRequest represents a registration request. Field rules live in
// UserService so every problem is reported in one response.
type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// SetPasswordRequest represents a password change
type SetPasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// List returns one page of users
func (h *UserHandler) List(c echo.Context) error {
	page, err := h.paginator.Page(c)
	if err != nil {
		return err
	}

	users, total, err := h.users.ListUsers(c.Request().Context(), page, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.paginator.Response(c, page, total, newUserResponses(users)))
}

// Register creates an account
func (h *UserHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.CreateUser(c.Request().Context(), services.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newUserResponse(user))
}

// Get returns a user by id
func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id", "User")
	if err != nil {
		return err
	}

	user, err := h.users.GetUser(c.Request().Context(), id, auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

// Me returns the authenticated user
func (h *UserHandler) Me(c echo.Context) error {
	viewer := auth.UserID(c)
	user, err := h.users.GetUser(c.Request().Context(), *viewer, viewer)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

// SetPassword changes the authenticated user's password
func (h *UserHandler) SetPassword(c echo.Context) error {
	var req SetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.users.SetPassword(c.Request().Context(), *auth.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SetUserPassword changes another account's password (admin only). The same
// rules as SetPassword apply, including the current password check.
func (h *UserHandler) SetUserPassword(c echo.Context) error {
	id, err := parseID(c, "id", "User")
	if err != nil {
		return err
	}

	var req SetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if err := h.users.SetPassword(c.Request().Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes an account with everything it owns (admin only)
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id", "User")
	if err != nil {
		return err
	}

	if err := h.users.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Subscriptions lists the authors the user follows
func (h *UserHandler) Subscriptions(c echo.Context) error {
	page, err := h.paginator.Page(c)
	if err != nil {
		return err
	}
	recipesLimit, err := services.ParseRecipesLimit(c.QueryParam("recipes_limit"))
	if err != nil {
		return err
	}

	subs, total, err := h.users.Subscriptions(c.Request().Context(), *auth.UserID(c), page, recipesLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.paginator.Response(c, page, total, newSubscriptionResponses(subs)))
}

// Subscribe follows the user in the path
func (h *UserHandler) Subscribe(c echo.Context) error {
	id, err := parseID(c, "id", "User")
	if err != nil {
		return err
	}
	recipesLimit, err := services.ParseRecipesLimit(c.QueryParam("recipes_limit"))
	if err != nil {
		return err
	}

	sub, err := h.users.Subscribe(c.Request().Context(), *auth.UserID(c), id, recipesLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newSubscriptionResponse(sub))
}

// Unsubscribe stops following the user in the path
func (h *UserHandler) Unsubscribe(c echo.Context) error {
	id, err := parseID(c, "id", "User")
	if err != nil {
		return err
	}

	if err := h.users.Unsubscribe(c.Request().Context(), *auth.UserID(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
