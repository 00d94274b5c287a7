package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFromDB(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		err := FromDB(gorm.ErrRecordNotFound, "Recipe")
		assert.True(t, IsNotFound(err))
		assert.Equal(t, http.StatusNotFound, err.(*CustomError).StatusCode)
	})

	t.Run("UniqueViolation", func(t *testing.T) {
		err := FromDB(fmt.Errorf("UNIQUE constraint failed: tags.slug"), "Tag")
		ce := err.(*CustomError)
		assert.Equal(t, ErrorTypeConflict, ce.Type)
		assert.Equal(t, http.StatusBadRequest, ce.StatusCode)
		assert.Equal(t, []string{"Tag with this slug already exists."}, ce.Fields()["slug"])
	})

	t.Run("CheckViolation", func(t *testing.T) {
		err := FromDB(fmt.Errorf(`ERROR: new row violates check constraint "chk_quantities_amount" (SQLSTATE 23514)`), "Quantity")
		assert.Equal(t, ErrorTypeValidation, err.(*CustomError).Type)
	})

	t.Run("PassThroughCustom", func(t *testing.T) {
		orig := ForbiddenError("nope")
		assert.Same(t, orig, FromDB(orig, "Recipe"))
	})

	t.Run("Generic", func(t *testing.T) {
		err := FromDB(fmt.Errorf("disk I/O error"), "Recipe")
		assert.Equal(t, http.StatusInternalServerError, err.(*CustomError).StatusCode)
	})

	assert.NoError(t, FromDB(nil, "Recipe"))
}

func TestUniqueField(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		resource string
		want     string
	}{
		{"SQLite", "UNIQUE constraint failed: tags.color", "Tag", "color"},
		{"SQLiteWithCode", "constraint failed: UNIQUE constraint failed: users.email (2067)", "User", "email"},
		{"SQLiteComposite", "UNIQUE constraint failed: ingredients.name, ingredients.measurement_unit", "Ingredient", NonFieldErrors},
		{"Postgres", `ERROR: duplicate key value violates unique constraint "idx_users_username" (SQLSTATE 23505)`, "User", "username"},
		{"PostgresComposite", `ERROR: duplicate key value violates unique constraint "idx_ingredient_name_unit" (SQLSTATE 23505)`, "Ingredient", NonFieldErrors},
		{"MySQL8", "Error 1062 (23000): Duplicate entry 'lunch' for key 'tags.idx_tags_slug'", "Tag", "slug"},
		{"MySQLLegacy", "Error 1062: Duplicate entry 'lunch' for key 'idx_tags_name'", "Tag", "name"},
		{"Unreadable", "duplicate key", "Tag", NonFieldErrors},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uniqueField(tt.msg, tt.resource))
		})
	}

	err := FromDB(fmt.Errorf("UNIQUE constraint failed: follows.follower_id, follows.influencer_id"), "Follow")
	assert.Equal(t, []string{"Follow already exists."}, err.(*CustomError).Fields()[NonFieldErrors])
}

func TestValidatorAccumulates(t *testing.T) {
	v := NewValidator()
	v.Required("name", " ").Email("email", "not-an-email").NotIn("username", "Me", []string{"me"})
	err := v.CreateValidationError()
	require.Error(t, err)

	fields := err.(*CustomError).Fields()
	assert.Len(t, fields, 3)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "username")

	assert.NoError(t, NewValidator().CreateValidationError())
}

func TestFromValidator(t *testing.T) {
	type payload struct {
		Color string `validate:"required,hexcolor"`
		Time  int    `validate:"gte=1"`
	}
	err := FromValidator(validator.New().Struct(payload{Color: "red"}))

	fields := err.(*CustomError).Fields()
	assert.Equal(t, []string{"Enter a valid hex color."}, fields["Color"])
	assert.Contains(t, fields, "Time")

	plain := fmt.Errorf("boom")
	assert.Same(t, plain, FromValidator(plain))
}

func TestHTTPErrorHandler(t *testing.T) {
	e := echo.New()
	h := NewErrorHandler(true)

	render := func(err error) (int, ErrorResponse) {
		req := httptest.NewRequest(http.MethodGet, "/api/recipes/1", nil)
		rec := httptest.NewRecorder()
		h.HTTPErrorHandler(err, e.NewContext(req, rec))

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := render(NotFoundError("Recipe", "1"))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body.Code)

	code, body = render(echo.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", body.Code)

	code, body = render(fmt.Errorf("secret internals"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body.Message)
}
