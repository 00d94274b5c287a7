package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
)

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := RegisterInput{
		Email:     "carol@example.com",
		Username:  "carol",
		FirstName: "Carol",
		LastName:  "C",
		Password:  "pa55word-long",
	}

	user, err := f.users.CreateUser(ctx, input)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.False(t, user.IsAdmin)
	assert.True(t, auth.CheckPasswordHash("pa55word-long", user.PasswordHash))

	t.Run("DuplicateEmailAndUsername", func(t *testing.T) {
		dup := input
		dup.Email = "CAROL@example.com"
		fields := fieldsOf(t, func() error { _, err := f.users.CreateUser(ctx, dup); return err }())
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "username")
	})

	t.Run("ReservedUsernames", func(t *testing.T) {
		for _, name := range ReservedUsernames {
			in := input
			in.Email = name + "@example.com"
			in.Username = name
			_, err := f.users.CreateUser(ctx, in)
			assert.Contains(t, fieldsOf(t, err), "username", name)
		}
	})

	t.Run("WeakPassword", func(t *testing.T) {
		in := input
		in.Email, in.Username = "dave@example.com", "dave"
		in.Password = "12345678"
		_, err := f.users.CreateUser(ctx, in)
		assert.Contains(t, fieldsOf(t, err), "password")
	})

	t.Run("Superuser", func(t *testing.T) {
		in := input
		in.Email, in.Username = "root@example.com", "root"
		admin, err := f.users.CreateSuperuser(ctx, in)
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin)
	})
}

func TestAuthenticateAndSetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.CreateUser(ctx, RegisterInput{
		Email: "erin@example.com", Username: "erin", FirstName: "Erin", LastName: "E", Password: "first-pass-1",
	})
	require.NoError(t, err)

	got, err := f.users.Authenticate(ctx, "Erin@Example.com", "first-pass-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.users.Authenticate(ctx, "erin@example.com", "nope")
	assert.Contains(t, fieldsOf(t, err), "non_field_errors")

	err = f.users.SetPassword(ctx, user.ID, "wrong", "second-pass-2")
	assert.Contains(t, fieldsOf(t, err), "current_password")

	err = f.users.SetPassword(ctx, user.ID, "first-pass-1", "first-pass-1")
	assert.Contains(t, fieldsOf(t, err), "new_password")

	err = f.users.SetPassword(ctx, 9999, "first-pass-1", "second-pass-2")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, f.users.SetPassword(ctx, user.ID, "first-pass-1", "second-pass-2"))
	_, err = f.users.Authenticate(ctx, "erin@example.com", "second-pass-2")
	assert.NoError(t, err)
}

func TestSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"B1", "B2", "B3"} {
		f.createRecipe(t, f.bob, name, []uint{f.lunch.ID}, QuantityInput{f.milk.ID, 1})
	}

	t.Run("SubscribeIsIdempotent", func(t *testing.T) {
		limit := 2
		sub, err := f.users.Subscribe(ctx, f.alice.ID, f.bob.ID, &limit)
		require.NoError(t, err)
		assert.True(t, sub.User.IsSubscribed)
		assert.EqualValues(t, 3, sub.RecipesCount)
		require.Len(t, sub.Recipes, 2)
		assert.Equal(t, "B1", sub.Recipes[0].Name)
		assert.Equal(t, "B2", sub.Recipes[1].Name)

		_, err = f.users.Subscribe(ctx, f.alice.ID, f.bob.ID, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, countRows(t, f.db, &models.Follow{}))
	})

	t.Run("SelfSubscribe", func(t *testing.T) {
		_, err := f.users.Subscribe(ctx, f.alice.ID, f.alice.ID, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, err.(*errors.CustomError).StatusCode)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := f.users.Subscribe(ctx, f.alice.ID, 9999, nil)
		assert.True(t, errors.IsNotFound(err))
		assert.True(t, errors.IsNotFound(f.users.Unsubscribe(ctx, f.alice.ID, 9999)))
	})

	t.Run("List", func(t *testing.T) {
		subs, total, err := f.users.Subscriptions(ctx, f.alice.ID, Page{}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, subs, 1)
		assert.Equal(t, f.bob.ID, subs[0].User.ID)
		assert.Len(t, subs[0].Recipes, 3)

		zero := 0
		subs, _, err = f.users.Subscriptions(ctx, f.alice.ID, Page{}, &zero)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.NotNil(t, subs[0].Recipes)
		assert.Empty(t, subs[0].Recipes)
		assert.EqualValues(t, 3, subs[0].RecipesCount)

		other, _, err := f.users.Subscriptions(ctx, f.bob.ID, Page{}, nil)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("IsSubscribedOnDetail", func(t *testing.T) {
		bob, err := f.users.GetUser(ctx, f.bob.ID, &f.alice.ID)
		require.NoError(t, err)
		assert.True(t, bob.IsSubscribed)

		bob, err = f.users.GetUser(ctx, f.bob.ID, nil)
		require.NoError(t, err)
		assert.False(t, bob.IsSubscribed)
	})

	t.Run("UnsubscribeIsIdempotent", func(t *testing.T) {
		require.NoError(t, f.users.Unsubscribe(ctx, f.alice.ID, f.bob.ID))
		require.NoError(t, f.users.Unsubscribe(ctx, f.alice.ID, f.bob.ID))
		assert.EqualValues(t, 0, countRows(t, f.db, &models.Follow{}))
	})
}

func TestParseRecipesLimit(t *testing.T) {
	n, err := ParseRecipesLimit("")
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = ParseRecipesLimit("3")
	require.NoError(t, err)
	assert.Equal(t, 3, *n)

	n, err = ParseRecipesLimit("0")
	require.NoError(t, err)
	assert.Equal(t, 0, *n)

	for _, raw := range []string{"-1", "abc", "1.5"} {
		_, err := ParseRecipesLimit(raw)
		assert.Contains(t, fieldsOf(t, err), "recipes_limit")
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bobs := f.createRecipe(t, f.bob, "Bob's", []uint{f.lunch.ID}, QuantityInput{f.milk.ID, 1})
	alices := f.createRecipe(t, f.alice, "Alice's", []uint{f.lunch.ID}, QuantityInput{f.milk.ID, 1})

	_, err := f.membership.AddFavorite(ctx, f.alice.ID, bobs.ID)
	require.NoError(t, err)
	_, err = f.membership.AddToCart(ctx, f.bob.ID, alices.ID)
	require.NoError(t, err)
	_, err = f.users.Subscribe(ctx, f.alice.ID, f.bob.ID, nil)
	require.NoError(t, err)

	require.NoError(t, f.users.DeleteUser(ctx, f.bob.ID))

	assert.EqualValues(t, 1, countRows(t, f.db, &models.Recipe{}))
	assert.EqualValues(t, 1, countRows(t, f.db, &models.Quantity{}))
	assert.EqualValues(t, 0, countRows(t, f.db, &models.FavoriteItem{}))
	assert.EqualValues(t, 0, countRows(t, f.db, &models.CartItem{}))
	assert.EqualValues(t, 0, countRows(t, f.db, &models.Follow{}))

	_, err = f.users.GetUser(ctx, f.bob.ID, nil)
	assert.True(t, errors.IsNotFound(err))
}
