package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
)

func boolPtr(v bool) *bool { return &v }

func TestParseMembershipFlag(t *testing.T) {
	v, err := ParseMembershipFlag("is_favorited", nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ParseMembershipFlag("is_favorited", []string{"1"})
	require.NoError(t, err)
	assert.True(t, *v)

	v, err = ParseMembershipFlag("is_favorited", []string{"0", "1"})
	require.NoError(t, err)
	assert.False(t, *v)

	for _, raw := range []string{"", "true", "false", "yes", "2", " 1"} {
		_, err := ParseMembershipFlag("is_in_shopping_cart", []string{raw})
		assert.Equal(t, []string{"must be either 1 or 0"}, fieldsOf(t, err)["is_in_shopping_cart"], raw)
	}
}

func TestMembershipToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipe := f.createRecipe(t, f.bob, "Pancakes", []uint{f.breakfast.ID}, QuantityInput{f.milk.ID, 200})

	t.Run("AddFavoriteIsIdempotent", func(t *testing.T) {
		got, err := f.membership.AddFavorite(ctx, f.alice.ID, recipe.ID)
		require.NoError(t, err)
		assert.Equal(t, recipe.ID, got.ID)

		_, err = f.membership.AddFavorite(ctx, f.alice.ID, recipe.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, countRows(t, f.db, &models.FavoriteItem{}))
	})

	t.Run("RemoveFavoriteIsIdempotent", func(t *testing.T) {
		require.NoError(t, f.membership.RemoveFavorite(ctx, f.alice.ID, recipe.ID))
		require.NoError(t, f.membership.RemoveFavorite(ctx, f.alice.ID, recipe.ID))
		assert.EqualValues(t, 0, countRows(t, f.db, &models.FavoriteItem{}))
	})

	t.Run("CartIsIdempotent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := f.membership.AddToCart(ctx, f.alice.ID, recipe.ID)
			require.NoError(t, err)
		}
		assert.EqualValues(t, 1, countRows(t, f.db, &models.CartItem{}))

		require.NoError(t, f.membership.RemoveFromCart(ctx, f.alice.ID, recipe.ID))
		require.NoError(t, f.membership.RemoveFromCart(ctx, f.alice.ID, recipe.ID))
		assert.EqualValues(t, 0, countRows(t, f.db, &models.CartItem{}))
	})

	t.Run("UnknownRecipe", func(t *testing.T) {
		_, err := f.membership.AddFavorite(ctx, f.alice.ID, 9999)
		assert.True(t, errors.IsNotFound(err))
		assert.True(t, errors.IsNotFound(f.membership.RemoveFromCart(ctx, f.alice.ID, 9999)))
	})
}

func TestMembershipFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1 := f.createRecipe(t, f.bob, "Favorite only", []uint{f.breakfast.ID}, QuantityInput{f.milk.ID, 1})
	r2 := f.createRecipe(t, f.bob, "Cart only", []uint{f.breakfast.ID}, QuantityInput{f.milk.ID, 1})
	r3 := f.createRecipe(t, f.bob, "Both", []uint{f.breakfast.ID}, QuantityInput{f.milk.ID, 1})
	r4 := f.createRecipe(t, f.bob, "Neither", []uint{f.breakfast.ID}, QuantityInput{f.milk.ID, 1})

	for _, id := range []uint{r1.ID, r3.ID} {
		_, err := f.membership.AddFavorite(ctx, f.alice.ID, id)
		require.NoError(t, err)
	}
	for _, id := range []uint{r2.ID, r3.ID} {
		_, err := f.membership.AddToCart(ctx, f.alice.ID, id)
		require.NoError(t, err)
	}

	ids := func(viewer *uint, intents MembershipIntents) []uint {
		var got []uint
		query := f.membership.Apply(f.db.Model(&models.Recipe{}), viewer, intents)
		require.NoError(t, query.Order("recipes.id").Pluck("recipes.id", &got).Error)
		return got
	}

	alice := &f.alice.ID

	cases := []struct {
		name    string
		viewer  *uint
		intents MembershipIntents
		want    []uint
	}{
		{"NoIntents", alice, MembershipIntents{}, []uint{r1.ID, r2.ID, r3.ID, r4.ID}},
		{"Favorited", alice, MembershipIntents{IsFavorited: boolPtr(true)}, []uint{r1.ID, r3.ID}},
		{"NotFavorited", alice, MembershipIntents{IsFavorited: boolPtr(false)}, []uint{r2.ID, r4.ID}},
		{"InCart", alice, MembershipIntents{IsInShoppingCart: boolPtr(true)}, []uint{r2.ID, r3.ID}},
		{"NotInCart", alice, MembershipIntents{IsInShoppingCart: boolPtr(false)}, []uint{r1.ID, r4.ID}},
		{"FavoritedAndInCart", alice, MembershipIntents{boolPtr(true), boolPtr(true)}, []uint{r3.ID}},
		{"FavoritedNotInCart", alice, MembershipIntents{boolPtr(true), boolPtr(false)}, []uint{r1.ID}},
		{"NeitherList", alice, MembershipIntents{boolPtr(false), boolPtr(false)}, []uint{r4.ID}},
		{"AnonymousFavorited", nil, MembershipIntents{IsFavorited: boolPtr(true)}, nil},
		{"AnonymousInCart", nil, MembershipIntents{IsInShoppingCart: boolPtr(true)}, nil},
		{"AnonymousNotFavorited", nil, MembershipIntents{IsFavorited: boolPtr(false)}, []uint{r1.ID, r2.ID, r3.ID, r4.ID}},
		{"AnonymousNotInCart", nil, MembershipIntents{IsInShoppingCart: boolPtr(false)}, []uint{r1.ID, r2.ID, r3.ID, r4.ID}},
		{"OtherViewerFavorited", &f.bob.ID, MembershipIntents{IsFavorited: boolPtr(true)}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(tc.viewer, tc.intents)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("Annotate", func(t *testing.T) {
		recipes := []*models.Recipe{{ID: r1.ID}, {ID: r2.ID}, {ID: r3.ID}, {ID: r4.ID}}
		require.NoError(t, f.membership.Annotate(ctx, alice, recipes...))

		assert.True(t, recipes[0].IsFavorited)
		assert.False(t, recipes[0].IsInShoppingCart)
		assert.False(t, recipes[1].IsFavorited)
		assert.True(t, recipes[1].IsInShoppingCart)
		assert.True(t, recipes[2].IsFavorited && recipes[2].IsInShoppingCart)
		assert.False(t, recipes[3].IsFavorited || recipes[3].IsInShoppingCart)

		require.NoError(t, f.membership.Annotate(ctx, nil, recipes...))
		assert.False(t, recipes[2].IsFavorited || recipes[2].IsInShoppingCart)
	})
}
