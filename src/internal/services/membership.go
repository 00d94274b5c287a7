package services

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
)

// MembershipIntents holds the optional list filters of a recipe listing.
// A nil field leaves the listing unfiltered on that list.
type MembershipIntents struct {
	IsFavorited      *bool
	IsInShoppingCart *bool
}

// ParseMembershipFlag reads the values a query parameter was given. No values
// means the filter is absent; otherwise the first value must be "1" or "0",
// so a blank parameter is rejected.
func ParseMembershipFlag(field string, values []string) (*bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	switch values[0] {
	case "1":
		v := true
		return &v, nil
	case "0":
		v := false
		return &v, nil
	}
	return nil, errors.NewValidationError("must be either 1 or 0", field)
}

// membershipList names a per-user recipe list table
type membershipList struct {
	model interface{}
	table string
}

var (
	favoritesList = membershipList{model: &models.FavoriteItem{}, table: "favorite_items"}
	cartList      = membershipList{model: &models.CartItem{}, table: "cart_items"}
)

// MembershipFilter narrows recipe queries by the viewer's favorites and
// shopping cart, and fills in the per-recipe membership flags.
type MembershipFilter struct {
	db *gorm.DB
}

// NewMembershipFilter creates a new membership filter
func NewMembershipFilter(db *gorm.DB) *MembershipFilter {
	return &MembershipFilter{db: db}
}

func (f *MembershipFilter) memberIDs(list membershipList, viewerID uint) *gorm.DB {
	return f.db.Model(list.model).Select("recipe_id").Where("user_id = ?", viewerID)
}

// Apply adds one condition per present intent. An anonymous viewer has empty
// lists: asking for members yields nothing, asking for non-members is a no-op.
func (f *MembershipFilter) Apply(query *gorm.DB, viewerID *uint, intents MembershipIntents) *gorm.DB {
	query = f.applyOne(query, favoritesList, viewerID, intents.IsFavorited)
	query = f.applyOne(query, cartList, viewerID, intents.IsInShoppingCart)
	return query
}

func (f *MembershipFilter) applyOne(query *gorm.DB, list membershipList, viewerID *uint, intent *bool) *gorm.DB {
	if intent == nil {
		return query
	}

	if viewerID == nil {
		if *intent {
			return query.Where("1 = 0")
		}
		return query
	}

	if *intent {
		return query.Where("recipes.id IN (?)", f.memberIDs(list, *viewerID))
	}
	return query.Where("recipes.id NOT IN (?)", f.memberIDs(list, *viewerID))
}

// Annotate sets IsFavorited and IsInShoppingCart on every recipe using one
// query per list.
func (f *MembershipFilter) Annotate(ctx context.Context, viewerID *uint, recipes ...*models.Recipe) error {
	for _, r := range recipes {
		r.IsFavorited = false
		r.IsInShoppingCart = false
	}
	if viewerID == nil || len(recipes) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(recipes))
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}

	favorites, err := f.members(ctx, favoritesList, *viewerID, ids)
	if err != nil {
		return err
	}
	inCart, err := f.members(ctx, cartList, *viewerID, ids)
	if err != nil {
		return err
	}

	for _, r := range recipes {
		r.IsFavorited = favorites[r.ID]
		r.IsInShoppingCart = inCart[r.ID]
	}
	return nil
}

func (f *MembershipFilter) members(ctx context.Context, list membershipList, viewerID uint, recipeIDs []uint) (map[uint]bool, error) {
	var found []uint
	err := f.db.WithContext(ctx).Model(list.model).
		Where("user_id = ? AND recipe_id IN ?", viewerID, recipeIDs).
		Pluck("recipe_id", &found).Error
	if err != nil {
		return nil, errors.FromDB(err, "Recipe")
	}

	set := make(map[uint]bool, len(found))
	for _, id := range found {
		set[id] = true
	}
	return set, nil
}

// AnnotateSubscriptions sets IsSubscribed on every user the viewer follows
func (f *MembershipFilter) AnnotateSubscriptions(ctx context.Context, viewerID *uint, users ...*models.User) error {
	for _, u := range users {
		u.IsSubscribed = false
	}
	if viewerID == nil || len(users) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	var followed []uint
	err := f.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND influencer_id IN ?", *viewerID, ids).
		Pluck("influencer_id", &followed).Error
	if err != nil {
		return errors.FromDB(err, "User")
	}

	set := make(map[uint]bool, len(followed))
	for _, id := range followed {
		set[id] = true
	}
	for _, u := range users {
		u.IsSubscribed = set[u.ID]
	}
	return nil
}

// AddFavorite puts the recipe in the user's favorites. Adding twice is a no-op.
func (f *MembershipFilter) AddFavorite(ctx context.Context, userID, recipeID uint) (*models.Recipe, error) {
	return f.add(ctx, recipeID, func(tx *gorm.DB) error {
		item := models.FavoriteItem{}
		return firstOrCreate(tx, &item, models.FavoriteItem{UserID: userID, RecipeID: recipeID})
	})
}

// RemoveFavorite drops the recipe from the user's favorites, if present
func (f *MembershipFilter) RemoveFavorite(ctx context.Context, userID, recipeID uint) error {
	return f.remove(ctx, favoritesList, userID, recipeID)
}

// AddToCart puts the recipe in the user's shopping cart. Adding twice is a no-op.
func (f *MembershipFilter) AddToCart(ctx context.Context, userID, recipeID uint) (*models.Recipe, error) {
	return f.add(ctx, recipeID, func(tx *gorm.DB) error {
		item := models.CartItem{}
		return firstOrCreate(tx, &item, models.CartItem{UserID: userID, RecipeID: recipeID})
	})
}

// RemoveFromCart drops the recipe from the user's shopping cart, if present
func (f *MembershipFilter) RemoveFromCart(ctx context.Context, userID, recipeID uint) error {
	return f.remove(ctx, cartList, userID, recipeID)
}

func (f *MembershipFilter) add(ctx context.Context, recipeID uint, create func(tx *gorm.DB) error) (*models.Recipe, error) {
	db := f.db.WithContext(ctx)

	var recipe models.Recipe
	if err := db.First(&recipe, recipeID).Error; err != nil {
		return nil, errors.FromDB(err, "Recipe")
	}

	if err := create(db); err != nil {
		return nil, errors.FromDB(err, "Recipe")
	}
	return &recipe, nil
}

func (f *MembershipFilter) remove(ctx context.Context, list membershipList, userID, recipeID uint) error {
	db := f.db.WithContext(ctx)

	var recipe models.Recipe
	if err := db.Select("id").First(&recipe, recipeID).Error; err != nil {
		return errors.FromDB(err, "Recipe")
	}

	err := db.Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(list.model).Error
	return errors.FromDB(err, "Recipe")
}

// firstOrCreate gets or creates the row matching attrs. A concurrent insert
// of the same pair surfaces as a unique violation and is folded into a lookup.
func firstOrCreate(db *gorm.DB, dest interface{}, attrs interface{}) error {
	err := db.Where(attrs).FirstOrCreate(dest).Error
	if err == nil {
		return nil
	}
	if errors.IsUniqueViolation(err) {
		if lookupErr := db.Where(attrs).First(dest).Error; lookupErr != nil {
			return fmt.Errorf("lookup after duplicate insert: %w", stderrors.Join(err, lookupErr))
		}
		return nil
	}
	return err
}
