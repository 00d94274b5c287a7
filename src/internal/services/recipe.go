package services

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/logging"
)

// ImageStore persists recipe images and hands back their public URL
type ImageStore interface {
	SaveBase64(ctx context.Context, data string) (string, error)
	Remove(url string) error
}

// RecipeService handles recipe business logic
type RecipeService struct {
	db           *gorm.DB
	membership   *MembershipFilter
	images       ImageStore
	defaultLimit int
	maxLimit     int
}

// NewRecipeService creates a new recipe service
func NewRecipeService(db *gorm.DB, cfg *viper.Viper, membership *MembershipFilter, images ImageStore) *RecipeService {
	return &RecipeService{
		db:           db,
		membership:   membership,
		images:       images,
		defaultLimit: cfg.GetInt("pagination.page_size"),
		maxLimit:     cfg.GetInt("pagination.max_page_size"),
	}
}

// QuantityInput is one ingredient line of a recipe payload
type QuantityInput struct {
	IngredientID uint
	Amount       int
}

// RecipeInput represents input for creating or updating a recipe. On update
// an empty Image keeps the current one.
type RecipeInput struct {
	Name        string
	Text        string
	CookingTime int
	Image       string
	TagIDs      []uint
	Ingredients []QuantityInput
}

// ListRecipesOptions holds the filters of a recipe listing
type ListRecipesOptions struct {
	Page     Page
	AuthorID *uint
	TagSlugs []string
	Intents  MembershipIntents
}

func orderByID(table string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(table + ".id")
	}
}

func preloadRecipe(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").
		Preload("Quantities", orderByID("quantities")).
		Preload("Quantities.Ingredient").
		Preload("RecipeTags", orderByID("recipe_tags")).
		Preload("RecipeTags.Tag")
}

// validate checks everything the database cannot, before any row is written
func (s *RecipeService) validate(ctx context.Context, input RecipeInput, requireImage bool) error {
	v := errors.NewValidator()
	v.Required("name", input.Name).MaxLength("name", input.Name, 200)
	v.Required("text", input.Text)
	if input.CookingTime < 1 {
		v.AddError("cooking_time", "Ensure this value is greater than or equal to 1.")
	}
	if requireImage {
		v.Required("image", input.Image)
	}

	if len(input.TagIDs) == 0 {
		v.AddError("tags", "At least one tag is required.")
	} else if !uniqueIDs(input.TagIDs) {
		v.AddError("tags", "Tags must not repeat.")
	} else if err := s.checkExist(ctx, &models.Tag{}, input.TagIDs); err != nil {
		v.Merge(err)
	}

	if len(input.Ingredients) == 0 {
		v.AddError("ingredients", "At least one ingredient is required.")
	} else {
		ids := make([]uint, 0, len(input.Ingredients))
		for _, q := range input.Ingredients {
			ids = append(ids, q.IngredientID)
			if q.Amount < 1 {
				v.AddError("ingredients", fmt.Sprintf("Amount of ingredient %d must be at least 1.", q.IngredientID))
			}
		}
		if !uniqueIDs(ids) {
			v.AddError("ingredients", "Ingredients must not repeat.")
		} else if err := s.checkExist(ctx, &models.Ingredient{}, ids); err != nil {
			v.Merge(err)
		}
	}

	return v.CreateValidationError()
}

func uniqueIDs(ids []uint) bool {
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

func (s *RecipeService) checkExist(ctx context.Context, model interface{}, ids []uint) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return errors.DatabaseError("failed to look up references", err)
	}
	if int(count) != len(ids) {
		field := "ingredients"
		if _, ok := model.(*models.Tag); ok {
			field = "tags"
		}
		return errors.NewValidationError("One or more ids do not exist.", field)
	}
	return nil
}

// replaceAssociations drops every tag link and quantity row of the recipe
// and recreates them from input
func replaceAssociations(tx *gorm.DB, recipeID uint, input RecipeInput) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeTag{}).Error; err != nil {
		return err
	}
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.Quantity{}).Error; err != nil {
		return err
	}

	recipeTags := make([]models.RecipeTag, 0, len(input.TagIDs))
	for _, id := range input.TagIDs {
		recipeTags = append(recipeTags, models.RecipeTag{RecipeID: recipeID, TagID: id})
	}
	if err := tx.Create(&recipeTags).Error; err != nil {
		return err
	}

	quantities := make([]models.Quantity, 0, len(input.Ingredients))
	for _, q := range input.Ingredients {
		quantities = append(quantities, models.Quantity{RecipeID: recipeID, IngredientID: q.IngredientID, Amount: q.Amount})
	}
	return tx.Create(&quantities).Error
}

// CreateRecipe creates a recipe with its tags and quantities in one transaction
func (s *RecipeService) CreateRecipe(ctx context.Context, authorID uint, input RecipeInput) (*models.Recipe, error) {
	if err := s.validate(ctx, input, true); err != nil {
		return nil, err
	}

	image, err := s.images.SaveBase64(ctx, input.Image)
	if err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	recipe := &models.Recipe{
		Name:        input.Name,
		Text:        input.Text,
		CookingTime: input.CookingTime,
		AuthorID:    authorID,
		Image:       image,
	}
	if err := tx.Create(recipe).Error; err != nil {
		tx.Rollback()
		s.discardImage(ctx, image)
		return nil, errors.FromDB(err, "Recipe")
	}

	if err := replaceAssociations(tx, recipe.ID, input); err != nil {
		tx.Rollback()
		s.discardImage(ctx, image)
		return nil, errors.FromDB(err, "Recipe")
	}

	if err := tx.Commit().Error; err != nil {
		s.discardImage(ctx, image)
		return nil, errors.FromDB(err, "Recipe")
	}

	return s.GetRecipe(ctx, recipe.ID, &authorID)
}

// UpdateRecipe replaces the recipe's fields, tag set and quantity set. Only
// the author or an admin may update.
func (s *RecipeService) UpdateRecipe(ctx context.Context, recipeID, userID uint, isAdmin bool, input RecipeInput) (*models.Recipe, error) {
	recipe, err := s.loadOwned(ctx, recipeID, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	if err := s.validate(ctx, input, false); err != nil {
		return nil, err
	}

	oldImage := recipe.Image
	newImage := ""
	if input.Image != "" {
		if newImage, err = s.images.SaveBase64(ctx, input.Image); err != nil {
			return nil, err
		}
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	updates := map[string]interface{}{
		"name":         input.Name,
		"text":         input.Text,
		"cooking_time": input.CookingTime,
	}
	if newImage != "" {
		updates["image"] = newImage
	}

	if err := tx.Model(recipe).Updates(updates).Error; err != nil {
		tx.Rollback()
		s.discardImage(ctx, newImage)
		return nil, errors.FromDB(err, "Recipe")
	}

	if err := replaceAssociations(tx, recipe.ID, input); err != nil {
		tx.Rollback()
		s.discardImage(ctx, newImage)
		return nil, errors.FromDB(err, "Recipe")
	}

	if err := tx.Commit().Error; err != nil {
		s.discardImage(ctx, newImage)
		return nil, errors.FromDB(err, "Recipe")
	}

	if newImage != "" {
		s.discardImage(ctx, oldImage)
	}

	return s.GetRecipe(ctx, recipe.ID, &userID)
}

// DeleteRecipe removes the recipe and every row that references it
func (s *RecipeService) DeleteRecipe(ctx context.Context, recipeID, userID uint, isAdmin bool) error {
	recipe, err := s.loadOwned(ctx, recipeID, userID, isAdmin)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteRecipes(tx, []uint{recipe.ID})
	})
	if err != nil {
		return errors.FromDB(err, "Recipe")
	}

	s.discardImage(ctx, recipe.Image)
	return nil
}

// deleteRecipes removes recipes together with their dependent rows. SQLite
// only cascades when foreign keys are switched on, so dependents are
// deleted explicitly.
func deleteRecipes(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	for _, model := range []interface{}{&models.Quantity{}, &models.RecipeTag{}, &models.FavoriteItem{}, &models.CartItem{}} {
		if err := tx.Where("recipe_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.Recipe{}).Error
}

func (s *RecipeService) loadOwned(ctx context.Context, recipeID, userID uint, isAdmin bool) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		return nil, errors.FromDB(err, "Recipe")
	}
	if recipe.AuthorID != userID && !isAdmin {
		return nil, errors.ForbiddenError("only the author may change this recipe")
	}
	return &recipe, nil
}

func (s *RecipeService) discardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Remove(url); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("image", url).Msg("failed to remove recipe image")
	}
}

// GetRecipe returns one recipe with its author, tags, ingredients and the
// viewer's membership flags
func (s *RecipeService) GetRecipe(ctx context.Context, recipeID uint, viewerID *uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := preloadRecipe(s.db.WithContext(ctx)).First(&recipe, recipeID).Error; err != nil {
		return nil, errors.FromDB(err, "Recipe")
	}

	recipes := []models.Recipe{recipe}
	if err := s.annotate(ctx, viewerID, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// ListRecipes returns one page of recipes ordered by name, and the total count
func (s *RecipeService) ListRecipes(ctx context.Context, opts ListRecipesOptions, viewerID *uint) ([]models.Recipe, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Recipe{})

	if opts.AuthorID != nil {
		query = query.Where("recipes.author_id = ?", *opts.AuthorID)
	}

	// A recipe matches when it carries any of the tags
	if len(opts.TagSlugs) > 0 {
		tagged := s.db.Table("recipe_tags").
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", opts.TagSlugs)
		query = query.Where("recipes.id IN (?)", tagged)
	}

	query = s.membership.Apply(query, viewerID, opts.Intents)
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.FromDB(err, "Recipe")
	}

	page := opts.Page.Normalize(s.defaultLimit, s.maxLimit)

	var recipes []models.Recipe
	err := page.apply(preloadRecipe(query)).
		Order("recipes.name").
		Order("recipes.id").
		Find(&recipes).Error
	if err != nil {
		return nil, 0, errors.FromDB(err, "Recipe")
	}

	if err := s.annotate(ctx, viewerID, recipes); err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

func (s *RecipeService) annotate(ctx context.Context, viewerID *uint, recipes []models.Recipe) error {
	recipePtrs := make([]*models.Recipe, 0, len(recipes))
	authors := make([]*models.User, 0, len(recipes))
	for i := range recipes {
		recipePtrs = append(recipePtrs, &recipes[i])
		authors = append(authors, &recipes[i].Author)
	}

	if err := s.membership.Annotate(ctx, viewerID, recipePtrs...); err != nil {
		return err
	}
	return s.membership.AnnotateSubscriptions(ctx, viewerID, authors...)
}
