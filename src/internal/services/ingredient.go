package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/metrics"
)

// IngredientInput represents input for creating or updating an ingredient
type IngredientInput struct {
	Name            string
	MeasurementUnit string
}

// IngredientService manages the ingredient catalog
type IngredientService struct {
	db    *gorm.DB
	cache *cache.CacheManager
}

// NewIngredientService creates a new ingredient service
func NewIngredientService(db *gorm.DB, cacheManager *cache.CacheManager) *IngredientService {
	return &IngredientService{db: db, cache: cacheManager}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ListIngredients returns ingredients ordered by name. A non-empty prefix
// keeps only names starting with it, ignoring case.
func (s *IngredientService) ListIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error) {
	key := cache.IngredientsKey(prefix)

	var ingredients []models.Ingredient
	if err := s.cache.GetJSON(ctx, key, &ingredients); err == nil {
		metrics.RecordCacheLookup("ingredients", true)
		return ingredients, nil
	} else if s.cache.Enabled() {
		metrics.RecordCacheLookup("ingredients", false)
	}

	query := s.db.WithContext(ctx).Order("name").Order("measurement_unit")
	if prefix != "" {
		query = query.Where("LOWER(name) LIKE ? ESCAPE '!'", likeEscaper.Replace(strings.ToLower(prefix))+"%")
	}
	if err := query.Find(&ingredients).Error; err != nil {
		return nil, errors.FromDB(err, "Ingredient")
	}

	if err := s.cache.SetJSON(ctx, key, ingredients, s.cache.TTL()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to cache ingredient list")
	}
	return ingredients, nil
}

// GetIngredient returns an ingredient by id
func (s *IngredientService) GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		return nil, errors.FromDB(err, "Ingredient")
	}
	return &ingredient, nil
}

func validateIngredient(input IngredientInput) error {
	v := errors.NewValidator()
	v.Required("name", input.Name).MaxLength("name", input.Name, 200)
	v.Required("measurement_unit", input.MeasurementUnit).MaxLength("measurement_unit", input.MeasurementUnit, 200)
	return v.CreateValidationError()
}

// CreateIngredient creates a new ingredient. A name may repeat under
// another unit.
func (s *IngredientService) CreateIngredient(ctx context.Context, input IngredientInput) (*models.Ingredient, error) {
	if err := validateIngredient(input); err != nil {
		return nil, err
	}

	ingredient := &models.Ingredient{Name: input.Name, MeasurementUnit: input.MeasurementUnit}
	if err := s.db.WithContext(ctx).Create(ingredient).Error; err != nil {
		return nil, errors.FromDB(err, "Ingredient")
	}

	s.invalidate(ctx)
	return ingredient, nil
}

// UpdateIngredient replaces an ingredient's fields
func (s *IngredientService) UpdateIngredient(ctx context.Context, id uint, input IngredientInput) (*models.Ingredient, error) {
	ingredient, err := s.GetIngredient(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateIngredient(input); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(ingredient).Updates(map[string]interface{}{
		"name":             input.Name,
		"measurement_unit": input.MeasurementUnit,
	}).Error
	if err != nil {
		return nil, errors.FromDB(err, "Ingredient")
	}

	s.invalidate(ctx)
	return s.GetIngredient(ctx, id)
}

// DeleteIngredient removes an ingredient and every quantity row using it
func (s *IngredientService) DeleteIngredient(ctx context.Context, id uint) error {
	ingredient, err := s.GetIngredient(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ingredient_id = ?", ingredient.ID).Delete(&models.Quantity{}).Error; err != nil {
			return err
		}
		return tx.Delete(ingredient).Error
	})
	if err != nil {
		return errors.FromDB(err, "Ingredient")
	}

	s.invalidate(ctx)
	return nil
}

func (s *IngredientService) invalidate(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, "ingredients:*"); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to invalidate ingredient cache")
	}
}
