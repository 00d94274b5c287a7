package services

import (
	"context"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/metrics"
)

var (
	slugPattern  = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// TagInput represents input for creating or updating a tag
type TagInput struct {
	Name  string
	Slug  string
	Color string
}

// TagService manages the tag catalog. The full list and each tag are cached.
type TagService struct {
	db    *gorm.DB
	cache *cache.CacheManager
}

// NewTagService creates a new tag service
func NewTagService(db *gorm.DB, cacheManager *cache.CacheManager) *TagService {
	return &TagService{db: db, cache: cacheManager}
}

// ListTags returns every tag ordered by name
func (s *TagService) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.cache.GetJSON(ctx, cache.CacheKeyTags, &tags); err == nil {
		metrics.RecordCacheLookup("tags", true)
		return tags, nil
	} else if s.cache.Enabled() {
		metrics.RecordCacheLookup("tags", false)
	}

	if err := s.db.WithContext(ctx).Order("name").Find(&tags).Error; err != nil {
		return nil, errors.FromDB(err, "Tag")
	}

	if err := s.cache.SetJSON(ctx, cache.CacheKeyTags, tags, s.cache.TTL()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to cache tag list")
	}
	return tags, nil
}

// GetTag returns a tag by id
func (s *TagService) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	key := cache.TagKey(id)
	var tag models.Tag
	if err := s.cache.GetJSON(ctx, key, &tag); err == nil {
		metrics.RecordCacheLookup("tags", true)
		return &tag, nil
	} else if s.cache.Enabled() {
		metrics.RecordCacheLookup("tags", false)
	}

	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, errors.FromDB(err, "Tag")
	}

	if err := s.cache.SetJSON(ctx, key, tag, s.cache.TTL()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Uint("tag_id", id).Msg("failed to cache tag")
	}
	return &tag, nil
}

func validateTag(input TagInput) error {
	v := errors.NewValidator()
	v.Required("name", input.Name).MaxLength("name", input.Name, 200)
	v.Required("slug", input.Slug).MaxLength("slug", input.Slug, 200).
		Pattern("slug", input.Slug, slugPattern, "Enter a valid slug of letters, numbers, underscores or hyphens.")
	v.Required("color", input.Color).
		Pattern("color", input.Color, colorPattern, "Enter a valid hex color.")
	return v.CreateValidationError()
}

// CreateTag creates a new tag
func (s *TagService) CreateTag(ctx context.Context, input TagInput) (*models.Tag, error) {
	if err := validateTag(input); err != nil {
		return nil, err
	}

	tag := &models.Tag{Name: input.Name, Slug: input.Slug, Color: strings.ToUpper(input.Color)}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return nil, errors.FromDB(err, "Tag")
	}

	s.invalidate(ctx)
	return tag, nil
}

// UpdateTag replaces a tag's fields
func (s *TagService) UpdateTag(ctx context.Context, id uint, input TagInput) (*models.Tag, error) {
	tag, err := s.GetTag(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateTag(input); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(tag).Updates(map[string]interface{}{
		"name":  input.Name,
		"slug":  input.Slug,
		"color": strings.ToUpper(input.Color),
	}).Error
	if err != nil {
		return nil, errors.FromDB(err, "Tag")
	}

	s.invalidate(ctx)
	return s.GetTag(ctx, id)
}

// DeleteTag removes a tag and its recipe links
func (s *TagService) DeleteTag(ctx context.Context, id uint) error {
	tag, err := s.GetTag(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", tag.ID).Delete(&models.RecipeTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(tag).Error
	})
	if err != nil {
		return errors.FromDB(err, "Tag")
	}

	s.invalidate(ctx)
	return nil
}

func (s *TagService) invalidate(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, "tags:*"); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to invalidate tag cache")
	}
}
