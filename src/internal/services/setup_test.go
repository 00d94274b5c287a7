package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.GetAllModels()...))
	return db
}

func testConfig() *viper.Viper {
	cfg := viper.New()
	cfg.Set("pagination.page_size", 5)
	cfg.Set("pagination.max_page_size", 100)
	cfg.Set("cache.enabled", true)
	return cfg
}

// fakeImages records what the services store and remove
type fakeImages struct {
	saved   []string
	removed []string
}

func (f *fakeImages) SaveBase64(ctx context.Context, data string) (string, error) {
	if !strings.HasPrefix(data, "data:image/") {
		return "", errors.NewValidationError("Upload a valid image.", "image")
	}
	url := fmt.Sprintf("/media/recipes/%d.png", len(f.saved)+1)
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeImages) Remove(url string) error {
	f.removed = append(f.removed, url)
	return nil
}

const testImage = "data:image/png;base64,AAAA"

type fixture struct {
	db          *gorm.DB
	images      *fakeImages
	membership  *MembershipFilter
	recipes     *RecipeService
	cart        *ShoppingCartService
	users       *UserService
	tags        *TagService
	ingredients *IngredientService

	alice, bob       models.User
	breakfast, lunch models.Tag
	sugarG, sugarCup models.Ingredient
	milk, flour      models.Ingredient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, setupTestDB(t))
}

func newFixtureWithDB(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	cfg := testConfig()
	cm := cache.NewCacheManager(cfg)

	f := &fixture{db: db, images: &fakeImages{}}
	f.membership = NewMembershipFilter(db)
	f.recipes = NewRecipeService(db, cfg, f.membership, f.images)
	f.cart = NewShoppingCartService(db)
	f.users = NewUserService(db, cfg, f.membership)
	f.tags = NewTagService(db, cm)
	f.ingredients = NewIngredientService(db, cm)

	f.alice = models.User{Email: "alice@example.com", Username: "alice", FirstName: "Alice", LastName: "A"}
	f.bob = models.User{Email: "bob@example.com", Username: "bob", FirstName: "Bob", LastName: "B"}
	require.NoError(t, db.Create(&f.alice).Error)
	require.NoError(t, db.Create(&f.bob).Error)

	f.breakfast = models.Tag{Name: "Breakfast", Slug: "breakfast", Color: "#E26C2D"}
	f.lunch = models.Tag{Name: "Lunch", Slug: "lunch", Color: "#49B64E"}
	require.NoError(t, db.Create(&f.breakfast).Error)
	require.NoError(t, db.Create(&f.lunch).Error)

	f.sugarG = models.Ingredient{Name: "Sugar", MeasurementUnit: "g"}
	f.sugarCup = models.Ingredient{Name: "Sugar", MeasurementUnit: "cup"}
	f.milk = models.Ingredient{Name: "Milk", MeasurementUnit: "ml"}
	f.flour = models.Ingredient{Name: "Flour", MeasurementUnit: "g"}
	for _, ing := range []*models.Ingredient{&f.sugarG, &f.sugarCup, &f.milk, &f.flour} {
		require.NoError(t, db.Create(ing).Error)
	}

	return f
}

func (f *fixture) createRecipe(t *testing.T, author models.User, name string, tags []uint, quantities ...QuantityInput) *models.Recipe {
	t.Helper()
	recipe, err := f.recipes.CreateRecipe(context.Background(), author.ID, RecipeInput{
		Name:        name,
		Text:        "Mix and cook.",
		CookingTime: 10,
		Image:       testImage,
		TagIDs:      tags,
		Ingredients: quantities,
	})
	require.NoError(t, err)
	return recipe
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func fieldsOf(t *testing.T, err error) map[string][]string {
	t.Helper()
	require.Error(t, err)
	ce, ok := err.(*errors.CustomError)
	require.True(t, ok, "expected *errors.CustomError, got %T", err)
	return ce.Fields()
}
