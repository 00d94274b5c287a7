//go:build integration

package services

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/casapps/casrecipes/src/internal/database"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// setupPostgresDB starts a throwaway PostgreSQL container and migrates it
func setupPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	skipIfNoDocker(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "casrecipes",
				"POSTGRES_PASSWORD": "casrecipes",
				"POSTGRES_DB":       "casrecipes",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=casrecipes password=casrecipes dbname=casrecipes sslmode=disable", host, port.Port())
	dialector, err := database.Dialector("postgres", dsn)
	require.NoError(t, err)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.MigrateDB(db))
	return db
}

func TestPostgresIntegration(t *testing.T) {
	f := newFixtureWithDB(t, setupPostgresDB(t))
	ctx := context.Background()

	pancakes := f.createRecipe(t, f.bob, "Pancakes", []uint{f.breakfast.ID},
		QuantityInput{f.flour.ID, 200}, QuantityInput{f.sugarG.ID, 50})
	muffins := f.createRecipe(t, f.bob, "Muffins", []uint{f.breakfast.ID, f.lunch.ID},
		QuantityInput{f.flour.ID, 100}, QuantityInput{f.sugarCup.ID, 1})

	t.Run("ShoppingList", func(t *testing.T) {
		for _, id := range []uint{pancakes.ID, muffins.ID} {
			_, err := f.membership.AddToCart(ctx, f.alice.ID, id)
			require.NoError(t, err)
		}
		list, err := f.cart.ShoppingList(ctx, f.alice.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, ShoppingList{
			{IngredientID: f.flour.ID, Name: "Flour", MeasurementUnit: "g", TotalAmount: 300},
			{IngredientID: f.sugarG.ID, Name: "Sugar", MeasurementUnit: "g", TotalAmount: 50},
			{IngredientID: f.sugarCup.ID, Name: "Sugar", MeasurementUnit: "cup", TotalAmount: 1},
		}, list)
	})

	t.Run("MembershipFilter", func(t *testing.T) {
		_, err := f.membership.AddFavorite(ctx, f.alice.ID, muffins.ID)
		require.NoError(t, err)

		var got []uint
		query := f.membership.Apply(f.db.Model(&models.Recipe{}), &f.alice.ID,
			MembershipIntents{IsFavorited: boolPtr(false), IsInShoppingCart: boolPtr(true)})
		require.NoError(t, query.Pluck("recipes.id", &got).Error)
		assert.Equal(t, []uint{pancakes.ID}, got)
	})

	t.Run("Constraints", func(t *testing.T) {
		err := f.db.Create(&models.Follow{FollowerID: f.alice.ID, InfluencerID: f.alice.ID}).Error
		assert.True(t, errors.IsCheckViolation(err), "self follow: %v", err)

		err = f.db.Create(&models.Ingredient{Name: "Flour", MeasurementUnit: "g"}).Error
		assert.True(t, errors.IsUniqueViolation(err), "duplicate ingredient: %v", err)
	})
}
