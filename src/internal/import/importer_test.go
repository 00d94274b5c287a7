package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/database"
	"github.com/casapps/casrecipes/src/internal/database/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dialector, err := database.Dialector("sqlite", filepath.Join(t.TempDir(), "import.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.MigrateDB(db))
	return db
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

var catalog = map[string]string{
	TagsFile: "name,color,slug\n" +
		"Breakfast,#e26c2d,breakfast\n" +
		"Lunch,#49B64E,lunch\n",
	UsersFile: "email,username,first_name,last_name,password\n" +
		"Alice@Example.com,alice,Alice,Smith,s3cret-pass\n" +
		"bob@example.com,bob,Bob,Jones,s3cret-pass\n",
	IngredientsFile: "name,measurement_unit\n" +
		"sugar,g\n" +
		"sugar,cup\n" +
		"\"flour, wheat\",g\n",
	SubscriptionsFile: "follower,influencer\n" +
		"alice,bob\n",
}

func TestImportDir(t *testing.T) {
	db := setupDB(t)
	im := NewImporter(db)

	summary, err := im.ImportDir(context.Background(), writeFiles(t, catalog))
	require.NoError(t, err)
	assert.Equal(t, Summary{Tags: 2, Users: 2, Ingredients: 3, Subscriptions: 1}, *summary)

	var tag models.Tag
	require.NoError(t, db.Where("slug = ?", "breakfast").First(&tag).Error)
	assert.Equal(t, "#E26C2D", tag.Color)

	var alice models.User
	require.NoError(t, db.Where("username = ?", "alice").First(&alice).Error)
	assert.Equal(t, "Alice@Example.com", alice.Email)
	assert.NotEqual(t, "s3cret-pass", alice.PasswordHash)
	assert.True(t, auth.CheckPasswordHash("s3cret-pass", alice.PasswordHash))

	var flour models.Ingredient
	require.NoError(t, db.Where("name = ?", "flour, wheat").First(&flour).Error)
	assert.Equal(t, "g", flour.MeasurementUnit)

	var follows int64
	require.NoError(t, db.Model(&models.Follow{}).Where("follower_id = ?", alice.ID).Count(&follows).Error)
	assert.EqualValues(t, 1, follows)
}

func TestImportDirIsIdempotent(t *testing.T) {
	db := setupDB(t)
	im := NewImporter(db)
	dir := writeFiles(t, catalog)

	_, err := im.ImportDir(context.Background(), dir)
	require.NoError(t, err)

	summary, err := im.ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 8}, *summary)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 2, users)
}

func TestImportDirSkipsMissingFiles(t *testing.T) {
	db := setupDB(t)
	summary, err := NewImporter(db).ImportDir(context.Background(), writeFiles(t, map[string]string{
		IngredientsFile: catalog[IngredientsFile],
	}))
	require.NoError(t, err)
	assert.Equal(t, Summary{Ingredients: 3}, *summary)
}

func TestImportDirRollsBackOnBadRow(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name: "missing column value",
			files: map[string]string{
				TagsFile: "name,color,slug\nBreakfast,,breakfast\n",
			},
			want: "missing color",
		},
		{
			name: "unknown subscriber",
			files: map[string]string{
				UsersFile:         catalog[UsersFile],
				SubscriptionsFile: "follower,influencer\nalice,carol\n",
			},
			want: `unknown user "carol"`,
		},
		{
			name: "self subscription",
			files: map[string]string{
				UsersFile:         catalog[UsersFile],
				SubscriptionsFile: "follower,influencer\nbob,bob\n",
			},
			want: "cannot subscribe to themselves",
		},
		{
			name: "ragged record",
			files: map[string]string{
				IngredientsFile: "name,measurement_unit\nsugar\n",
			},
			want: IngredientsFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupDB(t)
			_, err := NewImporter(db).ImportDir(context.Background(), writeFiles(t, tt.files))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var users int64
			require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
			assert.Zero(t, users)
		})
	}
}

func TestImportDirRejectsFile(t *testing.T) {
	db := setupDB(t)
	path := filepath.Join(t.TempDir(), TagsFile)
	require.NoError(t, os.WriteFile(path, []byte("name\n"), 0o644))

	_, err := NewImporter(db).ImportDir(context.Background(), path)
	assert.ErrorContains(t, err, "not a directory")
}
