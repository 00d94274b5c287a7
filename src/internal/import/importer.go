package importer

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/logging"
	"gorm.io/gorm"
)

// Catalog files read by ImportDir, in load order. Subscriptions come last
// because they reference users by username.
const (
	TagsFile          = "tags.csv"
	UsersFile         = "users.csv"
	IngredientsFile   = "ingredients.csv"
	SubscriptionsFile = "subscriptions.csv"
)

// Summary counts the rows each file created. Rows that already existed are
// counted as skipped.
type Summary struct {
	Tags          int `json:"tags"`
	Users         int `json:"users"`
	Ingredients   int `json:"ingredients"`
	Subscriptions int `json:"subscriptions"`
	Skipped       int `json:"skipped"`
}

// Importer seeds the catalog and user tables from a directory of CSV files
type Importer struct {
	db *gorm.DB
}

// NewImporter creates a new importer
func NewImporter(db *gorm.DB) *Importer {
	return &Importer{db: db}
}

// ImportDir loads every known file found in dir inside one transaction.
// Missing files are skipped; any bad row rolls the whole import back.
func (im *Importer) ImportDir(ctx context.Context, dir string) (*Summary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open import directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	summary := &Summary{}
	steps := []struct {
		file string
		load func(tx *gorm.DB, rows []map[string]string, s *Summary) error
	}{
		{TagsFile, loadTags},
		{UsersFile, loadUsers},
		{IngredientsFile, loadIngredients},
		{SubscriptionsFile, loadSubscriptions},
	}

	err = im.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			path := filepath.Join(dir, step.file)
			rows, err := readRows(path)
			if stderrors.Is(err, os.ErrNotExist) {
				logging.Info().Str("file", step.file).Msg("Import file not found, skipping")
				continue
			}
			if err != nil {
				return fmt.Errorf("%s: %w", step.file, err)
			}
			if err := step.load(tx, rows, summary); err != nil {
				return fmt.Errorf("%s: %w", step.file, err)
			}
			logging.Info().Str("file", step.file).Int("rows", len(rows)).Msg("Imported file")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// readRows reads a CSV file with a header line into one map per record
func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}

	var rows []map[string]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, name := range header {
			row[name] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row)
	}
}

func required(row map[string]string, line int, fields ...string) error {
	for _, f := range fields {
		if row[f] == "" {
			return fmt.Errorf("row %d: missing %s", line, f)
		}
	}
	return nil
}

// create inserts value when no row matches where and reports whether it did
func create(tx *gorm.DB, value interface{}, where interface{}) (bool, error) {
	res := tx.Where(where).FirstOrCreate(value)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func tally(created bool, counter *int, s *Summary) {
	if created {
		*counter++
	} else {
		s.Skipped++
	}
}

func loadTags(tx *gorm.DB, rows []map[string]string, s *Summary) error {
	for i, row := range rows {
		if err := required(row, i+2, "name", "color", "slug"); err != nil {
			return err
		}
		tag := &models.Tag{Name: row["name"], Slug: row["slug"], Color: strings.ToUpper(row["color"])}
		created, err := create(tx, tag, models.Tag{Slug: tag.Slug})
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		tally(created, &s.Tags, s)
	}
	return nil
}

func loadUsers(tx *gorm.DB, rows []map[string]string, s *Summary) error {
	for i, row := range rows {
		if err := required(row, i+2, "email", "username", "password"); err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.User{}).Where("username = ?", row["username"]).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			s.Skipped++
			continue
		}
		hash, err := auth.HashPassword(row["password"])
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		user := &models.User{
			Email:        row["email"],
			Username:     row["username"],
			FirstName:    row["first_name"],
			LastName:     row["last_name"],
			PasswordHash: hash,
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		s.Users++
	}
	return nil
}

func loadIngredients(tx *gorm.DB, rows []map[string]string, s *Summary) error {
	for i, row := range rows {
		if err := required(row, i+2, "name", "measurement_unit"); err != nil {
			return err
		}
		ing := &models.Ingredient{Name: row["name"], MeasurementUnit: row["measurement_unit"]}
		created, err := create(tx, ing, models.Ingredient{Name: ing.Name, MeasurementUnit: ing.MeasurementUnit})
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		tally(created, &s.Ingredients, s)
	}
	return nil
}

func loadSubscriptions(tx *gorm.DB, rows []map[string]string, s *Summary) error {
	ids := map[string]uint{}
	lookup := func(username string, line int) (uint, error) {
		if id, ok := ids[username]; ok {
			return id, nil
		}
		var user models.User
		err := tx.Select("id").Where("username = ?", username).First(&user).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("row %d: unknown user %q", line, username)
		}
		if err != nil {
			return 0, err
		}
		ids[username] = user.ID
		return user.ID, nil
	}

	for i, row := range rows {
		line := i + 2
		if err := required(row, line, "follower", "influencer"); err != nil {
			return err
		}
		follower, err := lookup(row["follower"], line)
		if err != nil {
			return err
		}
		influencer, err := lookup(row["influencer"], line)
		if err != nil {
			return err
		}
		if follower == influencer {
			return fmt.Errorf("row %d: %s cannot subscribe to themselves", line, row["follower"])
		}
		follow := &models.Follow{FollowerID: follower, InfluencerID: influencer}
		created, err := create(tx, follow, models.Follow{FollowerID: follower, InfluencerID: influencer})
		if err != nil {
			return fmt.Errorf("row %d: %w", line, err)
		}
		tally(created, &s.Subscriptions, s)
	}
	return nil
}
