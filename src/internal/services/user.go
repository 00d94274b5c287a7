package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/errors"
	"github.com/casapps/casrecipes/src/internal/repositories"
)

// ReservedUsernames collide with routes under /api/users
var ReservedUsernames = []string{"me", "admin", "superuser", "set_password", "subscriptions"}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

const minPasswordLength = 8

// UserService handles user business logic
type UserService struct {
	db           *gorm.DB
	users        *repositories.UserRepository
	membership   *MembershipFilter
	defaultLimit int
	maxLimit     int
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, cfg *viper.Viper, membership *MembershipFilter) *UserService {
	return &UserService{
		db:           db,
		users:        repositories.NewUserRepository(db),
		membership:   membership,
		defaultLimit: cfg.GetInt("pagination.page_size"),
		maxLimit:     cfg.GetInt("pagination.max_page_size"),
	}
}

// RegisterInput represents input for creating a user
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// Subscription is a followed author with a preview of their recipes
type Subscription struct {
	User         models.User
	Recipes      []models.Recipe
	RecipesCount int64
}

func validatePassword(v *errors.Validator, field, password string) {
	if len(password) < minPasswordLength {
		v.AddError(field, "This password is too short. It must contain at least 8 characters.")
		return
	}
	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		v.AddError(field, "This password is entirely numeric.")
	}
}

// CreateUser registers a new account
func (s *UserService) CreateUser(ctx context.Context, input RegisterInput) (*models.User, error) {
	return s.createUser(ctx, input, false)
}

// CreateSuperuser registers a new admin account
func (s *UserService) CreateSuperuser(ctx context.Context, input RegisterInput) (*models.User, error) {
	return s.createUser(ctx, input, true)
}

func (s *UserService) createUser(ctx context.Context, input RegisterInput, isAdmin bool) (*models.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Username = strings.TrimSpace(input.Username)

	v := errors.NewValidator()
	v.Required("email", input.Email).Email("email", input.Email).MaxLength("email", input.Email, 254)
	v.Required("username", input.Username).MaxLength("username", input.Username, 150).
		Pattern("username", input.Username, usernamePattern, "Enter a valid username. Letters, digits and @/./+/-/_ only.").
		NotIn("username", input.Username, ReservedUsernames)
	v.Required("first_name", input.FirstName).MaxLength("first_name", input.FirstName, 150)
	v.Required("last_name", input.LastName).MaxLength("last_name", input.LastName, 150)
	validatePassword(v, "password", input.Password)

	if input.Email != "" {
		if exists, err := s.users.EmailExists(ctx, input.Email); err != nil {
			return nil, errors.FromDB(err, "User")
		} else if exists {
			v.AddError("email", "A user with that email already exists.")
		}
	}
	if input.Username != "" {
		if exists, err := s.users.UsernameExists(ctx, input.Username); err != nil {
			return nil, errors.FromDB(err, "User")
		} else if exists {
			v.AddError("username", "A user with that username already exists.")
		}
	}
	if err := v.CreateValidationError(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, errors.InternalError("failed to hash password", err)
	}

	user := &models.User{
		Email:        input.Email,
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, errors.FromDB(err, "User")
	}
	return user, nil
}

// Authenticate returns the user owning email when password matches
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, errors.NewValidationError("Unable to log in with provided credentials.", errors.NonFieldErrors)
	}
	return user, nil
}

// SetPassword replaces the password after checking the current one
func (s *UserService) SetPassword(ctx context.Context, userID uint, current, newPassword string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return errors.FromDB(err, "User")
	}

	v := errors.NewValidator()
	if !auth.CheckPasswordHash(current, user.PasswordHash) {
		v.AddError("current_password", "Invalid password.")
	}
	if newPassword == current {
		v.AddError("new_password", "The new password must differ from the current one.")
	}
	validatePassword(v, "new_password", newPassword)
	if err := v.CreateValidationError(); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return errors.InternalError("failed to hash password", err)
	}
	return errors.FromDB(s.users.UpdatePasswordHash(ctx, userID, hash), "User")
}

// GetUser returns a user with IsSubscribed set for the viewer
func (s *UserService) GetUser(ctx context.Context, id uint, viewerID *uint) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, errors.FromDB(err, "User")
	}
	if err := s.membership.AnnotateSubscriptions(ctx, viewerID, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns one page of users and the total count
func (s *UserService) ListUsers(ctx context.Context, page Page, viewerID *uint) ([]models.User, int64, error) {
	page = page.Normalize(s.defaultLimit, s.maxLimit)

	users, total, err := s.users.ListUsers(ctx, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, errors.FromDB(err, "User")
	}

	ptrs := make([]*models.User, 0, len(users))
	for i := range users {
		ptrs = append(ptrs, &users[i])
	}
	if err := s.membership.AnnotateSubscriptions(ctx, viewerID, ptrs...); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// DeleteUser removes the account, its recipes and every list or follow row
// that references it
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	if _, err := s.users.GetUserByID(ctx, id); err != nil {
		return errors.FromDB(err, "User")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipeIDs []uint
		if err := tx.Model(&models.Recipe{}).Where("author_id = ?", id).Pluck("id", &recipeIDs).Error; err != nil {
			return err
		}
		if err := deleteRecipes(tx, recipeIDs); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.FavoriteItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("follower_id = ? OR influencer_id = ?", id, id).Delete(&models.Follow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, id).Error
	})
	return errors.FromDB(err, "User")
}

// ParseRecipesLimit accepts a natural number including 0. An empty value
// means no limit.
func ParseRecipesLimit(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, errors.NewValidationError("must be a positive integer or 0", "recipes_limit")
	}
	return &n, nil
}

// Subscribe makes follower follow influencer. Subscribing twice is a no-op.
func (s *UserService) Subscribe(ctx context.Context, followerID, influencerID uint, recipesLimit *int) (*Subscription, error) {
	influencer, err := s.users.GetUserByID(ctx, influencerID)
	if err != nil {
		return nil, errors.FromDB(err, "User")
	}
	if followerID == influencerID {
		return nil, errors.ConflictError("You cannot subscribe to yourself.", errors.NonFieldErrors)
	}

	follow := models.Follow{}
	if err := firstOrCreate(s.db.WithContext(ctx), &follow, models.Follow{FollowerID: followerID, InfluencerID: influencerID}); err != nil {
		return nil, errors.FromDB(err, "Subscription")
	}

	influencer.IsSubscribed = true
	subs, err := s.withRecipes(ctx, []models.User{*influencer}, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &subs[0], nil
}

// Unsubscribe stops follower following influencer, if it did
func (s *UserService) Unsubscribe(ctx context.Context, followerID, influencerID uint) error {
	if _, err := s.users.GetUserByID(ctx, influencerID); err != nil {
		return errors.FromDB(err, "User")
	}

	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND influencer_id = ?", followerID, influencerID).
		Delete(&models.Follow{}).Error
	return errors.FromDB(err, "Subscription")
}

// Subscriptions lists the authors the user follows in follow order
func (s *UserService) Subscriptions(ctx context.Context, userID uint, page Page, recipesLimit *int) ([]Subscription, int64, error) {
	page = page.Normalize(s.defaultLimit, s.maxLimit)

	query := s.db.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON follows.influencer_id = users.id").
		Where("follows.follower_id = ?", userID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.FromDB(err, "User")
	}

	var users []models.User
	if err := page.apply(query).Order("follows.id").Find(&users).Error; err != nil {
		return nil, 0, errors.FromDB(err, "User")
	}
	for i := range users {
		users[i].IsSubscribed = true
	}

	subs, err := s.withRecipes(ctx, users, recipesLimit)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// withRecipes attaches each author's first recipes by name and the recipe count
func (s *UserService) withRecipes(ctx context.Context, users []models.User, recipesLimit *int) ([]Subscription, error) {
	subs := make([]Subscription, 0, len(users))
	if len(users) == 0 {
		return subs, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	var counts []struct {
		AuthorID uint
		Total    int64
	}
	err := s.db.WithContext(ctx).Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", ids).
		Group("author_id").
		Scan(&counts).Error
	if err != nil {
		return nil, errors.FromDB(err, "Recipe")
	}
	countByAuthor := make(map[uint]int64, len(counts))
	for _, c := range counts {
		countByAuthor[c.AuthorID] = c.Total
	}

	for _, u := range users {
		query := s.db.WithContext(ctx).
			Where("author_id = ?", u.ID).
			Order("name").
			Order("id")
		if recipesLimit != nil {
			query = query.Limit(*recipesLimit)
		}

		recipes := []models.Recipe{}
		if recipesLimit == nil || *recipesLimit > 0 {
			if err := query.Find(&recipes).Error; err != nil {
				return nil, errors.FromDB(err, "Recipe")
			}
		}

		subs = append(subs, Subscription{
			User:         u,
			Recipes:      recipes,
			RecipesCount: countByAuthor[u.ID],
		})
	}
	return subs, nil
}
