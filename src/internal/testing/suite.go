package testing

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/casapps/casrecipes/src/internal/auth"
	"github.com/casapps/casrecipes/src/internal/cache"
	"github.com/casapps/casrecipes/src/internal/config"
	"github.com/casapps/casrecipes/src/internal/database"
	"github.com/casapps/casrecipes/src/internal/database/models"
	"github.com/casapps/casrecipes/src/internal/logging"
	"github.com/casapps/casrecipes/src/internal/server"
)

// TestSuite runs the HTTP API against a real server backed by a
// throwaway SQLite database
type TestSuite struct {
	suite.Suite

	// Core components
	DB         *gorm.DB
	Config     *viper.Viper
	Server     *server.Server
	TestServer *httptest.Server

	// Test utilities
	TempDir   string
	TestData  *TestDataManager
	APIClient *APITestClient

	// Cleanup functions
	cleanupFuncs []func()
	mu           sync.RWMutex
}

// TestDataManager creates rows directly in the database
type TestDataManager struct {
	db *gorm.DB
}

// APITestClient provides utilities for API testing
type APITestClient struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// SetupSuite initializes the test suite
func (s *TestSuite) SetupSuite() {
	tempDir, err := os.MkdirTemp("", "casrecipes-test-*")
	require.NoError(s.T(), err)
	s.TempDir = tempDir

	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})

	s.setupConfig()
	s.setupDatabase()
	s.setupServer()
	s.setupTestUtilities()
}

// TearDownSuite cleans up the test suite
func (s *TestSuite) TearDownSuite() {
	s.mu.RLock()
	cleanupFuncs := make([]func(), len(s.cleanupFuncs))
	copy(cleanupFuncs, s.cleanupFuncs)
	s.mu.RUnlock()

	for i := len(cleanupFuncs) - 1; i >= 0; i-- {
		if cleanupFuncs[i] != nil {
			cleanupFuncs[i]()
		}
	}

	if s.TempDir != "" {
		os.RemoveAll(s.TempDir)
	}
}

// SetupTest runs before each test
func (s *TestSuite) SetupTest() {
	s.TestData.CleanupAll()
	s.APIClient.Logout()
}

// AddCleanup adds a cleanup function to be called during teardown
func (s *TestSuite) AddCleanup(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupFuncs = append(s.cleanupFuncs, fn)
}

// setupConfig starts from the production defaults. Listing caches are off
// so rows deleted between tests never resurface.
func (s *TestSuite) setupConfig() {
	cfg := viper.New()
	config.SetDefaults(cfg)
	cfg.Set("version", "test")
	cfg.Set("security.secret_key", "test-secret-key-for-testing-only-do-not-use-in-production")
	cfg.Set("cache.enabled", false)
	cfg.Set("ratelimit.enabled", false)
	cfg.Set("media.path", filepath.Join(s.TempDir, "media"))
	cfg.Set("pagination.page_size", 2)
	s.Config = cfg
}

// setupDatabase opens a file-backed SQLite database so concurrent
// connections from the HTTP server see the same data
func (s *TestSuite) setupDatabase() {
	dsn := filepath.Join(s.TempDir, "test.db") + "?_foreign_keys=1&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.MigrateDB(db))

	s.DB = db
	s.AddCleanup(func() {
		database.Close(db)
	})
}

// setupServer initializes test server
func (s *TestSuite) setupServer() {
	cacheManager := cache.NewCacheManager(s.Config)
	s.Server = server.New(s.Config, s.DB, cacheManager)
	s.TestServer = httptest.NewServer(s.Server)

	s.AddCleanup(func() {
		s.TestServer.Close()
		cacheManager.Close()
	})
}

// setupTestUtilities initializes test utilities
func (s *TestSuite) setupTestUtilities() {
	s.TestData = &TestDataManager{db: s.DB}
	s.APIClient = &APITestClient{
		baseURL:    s.TestServer.URL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Test Data Manager Methods

// CreateTestUser creates a user with a hashed password
func (tm *TestDataManager) CreateTestUser(username, email, password string, isAdmin bool) (*models.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		FirstName:    username,
		LastName:     "Tester",
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
	}
	if err := tm.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateTag creates a tag
func (tm *TestDataManager) CreateTag(name, slug, color string) (*models.Tag, error) {
	tag := models.Tag{Name: name, Slug: slug, Color: color}
	return &tag, tm.db.Create(&tag).Error
}

// CreateIngredient creates an ingredient
func (tm *TestDataManager) CreateIngredient(name, unit string) (*models.Ingredient, error) {
	ingredient := models.Ingredient{Name: name, MeasurementUnit: unit}
	return &ingredient, tm.db.Create(&ingredient).Error
}

// CleanupAll removes every row, dependents first
func (tm *TestDataManager) CleanupAll() {
	all := models.GetAllModels()
	for i := len(all) - 1; i >= 0; i-- {
		tm.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i])
	}
}

// API Test Client Methods

// Login exchanges credentials for a token used by later requests
func (c *APITestClient) Login(email, password string) error {
	resp, err := c.POST("/api/auth/token/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var body struct {
		AuthToken string `json:"auth_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if body.AuthToken == "" {
		return fmt.Errorf("no authentication token found in response")
	}
	c.authToken = body.AuthToken
	return nil
}

// Token is the token sent with requests, if any
func (c *APITestClient) Token() string {
	return c.authToken
}

// SetToken replaces the token sent with requests
func (c *APITestClient) SetToken(token string) {
	c.authToken = token
}

// Logout clears the authentication token
func (c *APITestClient) Logout() {
	c.authToken = ""
}

// GET performs a GET request
func (c *APITestClient) GET(path string) (*http.Response, error) {
	return c.request(http.MethodGet, path, nil)
}

// POST performs a POST request
func (c *APITestClient) POST(path string, data interface{}) (*http.Response, error) {
	return c.request(http.MethodPost, path, data)
}

// PATCH performs a PATCH request
func (c *APITestClient) PATCH(path string, data interface{}) (*http.Response, error) {
	return c.request(http.MethodPatch, path, data)
}

// DELETE performs a DELETE request
func (c *APITestClient) DELETE(path string) (*http.Response, error) {
	return c.request(http.MethodDelete, path, nil)
}

// request performs HTTP request with authentication
func (c *APITestClient) request(method, path string, data interface{}) (*http.Response, error) {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Token "+c.authToken)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// Do performs a request and decodes a JSON response into target when the
// body is not empty. It returns the status code.
func (c *APITestClient) Do(method, path string, data, target interface{}) (int, error) {
	resp, err := c.request(method, path, data)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if target != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", raw, err)
		}
	}
	return resp.StatusCode, nil
}
