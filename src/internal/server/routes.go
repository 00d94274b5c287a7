package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casapps/casrecipes/src/internal/api/handlers"
	"github.com/casapps/casrecipes/src/internal/auth"
)

// setupRoutes configures all application routes
func (s *Server) setupRoutes() {
	authMiddleware := auth.NewMiddleware(s.auth)
	optional := authMiddleware.OptionalAuth()
	user := authMiddleware.Auth()
	admin := []echo.MiddlewareFunc{user, authMiddleware.RequireAdmin()}

	paginator := handlers.NewPaginator(s.config)
	authHandler := handlers.NewAuthHandler(s.users, s.auth)
	userHandler := handlers.NewUserHandler(s.users, paginator)
	tagHandler := handlers.NewTagHandler(s.tags)
	ingredientHandler := handlers.NewIngredientHandler(s.ingredients)
	recipeHandler := handlers.NewRecipeHandler(s.recipes, s.membership, s.cart, paginator)

	// Operations
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.Static(s.media.URLPrefix(), s.media.Root())

	api := s.echo.Group("/api")

	// Authentication routes
	api.POST("/auth/token/login", authHandler.Login)
	api.POST("/auth/token/logout", authHandler.Logout, user)

	// User routes
	users := api.Group("/users")
	users.GET("", userHandler.List, optional)
	users.POST("", userHandler.Register)
	users.GET("/me", userHandler.Me, user)
	users.POST("/set_password", userHandler.SetPassword, user)
	users.GET("/subscriptions", userHandler.Subscriptions, user)
	users.GET("/:id", userHandler.Get, optional)
	users.DELETE("/:id", userHandler.Delete, admin...)
	users.POST("/:id/set_password", userHandler.SetUserPassword, admin...)
	users.POST("/:id/subscribe", userHandler.Subscribe, user)
	users.DELETE("/:id/subscribe", userHandler.Unsubscribe, user)

	// Catalog routes
	tags := api.Group("/tags")
	tags.GET("", tagHandler.List)
	tags.GET("/:id", tagHandler.Get)
	tags.POST("", tagHandler.Create, admin...)
	tags.PATCH("/:id", tagHandler.Update, admin...)
	tags.DELETE("/:id", tagHandler.Delete, admin...)

	ingredients := api.Group("/ingredients")
	ingredients.GET("", ingredientHandler.List)
	ingredients.GET("/:id", ingredientHandler.Get)
	ingredients.POST("", ingredientHandler.Create, admin...)
	ingredients.PATCH("/:id", ingredientHandler.Update, admin...)
	ingredients.DELETE("/:id", ingredientHandler.Delete, admin...)

	// Recipe routes
	recipes := api.Group("/recipes")
	recipes.GET("", recipeHandler.List, optional)
	recipes.POST("", recipeHandler.Create, user)
	recipes.GET("/download_shopping_cart", recipeHandler.DownloadShoppingCart, user)
	recipes.GET("/:id", recipeHandler.Get, optional)
	recipes.PATCH("/:id", recipeHandler.Update, user)
	recipes.DELETE("/:id", recipeHandler.Delete, user)
	recipes.POST("/:id/favorite", recipeHandler.AddFavorite, user)
	recipes.DELETE("/:id/favorite", recipeHandler.RemoveFavorite, user)
	recipes.POST("/:id/shopping_cart", recipeHandler.AddToCart, user)
	recipes.DELETE("/:id/shopping_cart", recipeHandler.RemoveFromCart, user)
}
