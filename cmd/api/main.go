package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"swedify/internal/api"
	"swedify/internal/app"
	"swedify/internal/config"
	"swedify/internal/logger"
	"swedify/internal/platform/fetch"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	log := logger.New(logger.ParseLevel(cfg.LogLevel), os.Stderr)

	store, closer, err := app.OpenStore(cfg)
	if err != nil {
		panic(fmt.Errorf("error opening %s recipe store: %w", cfg.Store, err))
	}
	defer closer.Close()

	converter, err := app.NewConverter(cfg, log)
	if err != nil {
		panic(fmt.Errorf("error creating converter: %w", err))
	}

	creds, err := app.NewCredentials(cfg)
	if err != nil {
		panic(fmt.Errorf("error opening credential store: %w", err))
	}

	// The proxy endpoint always fetches directly, even when conversions
	// go through a remote proxy.
	handler := api.NewHandler(
		converter,
		fetch.NewHTTPFetcher(cfg.FetchTimeout.Duration),
		store,
		creds,
		rate.NewLimiter(rate.Limit(cfg.ProxyRate), cfg.ProxyBurst),
		log,
	)

	r := setupRouter(handler, cfg.AllowedOrigins)
	log.Info("swedify listening on %s (provider %s, store %s)", cfg.Addr, cfg.Provider, cfg.Store)
	if err := r.Run(cfg.Addr); err != nil {
		panic(fmt.Errorf("server stopped: %w", err))
	}
}

// setupRouter registers every route of the service on a new gin engine.
func setupRouter(handler *api.Handler, origins []string) *gin.Engine {
	r := gin.Default()

	// Configure CORS middleware
	corsConfig := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", api.APIKeyHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", fetch.FailureHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	r.Use(cors.New(corsConfig))

	r.GET("/", handler.Index)
	r.GET("/health", handler.Health)

	r.POST("/api/fetch-recipe", handler.FetchRecipe)
	r.POST("/api/convert", handler.Convert)
	r.POST("/api/convert/image", handler.ConvertImage)
	r.GET("/api/key", handler.GetKey)
	r.PUT("/api/key", handler.SetKey)
	r.DELETE("/api/key", handler.DeleteKey)

	r.GET("/recipes", handler.ListRecipes)
	r.POST("/recipes", handler.SaveRecipe)
	r.DELETE("/recipes", handler.ClearRecipes)
	r.GET("/recipes/export", handler.ExportRecipes)
	r.POST("/recipes/import", handler.ImportRecipes)
	r.GET("/recipes/:id", handler.GetRecipe)
	r.PUT("/recipes/:id", handler.ReplaceRecipe)
	r.DELETE("/recipes/:id", handler.DeleteRecipe)
	r.GET("/recipes/:id/text", handler.RecipeText)
	r.GET("/recipes/:id/pdf", handler.RecipePDF)

	r.NoRoute(handler.NotFound)
	return r
}
