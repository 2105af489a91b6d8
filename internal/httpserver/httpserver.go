package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/internal/transport/rest"
	"github.com/stockfolio/backend/internal/transport/rest/middleware"
)

type Server struct {
	cfg    *config.Config
	server *http.Server
}

func New(cfg *config.Config, ctrl *rest.Controller, verifier middleware.TokenVerifier) *Server {
	if !cfg.API.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	g := gin.New()
	g.Use(gin.Recovery(), middleware.Logger(), middleware.CORS(cfg.HTTP.CORSOrigin))

	setupRoutes(g, ctrl, verifier)

	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:    ":" + cfg.HTTP.Port,
			Handler: g,
		},
	}
}

func setupRoutes(g *gin.Engine, ctrl *rest.Controller, verifier middleware.TokenVerifier) {
	g.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	// market data proxy
	g.GET("/stock/:symbol/company", ctrl.GetCompany)
	g.GET("/quote/batch/:symbol", ctrl.GetStockPrices)
	g.GET("/quote/latest/:symbol", ctrl.GetLatestPrice)
	g.GET("/search/:fragment", ctrl.Search)
	g.GET("/chart/:id", ctrl.GetChart)
	g.GET("/news/:id", ctrl.GetNews)
	g.GET("/market/most-active", ctrl.GetMostActive)
	g.GET("/market/collection/:type", ctrl.GetCollection)
	g.GET("/financials/:symbol", ctrl.GetFinancials)
	g.GET("/sectors", ctrl.GetSectors)

	// users, open routes
	g.POST("/users", ctrl.CreateUser)
	g.POST("/users/demo", ctrl.ResetDemo)
	g.POST("/users/signin", ctrl.Signin)
	g.POST("/users/signup", ctrl.Signup)

	// users, routes behind a valid bearer token
	authed := g.Group("/users", middleware.Auth(verifier))
	authed.GET("/:userId", ctrl.GetUser)
	authed.POST("/:userId/portfolio", ctrl.AddHolding)
	authed.PUT("/:userId/portfolio/:stockId", ctrl.UpdateHolding)
	authed.DELETE("/:userId/portfolio/:stockId", ctrl.RemoveHolding)
	authed.GET("/:userId/portfolio/report", ctrl.DownloadPortfolioReport)
	authed.PUT("/:userId/cash", ctrl.UpdateCash)
	authed.POST("/:userId/lists", ctrl.AddList)
	authed.DELETE("/:userId/lists/:listId", ctrl.RemoveList)
	authed.POST("/:userId/lists/:listId/stocks", ctrl.AddTickerToList)
	authed.DELETE("/:userId/lists/:listId/stocks/:stockId", ctrl.RemoveTickerFromList)
}

func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", slog.String("port", s.cfg.HTTP.Port))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.String("err", err.Error()))
			panic(err)
		}
	}()
}

func (s *Server) Stop() {
	slog.Info("start stopping http server")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", slog.String("err", err.Error()))
		return
	}

	slog.Info("http server stopped")
}
