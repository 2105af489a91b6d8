package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stockfolio/backend/internal/externalApi"
	"github.com/stockfolio/backend/internal/model"
	"github.com/stockfolio/backend/internal/model/iexModel"
	"github.com/stockfolio/backend/internal/service"
	"github.com/stockfolio/backend/utils"
)

type MarketApi interface {
	GetCompany(ctx context.Context, symbol string) (json.RawMessage, error)
	GetStockPrices(ctx context.Context, symbols string) (json.RawMessage, error)
	GetLatestPrice(ctx context.Context, symbol string) (json.RawMessage, error)
	Search(ctx context.Context, fragment string) (json.RawMessage, error)
	GetChart(ctx context.Context, symbol string) ([]iexModel.ChartEntry, error)
	GetNews(ctx context.Context, symbol string) (json.RawMessage, error)
	GetMostActive(ctx context.Context) ([]iexModel.MostActiveEntry, error)
	GetCollection(ctx context.Context, tag, name string) ([]iexModel.CollectionEntry, error)
	GetFinancials(ctx context.Context, symbol string) (json.RawMessage, error)
	GetSectors(ctx context.Context) (json.RawMessage, error)
}

type AuthService interface {
	Signup(ctx context.Context, username, password string) (model.AuthResult, error)
	Signin(ctx context.Context, username, password string) (model.AuthResult, error)
}

type PortfolioService interface {
	GetUser(ctx context.Context, userID string) (model.User, error)
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	AddHolding(ctx context.Context, userID, ticker string, shares decimal.Decimal) (model.User, error)
	UpdateHoldingShares(ctx context.Context, userID, holdingID string, shares decimal.Decimal) (model.User, error)
	RemoveHolding(ctx context.Context, userID, holdingID string) (model.User, error)
	AddList(ctx context.Context, userID string, list model.Watchlist) (model.User, error)
	RemoveList(ctx context.Context, userID, listID string) (model.User, error)
	AddTickerToList(ctx context.Context, userID, listID, ticker string) (model.User, error)
	RemoveTickerFromList(ctx context.Context, userID, listID, ticker string) (model.User, error)
	UpdateCash(ctx context.Context, userID string, cash decimal.Decimal) (model.User, error)
	ResetDemo(ctx context.Context) (model.User, error)
	BuildPortfolioReport(ctx context.Context, userID string) ([]byte, string, error)
}

type Controller struct {
	marketApi    MarketApi
	authSrv      AuthService
	portfolioSrv PortfolioService
}

func NewController(marketApi MarketApi, authSrv AuthService, portfolioSrv PortfolioService) *Controller {
	return &Controller{
		marketApi:    marketApi,
		authSrv:      authSrv,
		portfolioSrv: portfolioSrv,
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondErr translates service and client errors into the one status
// mapping used across every handler.
func (ctrl *Controller) respondErr(c *gin.Context, err error) {
	rqID := utils.GetRequestIDFromCtx(c.Request.Context())

	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apiError{Code: "not_found", Message: "not found"})
	case errors.Is(err, service.ErrAlreadyExists):
		c.JSON(http.StatusConflict, apiError{Code: "conflict", Message: "already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "invalid credentials"})
	case errors.Is(err, service.ErrDemoDisabled):
		c.JSON(http.StatusForbidden, apiError{Code: "demo_disabled", Message: "demo mode is disabled"})
	case errors.Is(err, service.ErrDemoResetInProgress):
		c.JSON(http.StatusConflict, apiError{Code: "conflict", Message: "demo reset already in progress"})
	case errors.Is(err, externalApi.ErrUnavailable):
		c.JSON(http.StatusBadGateway, apiError{Code: "upstream_unavailable", Message: "market data provider unavailable"})
	default:
		slog.Error("internal error", slog.String("rqID", rqID), slog.String("path", c.FullPath()), slog.String("err", err.Error()))
		c.JSON(http.StatusInternalServerError, apiError{Code: "internal_error", Message: "internal error"})
	}
}

func (ctrl *Controller) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, apiError{Code: "bad_request", Message: msg})
}

func (ctrl *Controller) rawJSON(c *gin.Context, body json.RawMessage) {
	c.Data(http.StatusOK, "application/json", body)
}

// --- Market data ---

func (ctrl *Controller) GetCompany(c *gin.Context) {
	body, err := ctrl.marketApi.GetCompany(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	ctrl.rawJSON(c, body)
}

func (ctrl *Controller) GetStockPrices(c *gin.Context) {
	body, err := ctrl.marketApi.GetStockPrices(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	ctrl.rawJSON(c, body)
}

func (ctrl *Controller) GetLatestPrice(c *gin.Context) {
	body, err := ctrl.marketApi.GetLatestPrice(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	ctrl.rawJSON(c, body)
}

func (ctrl *Controller) Search(c *gin.Context) {
	body, err := ctrl.marketApi.Search(c.Request.Context(), c.Param("fragment"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	ctrl.rawJSON(c, body)
}

func (ctrl *Controller) GetChart(c *gin.Context) {
	entries, err := ctrl.marketApi.GetChart(c.Request.Context(), c.Param("id"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (ctrl *Controller) GetNews(c *gin.Context) {
	body, err := ctrl.marketApi.GetNews(c.Request.Context(), c.Param("id"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	ctrl.rawJSON(c, body)
}

func (ctrl *Controller) GetMostActive(c *gin.Context) {
	entries, err := ctrl.marketApi.GetMostActive(c.Request.Context())
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (ctrl *Controller) GetCollection(c *gin.Context) {
	entries, err := ctrl.marketApi.GetCollection(c.Request.Context(), c.Param("type"), c.Query("name"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (ctrl *Controller) GetFinancials(c *gin.Context) {
	body, err := ctrl.marketApi.GetFinancials(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		// an empty financials array is a provider data hole, not a missing
		// resource of ours
		if errors.Is(err, externalApi.ErrNotFound) {
			ctrl.respondErr(c, fmt.Errorf("financials missing for %s: %w", c.Param("symbol"), errInternal))
			return
		}
		ctrl.respondErr(c, err)
		return
	}
	ctrl.rawJSON(c, body)
}

func (ctrl *Controller) GetSectors(c *gin.Context) {
	body, err := ctrl.marketApi.GetSectors(c.Request.Context())
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	ctrl.rawJSON(c, body)
}

var errInternal = errors.New("internal")

// --- Auth ---

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (ctrl *Controller) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		ctrl.badRequest(c, "username and password are required")
		return
	}

	res, err := ctrl.authSrv.Signup(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (ctrl *Controller) Signin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		ctrl.badRequest(c, "username and password are required")
		return
	}

	res, err := ctrl.authSrv.Signin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// --- Users ---

func (ctrl *Controller) ResetDemo(c *gin.Context) {
	user, err := ctrl.portfolioSrv.ResetDemo(c.Request.Context())
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (ctrl *Controller) GetUser(c *gin.Context) {
	user, err := ctrl.portfolioSrv.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type createUserRequest struct {
	Username                 string                       `json:"username"`
	Password                 string                       `json:"password"`
	Cash                     decimal.Decimal              `json:"cash"`
	Portfolio                []model.Holding              `json:"portfolio"`
	Lists                    []model.Watchlist            `json:"lists"`
	HistoricalPortfolioValue []model.HistoricalValuePoint `json:"historicalPortfolioValue"`
}

func (ctrl *Controller) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		ctrl.badRequest(c, "username is required")
		return
	}

	user, err := ctrl.portfolioSrv.CreateUser(c.Request.Context(), model.User{
		Username:                 req.Username,
		Password:                 req.Password,
		Cash:                     req.Cash,
		Portfolio:                req.Portfolio,
		Lists:                    req.Lists,
		HistoricalPortfolioValue: req.HistoricalPortfolioValue,
	})
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// --- Portfolio mutations ---

type holdingRequest struct {
	Ticker string          `json:"ticker"`
	Shares decimal.Decimal `json:"shares"`
}

func (ctrl *Controller) AddHolding(c *gin.Context) {
	var req holdingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Ticker == "" {
		ctrl.badRequest(c, "ticker is required")
		return
	}

	user, err := ctrl.portfolioSrv.AddHolding(c.Request.Context(), c.Param("userId"), req.Ticker, req.Shares)
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

type sharesRequest struct {
	Shares decimal.Decimal `json:"shares"`
}

func (ctrl *Controller) UpdateHolding(c *gin.Context) {
	var req sharesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.badRequest(c, "shares is required")
		return
	}

	user, err := ctrl.portfolioSrv.UpdateHoldingShares(c.Request.Context(), c.Param("userId"), c.Param("stockId"), req.Shares)
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (ctrl *Controller) RemoveHolding(c *gin.Context) {
	user, err := ctrl.portfolioSrv.RemoveHolding(c.Request.Context(), c.Param("userId"), c.Param("stockId"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type cashRequest struct {
	Cash decimal.Decimal `json:"cash"`
}

func (ctrl *Controller) UpdateCash(c *gin.Context) {
	var req cashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.badRequest(c, "cash is required")
		return
	}

	user, err := ctrl.portfolioSrv.UpdateCash(c.Request.Context(), c.Param("userId"), req.Cash)
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// --- Watchlists ---

type listRequest struct {
	Name   string   `json:"name"`
	Stocks []string `json:"stocks"`
}

func (ctrl *Controller) AddList(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.badRequest(c, "invalid list body")
		return
	}

	user, err := ctrl.portfolioSrv.AddList(c.Request.Context(), c.Param("userId"), model.Watchlist{
		Name:   req.Name,
		Stocks: req.Stocks,
	})
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (ctrl *Controller) RemoveList(c *gin.Context) {
	user, err := ctrl.portfolioSrv.RemoveList(c.Request.Context(), c.Param("userId"), c.Param("listId"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type tickerRequest struct {
	Ticker string `json:"ticker"`
}

func (ctrl *Controller) AddTickerToList(c *gin.Context) {
	var req tickerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Ticker == "" {
		ctrl.badRequest(c, "ticker is required")
		return
	}

	user, err := ctrl.portfolioSrv.AddTickerToList(c.Request.Context(), c.Param("userId"), c.Param("listId"), req.Ticker)
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (ctrl *Controller) RemoveTickerFromList(c *gin.Context) {
	user, err := ctrl.portfolioSrv.RemoveTickerFromList(c.Request.Context(), c.Param("userId"), c.Param("listId"), c.Param("stockId"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- Report ---

func (ctrl *Controller) DownloadPortfolioReport(c *gin.Context) {
	fileBytes, ext, err := ctrl.portfolioSrv.BuildPortfolioReport(c.Request.Context(), c.Param("userId"))
	if err != nil {
		ctrl.respondErr(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="portfolio%s"`, ext))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", fileBytes)
}
