package portfolioService

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/data/repository"
	"github.com/stockfolio/backend/internal/model"
	"github.com/stockfolio/backend/internal/service"
	"github.com/stockfolio/backend/utils"
	"golang.org/x/crypto/bcrypt"
)

const (
	demoUsername = "Warren"
	demoPassword = "123"
	demoCash     = 10000
	demoDays     = 365
	demoJitter   = 500
	dateLayout   = "01/02/2006"
)

// Fixed demo holdings and their weights in the synthetic portfolio value.
var demoHoldings = []struct {
	Ticker string
	Shares int64
}{
	{"TSLA", 3},
	{"AAPL", 2},
	{"SNAP", 4},
}

type Repository interface {
	GetUser(ctx context.Context, userID string) (model.User, error)
	GetAllUsers(ctx context.Context) ([]model.User, error)
	InsertUser(ctx context.Context, user model.User) (model.User, error)
	UpdateUser(ctx context.Context, user model.User) (model.User, error)
	UpdateUserCash(ctx context.Context, userID string, cash decimal.Decimal) error
	DeleteAllUsers(ctx context.Context) error
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type MarketApi interface {
	GetClosingPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

type DemoLock interface {
	AcquireDemoReset(ctx context.Context) (bool, error)
	ReleaseDemoReset(ctx context.Context) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error)
}

type PortfolioService struct {
	cfg       *config.Config
	repo      Repository
	marketApi MarketApi
	demoLock  DemoLock
	reportGen ReportGenerator
}

func New(cfg *config.Config, repo Repository, marketApi MarketApi, demoLock DemoLock, reportGen ReportGenerator) *PortfolioService {
	return &PortfolioService{
		cfg:       cfg,
		repo:      repo,
		marketApi: marketApi,
		demoLock:  demoLock,
		reportGen: reportGen,
	}
}

func (s *PortfolioService) GetUser(ctx context.Context, userID string) (model.User, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetUser"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	return user, nil
}

// CreateUser stores the document as supplied, assigning ids where the
// caller left them empty. The password field is treated as an opaque string.
func (s *PortfolioService) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.CreateUser"

	slog.Debug("CreateUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", user.Username))
	defer func() {
		slog.Debug("CreateUser finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", user.Username))
	}()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for i := range user.Portfolio {
		if user.Portfolio[i].ID == "" {
			user.Portfolio[i].ID = uuid.NewString()
		}
	}
	for i := range user.Lists {
		if user.Lists[i].ID == "" {
			user.Lists[i].ID = uuid.NewString()
		}
	}

	created, err := s.repo.InsertUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.User{}, service.ErrAlreadyExists
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	return created, nil
}

// mutateUser is the read-modify-write cycle shared by every embedded-array
// mutation: load the document, apply, persist the whole document. There is
// no concurrency check, so simultaneous writers race (last writer wins).
func (s *PortfolioService) mutateUser(ctx context.Context, op, userID string, mutate func(user *model.User) error) (model.User, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug(op+" finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	if err := mutate(&user); err != nil {
		return model.User{}, err
	}

	updated, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, service.ErrNotFound
		}
		slog.Error("got error from repo.UpdateUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	return updated, nil
}

func (s *PortfolioService) AddHolding(ctx context.Context, userID, ticker string, shares decimal.Decimal) (model.User, error) {
	return s.mutateUser(ctx, "PortfolioService.AddHolding", userID, func(user *model.User) error {
		user.Portfolio = append(user.Portfolio, model.Holding{
			ID:     uuid.NewString(),
			Ticker: ticker,
			Shares: shares,
		})
		return nil
	})
}

func (s *PortfolioService) UpdateHoldingShares(ctx context.Context, userID, holdingID string, shares decimal.Decimal) (model.User, error) {
	return s.mutateUser(ctx, "PortfolioService.UpdateHoldingShares", userID, func(user *model.User) error {
		i := user.HoldingByID(holdingID)
		if i < 0 {
			return service.ErrNotFound
		}
		user.Portfolio[i].Shares = shares
		return nil
	})
}

func (s *PortfolioService) RemoveHolding(ctx context.Context, userID, holdingID string) (model.User, error) {
	return s.mutateUser(ctx, "PortfolioService.RemoveHolding", userID, func(user *model.User) error {
		i := user.HoldingByID(holdingID)
		if i < 0 {
			return service.ErrNotFound
		}
		user.Portfolio = append(user.Portfolio[:i], user.Portfolio[i+1:]...)
		return nil
	})
}

func (s *PortfolioService) AddList(ctx context.Context, userID string, list model.Watchlist) (model.User, error) {
	return s.mutateUser(ctx, "PortfolioService.AddList", userID, func(user *model.User) error {
		list.ID = uuid.NewString()
		if list.Stocks == nil {
			list.Stocks = []string{}
		}
		user.Lists = append(user.Lists, list)
		return nil
	})
}

func (s *PortfolioService) RemoveList(ctx context.Context, userID, listID string) (model.User, error) {
	return s.mutateUser(ctx, "PortfolioService.RemoveList", userID, func(user *model.User) error {
		i := user.ListByID(listID)
		if i < 0 {
			return service.ErrNotFound
		}
		user.Lists = append(user.Lists[:i], user.Lists[i+1:]...)
		return nil
	})
}

// AddTickerToList does not deduplicate: the same ticker may appear twice.
func (s *PortfolioService) AddTickerToList(ctx context.Context, userID, listID, ticker string) (model.User, error) {
	return s.mutateUser(ctx, "PortfolioService.AddTickerToList", userID, func(user *model.User) error {
		i := user.ListByID(listID)
		if i < 0 {
			return service.ErrNotFound
		}
		user.Lists[i].Stocks = append(user.Lists[i].Stocks, ticker)
		return nil
	})
}

// RemoveTickerFromList removes every entry equal to ticker.
func (s *PortfolioService) RemoveTickerFromList(ctx context.Context, userID, listID, ticker string) (model.User, error) {
	return s.mutateUser(ctx, "PortfolioService.RemoveTickerFromList", userID, func(user *model.User) error {
		i := user.ListByID(listID)
		if i < 0 {
			return service.ErrNotFound
		}

		kept := make([]string, 0, len(user.Lists[i].Stocks))
		for _, stock := range user.Lists[i].Stocks {
			if stock != ticker {
				kept = append(kept, stock)
			}
		}
		user.Lists[i].Stocks = kept
		return nil
	})
}

// UpdateCash replaces cash with the supplied value. Sign and range are not
// validated: whether cash may go negative is an open business rule and the
// stored behavior keeps it unconstrained.
func (s *PortfolioService) UpdateCash(ctx context.Context, userID string, cash decimal.Decimal) (model.User, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.UpdateCash"

	slog.Debug("UpdateCash start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("UpdateCash finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	err := s.repo.UpdateUserCash(ctx, userID, cash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, service.ErrNotFound
		}
		slog.Error("got error from repo.UpdateUserCash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	return s.GetUser(ctx, userID)
}

// ResetDemo wipes the entire user collection and seeds the single demo
// user. Destructive and single-tenant: it only runs with demo mode enabled
// in config, and a redis lock keeps two resets from interleaving.
func (s *PortfolioService) ResetDemo(ctx context.Context) (model.User, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ResetDemo"

	if !s.cfg.Demo.Enabled {
		return model.User{}, service.ErrDemoDisabled
	}

	slog.Debug("ResetDemo start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("ResetDemo finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	acquired, err := s.demoLock.AcquireDemoReset(ctx)
	if err != nil {
		slog.Error("got error from demoLock.AcquireDemoReset", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}
	if !acquired {
		return model.User{}, service.ErrDemoResetInProgress
	}
	defer func() {
		if err := s.demoLock.ReleaseDemoReset(ctx); err != nil {
			slog.Error("got error from demoLock.ReleaseDemoReset", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	tickers := make([]string, 0, len(demoHoldings))
	for _, h := range demoHoldings {
		tickers = append(tickers, strings.ToLower(h.Ticker))
	}

	closes, err := s.marketApi.GetClosingPrices(ctx, tickers)
	if err != nil {
		slog.Error("got error from marketApi.GetClosingPrices", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	value := decimal.Zero
	portfolio := make([]model.Holding, 0, len(demoHoldings))
	for _, h := range demoHoldings {
		px := decimal.NewFromFloat(closes[h.Ticker])
		value = value.Add(px.Mul(decimal.NewFromInt(h.Shares)))
		portfolio = append(portfolio, model.Holding{
			ID:     uuid.NewString(),
			Ticker: h.Ticker,
			Shares: decimal.NewFromInt(h.Shares),
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}

	demoUser := model.User{
		ID:                       uuid.NewString(),
		Username:                 demoUsername,
		Password:                 string(hash),
		Cash:                     decimal.NewFromInt(demoCash),
		Portfolio:                portfolio,
		Lists:                    []model.Watchlist{},
		HistoricalPortfolioValue: generateHistory(value, time.Now()),
	}

	// the wipe and the reseed commit together so a failure between them
	// cannot leave the store empty
	var created model.User
	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteAllUsers(ctx); err != nil {
			return err
		}

		created, err = s.repo.InsertUser(ctx, demoUser)
		return err
	})
	if err != nil {
		slog.Error("demo reset transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.User{}, err
	}

	return created, nil
}

// generateHistory backfills one synthetic point per day, oldest first, each
// value uniformly jittered within ±500 of the computed portfolio value.
func generateHistory(value decimal.Decimal, now time.Time) []model.HistoricalValuePoint {
	points := make([]model.HistoricalValuePoint, 0, demoDays)
	for i := demoDays; i >= 1; i-- {
		jitter := decimal.NewFromFloat(rand.Float64()*2*demoJitter - demoJitter)
		points = append(points, model.HistoricalValuePoint{
			Date:  now.AddDate(0, 0, -i).Format(dateLayout),
			Value: value.Add(jitter).Round(2),
		})
	}
	return points
}

// SnapshotPortfolioValues prices every user's portfolio and appends a
// {date, value} point to its history. Runs as a scheduled job.
func (s *PortfolioService) SnapshotPortfolioValues(ctx context.Context) error {
	ctx = utils.CtxWithRqID(ctx, "")
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.SnapshotPortfolioValues"

	slog.Debug("SnapshotPortfolioValues start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("SnapshotPortfolioValues finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	users, err := s.repo.GetAllUsers(ctx)
	if err != nil {
		slog.Error("got error from repo.GetAllUsers", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	today := time.Now().Format(dateLayout)

	for _, user := range users {
		value, err := s.portfolioValue(ctx, user)
		if err != nil {
			slog.Error(
				"can't price portfolio, skipping user",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("userID", user.ID),
				slog.String("err", err.Error()),
			)
			continue
		}

		user.HistoricalPortfolioValue = append(user.HistoricalPortfolioValue, model.HistoricalValuePoint{
			Date:  today,
			Value: value,
		})

		if _, err := s.repo.UpdateUser(ctx, user); err != nil {
			slog.Error(
				"got error from repo.UpdateUser, skipping user",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("userID", user.ID),
				slog.String("err", err.Error()),
			)
		}
	}

	return nil
}

func (s *PortfolioService) portfolioValue(ctx context.Context, user model.User) (decimal.Decimal, error) {
	if len(user.Portfolio) == 0 {
		return decimal.Zero, nil
	}

	tickers := make([]string, 0, len(user.Portfolio))
	for _, holding := range user.Portfolio {
		tickers = append(tickers, strings.ToLower(holding.Ticker))
	}

	closes, err := s.marketApi.GetClosingPrices(ctx, tickers)
	if err != nil {
		return decimal.Zero, err
	}

	value := decimal.Zero
	for _, holding := range user.Portfolio {
		px := decimal.NewFromFloat(closes[strings.ToUpper(holding.Ticker)])
		value = value.Add(px.Mul(holding.Shares))
	}

	return value.Round(2), nil
}

// BuildPortfolioReport prices the holdings and renders them as a
// downloadable spreadsheet.
func (s *PortfolioService) BuildPortfolioReport(ctx context.Context, userID string) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.BuildPortfolioReport"

	slog.Debug("BuildPortfolioReport start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("BuildPortfolioReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	report := model.PortfolioReport{
		Username: user.Username,
		Cash:     user.Cash,
		Total:    decimal.Zero,
	}

	if len(user.Portfolio) > 0 {
		tickers := make([]string, 0, len(user.Portfolio))
		for _, holding := range user.Portfolio {
			tickers = append(tickers, strings.ToLower(holding.Ticker))
		}

		closes, err := s.marketApi.GetClosingPrices(ctx, tickers)
		if err != nil {
			slog.Error("got error from marketApi.GetClosingPrices", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, "", err
		}

		for _, holding := range user.Portfolio {
			price := decimal.NewFromFloat(closes[strings.ToUpper(holding.Ticker)])
			rowValue := price.Mul(holding.Shares).Round(2)
			report.Rows = append(report.Rows, model.PortfolioReportRow{
				Ticker: holding.Ticker,
				Shares: holding.Shares,
				Price:  price,
				Value:  rowValue,
			})
			report.Total = report.Total.Add(rowValue)
		}
	}

	return s.reportGen.Generate(ctx, report)
}
