package portfolioService

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/internal/model"
	"github.com/stockfolio/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// MockRepository is a mock implementation of Repository for testing.
// InsertUser and UpdateUser echo their argument when set up with Return(nil, nil).
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, userID string) (model.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockRepository) GetAllUsers(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockRepository) InsertUser(ctx context.Context, user model.User) (model.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return user, args.Error(1)
	}
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockRepository) UpdateUser(ctx context.Context, user model.User) (model.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return user, args.Error(1)
	}
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockRepository) UpdateUserCash(ctx context.Context, userID string, cash decimal.Decimal) error {
	args := m.Called(ctx, userID, cash)
	return args.Error(0)
}

func (m *MockRepository) DeleteAllUsers(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// WithinTransaction runs the callback directly unless the expectation
// returns an error.
func (m *MockRepository) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	args := m.Called(ctx, tFunc)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return tFunc(ctx)
}

// MockMarketApi is a mock implementation of MarketApi for testing
type MockMarketApi struct {
	mock.Mock
}

func (m *MockMarketApi) GetClosingPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	args := m.Called(ctx, symbols)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

// MockDemoLock is a mock implementation of DemoLock for testing
type MockDemoLock struct {
	mock.Mock
}

func (m *MockDemoLock) AcquireDemoReset(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockDemoLock) ReleaseDemoReset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockReportGenerator is a mock implementation of ReportGenerator for testing
type MockReportGenerator struct {
	mock.Mock
}

func (m *MockReportGenerator) Generate(ctx context.Context, report model.PortfolioReport) ([]byte, string, error) {
	args := m.Called(ctx, report)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func demoConfig(enabled bool) *config.Config {
	return &config.Config{Demo: config.Demo{Enabled: enabled, LockTTL: 30 * time.Second}}
}

func newService(cfg *config.Config) (*PortfolioService, *MockRepository, *MockMarketApi, *MockDemoLock, *MockReportGenerator) {
	mockRepo := new(MockRepository)
	mockApi := new(MockMarketApi)
	mockLock := new(MockDemoLock)
	mockGen := new(MockReportGenerator)
	return New(cfg, mockRepo, mockApi, mockLock, mockGen), mockRepo, mockApi, mockLock, mockGen
}

func TestAddThenUpdateHolding(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, _, _, _ := newService(demoConfig(false))

	user := model.User{ID: "u1", Username: "alice", Portfolio: []model.Holding{}}

	mockRepo.On("GetUser", mock.Anything, "u1").Return(user, nil).Once()
	mockRepo.On("UpdateUser", mock.Anything, mock.AnythingOfType("model.User")).Return(nil, nil)

	afterAdd, err := srv.AddHolding(ctx, "u1", "AAPL", decimal.NewFromInt(2))
	assert.NoError(t, err)
	assert.Len(t, afterAdd.Portfolio, 1)
	assert.Equal(t, "AAPL", afterAdd.Portfolio[0].Ticker)
	assert.NotEmpty(t, afterAdd.Portfolio[0].ID)
	assert.True(t, afterAdd.Portfolio[0].Shares.Equal(decimal.NewFromInt(2)))

	holdingID := afterAdd.Portfolio[0].ID

	mockRepo.On("GetUser", mock.Anything, "u1").Return(afterAdd, nil).Once()

	afterUpdate, err := srv.UpdateHoldingShares(ctx, "u1", holdingID, decimal.NewFromInt(7))
	assert.NoError(t, err)
	assert.Len(t, afterUpdate.Portfolio, 1)
	assert.Equal(t, holdingID, afterUpdate.Portfolio[0].ID)
	assert.Equal(t, "AAPL", afterUpdate.Portfolio[0].Ticker)
	assert.True(t, afterUpdate.Portfolio[0].Shares.Equal(decimal.NewFromInt(7)))
}

func TestUpdateHoldingShares_UnknownHolding(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, _, _, _ := newService(demoConfig(false))

	user := model.User{ID: "u1", Portfolio: []model.Holding{{ID: "h1", Ticker: "AAPL", Shares: decimal.NewFromInt(2)}}}
	mockRepo.On("GetUser", mock.Anything, "u1").Return(user, nil)

	_, err := srv.UpdateHoldingShares(ctx, "u1", "missing", decimal.NewFromInt(7))

	assert.ErrorIs(t, err, service.ErrNotFound)
	mockRepo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
}

func TestRemoveList_KeepsOthers(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, _, _, _ := newService(demoConfig(false))

	user := model.User{ID: "u1", Lists: []model.Watchlist{
		{ID: "l1", Name: "tech", Stocks: []string{"AAPL"}},
		{ID: "l2", Name: "energy", Stocks: []string{"XOM"}},
	}}
	mockRepo.On("GetUser", mock.Anything, "u1").Return(user, nil)
	mockRepo.On("UpdateUser", mock.Anything, mock.AnythingOfType("model.User")).Return(nil, nil)

	updated, err := srv.RemoveList(ctx, "u1", "l1")

	assert.NoError(t, err)
	assert.Len(t, updated.Lists, 1)
	assert.Equal(t, "l2", updated.Lists[0].ID)
	assert.Equal(t, []string{"XOM"}, updated.Lists[0].Stocks)
}

func TestRemoveTickerFromList_RemovesDuplicates(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, _, _, _ := newService(demoConfig(false))

	user := model.User{ID: "u1", Lists: []model.Watchlist{
		{ID: "l1", Name: "tech", Stocks: []string{"AAPL", "SNAP", "AAPL", "TSLA"}},
	}}
	mockRepo.On("GetUser", mock.Anything, "u1").Return(user, nil)
	mockRepo.On("UpdateUser", mock.Anything, mock.AnythingOfType("model.User")).Return(nil, nil)

	updated, err := srv.RemoveTickerFromList(ctx, "u1", "l1", "AAPL")

	assert.NoError(t, err)
	assert.Equal(t, []string{"SNAP", "TSLA"}, updated.Lists[0].Stocks)
}

func TestUpdateCash_ConcurrentWritersLastWins(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, _, _, _ := newService(demoConfig(false))

	var mu sync.Mutex
	var stored decimal.Decimal

	mockRepo.On("UpdateUserCash", mock.Anything, "u1", mock.AnythingOfType("decimal.Decimal")).
		Run(func(args mock.Arguments) {
			mu.Lock()
			stored = args.Get(2).(decimal.Decimal)
			mu.Unlock()
		}).
		Return(nil)
	mockRepo.On("GetUser", mock.Anything, "u1").Return(model.User{ID: "u1"}, nil)

	var wg sync.WaitGroup
	for _, cash := range []int64{100, 200} {
		wg.Add(1)
		go func(cash int64) {
			defer wg.Done()
			_, err := srv.UpdateCash(ctx, "u1", decimal.NewFromInt(cash))
			assert.NoError(t, err)
		}(cash)
	}
	wg.Wait()

	// no version check anywhere, so whichever writer lands last wins
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, stored.Equal(decimal.NewFromInt(100)) || stored.Equal(decimal.NewFromInt(200)))
}

func TestResetDemo_Disabled(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, _, mockLock, _ := newService(demoConfig(false))

	_, err := srv.ResetDemo(ctx)

	assert.ErrorIs(t, err, service.ErrDemoDisabled)
	mockLock.AssertNotCalled(t, "AcquireDemoReset", mock.Anything)
	mockRepo.AssertNotCalled(t, "DeleteAllUsers", mock.Anything)
}

func TestResetDemo_LockContended(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, _, mockLock, _ := newService(demoConfig(true))

	mockLock.On("AcquireDemoReset", mock.Anything).Return(false, nil)

	_, err := srv.ResetDemo(ctx)

	assert.ErrorIs(t, err, service.ErrDemoResetInProgress)
	mockRepo.AssertNotCalled(t, "DeleteAllUsers", mock.Anything)
	mockLock.AssertNotCalled(t, "ReleaseDemoReset", mock.Anything)
}

func TestResetDemo_SeedsDemoUser(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, mockApi, mockLock, _ := newService(demoConfig(true))

	var calls []string

	mockLock.On("AcquireDemoReset", mock.Anything).Return(true, nil)
	mockLock.On("ReleaseDemoReset", mock.Anything).Return(nil)
	mockApi.On("GetClosingPrices", mock.Anything, []string{"tsla", "aapl", "snap"}).
		Run(func(args mock.Arguments) { calls = append(calls, "prices") }).
		Return(map[string]float64{"TSLA": 200, "AAPL": 150, "SNAP": 10}, nil)
	mockRepo.On("WithinTransaction", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("DeleteAllUsers", mock.Anything).
		Run(func(args mock.Arguments) { calls = append(calls, "delete") }).
		Return(nil)
	mockRepo.On("InsertUser", mock.Anything, mock.AnythingOfType("model.User")).Return(nil, nil)

	user, err := srv.ResetDemo(ctx)
	assert.NoError(t, err)

	// prices must be fetched before the wipe, or a provider outage would
	// leave the store empty
	assert.Equal(t, []string{"prices", "delete"}, calls)

	assert.Equal(t, "Warren", user.Username)
	assert.True(t, user.Cash.Equal(decimal.NewFromInt(10000)))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("123")))
	assert.Empty(t, user.Lists)

	assert.Len(t, user.Portfolio, 3)
	shares := map[string]int64{}
	for _, h := range user.Portfolio {
		assert.NotEmpty(t, h.ID)
		shares[h.Ticker] = h.Shares.IntPart()
	}
	assert.Equal(t, map[string]int64{"TSLA": 3, "AAPL": 2, "SNAP": 4}, shares)

	// value = 200*3 + 150*2 + 10*4 = 940, history jittered within ±500
	assert.Len(t, user.HistoricalPortfolioValue, 365)
	low := decimal.NewFromInt(940 - 500)
	high := decimal.NewFromInt(940 + 500)
	var prev time.Time
	for i, point := range user.HistoricalPortfolioValue {
		assert.True(t, point.Value.GreaterThanOrEqual(low), "point %d below range: %s", i, point.Value)
		assert.True(t, point.Value.LessThanOrEqual(high), "point %d above range: %s", i, point.Value)

		date, err := time.Parse("01/02/2006", point.Date)
		assert.NoError(t, err)
		if i > 0 {
			assert.True(t, date.After(prev), "history must be oldest first")
		}
		prev = date
	}

	mockLock.AssertCalled(t, "ReleaseDemoReset", mock.Anything)
}

func TestSnapshotPortfolioValues_SkipsFailedUser(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, mockApi, _, _ := newService(demoConfig(false))

	good := model.User{ID: "u1", Portfolio: []model.Holding{{ID: "h1", Ticker: "AAPL", Shares: decimal.NewFromInt(2)}}}
	bad := model.User{ID: "u2", Portfolio: []model.Holding{{ID: "h2", Ticker: "FAIL", Shares: decimal.NewFromInt(1)}}}

	mockRepo.On("GetAllUsers", mock.Anything).Return([]model.User{good, bad}, nil)
	mockApi.On("GetClosingPrices", mock.Anything, []string{"aapl"}).Return(map[string]float64{"AAPL": 150}, nil)
	mockApi.On("GetClosingPrices", mock.Anything, []string{"fail"}).Return(nil, assert.AnError)

	var updated []model.User
	mockRepo.On("UpdateUser", mock.Anything, mock.AnythingOfType("model.User")).
		Run(func(args mock.Arguments) { updated = append(updated, args.Get(1).(model.User)) }).
		Return(nil, nil)

	err := srv.SnapshotPortfolioValues(ctx)

	assert.NoError(t, err)
	assert.Len(t, updated, 1)
	assert.Equal(t, "u1", updated[0].ID)
	assert.Len(t, updated[0].HistoricalPortfolioValue, 1)
	assert.True(t, updated[0].HistoricalPortfolioValue[0].Value.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, time.Now().Format("01/02/2006"), updated[0].HistoricalPortfolioValue[0].Date)
}

func TestSnapshotPortfolioValues_EmptyPortfolio(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, mockApi, _, _ := newService(demoConfig(false))

	user := model.User{ID: "u1"}
	mockRepo.On("GetAllUsers", mock.Anything).Return([]model.User{user}, nil)

	var updated model.User
	mockRepo.On("UpdateUser", mock.Anything, mock.AnythingOfType("model.User")).
		Run(func(args mock.Arguments) { updated = args.Get(1).(model.User) }).
		Return(nil, nil)

	err := srv.SnapshotPortfolioValues(ctx)

	assert.NoError(t, err)
	assert.Len(t, updated.HistoricalPortfolioValue, 1)
	assert.True(t, updated.HistoricalPortfolioValue[0].Value.IsZero())
	mockApi.AssertNotCalled(t, "GetClosingPrices", mock.Anything, mock.Anything)
}

func TestBuildPortfolioReport(t *testing.T) {
	ctx := context.Background()
	srv, mockRepo, mockApi, _, mockGen := newService(demoConfig(false))

	user := model.User{
		ID:       "u1",
		Username: "alice",
		Cash:     decimal.NewFromInt(500),
		Portfolio: []model.Holding{
			{ID: "h1", Ticker: "AAPL", Shares: decimal.NewFromInt(2)},
			{ID: "h2", Ticker: "TSLA", Shares: decimal.NewFromInt(3)},
		},
	}

	mockRepo.On("GetUser", mock.Anything, "u1").Return(user, nil)
	mockApi.On("GetClosingPrices", mock.Anything, []string{"aapl", "tsla"}).
		Return(map[string]float64{"AAPL": 150, "TSLA": 200}, nil)

	var report model.PortfolioReport
	mockGen.On("Generate", mock.Anything, mock.AnythingOfType("model.PortfolioReport")).
		Run(func(args mock.Arguments) { report = args.Get(1).(model.PortfolioReport) }).
		Return([]byte("xlsx-bytes"), ".xlsx", nil)

	fileBytes, ext, err := srv.BuildPortfolioReport(ctx, "u1")

	assert.NoError(t, err)
	assert.Equal(t, []byte("xlsx-bytes"), fileBytes)
	assert.Equal(t, ".xlsx", ext)

	assert.Equal(t, "alice", report.Username)
	assert.True(t, report.Cash.Equal(decimal.NewFromInt(500)))
	assert.Len(t, report.Rows, 2)
	assert.True(t, report.Rows[0].Value.Equal(decimal.NewFromInt(300)))
	assert.True(t, report.Rows[1].Value.Equal(decimal.NewFromInt(600)))
	assert.True(t, report.Total.Equal(decimal.NewFromInt(900)))
}
