package dbConverter

import (
	"encoding/json"
	"fmt"

	"github.com/stockfolio/backend/internal/model"
	"github.com/stockfolio/backend/internal/model/dbModel"
)

func ConvertUser(dbUser dbModel.User) (model.User, error) {
	user := model.User{
		ID:       dbUser.ID,
		Username: dbUser.Username,
		Password: dbUser.Password,
		Cash:     dbUser.Cash,
	}

	if err := json.Unmarshal(dbUser.Portfolio, &user.Portfolio); err != nil {
		return model.User{}, fmt.Errorf("unmarshal portfolio: %w", err)
	}

	if err := json.Unmarshal(dbUser.Lists, &user.Lists); err != nil {
		return model.User{}, fmt.Errorf("unmarshal lists: %w", err)
	}

	if err := json.Unmarshal(dbUser.History, &user.HistoricalPortfolioValue); err != nil {
		return model.User{}, fmt.Errorf("unmarshal historical portfolio value: %w", err)
	}

	return user, nil
}

func ConvertToDbUser(user model.User) (dbModel.User, error) {
	dbUser := dbModel.User{
		ID:       user.ID,
		Username: user.Username,
		Password: user.Password,
		Cash:     user.Cash,
	}

	if user.Portfolio == nil {
		user.Portfolio = []model.Holding{}
	}
	if user.Lists == nil {
		user.Lists = []model.Watchlist{}
	}
	if user.HistoricalPortfolioValue == nil {
		user.HistoricalPortfolioValue = []model.HistoricalValuePoint{}
	}

	var err error
	if dbUser.Portfolio, err = json.Marshal(user.Portfolio); err != nil {
		return dbModel.User{}, fmt.Errorf("marshal portfolio: %w", err)
	}

	if dbUser.Lists, err = json.Marshal(user.Lists); err != nil {
		return dbModel.User{}, fmt.Errorf("marshal lists: %w", err)
	}

	if dbUser.History, err = json.Marshal(user.HistoricalPortfolioValue); err != nil {
		return dbModel.User{}, fmt.Errorf("marshal historical portfolio value: %w", err)
	}

	return dbUser, nil
}
