package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/shopspring/decimal"
	"github.com/stockfolio/backend/data/repository"
	"github.com/stockfolio/backend/internal/converter/dbConverter"
	"github.com/stockfolio/backend/internal/model"
	"github.com/stockfolio/backend/internal/model/dbModel"
	"github.com/stockfolio/backend/utils"
)

func (r *Postgres) InsertUser(ctx context.Context, user model.User) (created model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertUser"
	query := `
		INSERT INTO users(user_id, username, password, cash, portfolio, lists, historical_portfolio_value)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		`

	slog.Debug("InsertUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", user.Username), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser, err := dbConverter.ConvertToDbUser(user)
	if err != nil {
		return model.User{}, err
	}

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		dbUser.ID,
		dbUser.Username,
		dbUser.Password,
		dbUser.Cash,
		dbUser.Portfolio,
		dbUser.Lists,
		dbUser.History,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return model.User{}, repository.ErrAlreadyExists
			}
		}
		return model.User{}, err
	}

	return dbConverter.ConvertUser(dbUser)
}

func (r *Postgres) GetUser(ctx context.Context, userID string) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetUser"
	query := `
		SELECT user_id, username, password, cash, portfolio, lists, historical_portfolio_value, dt_create
		FROM users
		WHERE user_id = $1
		`

	slog.Debug("GetUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser := dbModel.User{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID).StructScan(&dbUser)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, repository.ErrNotFound
		}
		return model.User{}, err
	}

	return dbConverter.ConvertUser(dbUser)
}

func (r *Postgres) GetUserByUsername(ctx context.Context, username string) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetUserByUsername"
	query := `
		SELECT user_id, username, password, cash, portfolio, lists, historical_portfolio_value, dt_create
		FROM users
		WHERE username = $1
		`

	slog.Debug("GetUserByUsername start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetUserByUsername failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetUserByUsername completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser := dbModel.User{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, username).StructScan(&dbUser)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, repository.ErrNotFound
		}
		return model.User{}, err
	}

	return dbConverter.ConvertUser(dbUser)
}

// UpdateUser persists the whole document. There is no version column, so
// concurrent writers to the same user race and the last writer wins.
func (r *Postgres) UpdateUser(ctx context.Context, user model.User) (updated model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateUser"
	query := `
		UPDATE users
		SET cash = $2,
			portfolio = $3,
			lists = $4,
			historical_portfolio_value = $5
		WHERE user_id = $1
		`

	slog.Debug("UpdateUser start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", user.ID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("UpdateUser failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateUser completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser, err := dbConverter.ConvertToDbUser(user)
	if err != nil {
		return model.User{}, err
	}

	res, err := r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		dbUser.ID,
		dbUser.Cash,
		dbUser.Portfolio,
		dbUser.Lists,
		dbUser.History,
	)
	if err != nil {
		return model.User{}, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.User{}, err
	}
	if affected == 0 {
		return model.User{}, repository.ErrNotFound
	}

	return user, nil
}

func (r *Postgres) UpdateUserCash(ctx context.Context, userID string, cash decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateUserCash"
	query := `
		UPDATE users
		SET cash = $2
		WHERE user_id = $1
		`

	slog.Debug("UpdateUserCash start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID), slog.String("query", query))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("UpdateUserCash failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateUserCash completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, userID, cash)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetAllUsers(ctx context.Context) (users []model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAllUsers"
	query := `
		SELECT user_id, username, password, cash, portfolio, lists, historical_portfolio_value, dt_create
		FROM users
		ORDER BY dt_create
		`

	slog.Debug("GetAllUsers start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetAllUsers failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAllUsers completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbUser dbModel.User
		err = rows.StructScan(&dbUser)
		if err != nil {
			return nil, err
		}

		user, err := dbConverter.ConvertUser(dbUser)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

func (r *Postgres) DeleteAllUsers(ctx context.Context) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteAllUsers"
	query := `DELETE FROM users`

	slog.Debug("DeleteAllUsers start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("DeleteAllUsers failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteAllUsers completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query)
	if err != nil {
		return err
	}

	return nil
}
