package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the users table row. Portfolio, lists and history are stored as
// jsonb documents and marshalled in dbConverter.
type User struct {
	ID        string          `db:"user_id"`
	Username  string          `db:"username"`
	Password  string          `db:"password"`
	Cash      decimal.Decimal `db:"cash"`
	Portfolio []byte          `db:"portfolio"`
	Lists     []byte          `db:"lists"`
	History   []byte          `db:"historical_portfolio_value"`
	CreatedAt time.Time       `db:"dt_create"`
}
