package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v4/stdlib"

	"fx-history-service/internal/domain/model"
	"fx-history-service/internal/domain/ports"
)

const (
	tableName = "exchange_rates"

	// Applied at startup when STORE_AUTO_MIGRATE is set, and by tests.
	TableCreate = `
	CREATE TABLE IF NOT EXISTS exchange_rates (
		currency_pair VARCHAR(21) NOT NULL,
		rate_date VARCHAR(10) NOT NULL,
		exchange_rate DOUBLE PRECISION NOT NULL CHECK (exchange_rate > 0),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL,

		PRIMARY KEY (currency_pair, rate_date)
	);`

	TableDestroy = `DROP TABLE IF EXISTS exchange_rates;`
)

type rateModel struct {
	CurrencyPair string    `db:"currency_pair"`
	RateDate     string    `db:"rate_date"`
	ExchangeRate float64   `db:"exchange_rate"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (m *rateModel) toPoint() model.RatePoint {
	return model.RatePoint{Date: m.RateDate, ExchangeRate: m.ExchangeRate}
}

// PostgresStore is the RateStore on a Postgres table partitioned logically by
// currency_pair and ordered by rate_date.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgres opens a pgx-backed pool and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "pgx")}
}

func (s *PostgresStore) QueryRates(ctx context.Context, q model.RangeQuery) (model.RateSeries, error) {
	if q.Limit <= 0 {
		return nil, ErrInvalidLimit
	}

	order := "ASC"
	if q.Descending {
		order = "DESC"
	}

	query := `SELECT currency_pair, rate_date, exchange_rate, updated_at FROM ` + tableName + `
		WHERE currency_pair = $1
		ORDER BY rate_date ` + order + `
		LIMIT $2`

	var rows []*rateModel
	if err := s.db.SelectContext(ctx, &rows, query, q.Pair.String(), q.Limit); err != nil {
		return nil, errors.Wrapf(err, "failed to query rates for %s", q.Pair)
	}

	series := make(model.RateSeries, 0, len(rows))
	for _, r := range rows {
		series = append(series, r.toPoint())
	}
	return series, nil
}

func (s *PostgresStore) GetRate(ctx context.Context, pair model.CurrencyPair, date string) (*model.RatePoint, error) {
	row := &rateModel{}
	err := s.db.GetContext(ctx, row,
		`SELECT currency_pair, rate_date, exchange_rate, updated_at FROM `+tableName+`
		WHERE currency_pair = $1 AND rate_date = $2`,
		pair.String(), date,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrRateNotFound
		}
		return nil, errors.Wrapf(err, "failed to get rate for %s on %s", pair, date)
	}

	point := row.toPoint()
	return &point, nil
}

func (s *PostgresStore) PutRates(ctx context.Context, date string, rates []model.PairRate) error {
	if err := validateDate(date); err != nil {
		return err
	}
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO `+tableName+` (currency_pair, rate_date, exchange_rate, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (currency_pair, rate_date)
		DO UPDATE SET exchange_rate = EXCLUDED.exchange_rate, updated_at = EXCLUDED.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "failed to prepare upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, r := range rates {
		if _, err := stmt.ExecContext(ctx, r.Pair.String(), date, r.Rate, now); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "failed to upsert rate for %s", r.Pair)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit rates")
}

func (s *PostgresStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
