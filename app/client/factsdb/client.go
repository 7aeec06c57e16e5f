package factsdb

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"salesbot/app/config"
	"salesbot/app/service/dialog"

	"github.com/go-sql-driver/mysql"
	"github.com/samber/do"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"
)

var ErrPropertyNotFound = errors.New("property not found")

const (
	queryObject = `SELECT address, price, commission_client, add_date FROM objects WHERE id = ?`
	queryOwner  = `SELECT value FROM object_owner_info WHERE object_id = ? LIMIT 1`
	queryPrior  = `SELECT COUNT(*) FROM objects WHERE address = ? AND id <> ?`
)

var _ do.Shutdownable = (*Client)(nil)

type Client struct {
	db *sql.DB
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return Open(cfg.DB)
}

func Open(cfg config.DB) (*Client, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Driver {
	case "sqlite":
		db, err = sql.Open("sqlite", cfg.Database)
	default:
		dsn := mysql.NewConfig()
		dsn.User = cfg.User
		dsn.Passwd = cfg.Pass
		dsn.Net = "tcp"
		dsn.Addr = cfg.Host
		dsn.DBName = cfg.Database
		dsn.ParseTime = true
		dsn.Timeout = 10 * time.Second
		db, err = sql.Open("mysql", dsn.FormatDSN())
	}
	if err != nil {
		return nil, oops.In("factsdb").With("driver", cfg.Driver).Wrapf(err, "failed to open database")
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{db: db}, nil
}

// FetchFacts loads everything the dialog needs about one property.
func (c *Client) FetchFacts(ctx context.Context, propertyID string) (dialog.Facts, error) {
	errb := oops.In("factsdb").With("property_id", propertyID)

	var (
		address   string
		price     float64
		rate      sql.NullFloat64
		addedDate sql.NullTime
	)

	err := c.db.QueryRowContext(ctx, queryObject, propertyID).Scan(&address, &price, &rate, &addedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return dialog.Facts{}, errb.Code("property_not_found").Wrap(ErrPropertyNotFound)
	}
	if err != nil {
		return dialog.Facts{}, errb.Wrapf(err, "failed to query object")
	}

	var owner string
	err = c.db.QueryRowContext(ctx, queryOwner, propertyID).Scan(&owner)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return dialog.Facts{}, errb.Wrapf(err, "failed to query owner")
	}

	var prior int
	if err = c.db.QueryRowContext(ctx, queryPrior, address, propertyID).Scan(&prior); err != nil {
		return dialog.Facts{}, errb.Wrapf(err, "failed to count prior engagements")
	}

	facts := dialog.Facts{
		PropertyID:       propertyID,
		OwnerName:        owner,
		Address:          address,
		Price:            int64(math.Round(price)),
		CommissionRate:   rate.Float64,
		PriorEngagements: prior,
	}
	if addedDate.Valid {
		facts.LastAdvertised = addedDate.Time
	}

	return facts, nil
}

func (c *Client) Shutdown() error {
	return c.db.Close()
}
