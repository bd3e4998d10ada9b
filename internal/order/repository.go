// Package order is the HTTP front door: it persists an order record, hands an
// OrderPlaced envelope to the publisher and returns immediately.
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver
)

const StatusPending = "pending"

var ErrNotFound = errors.New("order not found")

type Order struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Item      string    `json:"item"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"timestamp"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS orders(
  order_id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  item TEXT NOT NULL,
  qty INTEGER NOT NULL,
  status TEXT NOT NULL,
  created_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
`
	_, err := db.Exec(schema)
	return err
}

func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) Save(ctx context.Context, o Order) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders(order_id, user_id, item, qty, status, created_unix) VALUES(?,?,?,?,?,?)`,
		o.OrderID, o.UserID, o.Item, o.Quantity, o.Status, o.CreatedAt.Unix())
	return err
}

func (r *Repository) Get(ctx context.Context, orderID string) (Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT order_id, user_id, item, qty, status, created_unix FROM orders WHERE order_id = ?`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repository) List(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, user_id, item, qty, status, created_unix FROM orders ORDER BY created_unix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (Order, error) {
	var o Order
	var createdUnix int64
	if err := s.Scan(&o.OrderID, &o.UserID, &o.Item, &o.Quantity, &o.Status, &createdUnix); err != nil {
		return Order{}, err
	}
	o.CreatedAt = time.Unix(createdUnix, 0).UTC()
	return o, nil
}
