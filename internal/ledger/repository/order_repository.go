package repository

import (
	"context"
	"database/sql"
	"fmt"

	"oureat/internal/domain"
	"oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

// MySQLOrderRepository persists the append-only order array. Ids are assigned
// from the ledger_state counter row, never by AUTO_INCREMENT, so the sequence
// starts at zero and has no gaps. Rows are never deleted.
type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// AllocateOrderID locks the counter row, returns the next id and advances it.
// The lock also serializes concurrent createOrder calls.
func (r *MySQLOrderRepository) AllocateOrderID(ctx context.Context, q mysql.DBTX) (uint64, error) {
	var id uint64
	err := q.QueryRowContext(ctx, `SELECT next_order_id FROM ledger_state WHERE id = 1 FOR UPDATE`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("locking order counter: %w", err)
	}

	if _, err := q.ExecContext(ctx, `UPDATE ledger_state SET next_order_id = next_order_id + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("advancing order counter: %w", err)
	}

	return id, nil
}

func (r *MySQLOrderRepository) Insert(ctx context.Context, q mysql.DBTX, order domain.Order) error {
	query := `
		INSERT INTO orders (id, customer, merchant, rider, item, amount, platform_fee, accepted, picked, fulfilled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		order.ID, order.Customer, order.Merchant, order.Rider, order.Item,
		order.Amount, order.PlatformFee, order.Accepted, order.Picked, order.Fulfilled,
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func (r *MySQLOrderRepository) InsertItems(ctx context.Context, q mysql.DBTX, orderID uint64, dishIDs, qtys []int64) error {
	query := `INSERT INTO order_items (order_id, dish_id, qty, position) VALUES (?, ?, ?, ?)`

	for i := range dishIDs {
		if _, err := q.ExecContext(ctx, query, orderID, dishIDs[i], qtys[i], i); err != nil {
			return fmt.Errorf("inserting order item: %w", err)
		}
	}

	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	query := `
		SELECT id, customer, merchant, rider, item, amount, platform_fee,
		       accepted, picked, fulfilled, createdAt, updatedAt
		FROM orders
		WHERE id = ?
	`

	return r.scanOrder(r.db.QueryRowContext(ctx, query, id), id)
}

// FindByIDForUpdate locks the order row for the rest of the transaction.
// Racing transitions on the same order serialize here; the loser re-reads the
// already-set flag and fails its precondition check.
func (r *MySQLOrderRepository) FindByIDForUpdate(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
	query := `
		SELECT id, customer, merchant, rider, item, amount, platform_fee,
		       accepted, picked, fulfilled, createdAt, updatedAt
		FROM orders
		WHERE id = ?
		FOR UPDATE
	`

	return r.scanOrder(q.QueryRowContext(ctx, query, id), id)
}

func (r *MySQLOrderRepository) scanOrder(row *sql.Row, id uint64) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID, &order.Customer, &order.Merchant, &order.Rider, &order.Item,
		&order.Amount, &order.PlatformFee,
		&order.Accepted, &order.Picked, &order.Fulfilled,
		&order.CreatedAt, &order.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	return &order, nil
}

func (r *MySQLOrderRepository) SetAccepted(ctx context.Context, q mysql.DBTX, id uint64, merchant domain.Address) error {
	query := `UPDATE orders SET merchant = ?, accepted = 1 WHERE id = ? AND accepted = 0`
	return r.applyTransition(ctx, q, query, id, "accept", merchant)
}

func (r *MySQLOrderRepository) SetPicked(ctx context.Context, q mysql.DBTX, id uint64, rider domain.Address) error {
	query := `UPDATE orders SET rider = ?, picked = 1 WHERE id = ? AND accepted = 1 AND picked = 0`
	return r.applyTransition(ctx, q, query, id, "pick", rider)
}

func (r *MySQLOrderRepository) SetFulfilled(ctx context.Context, q mysql.DBTX, id uint64, platformFee uint64) error {
	query := `UPDATE orders SET platform_fee = ?, fulfilled = 1 WHERE id = ? AND picked = 1 AND fulfilled = 0`
	return r.applyTransition(ctx, q, query, id, "fulfill", platformFee)
}

// applyTransition carries the flag preconditions into the UPDATE guard so a
// transition that lost the race affects zero rows even if the caller's
// read-then-write window let something slip through.
func (r *MySQLOrderRepository) applyTransition(ctx context.Context, q mysql.DBTX, query string, id uint64, name string, arg any) error {
	result, err := q.ExecContext(ctx, query, arg, id)
	if err != nil {
		return fmt.Errorf("updating order on %s: %w", name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewInvalidStateError(fmt.Sprintf("order %d cannot %s in its current state", id, name))
	}

	return nil
}

// Count returns the order counter, which equals the number of orders ever
// created: ids run 0..count-1.
func (r *MySQLOrderRepository) Count(ctx context.Context) (uint64, error) {
	query := `SELECT next_order_id FROM ledger_state WHERE id = 1`

	var count uint64
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("querying order count: %w", err)
	}

	return count, nil
}

func (r *MySQLOrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	query := `
		SELECT id, customer, merchant, rider, item, amount, platform_fee,
		       accepted, picked, fulfilled, createdAt, updatedAt
		FROM orders
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		err := rows.Scan(
			&order.ID, &order.Customer, &order.Merchant, &order.Rider, &order.Item,
			&order.Amount, &order.PlatformFee,
			&order.Accepted, &order.Picked, &order.Fulfilled,
			&order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}

	return orders, nil
}

func (r *MySQLOrderRepository) ItemsByOrderID(ctx context.Context, orderID uint64) (dishIDs, qtys []int64, err error) {
	query := `SELECT dish_id, qty FROM order_items WHERE order_id = ? ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dishID, qty int64
		if err := rows.Scan(&dishID, &qty); err != nil {
			return nil, nil, fmt.Errorf("scanning order item: %w", err)
		}
		dishIDs = append(dishIDs, dishID)
		qtys = append(qtys, qty)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating order items: %w", err)
	}

	return dishIDs, qtys, nil
}
