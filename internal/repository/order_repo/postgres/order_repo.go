package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/order_repo"
)

const orderColumns = `id, status, email, product_id, payment_session_id, download_path, created_at, updated_at`

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	var email, downloadPath sql.NullString
	if err := row.Scan(&order.ID, &order.Status, &email, &order.ProductID, &order.PaymentSessionID, &downloadPath, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, err
	}
	order.Email = email.String
	order.DownloadPath = downloadPath.String
	return order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *pgOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.Status, nullString(order.Email), order.ProductID, order.PaymentSessionID,
		nullString(order.DownloadPath), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create order", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to create order: %w", err)
	}
	r.logger.Debug("Order created successfully", zap.String("order_id", order.ID))
	return nil
}

func (r *pgOrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetAllOrders(ctx context.Context) ([]*domain.Order, error) {
	var orders []*domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query all orders", zap.Error(err))
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan row for all orders", zap.Error(err))
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		r.logger.Error("Rows error for all orders", zap.Error(err))
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// UpdateOrder locks the row for the duration of the mutation so concurrent
// updates of the same order are applied one after another.
func (r *pgOrderRepository) UpdateOrder(ctx context.Context, id string, mutate order_repo.Mutation) (updated *domain.Order, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for order update", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic during order update transaction, rolling back", zap.String("order_id", id))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit order update transaction", zap.String("order_id", id), zap.Error(err))
				updated = nil
				err = fmt.Errorf("failed to commit order update: %w", err)
			}
		}
	}()

	selectQuery := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	order, err := scanOrder(tx.QueryRowContext(ctx, selectQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("tx failed to load order %s: %w", id, err)
	}

	if err = mutate(order); err != nil {
		return nil, err
	}

	updateQuery := `UPDATE orders SET status = $2, email = $3, download_path = $4, updated_at = $5 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, order.ID, order.Status, nullString(order.Email), nullString(order.DownloadPath), order.UpdatedAt); err != nil {
		r.logger.Error("Failed to update order", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	r.logger.Debug("Order updated successfully", zap.String("order_id", id), zap.String("new_status", string(order.Status)))
	return order, nil
}
