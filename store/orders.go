package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func (s *Store) CreateOrder(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := s.db.NewInsert().Model(o).Returning("*").Exec(ctx)
	return err
}

// OrderByID loads an order with its customer attached.
func (s *Store) OrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o := new(Order)
	err := s.db.NewSelect().Model(o).
		Relation("Customer").
		Where("o.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, limit, offset int) ([]Order, int, error) {
	var orders []Order
	total, err := s.db.NewSelect().Model(&orders).
		Relation("Customer").
		Order("o.created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o *Order) error {
	o.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(o).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOrder removes the order; its items go with it through the cascade.
func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*Order)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
