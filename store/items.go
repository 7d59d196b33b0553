package store

import (
	"context"

	"github.com/google/uuid"
)

func (s *Store) CreateItem(ctx context.Context, i *Item) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	_, err := s.db.NewInsert().Model(i).Returning("*").Exec(ctx)
	return err
}

func (s *Store) ItemByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	i := new(Item)
	err := s.db.NewSelect().Model(i).
		Where("i.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return i, nil
}

func (s *Store) ListItems(ctx context.Context, limit, offset int) ([]Item, int, error) {
	var items []Item
	total, err := s.db.NewSelect().Model(&items).
		Order("i.id ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListItemsByOrder returns every item on one order, unpaginated; orders
// stay small.
func (s *Store) ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	var items []Item
	err := s.db.NewSelect().Model(&items).
		Where("order_id = ?", orderID).
		Order("i.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateItem(ctx context.Context, i *Item) error {
	res, err := s.db.NewUpdate().Model(i).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model((*Item)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
