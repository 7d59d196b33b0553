package store

import (
	"context"

	"github.com/google/uuid"
)

// Customers are read-only through the API; rows come from the billing
// import.

func (s *Store) CustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	cu := new(Customer)
	err := s.db.NewSelect().Model(cu).
		Where("cu.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return cu, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	err := s.db.NewSelect().Model(&customers).
		Order("customer_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return customers, nil
}
