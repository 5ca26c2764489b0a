package mocks

import (
	"b2bcart/internal/models"
	"context"

	"github.com/stretchr/testify/mock"
)

type Storage struct {
	mock.Mock

	// TxErr is returned by WithinTx without running fn, as if BEGIN failed.
	TxErr error
}

func (m *Storage) GetProduct(ctx context.Context, productId string) (models.Product, error) {
	args := m.Called(ctx, productId)
	return args.Get(0).(models.Product), args.Error(1)
}

func (m *Storage) ListCartLines(ctx context.Context, userId string) ([]models.CartLineDetails, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]models.CartLineDetails), args.Error(1)
}

func (m *Storage) FindCartLine(ctx context.Context, lineId string) (models.CartLine, error) {
	args := m.Called(ctx, lineId)
	return args.Get(0).(models.CartLine), args.Error(1)
}

func (m *Storage) UpsertCartLine(ctx context.Context, userId string, productId string, quantity int) (models.CartLine, error) {
	args := m.Called(ctx, userId, productId, quantity)
	return args.Get(0).(models.CartLine), args.Error(1)
}

func (m *Storage) UpdateCartLineQuantity(ctx context.Context, lineId string, quantity int) error {
	args := m.Called(ctx, lineId, quantity)
	return args.Error(0)
}

func (m *Storage) DeleteCartLine(ctx context.Context, lineId string) error {
	args := m.Called(ctx, lineId)
	return args.Error(0)
}

func (m *Storage) ClearCart(ctx context.Context, userId string) (int64, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.TxErr != nil {
		return m.TxErr
	}
	return fn(ctx)
}

func (m *Storage) Isolate(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
