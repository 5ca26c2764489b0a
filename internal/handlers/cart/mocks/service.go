package mocks

import (
	"b2bcart/internal/models"
	"context"

	"github.com/stretchr/testify/mock"
)

type Service struct {
	mock.Mock
}

func (m *Service) GetCart(ctx context.Context, userId string) (models.CartResponse, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(models.CartResponse), args.Error(1)
}

func (m *Service) AddItem(ctx context.Context, userId string, productId string, quantity int) (models.CartResponse, error) {
	args := m.Called(ctx, userId, productId, quantity)
	return args.Get(0).(models.CartResponse), args.Error(1)
}

func (m *Service) UpdateItem(ctx context.Context, userId string, lineId string, quantity int) (models.CartResponse, error) {
	args := m.Called(ctx, userId, lineId, quantity)
	return args.Get(0).(models.CartResponse), args.Error(1)
}

func (m *Service) RemoveItem(ctx context.Context, userId string, lineId string) error {
	args := m.Called(ctx, userId, lineId)
	return args.Error(0)
}

func (m *Service) ClearCart(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *Service) BulkImport(ctx context.Context, userId string, content []byte) (models.BulkImportOutcome, error) {
	args := m.Called(ctx, userId, content)
	return args.Get(0).(models.BulkImportOutcome), args.Error(1)
}
