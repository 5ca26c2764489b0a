package cartservice_test

import (
	databaseerrors "b2bcart/internal/database"
	"b2bcart/internal/models"
	serviceerrors "b2bcart/internal/service"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memStorage is a serializable in-memory stand-in for Postgres: one transaction at a
// time, with rollback of both whole transactions and savepoints.
type memStorage struct {
	txMu sync.Mutex

	mu       sync.Mutex
	products map[string]models.Product
	lines    map[string]models.CartLine
	seq      int

	failUpsertFor string
}

func newMemStorage(products ...models.Product) *memStorage {
	s := &memStorage{
		products: make(map[string]models.Product),
		lines:    make(map[string]models.CartLine),
	}
	for _, p := range products {
		s.products[p.Id] = p
	}
	return s
}

func (s *memStorage) snapshot() map[string]models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.lines)
}

func (s *memStorage) restore(lines map[string]models.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = lines
}

func (s *memStorage) GetProduct(_ context.Context, productId string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productId]
	if !ok {
		return models.Product{}, databaseerrors.ErrNotFound
	}
	return p, nil
}

func (s *memStorage) ListCartLines(_ context.Context, userId string) ([]models.CartLineDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CartLineDetails
	for _, l := range s.lines {
		if l.UserId == userId {
			out = append(out, models.CartLineDetails{Line: l, Product: s.products[l.ProductId]})
		}
	}

	slices.SortFunc(out, func(a, b models.CartLineDetails) int {
		return a.Line.CreatedAt.Compare(b.Line.CreatedAt)
	})
	return out, nil
}

func (s *memStorage) FindCartLine(_ context.Context, lineId string) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lines[lineId]
	if !ok {
		return models.CartLine{}, databaseerrors.ErrNotFound
	}
	return l, nil
}

func (s *memStorage) UpsertCartLine(_ context.Context, userId string, productId string, quantity int) (models.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if productId == s.failUpsertFor {
		return models.CartLine{}, errors.New("connection lost")
	}

	for id, l := range s.lines {
		if l.UserId == userId && l.ProductId == productId {
			l.Quantity += quantity
			s.lines[id] = l
			return l, nil
		}
	}

	s.seq++
	l := models.CartLine{
		Id:        fmt.Sprintf("line-%d", s.seq),
		UserId:    userId,
		ProductId: productId,
		Quantity:  quantity,
		CreatedAt: time.Unix(int64(s.seq), 0),
	}
	s.lines[l.Id] = l
	return l, nil
}

func (s *memStorage) UpdateCartLineQuantity(_ context.Context, lineId string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lines[lineId]
	if !ok {
		return databaseerrors.ErrNotFound
	}
	l.Quantity = quantity
	s.lines[lineId] = l
	return nil
}

func (s *memStorage) DeleteCartLine(_ context.Context, lineId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[lineId]; !ok {
		return databaseerrors.ErrNotFound
	}
	delete(s.lines, lineId)
	return nil
}

func (s *memStorage) ClearCart(_ context.Context, userId string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, l := range s.lines {
		if l.UserId == userId {
			delete(s.lines, id)
			n++
		}
	}
	return n, nil
}

func (s *memStorage) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	before := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(before)
		return err
	}
	return nil
}

func (s *memStorage) Isolate(ctx context.Context, fn func(ctx context.Context) error) error {
	before := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(before)
		return err
	}
	return nil
}

func (s *memStorage) linesOf(userId string) []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CartLine
	for _, l := range s.lines {
		if l.UserId == userId {
			out = append(out, l)
		}
	}
	return out
}

func TestAddItem_RepeatedAddsKeepOneLine(t *testing.T) {
	storage := newMemStorage(product("p1", "12.34"))
	svc := newTestService(storage)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userId, "p1", 2)
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, userId, "p1", 5)
	require.NoError(t, err)

	lines := storage.linesOf(userId)
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)

	require.Len(t, cart.Items, 1)
	assert.True(t, cart.Items[0].LineTotal.Equal(money("86.38")))
}

func TestAddItem_ConcurrentAddsForSamePair(t *testing.T) {
	storage := newMemStorage(product("p1", "1.00"))
	svc := newTestService(storage)

	const N = 50
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < N; i++ {
		g.Go(func() error {
			_, err := svc.AddItem(ctx, userId, "p1", 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	lines := storage.linesOf(userId)
	require.Len(t, lines, 1)
	assert.Equal(t, N, lines[0].Quantity)
}

func TestGetCart_KeepsInsertionOrder(t *testing.T) {
	storage := newMemStorage(product("p1", "1.00"), product("p2", "2.00"), product("p3", "3.00"))
	svc := newTestService(storage)
	ctx := context.Background()

	for _, id := range []string{"p3", "p1", "p2"} {
		_, err := svc.AddItem(ctx, userId, id, 1)
		require.NoError(t, err)
	}
	_, err := svc.AddItem(ctx, userId, "p3", 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		cart, err := svc.GetCart(ctx, userId)
		require.NoError(t, err)

		got := make([]string, 0, len(cart.Items))
		for _, it := range cart.Items {
			got = append(got, it.ProductId)
		}
		assert.Equal(t, []string{"p3", "p1", "p2"}, got)
		assert.Equal(t, 3, cart.ItemCount)
		assert.Equal(t, 7, cart.TotalQuantity)
	}
}

func TestUpdateItem_OtherUsersLineIsInvisible(t *testing.T) {
	storage := newMemStorage(product("p1", "1.00"))
	svc := newTestService(storage)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "owner", "p1", 1)
	require.NoError(t, err)
	foreign := storage.linesOf("owner")[0].Id

	_, err = svc.UpdateItem(ctx, userId, foreign, 9)
	assert.ErrorIs(t, err, serviceerrors.ErrCartItemNotFound)

	_, err = svc.UpdateItem(ctx, userId, "line-does-not-exist", 9)
	assert.ErrorIs(t, err, serviceerrors.ErrCartItemNotFound)

	err = svc.RemoveItem(ctx, userId, foreign)
	assert.ErrorIs(t, err, serviceerrors.ErrCartItemNotFound)

	assert.Equal(t, 1, storage.linesOf("owner")[0].Quantity)
}

func TestClearCart_Idempotent(t *testing.T) {
	storage := newMemStorage(product("p1", "1.00"))
	svc := newTestService(storage)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userId, "p1", 1)
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(ctx, userId))
	require.NoError(t, svc.ClearCart(ctx, userId))

	cart, err := svc.GetCart(ctx, userId)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())
}

func TestBulkImport_RowsWithoutHeader(t *testing.T) {
	storage := newMemStorage(product("p1", "100.00"), product("p2", "50.00"), product("p5", "10.00"))
	svc := newTestService(storage)

	content := []byte("p1,1\r\np2,2\r\nnope,1\r\np1,x\r\np5,3\r\n")
	outcome, err := svc.BulkImport(context.Background(), userId, content)
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.Succeeded)
	assert.Equal(t, 2, outcome.Failed)
	assert.Equal(t, []models.RowError{
		{Row: 3, Message: "Product not found"},
		{Row: 4, Message: "quantity must be a positive integer"},
	}, outcome.Errors)
	assert.Len(t, storage.linesOf(userId), 3)
	assert.True(t, outcome.Cart.Subtotal.Equal(money("230.00")))
}

func TestBulkImport_InfrastructureFailureRollsBack(t *testing.T) {
	storage := newMemStorage(product("p1", "1.00"), product("p2", "1.00"))
	storage.failUpsertFor = "p2"
	svc := newTestService(storage)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userId, "p1", 1)
	require.NoError(t, err)

	_, err = svc.BulkImport(ctx, userId, []byte("p1,5\np2,1\n"))
	require.Error(t, err)

	lines := storage.linesOf(userId)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}
