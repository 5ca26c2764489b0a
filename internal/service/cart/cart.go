package cartservice

import (
	"b2bcart/internal/bulkimport"
	databaseerrors "b2bcart/internal/database"
	"b2bcart/internal/models"
	"b2bcart/internal/pricing"
	serviceerrors "b2bcart/internal/service"
	"b2bcart/pkg/lib/logger/sl"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

const msgProductNotFound = "Product not found"

type CartStorage interface {
	GetProduct(ctx context.Context, productId string) (models.Product, error)
	ListCartLines(ctx context.Context, userId string) ([]models.CartLineDetails, error)
	FindCartLine(ctx context.Context, lineId string) (models.CartLine, error)
	UpsertCartLine(ctx context.Context, userId string, productId string, quantity int) (models.CartLine, error)
	UpdateCartLineQuantity(ctx context.Context, lineId string, quantity int) error
	DeleteCartLine(ctx context.Context, lineId string) error
	ClearCart(ctx context.Context, userId string) (int64, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Isolate(ctx context.Context, fn func(ctx context.Context) error) error
}

type CartService struct {
	log        *slog.Logger
	storage    CartStorage
	aggregator *pricing.Aggregator
}

func New(log *slog.Logger, storage CartStorage, aggregator *pricing.Aggregator) *CartService {
	return &CartService{
		log:        log,
		storage:    storage,
		aggregator: aggregator,
	}
}

func (c *CartService) GetCart(ctx context.Context, userId string) (models.CartResponse, error) {
	const op = "service.cart.GetCart"
	log := c.log.With("op", op, "user_id", userId)

	if err := checkContext(ctx, log); err != nil {
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	cart, err := c.buildCart(ctx, userId)
	if err != nil {
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, translate(log, err, "Failed to get cart"))
	}

	return cart, nil
}

// AddItem adds quantity to the user's line for productId, creating the line if needed.
// The product lookup and the upsert share one transaction.
func (c *CartService) AddItem(ctx context.Context, userId string, productId string, quantity int) (models.CartResponse, error) {
	const op = "service.cart.AddItem"
	log := c.log.With("op", op, "user_id", userId, "product_id", productId)

	if err := checkContext(ctx, log); err != nil {
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	if !validQuantity(quantity) {
		log.Warn("invalid quantity", slog.Int("quantity", quantity))
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, serviceerrors.ErrInvalidQuantity)
	}

	var cart models.CartResponse
	err := c.storage.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.addLine(ctx, log, userId, productId, quantity); err != nil {
			return err
		}

		var err error
		cart, err = c.buildCart(ctx, userId)
		return err
	})
	if err != nil {
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, translate(log, err, "Failed to add item to cart"))
	}

	log.Info("item added", slog.Int("quantity", quantity))

	return cart, nil
}

// UpdateItem sets the quantity of a line owned by userId.
func (c *CartService) UpdateItem(ctx context.Context, userId string, lineId string, quantity int) (models.CartResponse, error) {
	const op = "service.cart.UpdateItem"
	log := c.log.With("op", op, "user_id", userId, "line_id", lineId)

	if err := checkContext(ctx, log); err != nil {
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	if !validQuantity(quantity) {
		log.Warn("invalid quantity", slog.Int("quantity", quantity))
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, serviceerrors.ErrInvalidQuantity)
	}

	var cart models.CartResponse
	err := c.storage.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.ownedLine(ctx, log, userId, lineId); err != nil {
			return err
		}

		if err := c.storage.UpdateCartLineQuantity(ctx, lineId, quantity); err != nil {
			return notFoundAs(err, serviceerrors.ErrCartItemNotFound)
		}

		var err error
		cart, err = c.buildCart(ctx, userId)
		return err
	})
	if err != nil {
		return models.CartResponse{}, fmt.Errorf("%s: %w", op, translate(log, err, "Failed to update cart item"))
	}

	return cart, nil
}

func (c *CartService) RemoveItem(ctx context.Context, userId string, lineId string) error {
	const op = "service.cart.RemoveItem"
	log := c.log.With("op", op, "user_id", userId, "line_id", lineId)

	if err := checkContext(ctx, log); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := c.storage.WithinTx(ctx, func(ctx context.Context) error {
		if err := c.ownedLine(ctx, log, userId, lineId); err != nil {
			return err
		}

		return notFoundAs(c.storage.DeleteCartLine(ctx, lineId), serviceerrors.ErrCartItemNotFound)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(log, err, "Failed to remove item from cart"))
	}

	return nil
}

// ClearCart removes every line of the user. Clearing an empty cart succeeds.
func (c *CartService) ClearCart(ctx context.Context, userId string) error {
	const op = "service.cart.ClearCart"
	log := c.log.With("op", op, "user_id", userId)

	if err := checkContext(ctx, log); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	removed, err := c.storage.ClearCart(ctx, userId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, translate(log, err, "Failed to clear cart"))
	}

	log.Info("cart cleared", slog.Int64("removed", removed))

	return nil
}

// BulkImport applies every parsable CSV row inside one transaction. A row that fails
// business validation is reported and skipped; any other failure rolls back the whole import.
func (c *CartService) BulkImport(ctx context.Context, userId string, content []byte) (models.BulkImportOutcome, error) {
	const op = "service.cart.BulkImport"
	log := c.log.With("op", op, "user_id", userId)

	if err := checkContext(ctx, log); err != nil {
		return models.BulkImportOutcome{}, fmt.Errorf("%s: %w", op, err)
	}

	parsed := bulkimport.Parse(content)
	if parsed.DataRows == 0 {
		log.Warn("import without data rows")
		return models.BulkImportOutcome{}, fmt.Errorf("%s: %w", op, serviceerrors.ErrEmptyImport)
	}

	var outcome models.BulkImportOutcome
	err := c.storage.WithinTx(ctx, func(ctx context.Context) error {
		rowErrors := slices.Clone(parsed.Errors)
		succeeded := 0

		for _, row := range parsed.Rows {
			err := c.storage.Isolate(ctx, func(ctx context.Context) error {
				return c.addLine(ctx, log, userId, row.ProductId, row.Quantity)
			})

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, serviceerrors.ErrProductNotFound):
				rowErrors = append(rowErrors, models.RowError{Row: row.Row, Message: msgProductNotFound})
			case errors.Is(err, serviceerrors.ErrInvalidQuantity):
				rowErrors = append(rowErrors, models.RowError{Row: row.Row, Message: bulkimport.MsgInvalidQuantity})
			default:
				return err
			}
		}

		slices.SortStableFunc(rowErrors, func(a, b models.RowError) int {
			return a.Row - b.Row
		})

		cart, err := c.buildCart(ctx, userId)
		if err != nil {
			return err
		}

		outcome = models.BulkImportOutcome{
			Succeeded: succeeded,
			Failed:    len(rowErrors),
			Errors:    rowErrors,
			Cart:      cart,
		}
		return nil
	})
	if err != nil {
		return models.BulkImportOutcome{}, fmt.Errorf("%s: %w", op, translate(log, err, "Failed to import cart"))
	}

	log.Info("bulk import finished",
		slog.Int("succeeded", outcome.Succeeded),
		slog.Int("failed", outcome.Failed),
	)

	return outcome, nil
}

func (c *CartService) addLine(ctx context.Context, log *slog.Logger, userId string, productId string, quantity int) error {
	if !validQuantity(quantity) {
		return serviceerrors.ErrInvalidQuantity
	}

	if _, err := c.storage.GetProduct(ctx, productId); err != nil {
		if errors.Is(err, databaseerrors.ErrNotFound) {
			log.Warn("product not found", slog.String("product_id", productId))
		}
		return notFoundAs(err, serviceerrors.ErrProductNotFound)
	}

	if _, err := c.storage.UpsertCartLine(ctx, userId, productId, quantity); err != nil {
		if errors.Is(err, databaseerrors.ErrConflict) {
			return serviceerrors.ErrInvalidQuantity
		}
		return notFoundAs(err, serviceerrors.ErrProductNotFound)
	}

	return nil
}

// ownedLine treats a line of another user exactly like a missing line.
func (c *CartService) ownedLine(ctx context.Context, log *slog.Logger, userId string, lineId string) error {
	line, err := c.storage.FindCartLine(ctx, lineId)
	if err != nil {
		return notFoundAs(err, serviceerrors.ErrCartItemNotFound)
	}

	if line.UserId != userId {
		log.Warn("cart line belongs to another user")
		return serviceerrors.ErrCartItemNotFound
	}

	return nil
}

func (c *CartService) buildCart(ctx context.Context, userId string) (models.CartResponse, error) {
	lines, err := c.storage.ListCartLines(ctx, userId)
	if err != nil {
		return models.CartResponse{}, err
	}

	return c.aggregator.Build(lines), nil
}

func validQuantity(quantity int) bool {
	return quantity > 0 && quantity <= models.MaxQuantity
}

func notFoundAs(err error, target error) error {
	if err != nil && errors.Is(err, databaseerrors.ErrNotFound) {
		return target
	}

	return err
}

func checkContext(ctx context.Context, log *slog.Logger) error {
	select {
	case <-ctx.Done():
		return translate(log, ctx.Err(), "unexpected error")
	default:
		return nil
	}
}

var businessErrors = []error{
	serviceerrors.ErrInvalidQuantity,
	serviceerrors.ErrProductNotFound,
	serviceerrors.ErrCartItemNotFound,
	serviceerrors.ErrEmptyImport,
}

// translate maps storage and context failures onto service errors. Business errors
// pass through; anything else is a transport failure and is logged at error level.
func translate(log *slog.Logger, err error, msg string) error {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			log.Warn(target.Error())
			return target
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		log.Warn("context canceled", sl.Err(err))
		return serviceerrors.ErrContextCanceled
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("deadline exceeded", sl.Err(err))
		return serviceerrors.ErrDeadlineExceeded
	default:
		log.Error(msg, sl.Err(err))
		return err
	}
}
