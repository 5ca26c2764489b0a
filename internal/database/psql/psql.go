package psql

import (
	databaseerrors "b2bcart/internal/database"
	"b2bcart/internal/database/psql/migrations"
	"b2bcart/internal/models"
	"b2bcart/pkg/lib/logger/sl"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqNumericOutOfRange   = "22003"
	pqInvalidText         = "22P02"
)

type Storage struct {
	log *slog.Logger
	db  *sqlx.DB
}

// New connects to Postgres and applies the embedded migrations.
func New(log *slog.Logger, connStr string) (*Storage, error) {
	const op = "database.psql.New"

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		log.With("op", op).Error("Error connect to database", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.Up(db.DB, "."); err != nil {
		log.With("op", op).Error("Error applying migrations", sl.Err(err))
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		log: log,
		db:  db,
	}, nil
}

func NewWithParams(log *slog.Logger, db *sqlx.DB) *Storage {
	return &Storage{
		log: log,
		db:  db,
	}
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	const op = "database.psql.Ping"

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type productRow struct {
	Id             string         `db:"id"`
	Sku            string         `db:"sku"`
	NameEn         string         `db:"name_en"`
	NameTh         string         `db:"name_th"`
	Price          models.Money   `db:"price"`
	Specifications []byte         `db:"specifications"`
	Images         pq.StringArray `db:"images"`
	CategoryId     *string        `db:"category_id"`
}

func (r productRow) toModel() (models.Product, error) {
	product := models.Product{
		Id:         r.Id,
		Sku:        r.Sku,
		NameEn:     r.NameEn,
		NameTh:     r.NameTh,
		Price:      r.Price,
		Images:     []string(r.Images),
		CategoryId: r.CategoryId,
	}
	if product.Images == nil {
		product.Images = []string{}
	}

	if len(r.Specifications) > 0 {
		if err := json.Unmarshal(r.Specifications, &product.Specifications); err != nil {
			return models.Product{}, fmt.Errorf("decode specifications of %s: %w", r.Id, err)
		}
	}

	return product, nil
}

type cartLineRow struct {
	models.CartLine
	Sku            string         `db:"sku"`
	NameEn         string         `db:"name_en"`
	NameTh         string         `db:"name_th"`
	Price          models.Money   `db:"price"`
	Specifications []byte         `db:"specifications"`
	Images         pq.StringArray `db:"images"`
	CategoryId     *string        `db:"category_id"`
}

func (s *Storage) GetProduct(ctx context.Context, productId string) (models.Product, error) {
	const op = "database.psql.GetProduct"
	log := s.log.With(
		"op", op,
		"product_id", productId,
	)

	if err := alive(ctx, log); err != nil {
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	var row productRow
	if err := sqlx.GetContext(ctx, s.ext(ctx), &row, `
		SELECT id, sku, name_en, name_th, price, specifications, images, category_id
		FROM products
		WHERE id=$1;
	`, productId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Product doesn't exists", sl.Err(databaseerrors.ErrNotFound))
			return models.Product{}, fmt.Errorf("%s: %w", op, databaseerrors.ErrNotFound)
		}

		log.Error("Error fetching product", sl.Err(err))
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	product, err := row.toModel()
	if err != nil {
		log.Error("Error decoding product", sl.Err(err))
		return models.Product{}, fmt.Errorf("%s: %w", op, err)
	}

	return product, nil
}

// ListCartLines returns the user's lines in insertion order, each joined with the current product row.
func (s *Storage) ListCartLines(ctx context.Context, userId string) ([]models.CartLineDetails, error) {
	const op = "database.psql.ListCartLines"
	log := s.log.With(
		"op", op,
		"user_id", userId,
	)

	if err := alive(ctx, log); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.ext(ctx).QueryxContext(ctx, `
		SELECT cl.id, cl.user_id, cl.product_id, cl.quantity, cl.created_at, cl.updated_at,
			p.sku, p.name_en, p.name_th, p.price, p.specifications, p.images, p.category_id
		FROM cart_lines AS cl
		JOIN products AS p
		ON p.id = cl.product_id
		WHERE cl.user_id=$1
		ORDER BY cl.created_at ASC, cl.id ASC;
	`, userId)
	if err != nil {
		log.Error("Failed to query cart lines", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	lines := make([]models.CartLineDetails, 0, 10)
	for rows.Next() {
		var row cartLineRow
		if err := rows.StructScan(&row); err != nil {
			log.Error("Failed to scan row", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		product, err := productRow{
			Id:             row.ProductId,
			Sku:            row.Sku,
			NameEn:         row.NameEn,
			NameTh:         row.NameTh,
			Price:          row.Price,
			Specifications: row.Specifications,
			Images:         row.Images,
			CategoryId:     row.CategoryId,
		}.toModel()
		if err != nil {
			log.Error("Failed to decode product", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lines = append(lines, models.CartLineDetails{
			Line:    row.CartLine,
			Product: product,
		})
	}
	if err := rows.Err(); err != nil {
		log.Error("Failed to iterate rows", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return lines, nil
}

// FindCartLine loads a line by id. Inside a transaction the row is locked until commit.
func (s *Storage) FindCartLine(ctx context.Context, lineId string) (models.CartLine, error) {
	const op = "database.psql.FindCartLine"
	log := s.log.With(
		"op", op,
		"line_id", lineId,
	)

	if err := alive(ctx, log); err != nil {
		return models.CartLine{}, fmt.Errorf("%s: %w", op, err)
	}

	query := `
		SELECT id, user_id, product_id, quantity, created_at, updated_at
		FROM cart_lines
		WHERE id=$1`
	if txFromContext(ctx) != nil {
		query += `
		FOR UPDATE`
	}

	var line models.CartLine
	if err := sqlx.GetContext(ctx, s.ext(ctx), &line, query, lineId); err != nil {
		if errors.Is(err, sql.ErrNoRows) || hasCode(err, pqInvalidText) {
			log.Warn("Cart line doesn't exists", sl.Err(databaseerrors.ErrNotFound))
			return models.CartLine{}, fmt.Errorf("%s: %w", op, databaseerrors.ErrNotFound)
		}

		log.Error("Error fetching cart line", sl.Err(err))
		return models.CartLine{}, fmt.Errorf("%s: %w", op, err)
	}

	return line, nil
}

// UpsertCartLine inserts a line or adds quantity to the existing (user, product) line.
func (s *Storage) UpsertCartLine(ctx context.Context, userId string, productId string, quantity int) (models.CartLine, error) {
	const op = "database.psql.UpsertCartLine"
	log := s.log.With(
		"op", op,
		"user_id", userId,
		"product_id", productId,
	)

	if err := alive(ctx, log); err != nil {
		return models.CartLine{}, fmt.Errorf("%s: %w", op, err)
	}

	var line models.CartLine
	if err := s.ext(ctx).QueryRowxContext(ctx, `
		INSERT INTO cart_lines (id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = clock_timestamp()
		RETURNING id, user_id, product_id, quantity, created_at, updated_at;
	`, uuid.NewString(), userId, productId, quantity).StructScan(&line); err != nil {
		switch {
		case hasCode(err, pqForeignKeyViolation):
			log.Warn("Product or user doesn't exists", sl.Err(err))
			return models.CartLine{}, fmt.Errorf("%s: %w", op, databaseerrors.ErrNotFound)
		case hasCode(err, pqCheckViolation), hasCode(err, pqNumericOutOfRange):
			log.Warn("Quantity rejected by constraint", sl.Err(err))
			return models.CartLine{}, fmt.Errorf("%s: %w", op, databaseerrors.ErrConflict)
		}

		log.Error("Failed to upsert cart line", sl.Err(err))
		return models.CartLine{}, fmt.Errorf("%s: %w", op, err)
	}

	return line, nil
}

func (s *Storage) UpdateCartLineQuantity(ctx context.Context, lineId string, quantity int) error {
	const op = "database.psql.UpdateCartLineQuantity"
	log := s.log.With(
		"op", op,
		"line_id", lineId,
	)

	if err := alive(ctx, log); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.ext(ctx).ExecContext(ctx, `
		UPDATE cart_lines
		SET quantity=$2, updated_at=clock_timestamp()
		WHERE id=$1;
	`, lineId, quantity)
	if err != nil {
		if hasCode(err, pqCheckViolation) || hasCode(err, pqNumericOutOfRange) {
			log.Warn("Quantity rejected by constraint", sl.Err(err))
			return fmt.Errorf("%s: %w", op, databaseerrors.ErrConflict)
		}

		log.Error("Failed to update cart line", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return affectedOne(res, op, log)
}

func (s *Storage) DeleteCartLine(ctx context.Context, lineId string) error {
	const op = "database.psql.DeleteCartLine"
	log := s.log.With(
		"op", op,
		"line_id", lineId,
	)

	if err := alive(ctx, log); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.ext(ctx).ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE id=$1;
	`, lineId)
	if err != nil {
		log.Error("Failed to delete cart line", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return affectedOne(res, op, log)
}

// ClearCart deletes every line of the user and reports how many were removed.
func (s *Storage) ClearCart(ctx context.Context, userId string) (int64, error) {
	const op = "database.psql.ClearCart"
	log := s.log.With(
		"op", op,
		"user_id", userId,
	)

	if err := alive(ctx, log); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.ext(ctx).ExecContext(ctx, `
		DELETE FROM cart_lines
		WHERE user_id=$1;
	`, userId)
	if err != nil {
		log.Error("Failed to clear cart", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		log.Error("Failed to read affected rows", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func alive(ctx context.Context, log *slog.Logger) error {
	select {
	case <-ctx.Done():
		log.Error("Context is over", sl.Err(ctx.Err()))
		return ctx.Err()
	default:
		return nil
	}
}

func affectedOne(res sql.Result, op string, log *slog.Logger) error {
	n, err := res.RowsAffected()
	if err != nil {
		log.Error("Failed to read affected rows", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		log.Warn("Cart line doesn't exists", sl.Err(databaseerrors.ErrNotFound))
		return fmt.Errorf("%s: %w", op, databaseerrors.ErrNotFound)
	}

	return nil
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}

	return false
}
