package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `id, user_id, shop_id, status, receiver, payment_id, created_by_id, updated_by_id, created_at, updated_at`

// LoadCartLines reads the user's cart items together with their SKU and
// product. Items owned by other users are simply not returned.
func (r *Repo) LoadCartLines(ctx context.Context, userID int64, cartItemIDs []int64) ([]CartLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT ci.id, ci.user_id, ci.sku_id, ci.quantity,
		       s.product_id, s.value, s.price, s.stock, s.image, s.created_by_id, s.updated_at,
		       p.name, p.published_at, p.deleted_at
		FROM cart_items ci
		JOIN skus s ON s.id = ci.sku_id
		JOIN products p ON p.id = s.product_id
		WHERE ci.user_id = $1 AND ci.id = ANY($2)
		ORDER BY ci.id`, userID, cartItemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []CartLine
	var productIDs []int64
	seen := map[int64]bool{}
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.SKUID, &l.Quantity,
			&l.SKU.ProductID, &l.SKU.Value, &l.SKU.Price, &l.SKU.Stock, &l.SKU.Image, &l.SKU.CreatedByID, &l.SKU.UpdatedAt,
			&l.Product.Name, &l.Product.PublishedAt, &l.Product.DeletedAt,
		); err != nil {
			return nil, err
		}
		l.SKU.ID = l.SKUID
		l.Product.ID = l.SKU.ProductID
		if !seen[l.Product.ID] {
			seen[l.Product.ID] = true
			productIDs = append(productIDs, l.Product.ID)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return lines, nil
	}

	translations, err := r.loadTranslations(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i].Product.Translations = translations[lines[i].Product.ID]
	}
	return lines, nil
}

func (r *Repo) loadTranslations(ctx context.Context, productIDs []int64) (map[int64][]ProductTranslation, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, language_id, name, description
		FROM product_translations
		WHERE product_id = ANY($1) AND deleted_at IS NULL
		ORDER BY id`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]ProductTranslation{}
	for rows.Next() {
		var t ProductTranslation
		var productID int64
		if err := rows.Scan(&t.ID, &productID, &t.LanguageID, &t.Name, &t.Description); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], t)
	}
	return out, rows.Err()
}

// CreateCheckout writes one checkout atomically: the conditional stock
// decrements, one PENDING payment, one PENDING_PAYMENT order per group with
// its snapshots, and the removal of the consumed cart items. A stock row
// that changed since it was read fails the whole transaction with
// ErrVersionConflict.
func (r *Repo) CreateCheckout(ctx context.Context, p CheckoutParams) ([]Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// p.Stock is sorted by SKU id, so concurrent checkouts take row locks in the same order.
	for _, d := range p.Stock {
		ct, err := tx.Exec(ctx, `
			UPDATE skus SET stock = stock - $2, updated_at = clock_timestamp()
			WHERE id = $1 AND stock >= $2 AND updated_at = $3`,
			d.SKUID, d.Quantity, d.Version)
		if err != nil {
			return nil, err
		}
		if ct.RowsAffected() != 1 {
			return nil, fmt.Errorf("sku %d: %w", d.SKUID, ErrVersionConflict)
		}
	}

	var paymentID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO payments(status) VALUES ($1) RETURNING id`, string(PaymentPending),
	).Scan(&paymentID); err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(p.Groups))
	for _, g := range p.Groups {
		o := Order{
			UserID:      p.UserID,
			ShopID:      g.ShopID,
			Status:      StatusPendingPayment,
			Receiver:    g.Receiver,
			PaymentID:   paymentID,
			CreatedByID: p.UserID,
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO orders(user_id, shop_id, status, receiver, payment_id, created_by_id)
			VALUES ($1, $2, $3, $4, $5, $1)
			RETURNING id, created_at, updated_at`,
			o.UserID, o.ShopID, string(o.Status), o.Receiver, paymentID,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}

		for _, l := range g.Lines {
			s := SnapshotOf(l)
			s.OrderID = o.ID
			if err := tx.QueryRow(ctx, `
				INSERT INTO product_sku_snapshots(order_id, product_id, product_name, product_translations, sku_price, sku_value, image, sku_id, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id, created_at`,
				s.OrderID, s.ProductID, s.ProductName, s.ProductTranslations, s.SKUPrice, s.SKUValue, s.Image, s.SKUID, s.Quantity,
			).Scan(&s.ID, &s.CreatedAt); err != nil {
				return nil, err
			}
			o.Items = append(o.Items, s)
		}
		out = append(out, o)
	}

	ids := p.CartItemIDs()
	ct, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`, p.UserID, ids)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() != int64(len(ids)) {
		// another checkout consumed some of these items first
		return nil, ErrCartItemNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListOrders(ctx context.Context, userID int64, p ListParams) (OrderPage, error) {
	p = p.Normalize()
	var status *string
	if p.Status != "" {
		s := string(p.Status)
		status = &s
	}

	var total int
	if err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE user_id = $1 AND deleted_at IS NULL AND ($2::text IS NULL OR status = $2)`,
		userID, status,
	).Scan(&total); err != nil {
		return OrderPage{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND deleted_at IS NULL AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		userID, status, p.Limit, (p.Page-1)*p.Limit)
	if err != nil {
		return OrderPage{}, err
	}
	list, err := collectOrders(rows)
	if err != nil {
		return OrderPage{}, err
	}
	if err := attachItems(ctx, r.DB, list); err != nil {
		return OrderPage{}, err
	}
	return NewOrderPage(list, total, p), nil
}

func (r *Repo) GetOrder(ctx context.Context, userID, orderID int64) (Order, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, orderID, userID), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	list := []Order{o}
	if err := attachItems(ctx, r.DB, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

// GetPayment loads a payment with all of its orders and their snapshots.
func (r *Repo) GetPayment(ctx context.Context, paymentID int64) (Payment, error) {
	var p Payment
	var status string
	err := r.DB.QueryRow(ctx,
		`SELECT id, status, created_at, updated_at FROM payments WHERE id = $1`, paymentID,
	).Scan(&p.ID, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	if err != nil {
		return Payment{}, err
	}
	p.Status = PaymentStatus(status)

	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payment_id = $1 AND deleted_at IS NULL
		ORDER BY id`, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.Orders, err = collectOrders(rows); err != nil {
		return Payment{}, err
	}
	if err := attachItems(ctx, r.DB, p.Orders); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func scanOrder(row pgx.Row, o *Order) error {
	var status string
	if err := row.Scan(
		&o.ID, &o.UserID, &o.ShopID, &status, &o.Receiver, &o.PaymentID,
		&o.CreatedByID, &o.UpdatedByID, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return err
	}
	o.Status = OrderStatus(status)
	return nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func attachItems(ctx context.Context, q querier, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, product_translations, sku_price, sku_value, image, sku_id, quantity, created_at
		FROM product_sku_snapshots
		WHERE order_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	byOrder := map[int64][]ProductSKUSnapshot{}
	for rows.Next() {
		var s ProductSKUSnapshot
		if err := rows.Scan(
			&s.ID, &s.OrderID, &s.ProductID, &s.ProductName, &s.ProductTranslations,
			&s.SKUPrice, &s.SKUValue, &s.Image, &s.SKUID, &s.Quantity, &s.CreatedAt,
		); err != nil {
			return err
		}
		byOrder[s.OrderID] = append(byOrder[s.OrderID], s)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range list {
		list[i].Items = byOrder[list[i].ID]
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
