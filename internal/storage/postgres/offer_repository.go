package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
)

type offerRepository struct {
	db *sql.DB
}

// NewOfferRepository создаёт PostgreSQL-реализацию OfferRepository.
func NewOfferRepository(store *Store) domain.OfferRepository {
	return &offerRepository{db: store.DB()}
}

const offerColumns = `
	id, title, description, original_price_minor, offer_price_minor,
	discount_percentage, image_url, start_date, end_date, is_active,
	promoted_kind, promoted_id, limit_quantity, sold_quantity,
	version, created_at, updated_at`

func (r *offerRepository) Create(offer domain.DailyOffer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_offers (
			id, title, description, original_price_minor, offer_price_minor,
			discount_percentage, image_url, start_date, end_date, is_active,
			promoted_kind, promoted_id, limit_quantity, sold_quantity,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		offer.ID, offer.Title, offer.Description,
		offer.OriginalPriceMinor, offer.OfferPriceMinor,
		nullInt32(offer.DiscountPercentage), offer.ImageURL,
		domain.DateOnly(offer.StartDate), domain.DateOnly(offer.EndDate), offer.IsActive,
		string(offer.Promoted.Kind), offer.Promoted.ID,
		nullInt32(offer.LimitQuantity), offer.SoldQuantity,
		offer.Version, offer.CreatedAt, offer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert daily offer: %w", err)
	}

	return nil
}

func (r *offerRepository) Get(id string) (domain.DailyOffer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	offer, err := scanOffer(r.db.QueryRowContext(ctx, `
		SELECT`+offerColumns+`
		FROM daily_offers
		WHERE id = $1
	`, id))
	if err != nil {
		return domain.DailyOffer{}, err
	}
	return offer, nil
}

func (r *offerRepository) List() ([]domain.DailyOffer, error) {
	return r.list(`ORDER BY created_at DESC, id DESC`)
}

func (r *offerRepository) ListActive() ([]domain.DailyOffer, error) {
	return r.list(`WHERE is_active ORDER BY created_at DESC, id DESC`)
}

func (r *offerRepository) ListCurrent(day time.Time) ([]domain.DailyOffer, error) {
	return r.list(`
		WHERE is_active
		  AND start_date <= $1
		  AND end_date >= $1
		ORDER BY created_at DESC, id DESC
	`, domain.DateOnly(day))
}

func (r *offerRepository) ListByPromoted(item domain.PromotedItem) ([]domain.DailyOffer, error) {
	return r.list(`
		WHERE is_active
		  AND promoted_kind = $1
		  AND promoted_id = $2
		ORDER BY created_at DESC, id DESC
	`, string(item.Kind), item.ID)
}

func (r *offerRepository) Save(offer domain.DailyOffer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE daily_offers
		SET title = $1,
		    description = $2,
		    original_price_minor = $3,
		    offer_price_minor = $4,
		    discount_percentage = $5,
		    image_url = $6,
		    start_date = $7,
		    end_date = $8,
		    is_active = $9,
		    promoted_kind = $10,
		    promoted_id = $11,
		    limit_quantity = $12,
		    version = version + 1,
		    updated_at = $13
		WHERE id = $14
		  AND version = $15
	`,
		offer.Title, offer.Description,
		offer.OriginalPriceMinor, offer.OfferPriceMinor,
		nullInt32(offer.DiscountPercentage), offer.ImageURL,
		domain.DateOnly(offer.StartDate), domain.DateOnly(offer.EndDate), offer.IsActive,
		string(offer.Promoted.Kind), offer.Promoted.ID,
		nullInt32(offer.LimitQuantity), offer.UpdatedAt,
		offer.ID, offer.Version,
	)
	if err != nil {
		return fmt.Errorf("update daily offer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, offer.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOfferNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

// RecordSale инкрементирует продажи одним условным UPDATE: лимит проверяется
// в том же statement, конкурентные продажи не могут его превысить.
func (r *offerRepository) RecordSale(id string, qty int32) (domain.DailyOffer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	offer, err := scanOffer(r.db.QueryRowContext(ctx, `
		UPDATE daily_offers
		SET sold_quantity = sold_quantity + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND (limit_quantity IS NULL OR sold_quantity + $2 <= limit_quantity)
		RETURNING`+offerColumns+`
	`, id, qty))
	if err == nil {
		return offer, nil
	}
	if !errors.Is(err, domain.ErrOfferNotFound) {
		return domain.DailyOffer{}, err
	}

	// UPDATE никого не нашёл: различаем отсутствие предложения и лимит.
	exists, existsErr := r.exists(ctx, id)
	if existsErr != nil {
		return domain.DailyOffer{}, existsErr
	}
	if !exists {
		return domain.DailyOffer{}, domain.ErrOfferNotFound
	}
	return domain.DailyOffer{}, domain.ErrQuotaExceeded
}

func (r *offerRepository) list(tail string, args ...any) ([]domain.DailyOffer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT`+offerColumns+`
		FROM daily_offers
	`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily offers: %w", err)
	}
	defer rows.Close()

	offers := make([]domain.DailyOffer, 0)
	for rows.Next() {
		offer, err := scanOfferRows(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily offers: %w", err)
	}

	return offers, nil
}

func (r *offerRepository) exists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM daily_offers WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check daily offer exists: %w", err)
}

func scanOffer(row *sql.Row) (domain.DailyOffer, error) {
	offer, err := scanOfferFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DailyOffer{}, domain.ErrOfferNotFound
		}
		return domain.DailyOffer{}, fmt.Errorf("select daily offer: %w", err)
	}
	return offer, nil
}

func scanOfferRows(rows *sql.Rows) (domain.DailyOffer, error) {
	offer, err := scanOfferFrom(rows)
	if err != nil {
		return domain.DailyOffer{}, fmt.Errorf("scan daily offer row: %w", err)
	}
	return offer, nil
}

func scanOfferFrom(s orderScanner) (domain.DailyOffer, error) {
	var (
		offer    domain.DailyOffer
		discount sql.NullInt32
		kind     string
		limit    sql.NullInt32
	)

	if err := s.Scan(
		&offer.ID, &offer.Title, &offer.Description,
		&offer.OriginalPriceMinor, &offer.OfferPriceMinor,
		&discount, &offer.ImageURL, &offer.StartDate, &offer.EndDate, &offer.IsActive,
		&kind, &offer.Promoted.ID, &limit, &offer.SoldQuantity,
		&offer.Version, &offer.CreatedAt, &offer.UpdatedAt,
	); err != nil {
		return domain.DailyOffer{}, err
	}

	offer.Promoted.Kind = domain.PromotedKind(kind)
	if discount.Valid {
		v := discount.Int32
		offer.DiscountPercentage = &v
	}
	if limit.Valid {
		v := limit.Int32
		offer.LimitQuantity = &v
	}

	return offer, nil
}

func nullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}

var _ domain.OfferRepository = (*offerRepository)(nil)
