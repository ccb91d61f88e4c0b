package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/foozao/lao-cinema-sub007/internal/pricing"
)

func (s *Store) FindTier(ctx context.Context, id string) (*pricing.Tier, error) {
	t := pricing.Tier{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name_en, name_lo, price_lak, is_active, sort_order FROM pricing_tiers WHERE id = $1
	`, id).Scan(&t.NameEN, &t.NameLO, &t.PriceLAK, &t.IsActive, &t.SortOrder)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return nil, pricing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const promoColumns = `id, code, discount_type, discount_value, movie_id, valid_from, valid_to,
	max_uses, uses_count, is_active, created_at`

func scanPromo(sc rowScanner) (*pricing.PromoCode, error) {
	var (
		p        pricing.PromoCode
		typ      string
		movieID  sql.NullString
		from, to sql.NullTime
		maxUses  sql.NullInt32
	)
	err := sc.Scan(&p.ID, &p.Code, &typ, &p.DiscountValue, &movieID, &from, &to,
		&maxUses, &p.UsesCount, &p.IsActive, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.DiscountType = pricing.DiscountType(typ)
	p.MovieID = stringPtr(movieID)
	p.ValidFrom = timePtr(from)
	p.ValidTo = timePtr(to)
	if maxUses.Valid {
		v := int(maxUses.Int32)
		p.MaxUses = &v
	}
	return &p, nil
}

func (s *Store) FindPromoByCode(ctx context.Context, code string) (*pricing.PromoCode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+promoColumns+` FROM promo_codes WHERE upper(code) = upper($1)
	`, pricing.NormalizeCode(code))
	p, err := scanPromo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pricing.ErrNotFound
	}
	return p, err
}

// IncrementPromoUse bumps uses_count in one statement so concurrent
// redemptions cannot push it past max_uses.
func (s *Store) IncrementPromoUse(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE promo_codes SET uses_count = uses_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR uses_count < max_uses)
	`, id)
	if isMalformedID(err) {
		return pricing.ErrNotFound
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM promo_codes WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pricing.ErrNotFound
	}
	return pricing.ErrUseCapReached
}

func (s *Store) ListPromos(ctx context.Context) ([]pricing.PromoCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pricing.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) CreatePromo(ctx context.Context, p pricing.PromoCode) error {
	var maxUses sql.NullInt32
	if p.MaxUses != nil {
		maxUses = sql.NullInt32{Int32: int32(*p.MaxUses), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO promo_codes (id, code, discount_type, discount_value, movie_id, valid_from, valid_to,
			max_uses, uses_count, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, pricing.NormalizeCode(p.Code), string(p.DiscountType), p.DiscountValue, nullString(p.MovieID),
		nullTime(p.ValidFrom), nullTime(p.ValidTo), maxUses, p.UsesCount, p.IsActive, p.CreatedAt)
	if isUniqueViolation(err) {
		return pricing.ErrDuplicateCode
	}
	return err
}
