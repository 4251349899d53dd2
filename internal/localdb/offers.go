package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/sqlite"
	"github.com/stephenafamo/bob/dialect/sqlite/dialect"
	"github.com/stephenafamo/bob/dialect/sqlite/dm"
	"github.com/stephenafamo/bob/dialect/sqlite/im"
	"github.com/stephenafamo/bob/dialect/sqlite/sm"
	"github.com/stephenafamo/scan"
)

const (
	offersTable     = "offers"
	insertBatchSize = 100
)

var ErrOfferNotFound = errors.New("offer not found")

var offerColumns = []string{
	"id", "place_name", "offer_description", "shop_image", "recommendation_reason",
	"latitude", "longitude", "distance", "featured",
}

// Offer is a cached merchant promotion with a fixed location.
type Offer struct {
	Seq                  int64   `db:"seq"`
	ID                   string  `db:"id"`
	PlaceName            string  `db:"place_name"`
	Description          string  `db:"offer_description"`
	ShopImage            string  `db:"shop_image"`
	RecommendationReason string  `db:"recommendation_reason"`
	Latitude             float64 `db:"latitude"`
	Longitude            float64 `db:"longitude"`
	Distance             float64 `db:"distance"`
	Featured             bool    `db:"featured"`
}

type OfferStore struct {
	db bob.DB
}

func offerValues(o Offer) bob.Mod[*dialect.InsertQuery] {
	return im.Values(
		sqlite.Arg(o.ID),
		sqlite.Arg(o.PlaceName),
		sqlite.Arg(o.Description),
		sqlite.Arg(o.ShopImage),
		sqlite.Arg(o.RecommendationReason),
		sqlite.Arg(o.Latitude),
		sqlite.Arg(o.Longitude),
		sqlite.Arg(o.Distance),
		sqlite.Arg(o.Featured),
	)
}

// ReplaceAll swaps the whole catalog in one transaction. Readers see either the old or the
// new catalog, never a mix.
func (s *OfferStore) ReplaceAll(ctx context.Context, offers []Offer) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = bob.Exec(ctx, tx, sqlite.Delete(dm.From(offersTable))); err != nil {
		return fmt.Errorf("clear offers: %w", err)
	}

	for start := 0; start < len(offers); start += insertBatchSize {
		end := min(start+insertBatchSize, len(offers))

		queryMods := []bob.Mod[*dialect.InsertQuery]{im.Into(offersTable, offerColumns...)}
		for _, o := range offers[start:end] {
			queryMods = append(queryMods, offerValues(o))
		}
		// Duplicate ids within one catalog keep the last entry.
		queryMods = append(queryMods, im.OnConflict("id").DoUpdate(im.SetExcluded(offerColumns[1:]...)))

		if _, err = bob.Exec(ctx, tx, sqlite.Insert(queryMods...)); err != nil {
			return fmt.Errorf("insert offers: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetAll returns the cached catalog in the order it was stored.
func (s *OfferStore) GetAll(ctx context.Context) ([]Offer, error) {
	q := sqlite.Select(
		sm.Columns(append([]any{"seq"}, toAny(offerColumns)...)...),
		sm.From(offersTable),
		sm.OrderBy("seq"),
	)
	return bob.All(ctx, s.db, q, scan.StructMapper[Offer]())
}

func (s *OfferStore) Get(ctx context.Context, id string) (*Offer, error) {
	q := sqlite.Select(
		sm.Columns(append([]any{"seq"}, toAny(offerColumns)...)...),
		sm.From(offersTable),
		sm.Where(sqlite.Quote("id").EQ(sqlite.Arg(id))),
	)
	offer, err := bob.One(ctx, s.db, q, scan.StructMapper[Offer]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// Upsert inserts or refreshes one offer, keeping its catalog position when it exists.
func (s *OfferStore) Upsert(ctx context.Context, offer Offer) error {
	q := sqlite.Insert(
		im.Into(offersTable, offerColumns...),
		offerValues(offer),
		im.OnConflict("id").DoUpdate(im.SetExcluded(offerColumns[1:]...)),
	)
	_, err := bob.Exec(ctx, s.db, q)
	return err
}

func toAny(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = c
	}
	return out
}
