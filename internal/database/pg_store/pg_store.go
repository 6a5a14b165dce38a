package pg_store

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// PgStore keeps auctions and bids in PostgreSQL. The auction row lock
// (SELECT ... FOR UPDATE) makes the bid append and the price update one
// transaction.
type PgStore struct {
	db *sql.DB
}

var _ store.Store = (*PgStore)(nil)

func NewPgStore(db *sql.DB) *PgStore { return &PgStore{db: db} }

// Migrate creates the tables when they do not exist yet.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	zap.L().Info("pg.migrated")
	return nil
}

const auctionColumns = `id, name, description, starting_price, current_price, min_bid_increment,
	start_time, end_time, created_at, seller, status`

const bidColumns = `b.id, b.auction_id, b.bidder, b.price, b.placed_at, b.seq`

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (models.Auction, error) {
	var a models.Auction
	var status string
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.StartingPrice, &a.CurrentPrice, &a.MinBidIncrement,
		&a.StartTime, &a.EndTime, &a.CreatedAt, &a.Seller, &status)
	a.Status = models.Status(status)
	return a, err
}

func scanBid(row scanner) (models.Bid, error) {
	var b models.Bid
	err := row.Scan(&b.ID, &b.AuctionID, &b.Bidder, &b.Price, &b.Timestamp, &b.Seq)
	return b, err
}

func (s *PgStore) readTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

func (s *PgStore) ListActive(ctx context.Context) ([]models.Auction, error) {
	tx, err := s.readTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+auctionColumns+`
		  FROM auctions
		 WHERE status IN ('pending', 'active')
		 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	out := []models.Auction{}
	index := map[string]int{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list active auctions: scan: %w", err)
		}
		a.Bids = []models.Bid{}
		index[a.ID] = len(out)
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}

	bidRows, err := tx.QueryContext(ctx, `SELECT `+bidColumns+`
		  FROM bids b
		  JOIN auctions a ON a.id = b.auction_id
		 WHERE a.status IN ('pending', 'active')`)
	if err != nil {
		return nil, fmt.Errorf("list active bids: %w", err)
	}
	defer bidRows.Close()
	for bidRows.Next() {
		b, err := scanBid(bidRows)
		if err != nil {
			return nil, fmt.Errorf("list active bids: scan: %w", err)
		}
		if i, ok := index[b.AuctionID]; ok {
			out[i].Bids = append(out[i].Bids, b)
		}
	}
	if err := bidRows.Err(); err != nil {
		return nil, fmt.Errorf("list active bids: %w", err)
	}

	for i := range out {
		models.SortBids(out[i].Bids)
	}
	return out, tx.Commit()
}

func (s *PgStore) Get(ctx context.Context, id string) (models.Auction, error) {
	tx, err := s.readTx(ctx)
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, err)
	}
	defer tx.Rollback()

	a, err := scanAuction(tx.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+bidColumns+` FROM bids b WHERE b.auction_id = $1 ORDER BY b.seq`, id)
	if err != nil {
		return models.Auction{}, fmt.Errorf("get bids of %s: %w", id, err)
	}
	defer rows.Close()

	a.Bids = []models.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return models.Auction{}, fmt.Errorf("get bids of %s: scan: %w", id, err)
		}
		a.Bids = append(a.Bids, b)
	}
	if err := rows.Err(); err != nil {
		return models.Auction{}, fmt.Errorf("get bids of %s: %w", id, err)
	}
	models.SortBids(a.Bids)
	return a, tx.Commit()
}

func (s *PgStore) Create(ctx context.Context, a models.Auction) error {
	const ins = `INSERT INTO auctions (id, name, name_key, description, starting_price, current_price,
	                      min_bid_increment, start_time, end_time, created_at, seller, status)
	     VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.db.ExecContext(ctx, ins,
		a.ID, a.Name, models.NormalizeName(a.Name), a.Description, a.StartingPrice, a.CurrentPrice,
		a.MinBidIncrement, a.StartTime.UTC(), a.EndTime.UTC(), a.CreatedAt.UTC(), a.Seller, string(a.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create auction %s (%s): %w", a.ID, pgErr.ConstraintName, store.ErrAlreadyExists)
		}
		return fmt.Errorf("create auction %s: %w", a.ID, err)
	}
	return nil
}

func (s *PgStore) RecordBid(ctx context.Context, b models.Bid) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record bid %s: %w", b.ID, err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM auctions WHERE id = $1 FOR UPDATE`, b.AuctionID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record bid for auction %s: %w", b.AuctionID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("record bid %s: lock auction: %w", b.ID, err)
	}

	const ins = `INSERT INTO bids (id, auction_id, bidder, price, placed_at, seq)
	     VALUES ($1, $2, $3, $4, $5, (SELECT COUNT(*) FROM bids WHERE auction_id = $2))
	ON CONFLICT (id) DO NOTHING`
	res, err := tx.ExecContext(ctx, ins, b.ID, b.AuctionID, b.Bidder, b.Price, b.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("record bid %s: insert: %w", b.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already recorded.
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `UPDATE auctions SET current_price = $1 WHERE id = $2`, b.Price, b.AuctionID); err != nil {
		return fmt.Errorf("record bid %s: update price: %w", b.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record bid %s: commit: %w", b.ID, err)
	}
	return nil
}

func (s *PgStore) NameIsTaken(ctx context.Context, normalizedName string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM auctions WHERE name_key = $1)`, normalizedName).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check auction name: %w", err)
	}
	return taken, nil
}

func (s *PgStore) MarkEnded(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE auctions SET status = $1 WHERE id = $2`, string(models.StatusEnded), id)
	if err != nil {
		return fmt.Errorf("mark auction %s ended: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark auction %s ended: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark auction %s ended: %w", id, store.ErrNotFound)
	}
	return nil
}
