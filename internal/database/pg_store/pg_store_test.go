package pg_store

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	created = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	ends    = created.Add(time.Hour)

	auctionCols = []string{"id", "name", "description", "starting_price", "current_price", "min_bid_increment",
		"start_time", "end_time", "created_at", "seller", "status"}
	bidCols = []string{"id", "auction_id", "bidder", "price", "placed_at", "seq"}
)

func newMockStore(t *testing.T) (*PgStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPgStore(db), mock
}

func auctionRow(rows *sqlmock.Rows, id, name, price string) *sqlmock.Rows {
	return rows.AddRow(id, name, "", "100", price, "10", created, ends, created, "sam", "active")
}

func testAuction() models.Auction {
	return models.Auction{
		ID:              "a1",
		Name:            "Vintage Watch",
		StartingPrice:   decimal.NewFromInt(100),
		CurrentPrice:    decimal.NewFromInt(100),
		MinBidIncrement: decimal.NewFromInt(10),
		StartTime:       created,
		EndTime:         ends,
		CreatedAt:       created,
		Seller:          "sam",
		Status:          models.StatusActive,
	}
}

func TestPgStore_Migrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS auctions").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestPgStore_Create(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO auctions").
		WithArgs("a1", "Vintage Watch", "vintage watch", "", "100", "100", "10",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "sam", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), testAuction()))
}

func TestPgStore_CreateUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO auctions").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "auctions_name_key_key"})

	err := s.Create(context.Background(), testAuction())
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestPgStore_RecordBid(t *testing.T) {
	s, mock := newMockStore(t)
	bid := models.Bid{ID: "b1", AuctionID: "a1", Bidder: "ann", Price: decimal.NewFromInt(110), Timestamp: created}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM auctions WHERE id = \$1 FOR UPDATE`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectExec("INSERT INTO bids").
		WithArgs("b1", "a1", "ann", "110", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE auctions SET current_price = \$1 WHERE id = \$2`).
		WithArgs("110", "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.RecordBid(context.Background(), bid))
}

func TestPgStore_RecordBidDuplicateIsNoop(t *testing.T) {
	s, mock := newMockStore(t)
	bid := models.Bid{ID: "b1", AuctionID: "a1", Bidder: "ann", Price: decimal.NewFromInt(110), Timestamp: created}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auctions").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectExec("INSERT INTO bids").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.RecordBid(context.Background(), bid))
}

func TestPgStore_RecordBidUnknownAuction(t *testing.T) {
	s, mock := newMockStore(t)
	bid := models.Bid{ID: "b1", AuctionID: "nope", Bidder: "ann", Price: decimal.NewFromInt(1), Timestamp: created}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auctions").WithArgs("nope").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	require.ErrorIs(t, s.RecordBid(context.Background(), bid), store.ErrNotFound)
}

func TestPgStore_RecordBidRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	bid := models.Bid{ID: "b1", AuctionID: "a1", Bidder: "ann", Price: decimal.NewFromInt(110), Timestamp: created}
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auctions").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))
	mock.ExpectExec("INSERT INTO bids").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE auctions SET current_price").WillReturnError(boom)
	mock.ExpectRollback()

	require.ErrorIs(t, s.RecordBid(context.Background(), bid), boom)
}

func TestPgStore_Get(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM auctions WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(auctionRow(sqlmock.NewRows(auctionCols), "a1", "Vintage Watch", "120"))
	mock.ExpectQuery(`FROM bids b WHERE b.auction_id = \$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(bidCols).
			AddRow("b1", "a1", "ann", "110", created.Add(time.Minute), int64(0)).
			AddRow("b2", "a1", "bob", "120", created.Add(time.Minute), int64(1)))
	mock.ExpectCommit()

	a, err := s.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Vintage Watch", a.Name)
	assert.Equal(t, "120", a.CurrentPrice.String())
	assert.Equal(t, models.StatusActive, a.Status)
	require.Len(t, a.Bids, 2)
	assert.Equal(t, "b2", a.Bids[0].ID)
	assert.Equal(t, "b1", a.Bids[1].ID)
}

func TestPgStore_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM auctions WHERE id").WithArgs("nope").WillReturnRows(sqlmock.NewRows(auctionCols))
	mock.ExpectRollback()

	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPgStore_ListActive(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows(auctionCols)
	auctionRow(rows, "a1", "Lamp", "100")
	auctionRow(rows, "a2", "Desk", "110")

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE status IN \('pending', 'active'\)`).WillReturnRows(rows)
	mock.ExpectQuery("FROM bids b JOIN auctions a").WillReturnRows(sqlmock.NewRows(bidCols).
		AddRow("b1", "a2", "ann", "110", created, int64(0)))
	mock.ExpectCommit()

	list, err := s.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Empty(t, list[0].Bids)
	require.Len(t, list[1].Bids, 1)
	assert.Equal(t, "ann", list[1].Bids[0].Bidder)
}

func TestPgStore_NameIsTakenAndMarkEnded(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").WithArgs("lamp").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	taken, err := s.NameIsTaken(ctx, "lamp")
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectExec("UPDATE auctions SET status").WithArgs("ended", "a1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.MarkEnded(ctx, "a1"))

	mock.ExpectExec("UPDATE auctions SET status").WithArgs("ended", "nope").WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, s.MarkEnded(ctx, "nope"), store.ErrNotFound)
}
