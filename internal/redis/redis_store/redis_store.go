package redis_store

import (
	"auctionhouse/internal/models"
	"auctionhouse/internal/redis/redis_scripts"
	"auctionhouse/internal/store"
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps auctions and bids in Redis hashes. Mutations that touch
// more than one key run as Lua scripts; reads of one auction and its bid
// index run inside MULTI so they observe a single point in time.
type RedisStore struct {
	rdb *redis.Client
}

var _ store.Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) ListActive(ctx context.Context) ([]models.Auction, error) {
	ids, err := s.rdb.SMembers(ctx, activeAuctionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	if len(ids) == 0 {
		return []models.Auction{}, nil
	}

	auctions, err := s.load(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}
	sort.Slice(auctions, func(i, j int) bool {
		if !auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].CreatedAt.Before(auctions[j].CreatedAt)
		}
		return auctions[i].ID < auctions[j].ID
	})
	return auctions, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.Auction, error) {
	auctions, err := s.load(ctx, []string{id})
	if err != nil {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, err)
	}
	if len(auctions) == 0 {
		return models.Auction{}, fmt.Errorf("get auction %s: %w", id, store.ErrNotFound)
	}
	return auctions[0], nil
}

// load reads the given auctions with their histories. Ids with no auction
// hash are skipped.
func (s *RedisStore) load(ctx context.Context, ids []string) ([]models.Auction, error) {
	hashCmds := make([]*redis.MapStringStringCmd, len(ids))
	bidCmds := make([]*redis.StringSliceCmd, len(ids))
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			hashCmds[i] = pipe.HGetAll(ctx, auctionKey(id))
			bidCmds[i] = pipe.ZRange(ctx, auctionBidsKey(id), 0, -1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Bid hashes are written once and never change, so reading them after
	// EXEC cannot tear the snapshot.
	var allBidIDs []string
	for _, cmd := range bidCmds {
		allBidIDs = append(allBidIDs, cmd.Val()...)
	}
	bidsByID, err := s.loadBids(ctx, allBidIDs)
	if err != nil {
		return nil, err
	}

	out := make([]models.Auction, 0, len(ids))
	for i := range ids {
		fields := hashCmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		a, err := decodeAuction(fields)
		if err != nil {
			return nil, err
		}
		a.Bids = make([]models.Bid, 0, len(bidCmds[i].Val()))
		for _, bidID := range bidCmds[i].Val() {
			if b, ok := bidsByID[bidID]; ok {
				a.Bids = append(a.Bids, b)
			}
		}
		models.SortBids(a.Bids)
		out = append(out, a)
	}
	return out, nil
}

func (s *RedisStore) loadBids(ctx context.Context, ids []string) (map[string]models.Bid, error) {
	out := make(map[string]models.Bid, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, bidKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		b, err := decodeBid(fields)
		if err != nil {
			return nil, err
		}
		out[b.ID] = b
	}
	return out, nil
}

func (s *RedisStore) Create(ctx context.Context, a models.Auction) error {
	active := "0"
	if !a.Status.IsTerminal() {
		active = "1"
	}
	args := append([]any{models.NormalizeName(a.Name), a.ID, active}, auctionFields(a)...)

	code, err := redis_scripts.CreateAuction.Run(ctx, s.rdb,
		[]string{auctionKey(a.ID), auctionNamesKey, activeAuctionsKey}, args...).Int()
	if err != nil {
		return fmt.Errorf("create auction %s: %w", a.ID, err)
	}

	switch code {
	case redis_scripts.CreateOK:
		return nil
	case redis_scripts.CreateIDExists:
		return fmt.Errorf("create auction %s: %w", a.ID, store.ErrAlreadyExists)
	case redis_scripts.CreateNameExists:
		return fmt.Errorf("create auction name %q: %w", a.Name, store.ErrAlreadyExists)
	default:
		return fmt.Errorf("create auction %s: unexpected script result %d", a.ID, code)
	}
}

func (s *RedisStore) RecordBid(ctx context.Context, b models.Bid) error {
	args := append([]any{b.ID, b.Price.String()}, bidFields(b)...)

	code, err := redis_scripts.RecordBid.Run(ctx, s.rdb,
		[]string{auctionKey(b.AuctionID), bidKey(b.ID), auctionBidsKey(b.AuctionID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("record bid %s: %w", b.ID, err)
	}

	switch code {
	case redis_scripts.RecordOK, redis_scripts.RecordDuplicate:
		return nil
	case redis_scripts.RecordNoAuction:
		return fmt.Errorf("record bid for auction %s: %w", b.AuctionID, store.ErrNotFound)
	default:
		return fmt.Errorf("record bid %s: unexpected script result %d", b.ID, code)
	}
}

func (s *RedisStore) NameIsTaken(ctx context.Context, normalizedName string) (bool, error) {
	taken, err := s.rdb.HExists(ctx, auctionNamesKey, normalizedName).Result()
	if err != nil {
		return false, fmt.Errorf("check auction name: %w", err)
	}
	return taken, nil
}

func (s *RedisStore) MarkEnded(ctx context.Context, id string) error {
	n, err := s.rdb.Exists(ctx, auctionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("mark auction %s ended: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("mark auction %s ended: %w", id, store.ErrNotFound)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, auctionKey(id), "status", string(models.StatusEnded))
		pipe.SRem(ctx, activeAuctionsKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark auction %s ended: %w", id, err)
	}
	return nil
}
