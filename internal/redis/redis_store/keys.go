package redis_store

const (
	activeAuctionsKey = "active_auctions"
	auctionNamesKey   = "auction_names"
)

func auctionKey(id string) string { return "auction:" + id }

func bidKey(id string) string { return "bid:" + id }

// auctionBidsKey is a sorted set of bid ids scored by insertion sequence.
func auctionBidsKey(auctionID string) string { return "bid:" + auctionID + ":bids" }
