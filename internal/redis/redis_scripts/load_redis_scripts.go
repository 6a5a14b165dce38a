package redis_scripts

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

// Scripts used by the auction store. Script.Run sends EVALSHA and falls back
// to EVAL when the server has not cached the body yet.
var (
	CreateAuction = mustScript("create_auction.lua")
	RecordBid     = mustScript("record_bid.lua")
)

// Return codes shared with the Lua side.
const (
	CreateOK         = 0
	CreateIDExists   = 1
	CreateNameExists = 2

	RecordNoAuction = -1
	RecordDuplicate = 0
	RecordOK        = 1
)

func mustScript(name string) *redis.Script {
	code, err := fs.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("redis_scripts: %s: %v", name, err))
	}
	return redis.NewScript(string(code))
}

// LoadAll finds every embedded Lua file and caches it in Redis, so the first
// EVALSHA of each script hits.
func LoadAll(ctx context.Context, rdb redis.Scripter) error {
	files, err := fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}

		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return err
		}
		sha, err := rdb.ScriptLoad(ctx, string(code)).Result()
		if err != nil {
			return fmt.Errorf("load lua %s: %w", f.Name(), err)
		}
		zap.L().Info("lua script loaded", zap.String("file", f.Name()), zap.String("sha", sha))
	}
	return nil
}
