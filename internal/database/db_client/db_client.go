package db_client

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

type Params struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// DSN renders the connection URL, escaping credentials.
func (p Params) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	return u.String()
}

func Open(ctx context.Context, p Params) (*sql.DB, error) {
	db, err := sql.Open("pgx", p.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		err = fmt.Errorf("postgres connection failed: %w", err)
		zap.L().Error("pg_connect", zap.String("host", p.Host), zap.String("db", p.Database), zap.Error(err))
		return nil, err
	}
	zap.L().Info("pg_connect", zap.String("host", p.Host), zap.String("db", p.Database))
	return db, nil
}
