package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/market-sync/internal/config"
	"github.com/rickgao/market-sync/internal/version"
)

// BuildConnString builds a PostgreSQL URL from config. Credentials are escaped
// and the session is tagged with the application name so it shows up in
// pg_stat_activity.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("application_name", version.Name)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}
