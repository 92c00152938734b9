package journal

import (
	"fmt"
	"net/url"

	"github.com/wu-shaobing/quant-platform-sub002/internal/config"
)

// BuildConnString assembles the journal's PostgreSQL DSN. Credentials go
// through url.UserPassword so passwords with special characters survive,
// and the connection is tagged with an application_name so journal
// sessions are identifiable in pg_stat_activity.
func BuildConnString(cfg config.DBConfig) string {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	} else {
		q.Set("sslmode", "prefer")
	}
	q.Set("application_name", "dashboardd-journal")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
