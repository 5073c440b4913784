package queries

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Repo holds the database cluster handles. Conn writes to the primary,
// ConnReader serves read only aggregate queries from the replica.
type Repo struct {
	Conn       *gorm.DB
	ConnReader *gorm.DB
}

// NewRepo connects to the writer and reader nodes of the cluster.
func NewRepo(writer, reader config.DatabaseConfig) *Repo {
	return &Repo{
		Conn:       connect(writer),
		ConnReader: connect(reader),
	}
}

func connect(cfg config.DatabaseConfig) *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Name, cfg.SSLmode, cfg.ApplicationName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Str("section", "queries").Str("host", cfg.Host).Msg("Unable to connect to database")
	}
	return db
}

// IsUniqueViolation reports whether the error is a postgres unique
// constraint hit. Duplicate ledger credits surface this way and are treated
// as already applied, not as failures.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
