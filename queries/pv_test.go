package queries

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	logger := log.With().Str("test", "queries").Logger()
	db, mock, err := sqlmock.New()
	if err != nil {
		logger.Fatal().Msgf("can't create sqlmock: %s", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "postgres-mock",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		logger.Fatal().Msgf("can't open gorm connection: %s", err)
	}
	return &Repo{Conn: gormDB, ConnReader: gormDB}, mock
}

func testLedgerEntry() *model.PvLedgerEntry {
	amount := conv.NewDecimalWithPrecision()
	amount.SetString("1500")
	return model.NewPvLedgerEntry(3, 7, model.TreeSideLeft, 1, amount,
		model.PvDirection_Credit, model.PvSourceType_Order, "ord-20250303-0001")
}

func TestApplyLedgerEntry(t *testing.T) {
	Convey("Re-applying a ledger entry is absorbed, not failed", t, func() {
		repo, mock := setupMockRepo(t)

		Convey("a unique violation rolls back to the savepoint and reports not applied", func() {
			mock.ExpectBegin()
			mock.ExpectExec("^SAVEPOINT ApplyLedgerEntry").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`^INSERT INTO "pv_ledger_entries"`).
				WillReturnError(&pgconn.PgError{Code: "23505"})
			mock.ExpectExec("^ROLLBACK TO SAVEPOINT ApplyLedgerEntry").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectCommit()

			err := repo.Conn.Transaction(func(tx *gorm.DB) error {
				applied, err := repo.ApplyLedgerEntryTx(tx, testLedgerEntry())
				So(err, ShouldBeNil)
				So(applied, ShouldBeFalse)
				return nil
			})
			So(err, ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("any other insert failure aborts the transaction", func() {
			mock.ExpectBegin()
			mock.ExpectExec("^SAVEPOINT ApplyLedgerEntry").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`^INSERT INTO "pv_ledger_entries"`).
				WillReturnError(errors.New("connection reset"))
			mock.ExpectRollback()

			err := repo.Conn.Transaction(func(tx *gorm.DB) error {
				_, err := repo.ApplyLedgerEntryTx(tx, testLedgerEntry())
				return err
			})
			So(err, ShouldNotBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}
