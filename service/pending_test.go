package service

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gitlab.com/vitanet-network/settlement_api/queries"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	psql "github.com/ericlagergren/decimal/sql/postgres"
)

func setupMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	logger := log.With().Str("test", "service").Logger()
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
	return &Service{repo: &queries.Repo{Conn: gormDB, ConnReader: gormDB}}, mock
}

func lockedPendingRow(id uint64) *model.PendingBonus {
	amount := conv.NewDecimalWithPrecision()
	amount.SetString("150")
	return &model.PendingBonus{
		ID:          id,
		RecipientID: 5,
		Amount:      &psql.Decimal{V: amount},
		BonusType:   model.BonusType_Direct,
		SourceType:  model.PvSourceType_Order,
		SourceID:    "ord-20250303-0001",
		Status:      model.PendingBonusStatus_Pending,
		ReleaseMode: model.PendingBonusReleaseMode_Manual,
	}
}

func TestReleasePendingExactlyOnce(t *testing.T) {
	Convey("A pending bonus is credited exactly once", t, func() {
		service, mock := setupMockService(t)

		Convey("releasing a locked pending row books the credit and flips the status", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`^INSERT INTO "transactions"`).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			mock.ExpectExec(`^UPDATE "pending_bonuses" SET`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			err := service.repo.Conn.Transaction(func(tx *gorm.DB) error {
				return service.releasePendingTx(tx, lockedPendingRow(12), "ref-1")
			})
			So(err, ShouldBeNil)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("the status guard fails the batch when the row was released concurrently", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`^INSERT INTO "transactions"`).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			mock.ExpectExec(`^UPDATE "pending_bonuses" SET`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectRollback()

			err := service.repo.Conn.Transaction(func(tx *gorm.DB) error {
				return service.releasePendingTx(tx, lockedPendingRow(12), "ref-1")
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "released concurrently")
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}
