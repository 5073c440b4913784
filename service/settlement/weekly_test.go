package settlement

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ericlagergren/decimal"
	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/lock"
	"gitlab.com/vitanet-network/settlement_api/queries"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	psql "github.com/ericlagergren/decimal/sql/postgres"
)

type stubLocker struct {
	held     bool
	acquired []string
}

func (l *stubLocker) TryAcquire(key string, ttl time.Duration) (*lock.Handle, error) {
	if l.held {
		return nil, lock.ErrNotAcquired
	}
	l.acquired = append(l.acquired, key)
	return &lock.Handle{Key: key, Token: "test"}, nil
}

func (l *stubLocker) Release(handle *lock.Handle) error { return nil }

func setupMockEngine(t *testing.T) (*Engine, *stubLocker, sqlmock.Sqlmock) {
	logger := log.With().Str("test", "settlement").Logger()
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

	repo := &queries.Repo{Conn: gormDB, ConnReader: gormDB}
	locker := &stubLocker{}
	engine := &Engine{repo: repo, locker: locker, cfg: testBonusConfig(), lockTTL: time.Minute}
	return engine, locker, mock
}

func pdec(value string) *psql.Decimal {
	amount := conv.NewDecimalWithPrecision()
	amount.SetString(value)
	return &psql.Decimal{V: amount}
}

func bdec(value string) *decimal.Big {
	amount := conv.NewDecimalWithPrecision()
	amount.SetString(value)
	return amount
}

func storedWeekColumns() []string {
	return []string{"id", "week_key", "config_version", "total_pv", "k_factor",
		"global_reserve", "fixed_sales", "variable_bonus_total"}
}

func storedWeekRows() *sqlmock.Rows {
	return sqlmock.NewRows(storedWeekColumns()).
		AddRow(1, "2025-W10", "2025-test", pdec("9000"), pdec("1"), pdec("360"), pdec("450"), pdec("900"))
}

func flushedWeekRows() *sqlmock.Rows {
	flushedAt := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(append(storedWeekColumns(), "carry_flash_at")).
		AddRow(1, "2025-W10", "2025-test", pdec("9000"), pdec("1"), pdec("360"), pdec("450"), pdec("900"), flushedAt)
}

func testComputation() *weeklyComputation {
	return &weeklyComputation{
		byID:       map[uint64]*UserSnapshot{},
		pairByUser: map[uint64]*PairLine{},
		details: &KFactorDetails{
			TotalPv:           bdec("9000"),
			TotalCap:          bdec("6300"),
			GlobalReserve:     bdec("360"),
			FixedSales:        bdec("450"),
			RemainingPool:     bdec("5490"),
			VariablePotential: bdec("900"),
			KFactor:           bdec("1"),
		},
		variableTotal: bdec("900"),
	}
}

func TestFinalizeWeeklyOnce(t *testing.T) {
	Convey("Finalizing is guarded against concurrent and repeated runs", t, func() {
		engine, _, mock := setupMockEngine(t)

		Convey("the in transaction re-check resolves to the stored week", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`^SELECT \* FROM "weekly_settlements"`).WillReturnRows(storedWeekRows())
			mock.ExpectCommit()

			prior, serr := engine.finalizeWeekly("2025-W10", testComputation())
			So(serr, ShouldBeNil)
			So(prior, ShouldNotBeNil)
			So(prior.WeekKey, ShouldEqual, "2025-W10")
			So(prior.TotalPv.V.Cmp(conv.NewFromFloat(9000)), ShouldEqual, 0)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("losing the unique insert race resolves to the winner row", func() {
			mock.ExpectBegin()
			mock.ExpectQuery(`^SELECT \* FROM "weekly_settlements"`).
				WillReturnRows(sqlmock.NewRows(storedWeekColumns()))
			mock.ExpectQuery(`^INSERT INTO "operations"`).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			mock.ExpectExec("^SAVEPOINT CreateWeeklySettlement").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`^INSERT INTO "weekly_settlements"`).
				WillReturnError(&pgconn.PgError{Code: "23505"})
			mock.ExpectExec("^ROLLBACK TO SAVEPOINT CreateWeeklySettlement").
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`^SELECT \* FROM "weekly_settlements"`).WillReturnRows(storedWeekRows())
			mock.ExpectCommit()

			prior, serr := engine.finalizeWeekly("2025-W10", testComputation())
			So(serr, ShouldBeNil)
			So(prior, ShouldNotBeNil)
			So(prior.WeekKey, ShouldEqual, "2025-W10")
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}

func TestRunWeeklyCarryFlashRecovery(t *testing.T) {
	Convey("A finalized week whose carry flash never committed is resumed", t, func() {
		engine, locker, mock := setupMockEngine(t)

		Convey("re-invoking picks up the deductions and marks completion", func() {
			// carry_flash_at is NULL, the run died between the transactions
			mock.ExpectQuery(`^SELECT \* FROM "weekly_settlements"`).WillReturnRows(storedWeekRows())
			mock.ExpectQuery(`^SELECT \* FROM "user_weekly_summaries"`).
				WillReturnRows(sqlmock.NewRows([]string{"id", "week_key", "user_id", "left_pv", "right_pv", "pair_paid_actual", "cap_pv"}).
					AddRow(21, "2025-W10", 7, pdec("9000"), pdec("3000"), pdec("450"), pdec("0")))

			mock.ExpectBegin()
			// both deduction entries were written by the crashed attempt and
			// are absorbed by the ledger's unique constraint
			for i := 0; i < 2; i++ {
				mock.ExpectExec("^SAVEPOINT ApplyLedgerEntry").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`^INSERT INTO "pv_ledger_entries"`).
					WillReturnError(&pgconn.PgError{Code: "23505"})
				mock.ExpectExec("^ROLLBACK TO SAVEPOINT ApplyLedgerEntry").
					WillReturnResult(sqlmock.NewResult(0, 0))
			}
			mock.ExpectExec(`^UPDATE "user_weekly_summaries" SET`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`^UPDATE "weekly_settlements" SET`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()

			result := engine.RunWeekly("2025-W10", false, false)
			So(result.Success, ShouldBeTrue)
			So(result.ErrorKind, ShouldEqual, ErrorKind_AlreadyFinalized)
			So(result.WeekKey, ShouldEqual, "2025-W10")
			So(locker.acquired, ShouldContain, "weekly_settlement:2025-W10")
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("a week with carry flash already applied is returned as is", func() {
			mock.ExpectQuery(`^SELECT \* FROM "weekly_settlements"`).WillReturnRows(flushedWeekRows())

			result := engine.RunWeekly("2025-W10", false, false)
			So(result.Success, ShouldBeTrue)
			So(result.ErrorKind, ShouldEqual, ErrorKind_AlreadyFinalized)
			So(len(locker.acquired), ShouldEqual, 0)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("a dry run never resumes, it only reports the stored result", func() {
			mock.ExpectQuery(`^SELECT \* FROM "weekly_settlements"`).WillReturnRows(storedWeekRows())

			result := engine.RunWeekly("2025-W10", true, false)
			So(result.Success, ShouldBeTrue)
			So(result.ErrorKind, ShouldEqual, ErrorKind_AlreadyFinalized)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})

		Convey("resuming respects the week lock", func() {
			locker.held = true
			mock.ExpectQuery(`^SELECT \* FROM "weekly_settlements"`).WillReturnRows(storedWeekRows())

			result := engine.RunWeekly("2025-W10", false, false)
			So(result.Success, ShouldBeFalse)
			So(result.ErrorKind, ShouldEqual, ErrorKind_LockContention)
			So(mock.ExpectationsWereMet(), ShouldBeNil)
		})
	})
}
