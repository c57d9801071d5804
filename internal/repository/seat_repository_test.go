package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeatMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSeatRepositoryBulkCreate(t *testing.T) {
	db, mock, cleanup := newSeatMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO seats").
			WithArgs(sqlmock.AnyArg(), "ed-1", "course-1", "cat-q", "cat-q").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	seats, err := repo.BulkCreate(context.Background(), 3, "ed-1", "course-1", "cat-q")
	require.NoError(t, err)
	require.Len(t, seats, 3)
	for _, seat := range seats {
		assert.Equal(t, "cat-q", seat.PrimaryCategoryID)
		assert.Equal(t, "cat-q", seat.CurrentCategoryID)
		assert.Nil(t, seat.OccupantID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryFreeSeatReturnsNilWhenNoneFree(t *testing.T) {
	db, mock, cleanup := newSeatMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM seats").
		WithArgs("ed-1", "course-1", "cat-q").
		WillReturnError(sql.ErrNoRows)

	seat, err := repo.FreeSeat(context.Background(), "ed-1", "course-1", "cat-q")
	require.NoError(t, err)
	assert.Nil(t, seat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryOccupyTakenSeat(t *testing.T) {
	db, mock, cleanup := newSeatMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET occupant_id = $2 WHERE id = $1 AND occupant_id IS NULL`)).
		WithArgs("seat-1", "cand-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Occupy(context.Background(), "seat-1", "cand-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepositoryMoveCategoryAppendsLedger(t *testing.T) {
	db, mock, cleanup := newSeatMock(t)
	defer cleanup()
	repo := NewSeatRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE seats SET current_category_id = $2 WHERE id = $1`)).
		WithArgs("seat-1", "cat-open").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO seat_transitions").
		WithArgs(sqlmock.AnyArg(), "seat-1", "cat-q", "cat-open", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.MoveCategory(context.Background(), "seat-1", "cat-q", "cat-open")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
