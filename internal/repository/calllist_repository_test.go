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

func newCallListMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCallListRepositoryFindReturnsNilWhenMissing(t *testing.T) {
	db, mock, cleanup := newCallListMock(t)
	defer cleanup()
	repo := NewCallListRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM call_lists").
		WithArgs("round-1", "course-1", "cat-open").
		WillReturnError(sql.ErrNoRows)

	list, err := repo.Find(context.Background(), "round-1", "course-1", "cat-open")
	require.NoError(t, err)
	assert.Nil(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallListRepositoryReplaceMembersRewritesOrder(t *testing.T) {
	db, mock, cleanup := newCallListMock(t)
	defer cleanup()
	repo := NewCallListRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM call_list_members WHERE call_list_id = $1`)).
		WithArgs("list-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE call_lists SET vacancy = $2 WHERE id = $1`)).
		WithArgs("list-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO call_list_members").
		WithArgs(sqlmock.AnyArg(), "list-1", "reg-a", 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO call_list_members").
		WithArgs(sqlmock.AnyArg(), "list-1", "reg-b", 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.ReplaceMembers(context.Background(), "list-1", 3, []string{"reg-a", "reg-b"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallListRepositoryMemberPositionZeroWhenAbsent(t *testing.T) {
	db, mock, cleanup := newCallListMock(t)
	defer cleanup()
	repo := NewCallListRepository(db)

	mock.ExpectQuery("SELECT position FROM call_list_members").
		WithArgs("list-1", "reg-x").
		WillReturnError(sql.ErrNoRows)

	pos, err := repo.MemberPosition(context.Background(), "list-1", "reg-x")
	require.NoError(t, err)
	assert.Zero(t, pos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallListRepositoryEntriesOrderedByPosition(t *testing.T) {
	db, mock, cleanup := newCallListMock(t)
	defer cleanup()
	repo := NewCallListRepository(db)

	rank := 7
	rows := sqlmock.NewRows([]string{"id", "call_list_id", "registration_id", "position", "candidate_id", "candidate_name", "rank"}).
		AddRow("m-1", "list-1", "reg-a", 1, "cand-a", "Ana", rank).
		AddRow("m-2", "list-1", "reg-b", 2, "cand-b", "Bruno", nil)
	mock.ExpectQuery("SELECT (.+) FROM call_list_members").
		WithArgs("list-1").
		WillReturnRows(rows)

	entries, err := repo.Entries(context.Background(), "list-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, "Ana", entries[0].CandidateName)
	require.NotNil(t, entries[0].Rank)
	assert.Equal(t, rank, *entries[0].Rank)
	assert.Nil(t, entries[1].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}
