package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) (Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return New(gormDB), mock, db
}

func TestStore_Insert(t *testing.T) {
	s, mock, db := setupTestStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "memory"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	m, err := s.Insert(context.Background(), "user-1", "likes espresso", make([]float32, 1536), "preference", 0.6, 0.9, "ADD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Search_EmptyTopK(t *testing.T) {
	s, _, db := setupTestStore(t)
	defer db.Close()

	results, err := s.Search(context.Background(), make([]float32, 1536), SearchOptions{UserID: "user-1", TopK: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_BulkSearch_PreservesOrder(t *testing.T) {
	s, mock, db := setupTestStore(t)
	defer db.Close()

	cols := []string{"id", "user_id", "content", "category", "importance", "confidence", "action", "similarity"}
	for i := 0; i < 3; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT *, 1 - (embedding <=> $1) AS similarity FROM "memory"`)).
			WillReturnRows(sqlmock.NewRows(cols))
	}

	embeddings := [][]float32{make([]float32, 1536), make([]float32, 1536), make([]float32, 1536)}
	results, err := s.BulkSearch(context.Background(), embeddings, SearchOptions{UserID: "user-1", TopK: 5, MinSimilarity: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestStore_LoadPendingMessages_FiltersExtracted(t *testing.T) {
	s, mock, db := setupTestStore(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "story_id", "content_type", "content", "extracted", "handler"}).
		AddRow(1, 10, "query", []byte(`{}`), false, "chat")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT message.*, story.handler AS handler FROM "message"`)).
		WithArgs("user-1", false).
		WillReturnRows(rows)

	pending, err := s.LoadPendingMessages(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "chat", pending[0].Handler)
	assert.False(t, pending[0].Extracted)
}

func TestStore_ApplyDecisions_MarksMessagesExtracted(t *testing.T) {
	s, mock, db := setupTestStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "message" SET "extracted"=$1 WHERE id IN ($2,$3)`)).
		WithArgs(true, int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	ids, err := s.ApplyDecisions(context.Background(), nil, nil, []int64{1, 2})
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
