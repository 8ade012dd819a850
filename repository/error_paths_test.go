package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirphl/page-pilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestDueScheduledWork_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPublicationRepository(db)

	mock.ExpectQuery(`SELECT .* FROM "publications" JOIN posts`).
		WillReturnError(errors.New("connection reset by peer"))

	pubs, err := repo.DueScheduledWork(context.Background(), time.Now())
	assert.Nil(t, pubs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load due scheduled work")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOutcome_RollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPublicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "publications" SET`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := repo.RecordOutcome(context.Background(), 7, models.FailedOutcome("timeout"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record outcome for publication 7")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopPosts_AggregateError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMetricSampleRepository(db, time.UTC)

	mock.ExpectQuery(`SELECT p.id AS post_id`).
		WillReturnError(errors.New("relation does not exist"))

	posts, err := repo.TopPosts(context.Background(), 30, 10, models.TopPostMetric("bogus"))
	assert.Nil(t, posts)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasRecent_CountError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewRecommendationRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "recommendations"`).
		WillReturnError(errors.New("timeout"))

	ok, err := repo.HasRecent(context.Background(), 7)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
