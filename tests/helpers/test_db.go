package helpers

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockDB represents a mocked database connection for testing
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
}

// NewMockDB creates a new mock database connection
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		},
	})
	require.NoError(t, err)

	return &MockDB{
		DB:   gormDB,
		Mock: mock,
	}
}

// Close closes the mock database connection
func (m *MockDB) Close() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ExpectationsWereMet checks if all expected database interactions were met
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet())
}
