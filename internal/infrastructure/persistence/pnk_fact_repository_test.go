package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormPNKFactRepository_UpsertSQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	repo := NewGormPNKFactRepository(db.DB)

	main := newTestRecord("SKU-SQL", marketplace.AccountMain, 1)
	fact, err := marketplace.NewPNKConsistencyFact("SKU-SQL", main, nil, time.Now())
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO "marketplace_pnk_facts" .* ON CONFLICT \("sku"\) DO UPDATE SET "pnk_main"="excluded"."pnk_main"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Upsert(context.Background(), fact)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
