package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graph-control-plane/backend/internal/domains/domain"
	"graph-control-plane/backend/internal/errs"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	return pool, mock
}

func TestExistsByTenantAndName(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresDomainRepository()

	mock.ExpectQuery(`SELECT 1 FROM domains`).
		WithArgs("t1", "acme.example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByTenantAndName(context.Background(), pool, "t1", "acme.example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(`SELECT 1 FROM domains`).
		WithArgs("t1", "other.example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByTenantAndName(context.Background(), pool, "t1", "other.example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFoundIsNil(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresDomainRepository()

	mock.ExpectQuery(`SELECT id, tenant_id, name, icon`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	d, err := repo.GetByID(context.Background(), pool, "missing")
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByTenant_StatusFilter(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresDomainRepository()

	rows := sqlmock.NewRows([]string{"id", "name", "icon", "provision_status", "seed_status"}).
		AddRow("d1", "acme.example.com", "", "online", "not_started")

	mock.ExpectQuery(`LEFT JOIN domain_graphs`).
		WithArgs("t1", "online", 20, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("t1", "online").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListByTenant(context.Background(), pool, "t1", domain.StatusOnline, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "d1", items[0].DomainID)
	assert.Equal(t, domain.StatusOnline, items[0].ProvisionStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWithDependents_OrdersGraphFirst(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresDomainRepository()

	// Graph row must go before the domain row; safe even when absent.
	mock.ExpectExec(`DELETE FROM domain_graphs`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM domains`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteWithDependents(context.Background(), pool, "d1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOnline_SetsProvisionedAtOnce(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresGraphRepository()

	mock.ExpectExec(`provisioned_at = COALESCE\(provisioned_at, now\(\)\)`).
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkOnline(context.Background(), pool, "d1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed_TruncatesReason(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresGraphRepository()

	long := make([]byte, 2*errs.MaxMessageLen)
	for i := range long {
		long[i] = 'x'
	}
	want := string(long[:errs.MaxMessageLen])

	mock.ExpectExec(`provision_status = 'failed'`).
		WithArgs("d1", want).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkFailed(context.Background(), pool, "d1", string(long))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMark_MissingRowIsNotFound(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresGraphRepository()

	mock.ExpectExec(`provision_status = 'provisioning'`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkProvisioning(context.Background(), pool, "missing")
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByDomainID(t *testing.T) {
	pool, mock := setupMockDB(t)
	defer pool.Close()
	repo := NewPostgresGraphRepository()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"domain_id", "provision_status", "seed_status", "idempotency_key",
		"neo4j_uri", "neo4j_database", "neo4j_username", "neo4j_secret_enc",
		"cred_version", "fail_reason", "provisioned_at", "created_at", "updated_at",
	}).AddRow("d1", "online", "not_started", "idem_abc", "neo4j://public:7687",
		"db-abc-acme.example.com", "neo4j", "blob", 1, nil, now, now, now)

	mock.ExpectQuery(`FROM domain_graphs`).
		WithArgs("d1").
		WillReturnRows(rows)

	g, err := repo.GetByDomainID(context.Background(), pool, "d1")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, domain.StatusOnline, g.ProvisionStatus)
	assert.Nil(t, g.FailReason)
	require.NotNil(t, g.ProvisionedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
