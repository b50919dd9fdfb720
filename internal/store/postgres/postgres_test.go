//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ledgerbank/corebank/internal/domain"
	"github.com/ledgerbank/corebank/internal/money"
)

var testStore *Store

// TestMain spins up a disposable Postgres container and migrates the schema
// once for the whole package, grounded on
// ravivats-go-api-example/storage/postgres_test.go's TestMain.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("corebank_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			log.Fatalf("could not terminate postgres container: %s", err)
		}
	}()

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("could not get connection string: %s", err)
	}

	testStore, err = New(ctx, connString)
	if err != nil {
		log.Fatalf("could not connect to test database: %s", err)
	}
	defer testStore.Close()

	if err := testStore.Migrate(ctx); err != nil {
		log.Fatalf("could not migrate schema: %s", err)
	}

	os.Exit(m.Run())
}

func truncateAll(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := testStore.pool.Exec(ctx, "TRUNCATE TABLE journal_entries, transfers, idempotency_records, accounts CASCADE")
	require.NoError(t, err)
}

func seedAccount(t *testing.T, ctx context.Context, balance money.Amount) domain.Account {
	t.Helper()
	acc := domain.Account{
		ID:       uuid.NewString(),
		Number:   uuid.NewString(),
		UserID:   "user-1",
		Type:     domain.Checking,
		Status:   domain.Active,
		Balance:  balance,
		Currency: "USD",
	}
	_, err := testStore.pool.Exec(ctx,
		`INSERT INTO accounts (id, account_number, user_id, account_type, status, balance_cents, currency, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`,
		acc.ID, acc.Number, acc.UserID, acc.Type, acc.Status, int64(acc.Balance), acc.Currency,
	)
	require.NoError(t, err)
	return acc
}

func TestUpdateAccountVersion_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	defer truncateAll(t, ctx)
	acc := seedAccount(t, ctx, money.Amount(10000))

	tx, err := testStore.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.UpdateAccountVersion(ctx, acc.ID, money.Amount(20000), 0))

	err = tx.UpdateAccountVersion(ctx, acc.ID, money.Amount(30000), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestInsertTransfer_DuplicateOperationKey(t *testing.T) {
	ctx := context.Background()
	defer truncateAll(t, ctx)
	a := seedAccount(t, ctx, money.Amount(10000))
	b := seedAccount(t, ctx, money.Zero)

	tx, err := testStore.Begin(ctx)
	require.NoError(t, err)
	transfer := &domain.Transfer{
		SourceID: a.ID, DestinationID: b.ID,
		Amount: money.Amount(500), Currency: "USD",
		Status: domain.TransferCompleted, OperationKey: "dup-key",
	}
	require.NoError(t, tx.InsertTransfer(ctx, transfer))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := testStore.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx)
	dup := &domain.Transfer{
		SourceID: a.ID, DestinationID: b.ID,
		Amount: money.Amount(500), Currency: "USD",
		Status: domain.TransferCompleted, OperationKey: "dup-key",
	}
	err = tx2.InsertTransfer(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}
