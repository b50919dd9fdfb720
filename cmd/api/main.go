// cmd/api is the thin HTTP boundary spec §6 allows: gorilla/mux routes over
// internal/engine, internal/reconcile, and internal/bulk, with no
// authentication of its own — grounded on the teacher's cmd/api/main.go,
// which wires mux directly onto TransferService the same way.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ledgerbank/corebank/internal/api"
	"github.com/ledgerbank/corebank/internal/bulk"
	"github.com/ledgerbank/corebank/internal/config"
	"github.com/ledgerbank/corebank/internal/engine"
	"github.com/ledgerbank/corebank/internal/money"
	"github.com/ledgerbank/corebank/internal/reconcile"
	"github.com/ledgerbank/corebank/internal/store/postgres"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.Default()
	ctx := context.Background()

	pgStore, err := postgres.New(ctx, cfg.DBSource)
	if err != nil {
		log.Fatalf("unable to connect to database: %v", err)
	}
	defer pgStore.Close()
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatalf("unable to migrate schema: %v", err)
	}

	eng := engine.New(pgStore, logger)
	reconciler := reconcile.New(pgStore, logger)
	resolver := api.NewDirectoryResolver()
	bulkProcessor := bulk.New(resolver, func(ctx context.Context, op string, userID, accountID string, amount money.Amount, description, operationKey string) (money.Amount, error) {
		if op == "WITHDRAW" {
			result, err := eng.Withdraw(ctx, userID, accountID, amount, description, operationKey)
			if err != nil {
				return 0, err
			}
			return result.Balance, nil
		}
		result, err := eng.Deposit(ctx, userID, accountID, amount, description, operationKey)
		if err != nil {
			return 0, err
		}
		return result.Balance, nil
	})

	handler := api.NewHandler(eng, reconciler, bulkProcessor, logger)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.HandleFunc("/accounts/{id}/deposit", handler.Deposit).Methods("POST")
	r.HandleFunc("/accounts/{id}/withdraw", handler.Withdraw).Methods("POST")
	r.HandleFunc("/accounts/{id}/reconcile", handler.Reconcile).Methods("GET")
	r.HandleFunc("/transfers", handler.Transfer).Methods("POST")
	r.HandleFunc("/bulk", handler.ProcessBulk).Methods("POST")

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
