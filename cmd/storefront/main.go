package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/cartstore"
	"github.com/example/pharmacy-storefront/internal/cartsync"
	"github.com/example/pharmacy-storefront/internal/catalog"
	"github.com/example/pharmacy-storefront/internal/config"
	"github.com/example/pharmacy-storefront/internal/orders"
	"github.com/example/pharmacy-storefront/internal/session"
	"github.com/example/pharmacy-storefront/internal/shell"
	"github.com/example/pharmacy-storefront/internal/storage"
)

// storageOrNil opens the persistence directory. An empty setting runs
// the storefront fully in memory.
func storageOrNil(dir string) (*storage.Local, error) {
	if dir == "" {
		return nil, nil
	}
	return storage.NewLocal(dir)
}

func main() {
	cfg := config.Load()

	log.Println("[Storefront] ========================================")
	log.Println("[Storefront] Pharmacy Storefront")
	log.Println("[Storefront] ========================================")
	log.Printf("[Storefront] Backend: %s", cfg.BackendURL)
	log.Printf("[Storefront] Storage: %s", cfg.StorageDir)

	local, err := storageOrNil(cfg.StorageDir)
	if err != nil {
		log.Fatalf("[Storefront] Failed to open local storage: %v", err)
	}

	client, err := backend.NewClient(cfg.BackendURL, cfg.HTTPTimeout)
	if err != nil {
		log.Fatalf("[Storefront] Invalid backend URL: %v", err)
	}

	store := cartstore.New(local)
	syncer := cartsync.New(store, backend.NewCartAPI(client))
	defer syncer.Close()

	medicines := backend.NewMedicineAPI(client)
	sessions := session.NewManager(client, backend.NewAuthAPI(client), local, store)
	catalogSvc := catalog.NewService(medicines)
	orderSvc := orders.NewService(backend.NewOrderAPI(client), store)

	// Restore a persisted session before serving. Network trouble keeps
	// the durable copy for the next start; a rejected token clears it.
	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if err := sessions.Restore(restoreCtx); err != nil {
		log.Printf("[Storefront] Session restore: %v", err)
	}
	restoreCancel()

	if sessions.Authenticated() {
		log.Printf("[Storefront] Resumed session for %s", sessions.Current().Email)
		fetchCtx, fetchCancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		if err := syncer.FetchCart(fetchCtx); err != nil {
			log.Printf("[Storefront] Initial cart fetch: %v", err)
		}
		fetchCancel()
	}

	handlers := shell.NewHandlers(sessions, store, syncer, catalogSvc, orderSvc, medicines, backend.NewAdminAPI(client))
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: shell.NewRouter(handlers),
	}

	go func() {
		log.Printf("[Storefront] Serving on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[Storefront] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Storefront] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Storefront] Shutdown: %v", err)
	}
}
