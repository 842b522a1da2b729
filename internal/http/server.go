// Package http exposes the ledger operations as a JSON API. Callers are the
// UI layer; authentication happens upstream and arrives as an owner header.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"moneta/internal/cache"
	"moneta/internal/core"
	applog "moneta/internal/log"
	"moneta/internal/services"
)

type Server struct {
	http.Server

	sources      *services.SourceService
	categories   *services.CategoryService
	transactions *services.TransactionService
	transfers    *services.TransferService
	reports      *services.ReportService

	// overviewCache memoizes the per-owner dashboard aggregate between
	// mutations.
	overviewCache *cache.LRUCache[core.Overview]
}

type Options struct {
	Addr      string
	CacheSize int
	CacheTTL  time.Duration
	Logger    *applog.Logger
}

func NewServer(opts Options,
	sources *services.SourceService,
	categories *services.CategoryService,
	transactions *services.TransactionService,
	transfers *services.TransferService,
	reports *services.ReportService,
) *Server {
	if opts.CacheSize == 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	s := &Server{
		sources:       sources,
		categories:    categories,
		transactions:  transactions,
		transfers:     transfers,
		reports:       reports,
		overviewCache: cache.NewLRUCache[core.Overview](opts.CacheSize, opts.CacheTTL),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(withOwner)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Get("/{id}", s.handleGetSource)
			r.Put("/{id}", s.handleUpdateSource)
			r.Delete("/{id}", s.handleDeleteSource)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
			r.Get("/{id}/subcategories", s.handleListSubCategories)
			r.Post("/{id}/subcategories", s.handleCreateSubCategory)
		})

		r.Route("/subcategories", func(r chi.Router) {
			r.Put("/{id}", s.handleUpdateSubCategory)
			r.Delete("/{id}", s.handleDeleteSubCategory)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", s.handleCreateTransfer)
			r.Get("/{id}", s.handleGetTransfer)
			r.Put("/{id}", s.handleUpdateTransfer)
			r.Delete("/{id}", s.handleDeleteTransfer)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/balances", s.handleSourceBalances)
			r.Get("/lending", s.handleLendingOutstanding)
			r.Get("/borrowing", s.handleBorrowingOutstanding)
			r.Get("/monthly", s.handleMonthlySummary)
			r.Get("/overview", s.handleOverview)
		})
	})

	s.Server = http.Server{
		Addr:           opts.Addr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
	return s
}

// invalidate drops the owner's cached aggregates after any mutation.
func (s *Server) invalidate(owner string) {
	s.overviewCache.Delete(owner)
}
