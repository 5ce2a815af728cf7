package notes

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const hydrateTimeout = 10 * time.Second

// RegistryConfig describes the shared dependencies handed to every board.
type RegistryConfig struct {
	Roster  Roster
	Events  EventSink
	Storage Storage
	Clock   func() time.Time
	IDs     IDProvider
	Logger  *zap.Logger
}

// Registry owns one board per customer, created on first use.
type Registry struct {
	cfg    RegistryConfig
	logger *zap.Logger

	mu     sync.Mutex
	boards map[string]*Board
}

// NewRegistry validates the configuration and constructs an empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Roster == nil {
		return nil, errMissingRoster
	}
	if cfg.IDs == nil {
		cfg.IDs = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	cfg.Logger = logger
	return &Registry{
		cfg:    cfg,
		logger: logger,
		boards: make(map[string]*Board),
	}, nil
}

// Board returns the customer's board, hydrating it from storage the first time.
// A board is registered only once hydration succeeds. On failure the caller
// gets an empty board and the next access retries.
func (r *Registry) Board(ctx context.Context, customerEmail string) (*Board, error) {
	return r.open(ctx, customerEmail, true)
}

// View is Board for read paths: a customer with no open board and no persisted
// notes gets a transient empty board that is not registered.
func (r *Registry) View(ctx context.Context, customerEmail string) (*Board, error) {
	return r.open(ctx, customerEmail, false)
}

func (r *Registry) open(ctx context.Context, customerEmail string, register bool) (*Board, error) {
	normalized, err := NormalizeCustomerEmail(customerEmail)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if board, ok := r.boards[normalized]; ok {
		return board, nil
	}

	board, err := NewBoard(BoardConfig{
		CustomerEmail: normalized,
		Roster:        r.cfg.Roster,
		Events:        r.cfg.Events,
		Storage:       r.cfg.Storage,
		Clock:         r.cfg.Clock,
		IDs:           r.cfg.IDs,
		Logger:        r.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	hydrateCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hydrateTimeout)
	defer cancel()
	if err := board.Hydrate(hydrateCtx); err != nil {
		r.logger.Warn("note board hydration failed",
			zap.String("customer_email", normalized),
			zap.Error(err))
		return board, nil
	}
	if register || len(board.Notes()) > 0 {
		r.boards[normalized] = board
	}
	return board, nil
}

// Customers lists the customers with an open board, sorted.
func (r *Registry) Customers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	customers := make([]string, 0, len(r.boards))
	for customer := range r.boards {
		customers = append(customers, customer)
	}
	sort.Strings(customers)
	return customers
}
