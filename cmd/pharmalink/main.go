package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pharmalink/pharmalink/internal/app"
	"github.com/pharmalink/pharmalink/internal/auth"
	"github.com/pharmalink/pharmalink/internal/b2b"
	"github.com/pharmalink/pharmalink/internal/bus"
	"github.com/pharmalink/pharmalink/internal/catalog"
	"github.com/pharmalink/pharmalink/internal/ledger"
	"github.com/pharmalink/pharmalink/internal/links"
	"github.com/pharmalink/pharmalink/internal/messaging"
	"github.com/pharmalink/pharmalink/internal/observability"
	"github.com/pharmalink/pharmalink/internal/payments"
	"github.com/pharmalink/pharmalink/internal/platform/cache"
	"github.com/pharmalink/pharmalink/internal/platform/db"
	"github.com/pharmalink/pharmalink/internal/procurement"
	"github.com/pharmalink/pharmalink/internal/sales"
	"github.com/pharmalink/pharmalink/internal/shared"
	"github.com/pharmalink/pharmalink/internal/tenant"
)

// tenantDirectory answers tenant-type questions for the link workflow.
type tenantDirectory struct {
	repo tenant.Repository
}

func (d tenantDirectory) IsPharmacy(ctx context.Context, tenantID string) (bool, error) {
	return d.isType(ctx, tenantID, tenant.TypePharmacy)
}

func (d tenantDirectory) IsDistributor(ctx context.Context, tenantID string) (bool, error) {
	return d.isType(ctx, tenantID, tenant.TypeDistributor)
}

func (d tenantDirectory) isType(ctx context.Context, tenantID string, want tenant.Type) (bool, error) {
	t, err := d.repo.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return t.Type == want, nil
}

// salesCatalog adapts the product repository to point-of-sale pricing.
type salesCatalog struct {
	repo catalog.Repository
}

func (c salesCatalog) Product(ctx context.Context, tenantID, productID string) (sales.ProductInfo, error) {
	p, err := c.repo.Get(ctx, tenantID, productID)
	if err != nil {
		return sales.ProductInfo{}, err
	}
	return sales.ProductInfo{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		TaxRate:  p.TaxRate,
		IsActive: p.IsActive,
	}, nil
}

// b2bCatalog resolves products on the distributor side for order pricing.
type b2bCatalog struct {
	repo catalog.Repository
}

func (c b2bCatalog) Product(ctx context.Context, tenantID, productID string) (b2b.ProductInfo, error) {
	p, err := c.repo.Get(ctx, tenantID, productID)
	if err != nil {
		return b2b.ProductInfo{}, err
	}
	return b2b.ProductInfo{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		IsActive: p.IsActive,
	}, nil
}

// stockClient fronts the batch ledger for order fulfilment.
type stockClient struct {
	ledger *ledger.Service
}

func (s stockClient) Plan(ctx context.Context, tenantID, productID string, qty int64) ([]b2b.Lot, error) {
	plan, err := s.ledger.Allocate(ctx, tenantID, productID, qty, true)
	if err != nil {
		return nil, err
	}
	return toLots(plan), nil
}

func (s stockClient) Commit(ctx context.Context, tenantID string, plan []b2b.Lot) ([]b2b.Lot, error) {
	applied, err := s.ledger.CommitPlan(ctx, tenantID, toAllocations(plan))
	if err != nil {
		return toLots(applied), err
	}
	return toLots(applied), nil
}

func (s stockClient) Rollback(ctx context.Context, tenantID string, lots []b2b.Lot) error {
	return s.ledger.RollbackPlan(ctx, tenantID, toAllocations(lots))
}

func toLots(in []ledger.Allocation) []b2b.Lot {
	out := make([]b2b.Lot, 0, len(in))
	for _, a := range in {
		out = append(out, b2b.Lot{
			BatchID:     a.BatchID,
			BatchNumber: a.BatchNumber,
			ExpiryDate:  a.ExpiryDate,
			Quantity:    a.Quantity,
		})
	}
	return out
}

func toAllocations(in []b2b.Lot) []ledger.Allocation {
	out := make([]ledger.Allocation, 0, len(in))
	for _, l := range in {
		out = append(out, ledger.Allocation{
			BatchID:     l.BatchID,
			BatchNumber: l.BatchNumber,
			ExpiryDate:  l.ExpiryDate,
			Quantity:    l.Quantity,
		})
	}
	return out
}

// paymentRecorder writes ledger entries for sales and purchases.
type paymentRecorder struct {
	store payments.Store
}

func (p paymentRecorder) RecordSalePayment(ctx context.Context, tenantID, orderID string, amount float64, method string) error {
	return p.store.Append(ctx, payments.Entry{
		TenantID: tenantID,
		RefKind:  payments.RefSaleOrder,
		RefID:    orderID,
		Seq:      1,
		Type:     payments.Credit,
		Amount:   amount,
		Method:   method,
	})
}

func (p paymentRecorder) RecordPurchaseDebit(ctx context.Context, tenantID, purchaseID string, amount float64) error {
	return p.store.Append(ctx, payments.Entry{
		TenantID: tenantID,
		RefKind:  payments.RefPurchase,
		RefID:    purchaseID,
		Seq:      1,
		Type:     payments.Debit,
		Amount:   amount,
		Method:   "credit",
	})
}

// orderDirectory exposes order participants to the messaging layer.
type orderDirectory struct {
	repo b2b.Repository
}

func (d orderDirectory) Participants(ctx context.Context, orderID string) (string, string, error) {
	order, err := d.repo.Get(ctx, orderID)
	if err != nil {
		return "", "", err
	}
	return order.PharmacyID, order.DistributorID, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, db.Config{
		DSN:            cfg.PGDSN,
		MaxConns:       cfg.PGMaxConns,
		ConnectTimeout: cfg.PGConnectTimeout,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Config{
		Addr:        cfg.RedisAddr,
		DialTimeout: cfg.RedisDialTimeout,
		PingTimeout: cfg.RedisPingTimeout,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	eventBus := bus.New()
	bridge := bus.NewBridge(eventBus, redisClient, logger)
	publisher := bus.NewPublisher(bridge, logger, metrics.ObserveBusEvent)
	eventsHandler := bus.NewHandler(logger, eventBus)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, issuer)
	authHandler := auth.NewHandler(logger, authService, cfg.IsProduction())

	tenantRepo := tenant.NewRepository(dbpool)
	tenantHandler := tenant.NewHandler(logger, tenantRepo)
	resolver := tenant.NewResolver(logger, tenantRepo, cfg.AppDomain)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogHandler := catalog.NewHandler(logger, catalogRepo)

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	paymentStore := payments.NewStore(dbpool)
	recorder := paymentRecorder{store: paymentStore}

	messagingRepo := messaging.NewRepository(dbpool)
	messagingService := messaging.NewService(messagingRepo, publisher, logger)

	linkRepo := links.NewRepository(dbpool)
	linkService := links.NewService(linkRepo, tenantDirectory{repo: tenantRepo}, messagingService, logger)
	linkHandler := links.NewHandler(logger, linkService)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, salesCatalog{repo: catalogRepo}, recorder, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	procurementRepo := procurement.NewRepository(dbpool)
	procurementService := procurement.NewService(procurementRepo, ledgerService, recorder, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	b2bRepo := b2b.NewRepository(dbpool)
	b2bService := b2b.NewService(
		b2bRepo,
		linkService,
		b2bCatalog{repo: catalogRepo},
		stockClient{ledger: ledgerService},
		publisher,
		messagingService,
		logger,
	)
	b2bHandler := b2b.NewHandler(logger, b2bService)

	messagingHandler := messaging.NewHandler(logger, messagingService, orderDirectory{repo: b2bRepo})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Issuer:             issuer,
		Resolver:           resolver,
		AuthHandler:        authHandler,
		TenantHandler:      tenantHandler,
		CatalogHandler:     catalogHandler,
		LedgerHandler:      ledgerHandler,
		ProcurementHandler: procurementHandler,
		SalesHandler:       salesHandler,
		B2BHandler:         b2bHandler,
		LinksHandler:       linkHandler,
		MessagingHandler:   messagingHandler,
		EventsHandler:      eventsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		return bridge.Run(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime", slog.Any("error", err))
		os.Exit(1)
	}
}
