package b2b

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// LinkGate answers whether a pharmacy may order from a distributor.
type LinkGate interface {
	IsApproved(ctx context.Context, pharmacyID, distributorID string) (bool, error)
}

// ProductInfo is the slice of the distributor's catalog an order needs.
type ProductInfo struct {
	ID       string
	Name     string
	Price    float64
	IsActive bool
}

// Catalog resolves products on the distributor side for pricing.
type Catalog interface {
	Product(ctx context.Context, tenantID, productID string) (ProductInfo, error)
}

// StockClient fronts the distributor's batch ledger. Plan is read-only;
// Commit deducts the planned lots and returns what it applied; Rollback
// restores lots from a failed multi-line commit.
type StockClient interface {
	Plan(ctx context.Context, tenantID, productID string, qty int64) ([]Lot, error)
	Commit(ctx context.Context, tenantID string, plan []Lot) ([]Lot, error)
	Rollback(ctx context.Context, tenantID string, lots []Lot) error
}

// EventPublisher pushes order events at tenant rooms, fire and forget.
type EventPublisher interface {
	Publish(ctx context.Context, tenantID, kind string, payload any)
}

// Notifier writes a durable notification for one tenant.
type Notifier interface {
	Notify(ctx context.Context, tenantID, kind, message string) error
}

type Service struct {
	repo      Repository
	links     LinkGate
	catalog   Catalog
	stock     StockClient
	publisher EventPublisher
	notifier  Notifier
	logger    *slog.Logger
}

func NewService(repo Repository, links LinkGate, catalog Catalog, stock StockClient, publisher EventPublisher, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		links:     links,
		catalog:   catalog,
		stock:     stock,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// PlaceOrderInput is the buyer-side request.
type PlaceOrderInput struct {
	DistributorID string
	Notes         string
	DeliveryOTP   string
	Lines         []PlaceOrderLine
}

type PlaceOrderLine struct {
	ProductID string
	Quantity  int64
}

// PlaceOrder creates a PENDING order for the buyer pharmacy. An APPROVED
// link is required; pricing is frozen from the distributor's catalog at
// placement time.
func (s *Service) PlaceOrder(ctx context.Context, actor shared.Identity, in PlaceOrderInput) (Order, error) {
	if len(in.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: order needs at least one line", shared.ErrValidation)
	}

	approved, err := s.links.IsApproved(ctx, actor.TenantID, in.DistributorID)
	if err != nil {
		return Order{}, err
	}
	if !approved {
		return Order{}, fmt.Errorf("no approved link with distributor %s: %w", in.DistributorID, shared.ErrLinkNotApproved)
	}

	order := Order{
		ID:            uuid.NewString(),
		PharmacyID:    actor.TenantID,
		DistributorID: in.DistributorID,
		Status:        StatusPending,
		DeliveryOTP:   in.DeliveryOTP,
		Notes:         in.Notes,
		CreatedBy:     actor.UserID,
	}
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: line quantity must be positive", shared.ErrValidation)
		}
		product, err := s.catalog.Product(ctx, in.DistributorID, l.ProductID)
		if err != nil {
			return Order{}, err
		}
		if !product.IsActive {
			return Order{}, fmt.Errorf("%w: product %s is inactive", shared.ErrValidation, product.Name)
		}
		lineTotal := round2(product.Price * float64(l.Quantity))
		order.Lines = append(order.Lines, Line{
			ID:        uuid.NewString(),
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: product.Price,
			LineTotal: lineTotal,
		})
		order.SubTotal += lineTotal
	}
	order.SubTotal = round2(order.SubTotal)
	order.GrandTotal = order.SubTotal

	number, err := s.repo.GenerateNumber(ctx, in.DistributorID, time.Now().UTC())
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return Order{}, err
	}

	s.announce(ctx, created, "order placed")
	return created, nil
}

// Transition drives the order lifecycle. Authorization depends on the
// target state: the seller drives ACCEPTED, REJECTED, PACKED and
// SHIPPED; the buyer may only cancel while PENDING; DELIVERED is the
// assigned agent's (or the seller's) move and must present the delivery
// OTP when one was set. Stock is validated at ACCEPTED and committed at
// PACKED.
func (s *Service) Transition(ctx context.Context, actor shared.Identity, orderID string, next Status, remark, otp string) (Order, error) {
	if !next.IsValid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, next)
	}

	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := s.authorize(order, actor, next); err != nil {
		return Order{}, err
	}
	if !order.Status.CanTransitionTo(next) {
		return Order{}, fmt.Errorf("%s -> %s: %w", order.Status, next, shared.ErrInvalidTransition)
	}

	switch next {
	case StatusAccepted:
		// Availability check only; nothing moves until PACKED.
		for _, line := range order.Lines {
			if _, err := s.stock.Plan(ctx, order.DistributorID, line.ProductID, line.Quantity); err != nil {
				return Order{}, fmt.Errorf("line %s: %w", line.ProductID, err)
			}
		}
	case StatusPacked:
		return s.pack(ctx, actor, order, remark)
	case StatusDelivered:
		if order.DeliveryOTP != "" {
			if subtle.ConstantTimeCompare([]byte(order.DeliveryOTP), []byte(otp)) != 1 {
				return Order{}, fmt.Errorf("delivery otp mismatch: %w", shared.ErrForbidden)
			}
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, order.Status, next, TimelineEntry{ActorID: actor.UserID, Remark: remark})
	if err != nil {
		return Order{}, err
	}

	s.announce(ctx, updated, remark)
	return updated, nil
}

// pack commits distributor stock for every line, then flips the status.
// A failure at any point restores what was already deducted.
func (s *Service) pack(ctx context.Context, actor shared.Identity, order Order, remark string) (Order, error) {
	var committed []Lot
	lotsByLine := make(map[string][]Lot, len(order.Lines))

	rollback := func() {
		if len(committed) == 0 {
			return
		}
		if err := s.stock.Rollback(ctx, order.DistributorID, committed); err != nil {
			s.logger.Error("stock rollback failed", "order_id", order.ID, "error", err)
		}
	}

	for _, line := range order.Lines {
		plan, err := s.stock.Plan(ctx, order.DistributorID, line.ProductID, line.Quantity)
		if err != nil {
			rollback()
			return Order{}, fmt.Errorf("line %s: %w", line.ProductID, err)
		}
		lots, err := s.stock.Commit(ctx, order.DistributorID, plan)
		if err != nil {
			rollback()
			return Order{}, fmt.Errorf("line %s: %w", line.ProductID, err)
		}
		committed = append(committed, lots...)
		lotsByLine[line.ID] = lots
	}

	updated, err := s.repo.UpdateStatus(ctx, order.ID, order.Status, StatusPacked, TimelineEntry{ActorID: actor.UserID, Remark: remark})
	if err != nil {
		rollback()
		return Order{}, err
	}

	if err := s.repo.SaveLots(ctx, order.ID, lotsByLine); err != nil {
		// Stock already moved and the order is PACKED; the lot record is
		// informational, so log and keep going.
		s.logger.Error("saving committed lots failed", "order_id", order.ID, "error", err)
	}

	s.announce(ctx, updated, remark)
	return updated, nil
}

func (s *Service) authorize(order Order, actor shared.Identity, next Status) error {
	isBuyer := actor.TenantID == order.PharmacyID
	isSeller := actor.TenantID == order.DistributorID
	isAssignee := order.AssigneeID != nil && *order.AssigneeID == actor.UserID

	switch next {
	case StatusCancelled:
		if !isBuyer {
			return fmt.Errorf("only the buyer may cancel: %w", shared.ErrForbidden)
		}
	case StatusAccepted, StatusRejected, StatusPacked, StatusShipped:
		if !isSeller {
			return fmt.Errorf("only the seller may move to %s: %w", next, shared.ErrForbidden)
		}
	case StatusDelivered:
		if !isSeller && !isAssignee {
			return fmt.Errorf("only the seller or the assigned agent may deliver: %w", shared.ErrForbidden)
		}
	default:
		return fmt.Errorf("%s is not a reachable target: %w", next, shared.ErrInvalidTransition)
	}
	return nil
}

// AssignAgent points the order at a delivery agent. Seller-side only,
// and meaningless once the order is terminal.
func (s *Service) AssignAgent(ctx context.Context, actor shared.Identity, orderID, agentID string) (Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if actor.TenantID != order.DistributorID {
		return Order{}, fmt.Errorf("only the seller may assign an agent: %w", shared.ErrForbidden)
	}
	if order.Status.IsTerminal() {
		return Order{}, fmt.Errorf("order %s is %s: %w", orderID, order.Status, shared.ErrInvalidTransition)
	}
	if err := s.repo.SetAssignee(ctx, orderID, agentID); err != nil {
		return Order{}, err
	}
	return s.repo.Get(ctx, orderID)
}

// RotateDeliveryOTP issues a fresh six digit delivery code for the
// order. Seller side only, and only before the order ships: the code
// travels to the buyer out of band and the delivery leg verifies it at
// the door.
func (s *Service) RotateDeliveryOTP(ctx context.Context, actor shared.Identity, orderID string) (string, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if actor.TenantID != order.DistributorID {
		return "", fmt.Errorf("only the seller may rotate the delivery code: %w", shared.ErrForbidden)
	}
	switch order.Status {
	case StatusPending, StatusAccepted, StatusPacked:
	default:
		return "", fmt.Errorf("order %s is %s: %w", orderID, order.Status, shared.ErrInvalidTransition)
	}

	otp, err := generateOTP()
	if err != nil {
		return "", err
	}
	if err := s.repo.SetDeliveryOTP(ctx, orderID, otp); err != nil {
		return "", err
	}

	if s.notifier != nil {
		message := fmt.Sprintf("delivery code for order %s: %s", order.OrderNumber, otp)
		if err := s.notifier.Notify(ctx, order.PharmacyID, "order.otp", message); err != nil {
			s.logger.Warn("delivery code notification failed", "order_id", order.ID, "error", err)
		}
	}
	return otp, nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate delivery code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Get returns the order with its timeline, visible to the two parties
// only.
func (s *Service) Get(ctx context.Context, actor shared.Identity, orderID string) (Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if actor.TenantID != order.PharmacyID && actor.TenantID != order.DistributorID {
		return Order{}, fmt.Errorf("b2b order %s: %w", orderID, shared.ErrNotFound)
	}
	timeline, err := s.repo.Timeline(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	order.Timeline = timeline
	return order, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filters ListFilters) ([]Order, error) {
	return s.repo.ListForTenant(ctx, tenantID, filters)
}

// announce fans the order's new state out to both tenant rooms and
// writes a durable notification for the counterparty. Neither failure
// path ever surfaces.
func (s *Service) announce(ctx context.Context, order Order, remark string) {
	payload := map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"remark":       remark,
	}
	if s.publisher != nil {
		s.publisher.Publish(ctx, order.PharmacyID, "receive_notification", payload)
		s.publisher.Publish(ctx, order.DistributorID, "receive_notification", payload)
	}
	if s.notifier != nil {
		target := order.PharmacyID
		if order.Status == StatusPending {
			target = order.DistributorID
		}
		message := fmt.Sprintf("order %s is %s", order.OrderNumber, order.Status)
		if err := s.notifier.Notify(ctx, target, "order.status", message); err != nil {
			s.logger.Warn("order notification failed", "order_id", order.ID, "error", err)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
