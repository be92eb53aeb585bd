package services

import (
	"context"
	"fmt"
	"time"

	"logitrack/internal/common"
	"logitrack/internal/models"
	"logitrack/internal/store"
)

// ShipmentService manages the shipment lifecycle. Status changes go through
// an explicit transition table (pending -> in-transit -> delivered, no
// skipping, no reverse) instead of accepting arbitrary status writes.
type ShipmentService interface {
	Create(ctx context.Context, input CreateShipmentInput) (*models.Shipment, error)
	GetByID(ctx context.Context, id string) (*models.Shipment, error)
	List(ctx context.Context) ([]*models.Shipment, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Shipment, error)
	Update(ctx context.Context, id string, updates ShipmentUpdates) (*models.Shipment, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Shipment, error)
	UpdateLocation(ctx context.Context, id string, location models.Location) (*models.Shipment, error)
	Delete(ctx context.Context, id string) error
}

// CreateShipmentInput carries the fields of a new shipment. New shipments
// always start in pending.
type CreateShipmentInput struct {
	Origin           models.Location          `json:"origin"`
	Destination      models.Location          `json:"destination"`
	Products         []models.ShipmentProduct `json:"products"`
	Driver           string                   `json:"driver"`
	Vehicle          string                   `json:"vehicle"`
	DepartureTime    *time.Time               `json:"departure_time,omitempty"`
	EstimatedArrival *time.Time               `json:"estimated_arrival,omitempty"`
}

// ShipmentUpdates is a partial merge of mutable shipment fields. Status is
// deliberately absent; it changes only through UpdateStatus.
type ShipmentUpdates struct {
	Origin           *models.Location         `json:"origin,omitempty"`
	Destination      *models.Location         `json:"destination,omitempty"`
	Products         []models.ShipmentProduct `json:"products,omitempty"`
	Driver           *string                  `json:"driver,omitempty"`
	Vehicle          *string                  `json:"vehicle,omitempty"`
	DepartureTime    *time.Time               `json:"departure_time,omitempty"`
	EstimatedArrival *time.Time               `json:"estimated_arrival,omitempty"`
}

type shipmentService struct {
	store store.Store
}

func NewShipmentService(st store.Store) ShipmentService {
	return &shipmentService{store: st}
}

func (s *shipmentService) Create(ctx context.Context, input CreateShipmentInput) (*models.Shipment, error) {
	if err := validateShipmentInput(input); err != nil {
		return nil, err
	}

	// Every referenced product must exist in the catalog.
	for _, sp := range input.Products {
		product := &models.Product{}
		if err := s.store.Get(ctx, store.Products, sp.ProductID, product); err != nil {
			return nil, fmt.Errorf("product %s: %w", sp.ProductID, err)
		}
	}

	shipment := &models.Shipment{
		Status:           models.ShipmentPending,
		Origin:           input.Origin,
		Destination:      input.Destination,
		Products:         input.Products,
		Driver:           input.Driver,
		Vehicle:          input.Vehicle,
		DepartureTime:    input.DepartureTime,
		EstimatedArrival: input.EstimatedArrival,
	}
	id, err := s.store.Insert(ctx, store.Shipments, shipment)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *shipmentService) GetByID(ctx context.Context, id string) (*models.Shipment, error) {
	shipment := &models.Shipment{}
	if err := s.store.Get(ctx, store.Shipments, id, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

func (s *shipmentService) List(ctx context.Context) ([]*models.Shipment, error) {
	var shipments []*models.Shipment
	err := s.store.Query(ctx, store.Shipments, store.Query{OrderBy: "created_at", Desc: true}, &shipments)
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (s *shipmentService) ListByStatus(ctx context.Context, status string) ([]*models.Shipment, error) {
	if !models.ValidShipmentStatus(status) {
		return nil, fmt.Errorf("%w: unknown shipment status %q", common.ErrValidation, status)
	}
	var shipments []*models.Shipment
	err := s.store.Query(ctx, store.Shipments, store.Query{
		Filters: []store.Filter{{Field: "status", Op: store.OpEqual, Value: status}},
		OrderBy: "created_at",
		Desc:    true,
	}, &shipments)
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (s *shipmentService) Update(ctx context.Context, id string, updates ShipmentUpdates) (*models.Shipment, error) {
	partial := make(map[string]any)
	if updates.Origin != nil {
		if err := common.ValidateCoordinates(updates.Origin.Lat, updates.Origin.Lng, "origin"); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		partial["origin"] = updates.Origin
	}
	if updates.Destination != nil {
		if err := common.ValidateCoordinates(updates.Destination.Lat, updates.Destination.Lng, "destination"); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		partial["destination"] = updates.Destination
	}
	if updates.Products != nil {
		if len(updates.Products) == 0 {
			return nil, fmt.Errorf("%w: shipment needs at least one product", common.ErrValidation)
		}
		partial["products"] = updates.Products
	}
	if updates.Driver != nil {
		partial["driver"] = *updates.Driver
	}
	if updates.Vehicle != nil {
		partial["vehicle"] = *updates.Vehicle
	}
	if updates.DepartureTime != nil {
		partial["departure_time"] = updates.DepartureTime.UTC()
	}
	if updates.EstimatedArrival != nil {
		partial["estimated_arrival"] = updates.EstimatedArrival.UTC()
	}
	if len(partial) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields provided", common.ErrValidation)
	}

	if err := s.store.Update(ctx, store.Shipments, id, partial); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *shipmentService) UpdateStatus(ctx context.Context, id, status string) (*models.Shipment, error) {
	if !models.ValidShipmentStatus(status) {
		return nil, fmt.Errorf("%w: unknown shipment status %q", common.ErrValidation, status)
	}

	shipment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(shipment.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, shipment.Status, status)
	}

	partial := map[string]any{"status": status}
	now := time.Now().UTC()
	switch status {
	case models.ShipmentInTransit:
		if shipment.DepartureTime == nil {
			partial["departure_time"] = now
		}
	case models.ShipmentDelivered:
		partial["actual_arrival"] = now
	}

	if err := s.store.Update(ctx, store.Shipments, id, partial); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *shipmentService) UpdateLocation(ctx context.Context, id string, location models.Location) (*models.Shipment, error) {
	if err := common.ValidateCoordinates(location.Lat, location.Lng, "current location"); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	shipment, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if shipment.Status == models.ShipmentDelivered {
		return nil, fmt.Errorf("%w: delivered shipments no longer move", common.ErrInvalidTransition)
	}

	if err := s.store.Update(ctx, store.Shipments, id, map[string]any{"current_location": location}); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *shipmentService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, store.Shipments, id)
}

func validateShipmentInput(input CreateShipmentInput) error {
	if err := common.ValidateRequiredString(input.Driver, "driver"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateRequiredString(input.Vehicle, "vehicle"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateRequiredString(input.Origin.Address, "origin address"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateRequiredString(input.Destination.Address, "destination address"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateCoordinates(input.Origin.Lat, input.Origin.Lng, "origin"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateCoordinates(input.Destination.Lat, input.Destination.Lng, "destination"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if len(input.Products) == 0 {
		return fmt.Errorf("%w: shipment needs at least one product", common.ErrValidation)
	}
	for i, sp := range input.Products {
		if sp.ProductID == "" {
			return fmt.Errorf("%w: products[%d] is missing a product id", common.ErrValidation, i)
		}
		if sp.Quantity <= 0 {
			return fmt.Errorf("%w: products[%d] quantity must be positive", common.ErrValidation, i)
		}
	}
	return nil
}
