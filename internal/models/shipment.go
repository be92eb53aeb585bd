package models

import "time"

// Shipment statuses
const (
	ShipmentPending   = "pending"
	ShipmentInTransit = "in-transit"
	ShipmentDelivered = "delivered"
)

// shipmentTransitions is the allowed status transition table:
// pending -> in-transit -> delivered, no skipping, no reverse.
var shipmentTransitions = map[string]string{
	ShipmentPending:   ShipmentInTransit,
	ShipmentInTransit: ShipmentDelivered,
}

// ValidShipmentStatus reports whether s is a known shipment status.
func ValidShipmentStatus(s string) bool {
	return s == ShipmentPending || s == ShipmentInTransit || s == ShipmentDelivered
}

// CanTransition reports whether a shipment may move from one status to another.
func CanTransition(from, to string) bool {
	return shipmentTransitions[from] == to
}

// Location is a geographic point with a human-readable address.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
	Name    string  `json:"name,omitempty"`
}

// ShipmentProduct references a catalog product carried by a shipment.
type ShipmentProduct struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	BatchNumber string `json:"batch_number"`
}

type Shipment struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	Origin           Location          `json:"origin"`
	Destination      Location          `json:"destination"`
	Products         []ShipmentProduct `json:"products"`
	Driver           string            `json:"driver"`
	Vehicle          string            `json:"vehicle"`
	DepartureTime    *time.Time        `json:"departure_time,omitempty"`
	EstimatedArrival *time.Time        `json:"estimated_arrival,omitempty"`
	ActualArrival    *time.Time        `json:"actual_arrival,omitempty"`
	CurrentLocation  *Location         `json:"current_location,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
