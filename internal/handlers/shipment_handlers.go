package handlers

import (
	"fmt"
	"net/http"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/services"

	"github.com/labstack/echo/v4"
)

// ShipmentHandlers handles HTTP requests for shipments
type ShipmentHandlers struct {
	shipmentSvc   services.ShipmentService
	attachmentSvc services.AttachmentService
}

// NewShipmentHandlers creates a new shipment handlers instance
func NewShipmentHandlers(shipmentSvc services.ShipmentService, attachmentSvc services.AttachmentService) *ShipmentHandlers {
	return &ShipmentHandlers{
		shipmentSvc:   shipmentSvc,
		attachmentSvc: attachmentSvc,
	}
}

// ListShipments handles GET /shipments. An optional status query parameter
// narrows the list to one lifecycle stage.
func (h *ShipmentHandlers) ListShipments(c echo.Context) error {
	ctx := c.Request().Context()

	var shipments []*models.Shipment
	var err error
	if status := c.QueryParam("status"); status != "" {
		shipments, err = h.shipmentSvc.ListByStatus(ctx, status)
	} else {
		shipments, err = h.shipmentSvc.List(ctx)
	}
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"shipments": shipments,
		"count":     len(shipments),
	})
}

// GetShipment handles GET /shipments/:id
func (h *ShipmentHandlers) GetShipment(c echo.Context) error {
	ctx := c.Request().Context()

	shipment, err := h.shipmentSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, shipment)
}

// CreateShipment handles POST /shipments
func (h *ShipmentHandlers) CreateShipment(c echo.Context) error {
	ctx := c.Request().Context()

	var req services.CreateShipmentInput
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	shipment, err := h.shipmentSvc.Create(ctx, req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":  "Shipment created successfully",
		"shipment": shipment,
	})
}

// UpdateShipment handles PUT /shipments/:id. Status is rejected here; it
// changes only through the status endpoint so transitions stay ordered.
func (h *ShipmentHandlers) UpdateShipment(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		services.ShipmentUpdates
		Status *string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Status != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Status cannot be edited directly; use the status endpoint")
	}

	shipment, err := h.shipmentSvc.Update(ctx, c.Param("id"), req.ShipmentUpdates)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Shipment updated successfully",
		"shipment": shipment,
	})
}

// UpdateShipmentStatus handles PUT /shipments/:id/status
func (h *ShipmentHandlers) UpdateShipmentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	shipment, err := h.shipmentSvc.UpdateStatus(ctx, c.Param("id"), req.Status)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Shipment status updated successfully",
		"shipment": shipment,
	})
}

// UpdateShipmentLocation handles PUT /shipments/:id/location
func (h *ShipmentHandlers) UpdateShipmentLocation(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.Location
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	shipment, err := h.shipmentSvc.UpdateLocation(ctx, c.Param("id"), req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Shipment location updated successfully",
		"shipment": shipment,
	})
}

// DeleteShipment handles DELETE /shipments/:id
func (h *ShipmentHandlers) DeleteShipment(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.shipmentSvc.Delete(ctx, c.Param("id")); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Shipment deleted successfully",
	})
}

// UploadDeliveryProof handles POST /shipments/:id/proof. Proof is only
// meaningful for delivered shipments.
func (h *ShipmentHandlers) UploadDeliveryProof(c echo.Context) error {
	ctx := c.Request().Context()

	shipmentID := c.Param("id")
	shipment, err := h.shipmentSvc.GetByID(ctx, shipmentID)
	if err != nil {
		return httpError(err)
	}
	if shipment.Status != models.ShipmentDelivered {
		return echo.NewHTTPError(http.StatusConflict, "Delivery proof can only be attached to delivered shipments")
	}

	file, err := c.FormFile("proof")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Proof file is required")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to open proof file")
	}
	defer src.Close()

	objectName := fmt.Sprintf("%s/%s", shipmentID, file.Filename)
	if err := h.attachmentSvc.Upload(ctx, services.DeliveryProofsBucket, objectName, src, file.Size); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store proof")
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Delivery proof uploaded successfully",
		"object":  objectName,
	})
}

// GetDeliveryProofURL handles GET /shipments/:id/proof/:filename/url
func (h *ShipmentHandlers) GetDeliveryProofURL(c echo.Context) error {
	ctx := c.Request().Context()

	objectName := fmt.Sprintf("%s/%s", c.Param("id"), c.Param("filename"))
	url, err := h.attachmentSvc.GetPresignedURL(ctx, services.DeliveryProofsBucket, objectName, time.Hour*24)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"url": url,
	})
}
