package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"logitrack/internal/alerts"
	"logitrack/internal/batch"
	"logitrack/internal/common"
	"logitrack/internal/ledger"
	"logitrack/internal/models"
	"logitrack/internal/services"

	"github.com/labstack/echo/v4"
)

// ProductHandlers handles HTTP requests for the product catalog and the
// stock movement ledger behind it.
type ProductHandlers struct {
	ledger        ledger.Ledger
	attachmentSvc services.AttachmentService
}

// NewProductHandlers creates a new product handlers instance
func NewProductHandlers(l ledger.Ledger, attachmentSvc services.AttachmentService) *ProductHandlers {
	return &ProductHandlers{
		ledger:        l,
		attachmentSvc: attachmentSvc,
	}
}

// ListProducts handles GET /products
func (h *ProductHandlers) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.ledger.Products(ctx)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// SearchProducts handles GET /products/search
func (h *ProductHandlers) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()

	filter := models.ProductSearchFilter{Query: c.QueryParam("q")}
	if category := c.QueryParam("category"); category != "" {
		filter.Category = &category
	}
	if batchNumber := c.QueryParam("batch_number"); batchNumber != "" {
		filter.BatchNumber = &batchNumber
	}
	if param := c.QueryParam("min_quantity"); param != "" {
		min, err := strconv.Atoi(param)
		if err != nil || min < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "min_quantity must be a non-negative integer")
		}
		filter.MinQuantity = &min
	}
	if param := c.QueryParam("max_quantity"); param != "" {
		max, err := strconv.Atoi(param)
		if err != nil || max < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "max_quantity must be a non-negative integer")
		}
		filter.MaxQuantity = &max
	}
	if param := c.QueryParam("expiry_before"); param != "" {
		before, err := common.ValidateDateFormat(param, "expiry_before")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.ExpiryBefore = &before
	}
	if param := c.QueryParam("expiry_after"); param != "" {
		after, err := common.ValidateDateFormat(param, "expiry_after")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.ExpiryAfter = &after
	}

	products, err := h.ledger.SearchProducts(ctx, filter)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct handles GET /products/:id
func (h *ProductHandlers) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()

	product, err := h.ledger.GetProduct(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, product)
}

// CreateProduct handles POST /products
func (h *ProductHandlers) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name              string `json:"name"`
		SKU               string `json:"sku"`
		Category          string `json:"category"`
		Quantity          int    `json:"quantity"`
		ExpiryDate        string `json:"expiry_date"`
		BatchNumber       string `json:"batch_number"`
		StorageConditions string `json:"storage_conditions"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	expiryDate, err := common.ValidateDateFormat(req.ExpiryDate, "expiry_date")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	products, err := h.ledger.AddProduct(ctx, ledger.AddProductInput{
		Name:              req.Name,
		SKU:               req.SKU,
		Category:          req.Category,
		Quantity:          req.Quantity,
		ExpiryDate:        expiryDate,
		BatchNumber:       req.BatchNumber,
		StorageConditions: req.StorageConditions,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":  "Product created successfully",
		"products": products,
	})
}

// UpdateProduct handles PUT /products/:id. Quantity is rejected here; stock
// only moves through the adjust endpoint so every change leaves a movement.
func (h *ProductHandlers) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name              *string `json:"name"`
		SKU               *string `json:"sku"`
		Category          *string `json:"category"`
		Quantity          *int    `json:"quantity"`
		ExpiryDate        *string `json:"expiry_date"`
		BatchNumber       *string `json:"batch_number"`
		StorageConditions *string `json:"storage_conditions"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if req.Quantity != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Quantity cannot be edited directly; use the stock adjustment endpoint")
	}

	updates := ledger.ProductUpdates{
		Name:              req.Name,
		SKU:               req.SKU,
		Category:          req.Category,
		BatchNumber:       req.BatchNumber,
		StorageConditions: req.StorageConditions,
	}
	if req.ExpiryDate != nil {
		expiryDate, err := common.ValidateDateFormat(*req.ExpiryDate, "expiry_date")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		updates.ExpiryDate = &expiryDate
	}

	products, err := h.ledger.UpdateProduct(ctx, c.Param("id"), updates)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Product updated successfully",
		"products": products,
	})
}

// DeleteProduct handles DELETE /products/:id
func (h *ProductHandlers) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.ledger.DeleteProduct(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Product deleted successfully",
		"products": products,
	})
}

// AdjustStock handles POST /products/:id/adjust
func (h *ProductHandlers) AdjustStock(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Delta       int    `json:"delta"`
		BatchNumber string `json:"batch_number"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	products, err := h.ledger.AdjustStock(ctx, c.Param("id"), req.Delta, req.BatchNumber)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Stock adjusted successfully",
		"products": products,
	})
}

// GetMovements handles GET /products/:id/movements
func (h *ProductHandlers) GetMovements(c echo.Context) error {
	ctx := c.Request().Context()

	movements, err := h.ledger.Movements(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"movements": movements,
		"count":     len(movements),
	})
}

// GetLowStock handles GET /products/alerts/low-stock
func (h *ProductHandlers) GetLowStock(c echo.Context) error {
	ctx := c.Request().Context()

	threshold := alerts.DefaultLowStockThreshold
	if param := c.QueryParam("threshold"); param != "" {
		t, err := strconv.Atoi(param)
		if err != nil || t < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Threshold must be a non-negative integer")
		}
		threshold = t
	}

	products, err := h.ledger.Products(ctx)
	if err != nil {
		return httpError(err)
	}

	low := alerts.LowStock(products, threshold)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"products":  low,
		"count":     len(low),
		"threshold": threshold,
	})
}

// GetExpiringSoon handles GET /products/alerts/expiring
func (h *ProductHandlers) GetExpiringSoon(c echo.Context) error {
	ctx := c.Request().Context()

	days := alerts.DefaultExpiryDays
	if param := c.QueryParam("days"); param != "" {
		d, err := strconv.Atoi(param)
		if err != nil || d < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Days must be a non-negative integer")
		}
		days = d
	}

	products, err := h.ledger.Products(ctx)
	if err != nil {
		return httpError(err)
	}

	expiring := alerts.ExpiringSoon(products, time.Now().UTC(), days)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": expiring,
		"count":    len(expiring),
		"days":     days,
	})
}

// ListBatches handles GET /products/batches
func (h *ProductHandlers) ListBatches(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.ledger.Products(ctx)
	if err != nil {
		return httpError(err)
	}

	batchNumbers := batch.UniqueBatches(products)
	summaries := make([]map[string]interface{}, 0, len(batchNumbers))
	for _, batchNumber := range batchNumbers {
		members := batch.ByBatch(products, batchNumber)
		summary := map[string]interface{}{
			"batch_number": batchNumber,
			"count":        len(members),
		}
		if earliest, ok := batch.EarliestExpiry(members); ok {
			summary["earliest_expiry"] = earliest.Format("2006-01-02")
		}
		summaries = append(summaries, summary)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"batches": summaries,
		"count":   len(summaries),
	})
}

// GetBatch handles GET /products/batches/:batchNumber
func (h *ProductHandlers) GetBatch(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.ledger.Products(ctx)
	if err != nil {
		return httpError(err)
	}

	members := batch.ByBatch(products, c.Param("batchNumber"))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"batch_number": c.Param("batchNumber"),
		"products":     members,
		"count":        len(members),
	})
}

// UploadProductImage handles POST /products/:id/images
func (h *ProductHandlers) UploadProductImage(c echo.Context) error {
	ctx := c.Request().Context()

	productID := c.Param("id")
	if _, err := h.ledger.GetProduct(ctx, productID); err != nil {
		return httpError(err)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Image file is required")
	}

	const maxFileSize = 5 * 1024 * 1024
	if file.Size > maxFileSize {
		return echo.NewHTTPError(http.StatusBadRequest, "File size exceeds maximum limit of 5MB")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to open image file")
	}
	defer src.Close()

	objectName := fmt.Sprintf("%s/%s", productID, file.Filename)
	if err := h.attachmentSvc.Upload(ctx, services.ProductImageBucket, objectName, src, file.Size); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store image")
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Image uploaded successfully",
		"object":  objectName,
	})
}

// GetProductImageURL handles GET /products/:id/images/:filename/url
func (h *ProductHandlers) GetProductImageURL(c echo.Context) error {
	ctx := c.Request().Context()

	expiry := time.Hour * 24
	if expiryStr := c.QueryParam("expiry_minutes"); expiryStr != "" {
		if minutes, err := strconv.Atoi(expiryStr); err == nil && minutes > 0 {
			expiry = time.Minute * time.Duration(minutes)
		}
	}

	objectName := fmt.Sprintf("%s/%s", c.Param("id"), c.Param("filename"))
	url, err := h.attachmentSvc.GetPresignedURL(ctx, services.ProductImageBucket, objectName, expiry)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{
		"url":        url,
		"expires_in": expiry.String(),
	})
}
