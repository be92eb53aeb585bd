package jobs

import (
	"context"
	"log"
	"time"

	"logitrack/internal/alerts"
	"logitrack/internal/batch"
	"logitrack/internal/ledger"
	"logitrack/internal/models"
)

// Alert reasons reported by the sweep.
const (
	ReasonLowStock     = "low-stock"
	ReasonExpiringSoon = "expiring-soon"
)

// StockAlert is one condition found by the sweep.
type StockAlert struct {
	Reason      string    `json:"reason"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	SKU         string    `json:"sku"`
	BatchNumber string    `json:"batch_number"`
	Quantity    int       `json:"quantity"`
	ExpiryDate  time.Time `json:"expiry_date"`
}

// StockAlertService periodically re-reads the ledger snapshot and evaluates
// the low-stock and near-expiry projections over it. The evaluators are pure;
// all staleness is bounded by the snapshot fetch here.
type StockAlertService struct {
	ledger            ledger.Ledger
	lowStockThreshold int
	expiryDays        int
}

func NewStockAlertService(l ledger.Ledger, lowStockThreshold, expiryDays int) *StockAlertService {
	if lowStockThreshold <= 0 {
		lowStockThreshold = alerts.DefaultLowStockThreshold
	}
	if expiryDays <= 0 {
		expiryDays = alerts.DefaultExpiryDays
	}
	return &StockAlertService{
		ledger:            l,
		lowStockThreshold: lowStockThreshold,
		expiryDays:        expiryDays,
	}
}

// Sweep fetches the current snapshot and returns every alert it raises,
// along with the snapshot itself so callers need not re-fetch it.
func (a *StockAlertService) Sweep(ctx context.Context) ([]StockAlert, []*models.Product, error) {
	products, err := a.ledger.Products(ctx)
	if err != nil {
		log.Printf("Failed to fetch product snapshot for alert sweep: %v", err)
		return nil, nil, err
	}

	var found []StockAlert
	for _, p := range alerts.LowStock(products, a.lowStockThreshold) {
		found = append(found, alertFor(ReasonLowStock, p))
	}
	for _, p := range alerts.ExpiringSoon(products, time.Now().UTC(), a.expiryDays) {
		found = append(found, alertFor(ReasonExpiringSoon, p))
	}
	return found, products, nil
}

// LogAlerts writes the sweep result to the log, grouped by batch so the
// operator sees which lots are affected and how soon the earliest one turns.
func (a *StockAlertService) LogAlerts(swept []StockAlert, products []*models.Product) {
	if len(swept) == 0 {
		log.Println("Stock alert sweep found nothing to report")
		return
	}

	log.Printf("Stock alert sweep found %d condition(s):", len(swept))
	for _, alert := range swept {
		log.Printf("- [%s] %s (sku %s, batch %s): %d units, expires %s",
			alert.Reason, alert.ProductName, alert.SKU, alert.BatchNumber,
			alert.Quantity, alert.ExpiryDate.Format("2006-01-02"))
	}

	for _, batchNumber := range batch.UniqueBatches(products) {
		members := batch.ByBatch(products, batchNumber)
		if earliest, ok := batch.EarliestExpiry(members); ok {
			log.Printf("batch %s: %d product(s), earliest expiry %s",
				batchNumber, len(members), earliest.Format("2006-01-02"))
		}
	}
}

// ScheduledSweep is the entry point the background scheduler invokes.
func (a *StockAlertService) ScheduledSweep(ctx context.Context) error {
	swept, products, err := a.Sweep(ctx)
	if err != nil {
		log.Printf("Scheduled stock alert sweep failed: %v", err)
		return err
	}
	a.LogAlerts(swept, products)
	return nil
}

func alertFor(reason string, p *models.Product) StockAlert {
	return StockAlert{
		Reason:      reason,
		ProductID:   p.ID,
		ProductName: p.Name,
		SKU:         p.SKU,
		BatchNumber: p.BatchNumber,
		Quantity:    p.Quantity,
		ExpiryDate:  p.ExpiryDate,
	}
}
