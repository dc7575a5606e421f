package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts order placements and the stock conflicts they hit.
type OrderMetrics struct {
	placed        *prometheus.CounterVec
	cancelled     prometheus.Counter
	stockConflict prometheus.Counter
	vipPromotions prometheus.Counter
	revenue       prometheus.Counter
}

// NewOrderMetrics registers the order counters on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders created, labelled by buyer kind.",
	}, []string{"buyer"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Orders cancelled with stock restored.",
	})
	stockConflict := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_stock_conflicts_total",
		Help: "Order attempts rejected for insufficient stock.",
	})
	vipPromotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vip_promotions_total",
		Help: "Accounts promoted to VIP after crossing the spend threshold.",
	})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_revenue_total",
		Help: "Gross revenue from placed orders.",
	})
	reg.MustRegister(placed, cancelled, stockConflict, vipPromotions, revenue)
	return &OrderMetrics{
		placed:        placed,
		cancelled:     cancelled,
		stockConflict: stockConflict,
		vipPromotions: vipPromotions,
		revenue:       revenue,
	}
}

// IncPlaced records a created order for the given buyer kind ("user" or "guest").
func (o *OrderMetrics) IncPlaced(buyer string) {
	if o == nil || o.placed == nil {
		return
	}
	o.placed.WithLabelValues(normalizeLabel(buyer)).Inc()
}

// IncCancelled records a cancelled order.
func (o *OrderMetrics) IncCancelled() {
	if o == nil || o.cancelled == nil {
		return
	}
	o.cancelled.Inc()
}

// IncStockConflict records an order rejected for insufficient stock.
func (o *OrderMetrics) IncStockConflict() {
	if o == nil || o.stockConflict == nil {
		return
	}
	o.stockConflict.Inc()
}

// IncVIPPromotion records a tier upgrade triggered by an order.
func (o *OrderMetrics) IncVIPPromotion() {
	if o == nil || o.vipPromotions == nil {
		return
	}
	o.vipPromotions.Inc()
}

// AddRevenue adds the order total to the revenue counter.
func (o *OrderMetrics) AddRevenue(amount float64) {
	if o == nil || o.revenue == nil || amount <= 0 {
		return
	}
	o.revenue.Add(amount)
}
