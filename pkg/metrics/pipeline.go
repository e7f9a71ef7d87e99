package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics counts the money-moving operations of the order pipeline.
type PipelineMetrics struct {
	ordersCreated   prometheus.Counter
	settlements     prometheus.Counter
	labelsPurchased prometheus.Counter
	subsActivated   prometheus.Counter
}

// NewPipelineMetrics registers pipeline counters on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders written to the ledger.",
	})
	settlements := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Delivery confirmations that released funds.",
	})
	labelsPurchased := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shipping_labels_purchased_total",
		Help: "Shipping labels purchased through the fulfillment service.",
	})
	subsActivated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_activated_total",
		Help: "Subscription activations and renewals.",
	})
	reg.MustRegister(ordersCreated, settlements, labelsPurchased, subsActivated)
	return &PipelineMetrics{
		ordersCreated:   ordersCreated,
		settlements:     settlements,
		labelsPurchased: labelsPurchased,
		subsActivated:   subsActivated,
	}
}

// IncOrdersCreated counts a successful ledger write.
func (p *PipelineMetrics) IncOrdersCreated() {
	if p == nil || p.ordersCreated == nil {
		return
	}
	p.ordersCreated.Inc()
}

// IncSettlements counts a completed delivery confirmation.
func (p *PipelineMetrics) IncSettlements() {
	if p == nil || p.settlements == nil {
		return
	}
	p.settlements.Inc()
}

// IncLabelsPurchased counts a purchased label.
func (p *PipelineMetrics) IncLabelsPurchased() {
	if p == nil || p.labelsPurchased == nil {
		return
	}
	p.labelsPurchased.Inc()
}

// IncSubscriptionsActivated counts an activation or renewal.
func (p *PipelineMetrics) IncSubscriptionsActivated() {
	if p == nil || p.subsActivated == nil {
		return
	}
	p.subsActivated.Inc()
}
