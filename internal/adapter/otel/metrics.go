package otel

import (
	"go.opentelemetry.io/otel/metric"
)

const meterName = "foodshare"

// Metrics holds all FoodShare metric instruments.
type Metrics struct {
	OffersMade          metric.Int64Counter
	OffersAccepted      metric.Int64Counter
	OffersDeclined      metric.Int64Counter
	OffersTimedOut      metric.Int64Counter
	DeliveriesCompleted metric.Int64Counter
	ActiveSessions      metric.Int64UpDownCounter
	DonationsCreated    metric.Int64Counter
	Reservations        metric.Int64Counter
	CoinsCredited       metric.Int64Counter
	CoinsRedeemed       metric.Int64Counter
}

// NewMetrics creates all metric instruments on the given provider.
// Pass otel.GetMeterProvider() in production.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.OffersMade, "foodshare.delivery.offers", "Number of delivery offers presented"},
		{&m.OffersAccepted, "foodshare.delivery.offers.accepted", "Number of offers accepted"},
		{&m.OffersDeclined, "foodshare.delivery.offers.declined", "Number of offers declined by the agent"},
		{&m.OffersTimedOut, "foodshare.delivery.offers.timed_out", "Number of offers that expired unanswered"},
		{&m.DeliveriesCompleted, "foodshare.delivery.completed", "Number of deliveries reaching Delivered"},
		{&m.DonationsCreated, "foodshare.donations.created", "Number of donations listed"},
		{&m.Reservations, "foodshare.orders.reserved", "Number of donations reserved"},
		{&m.CoinsCredited, "foodshare.coins.credited", "Power coins credited"},
		{&m.CoinsRedeemed, "foodshare.coins.redeemed", "Power coins spent in shops"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.ActiveSessions, err = meter.Int64UpDownCounter("foodshare.delivery.sessions",
		metric.WithDescription("Open delivery dashboard sessions"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
