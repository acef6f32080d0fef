package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"

	"github.com/shopspring/decimal"
)

// Analytics computes sales reports over the reconciled order data. All
// computations exclude cancelled orders.
type Analytics struct {
	store store.Store
}

// NewAnalytics builds the reporting service.
func NewAnalytics(st store.Store) *Analytics {
	return &Analytics{store: st}
}

// DailySalesSummary is the one-day sales rollup.
type DailySalesSummary struct {
	Date             string                     `json:"date"`
	OrderCount       int                        `json:"order_count"`
	TotalRevenue     decimal.Decimal            `json:"total_revenue"`
	TotalTax         decimal.Decimal            `json:"total_tax"`
	TotalTips        decimal.Decimal            `json:"total_tips"`
	AverageOrder     decimal.Decimal            `json:"average_order"`
	PaymentBreakdown map[string]decimal.Decimal `json:"payment_breakdown"`
}

// DailySummary rolls up one calendar day (UTC) of sales.
func (a *Analytics) DailySummary(ctx context.Context, restaurantID string, date time.Time) (*DailySalesSummary, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	orders, err := a.store.ListOrdersBetween(ctx, restaurantID, from, to)
	if err != nil {
		return nil, err
	}
	summary := &DailySalesSummary{
		Date:             from.Format("2006-01-02"),
		PaymentBreakdown: map[string]decimal.Decimal{},
	}
	for _, o := range orders {
		if o.Status == model.OrderStatusCancelled {
			continue
		}
		summary.OrderCount++
		summary.TotalRevenue = summary.TotalRevenue.Add(o.TotalAmount)
		summary.TotalTax = summary.TotalTax.Add(o.TaxAmount)
		summary.TotalTips = summary.TotalTips.Add(o.TipAmount)
	}
	if summary.OrderCount > 0 {
		summary.AverageOrder = summary.TotalRevenue.
			Div(decimal.NewFromInt(int64(summary.OrderCount))).Round(2)
	}

	payments, err := a.store.ListPaymentsBetween(ctx, restaurantID, from, to)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if p.Status == model.PaymentStatusFailed {
			continue
		}
		method := p.PaymentMethod
		if method == "" {
			method = "OTHER"
		}
		summary.PaymentBreakdown[method] = summary.PaymentBreakdown[method].Add(p.Amount)
	}
	return summary, nil
}

// TopItem is one row of the top sellers report.
type TopItem struct {
	MenuItemID string          `json:"menu_item_id,omitempty"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// TopSellingItems ranks items by quantity sold over [from, to).
func (a *Analytics) TopSellingItems(ctx context.Context, restaurantID string, from, to time.Time, limit int) ([]TopItem, error) {
	if limit <= 0 {
		limit = 10
	}
	orders, err := a.store.ListOrdersBetween(ctx, restaurantID, from, to)
	if err != nil {
		return nil, err
	}

	byKey := map[string]*TopItem{}
	for _, o := range orders {
		if o.Status == model.OrderStatusCancelled {
			continue
		}
		for _, li := range o.LineItems {
			key := li.Name
			if li.MenuItemID != nil {
				key = *li.MenuItemID
			}
			entry, ok := byKey[key]
			if !ok {
				entry = &TopItem{Name: li.Name}
				if li.MenuItemID != nil {
					entry.MenuItemID = *li.MenuItemID
				}
				byKey[key] = entry
			}
			entry.Quantity += li.Quantity
			entry.Revenue = entry.Revenue.Add(li.TotalPrice)
		}
	}

	out := make([]TopItem, 0, len(byKey))
	for _, entry := range byKey {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Revenue.GreaterThan(out[j].Revenue)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SalesTrend compares the last N days against the N days before them.
type SalesTrend struct {
	PeriodDays      int             `json:"period_days"`
	CurrentRevenue  decimal.Decimal `json:"current_revenue"`
	PreviousRevenue decimal.Decimal `json:"previous_revenue"`
	CurrentOrders   int             `json:"current_orders"`
	PreviousOrders  int             `json:"previous_orders"`
	RevenueChange   decimal.Decimal `json:"revenue_change_pct"`
	OrderChange     decimal.Decimal `json:"order_change_pct"`
	Direction       string          `json:"direction"`
	PeakHours       []HourlyOrders  `json:"peak_hours"`
	Recommendations []string        `json:"recommendations"`
}

// HourlyOrders is one bucket of the order-volume histogram.
type HourlyOrders struct {
	Hour   int `json:"hour"`
	Orders int `json:"orders"`
}

// TrendAnalysis compares the trailing window against the window before it
// and attaches simple operational recommendations.
func (a *Analytics) TrendAnalysis(ctx context.Context, restaurantID string, days int) (*SalesTrend, error) {
	if days <= 0 {
		days = 7
	}
	now := time.Now().UTC()
	currentFrom := now.AddDate(0, 0, -days)
	previousFrom := now.AddDate(0, 0, -2*days)

	currentRevenue, currentOrders, currentWindow, err := a.windowTotals(ctx, restaurantID, currentFrom, now)
	if err != nil {
		return nil, err
	}
	previousRevenue, previousOrders, _, err := a.windowTotals(ctx, restaurantID, previousFrom, currentFrom)
	if err != nil {
		return nil, err
	}

	trend := &SalesTrend{
		PeriodDays:      days,
		CurrentRevenue:  currentRevenue,
		PreviousRevenue: previousRevenue,
		CurrentOrders:   currentOrders,
		PreviousOrders:  previousOrders,
		RevenueChange:   percentChange(previousRevenue, currentRevenue),
		OrderChange: percentChange(
			decimal.NewFromInt(int64(previousOrders)),
			decimal.NewFromInt(int64(currentOrders))),
		PeakHours: peakHours(currentWindow),
	}

	switch {
	case previousOrders == 0 && currentOrders == 0:
		trend.Direction = "flat"
		trend.Recommendations = append(trend.Recommendations,
			"No sales recorded in either period; check that order sync is running.")
	case trend.RevenueChange.GreaterThanOrEqual(decimal.NewFromInt(10)):
		trend.Direction = "up"
		trend.Recommendations = append(trend.Recommendations,
			fmt.Sprintf("Revenue is up %s%% over the prior %d days; consider increasing prep quantities.", trend.RevenueChange.StringFixed(1), days))
	case trend.RevenueChange.LessThanOrEqual(decimal.NewFromInt(-10)):
		trend.Direction = "down"
		trend.Recommendations = append(trend.Recommendations,
			fmt.Sprintf("Revenue is down %s%% over the prior %d days; review pricing and promotions.", trend.RevenueChange.Abs().StringFixed(1), days))
	default:
		trend.Direction = "flat"
	}
	if currentOrders > 0 && previousOrders > 0 {
		avgNow := currentRevenue.Div(decimal.NewFromInt(int64(currentOrders)))
		avgPrev := previousRevenue.Div(decimal.NewFromInt(int64(previousOrders)))
		if avgNow.LessThan(avgPrev.Mul(decimal.NewFromFloat(0.9))) {
			trend.Recommendations = append(trend.Recommendations,
				"Average ticket size dropped more than 10%; consider upsell prompts or bundles.")
		}
	}
	return trend, nil
}

func (a *Analytics) windowTotals(ctx context.Context, restaurantID string, from, to time.Time) (decimal.Decimal, int, []model.Order, error) {
	orders, err := a.store.ListOrdersBetween(ctx, restaurantID, from, to)
	if err != nil {
		return decimal.Zero, 0, nil, err
	}
	var revenue decimal.Decimal
	kept := orders[:0]
	for _, o := range orders {
		if o.Status == model.OrderStatusCancelled {
			continue
		}
		revenue = revenue.Add(o.TotalAmount)
		kept = append(kept, o)
	}
	return revenue, len(kept), kept, nil
}

// peakHours buckets orders into UTC hours and returns the three busiest.
func peakHours(orders []model.Order) []HourlyOrders {
	var buckets [24]int
	for _, o := range orders {
		buckets[o.OrderTime.UTC().Hour()]++
	}
	out := make([]HourlyOrders, 0, 3)
	for h, n := range buckets {
		if n == 0 {
			continue
		}
		out = append(out, HourlyOrders{Hour: h, Orders: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders != out[j].Orders {
			return out[i].Orders > out[j].Orders
		}
		return out[i].Hour < out[j].Hour
	})
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func percentChange(prev, cur decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		if cur.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(100)
	}
	return cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1)
}

// PrepItemForecast is the expected demand for one menu item.
type PrepItemForecast struct {
	MenuItemID       string          `json:"menu_item_id"`
	Name             string          `json:"name"`
	ExpectedQuantity decimal.Decimal `json:"expected_quantity"`
}

// PrepIngredientNeed is the ingredient requirement derived from forecasted
// item demand.
type PrepIngredientNeed struct {
	IngredientID string          `json:"ingredient_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Required     decimal.Decimal `json:"required"`
	InStock      decimal.Decimal `json:"in_stock"`
	Shortfall    bool            `json:"shortfall"`
}

// PrepForecast is the prep list for one upcoming day.
type PrepForecast struct {
	Date        string               `json:"date"`
	BasedOnDays int                  `json:"based_on_days"`
	Items       []PrepItemForecast   `json:"items"`
	Ingredients []PrepIngredientNeed `json:"ingredients"`
}

// prepLookback is how many past occurrences of the target weekday feed the
// forecast.
const prepLookback = 4

// PrepListForecast averages item demand over the last occurrences of the
// target weekday, then decomposes it into ingredient needs via recipes and
// flags stock shortfalls.
func (a *Analytics) PrepListForecast(ctx context.Context, restaurantID string, date time.Time) (*PrepForecast, error) {
	target := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	demand := map[string]*PrepItemForecast{} // keyed by menu item id
	sampledDays := 0
	for i := 1; i <= prepLookback; i++ {
		dayStart := target.AddDate(0, 0, -7*i)
		orders, err := a.store.ListOrdersBetween(ctx, restaurantID, dayStart, dayStart.Add(24*time.Hour))
		if err != nil {
			return nil, err
		}
		sampledDays++
		for _, o := range orders {
			if o.Status == model.OrderStatusCancelled {
				continue
			}
			for _, li := range o.LineItems {
				if li.MenuItemID == nil {
					continue
				}
				entry, ok := demand[*li.MenuItemID]
				if !ok {
					entry = &PrepItemForecast{MenuItemID: *li.MenuItemID, Name: li.Name}
					demand[*li.MenuItemID] = entry
				}
				entry.ExpectedQuantity = entry.ExpectedQuantity.Add(decimal.NewFromInt(int64(li.Quantity)))
			}
		}
	}

	forecast := &PrepForecast{
		Date:        target.Format("2006-01-02"),
		BasedOnDays: sampledDays,
	}
	needs := map[string]*PrepIngredientNeed{}
	divisor := decimal.NewFromInt(int64(sampledDays))

	itemIDs := make([]string, 0, len(demand))
	for id := range demand {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	for _, itemID := range itemIDs {
		entry := demand[itemID]
		entry.ExpectedQuantity = entry.ExpectedQuantity.Div(divisor).Ceil()
		forecast.Items = append(forecast.Items, *entry)

		recipe, err := a.store.GetRecipeByMenuItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		for _, ri := range recipe.Ingredients {
			need, ok := needs[ri.IngredientID]
			if !ok {
				need = &PrepIngredientNeed{IngredientID: ri.IngredientID, Unit: ri.Unit}
				if ing, err := a.store.GetIngredient(ctx, ri.IngredientID); err == nil {
					need.Name = ing.Name
					need.InStock = ing.StockQuantity
					if need.Unit == "" {
						need.Unit = ing.Unit
					}
				}
				needs[ri.IngredientID] = need
			}
			need.Required = need.Required.Add(ri.Quantity.Mul(entry.ExpectedQuantity))
		}
	}

	ingredientIDs := make([]string, 0, len(needs))
	for id := range needs {
		ingredientIDs = append(ingredientIDs, id)
	}
	sort.Strings(ingredientIDs)
	for _, id := range ingredientIDs {
		need := needs[id]
		need.Shortfall = need.Required.GreaterThan(need.InStock)
		forecast.Ingredients = append(forecast.Ingredients, *need)
	}

	sort.Slice(forecast.Items, func(i, j int) bool {
		return forecast.Items[i].ExpectedQuantity.GreaterThan(forecast.Items[j].ExpectedQuantity)
	})
	return forecast, nil
}
