package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/refund"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// apiBasePath is the WooCommerce REST API root
const apiBasePath = "/wp-json/wc/v3"

// priceDecimalsSettingID identifies the store-wide decimal places setting
const priceDecimalsSettingID = "woocommerce_price_num_decimals"

// wcDateLayout is the timestamp format used by date_created_gmt fields
const wcDateLayout = "2006-01-02T15:04:05"

// Adapter implements refund.StoreGateway and refund.NetworkStatus against
// the WooCommerce REST API
type Adapter struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAdapter creates a new store adapter with the given configuration
func NewAdapter(config Config, logger *zap.Logger) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// FetchOrder loads an order with its line items, shipping and fee lines
func (a *Adapter) FetchOrder(ctx context.Context, orderID int64) (*refund.Order, error) {
	var wire wcOrder
	path := fmt.Sprintf("/orders/%d", orderID)
	if err := a.doGet(ctx, path, nil, &wire); err != nil {
		return nil, err
	}
	return convertOrder(&wire), nil
}

// FetchRefunds loads every refund already issued against the order
func (a *Adapter) FetchRefunds(ctx context.Context, orderID int64) ([]refund.Record, error) {
	var wire []wcRefund
	path := fmt.Sprintf("/orders/%d/refunds", orderID)
	if err := a.doGet(ctx, path, nil, &wire); err != nil {
		return nil, err
	}

	records := make([]refund.Record, 0, len(wire))
	for i := range wire {
		records = append(records, convertRefund(orderID, &wire[i]))
	}
	return records, nil
}

// FetchGateway loads the payment gateway the order was paid through. A
// gateway id the store does not recognize resolves to a disabled gateway,
// not an error, so offline methods like "cod" classify as manual.
func (a *Adapter) FetchGateway(ctx context.Context, gatewayID string) (refund.GatewayInfo, error) {
	var wire wcPaymentGateway
	path := "/payment_gateways/" + url.PathEscape(gatewayID)
	err := a.doGet(ctx, path, nil, &wire)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return refund.GatewayInfo{ID: gatewayID}, nil
		}
		return refund.GatewayInfo{}, err
	}

	supportsRefunds := false
	for _, feature := range wire.MethodSupports {
		if feature == "refunds" {
			supportsRefunds = true
			break
		}
	}
	return refund.GatewayInfo{
		ID:              wire.ID,
		Title:           wire.Title,
		IsEnabled:       wire.Enabled,
		SupportsRefunds: supportsRefunds,
	}, nil
}

// FetchCharge loads the payment processor's charge record. A charge the
// processor does not know yields nil without error; classification then
// falls back to standard handling.
func (a *Adapter) FetchCharge(ctx context.Context, chargeID string) (*refund.ChargeDetails, error) {
	var wire wcCharge
	path := "/payments/charges/" + url.PathEscape(chargeID)
	if err := a.doGet(ctx, path, nil, &wire); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	details := &refund.ChargeDetails{
		PaymentMethodType: wire.PaymentMethodDetails.Type,
	}
	if card := wire.PaymentMethodDetails.InteracPresent; card != nil {
		details.CardBrand = card.Brand
		details.CardLast4 = card.Last4
	} else if card := wire.PaymentMethodDetails.CardPresent; card != nil {
		details.CardBrand = card.Brand
		details.CardLast4 = card.Last4
	}
	return details, nil
}

// FetchCurrencyDecimals reads the store's configured decimal places from
// the general settings group
func (a *Adapter) FetchCurrencyDecimals(ctx context.Context) (int32, error) {
	var options []wcSettingOption
	if err := a.doGet(ctx, "/settings/general", nil, &options); err != nil {
		return 0, err
	}

	for _, option := range options {
		if option.ID != priceDecimalsSettingID {
			continue
		}
		decimals, ok := settingInt32(option.Value)
		if !ok {
			return 0, fmt.Errorf("store: unparseable %s value %v", priceDecimalsSettingID, option.Value)
		}
		return decimals, nil
	}
	return valueobject.DefaultDecimals, nil
}

// CreateItemsRefund submits an items-mode refund with per-line totals
func (a *Adapter) CreateItemsRefund(ctx context.Context, req refund.ItemsRequest) (*refund.Record, error) {
	body := wcCreateRefundRequest{
		Amount:    req.Amount.String(),
		Reason:    req.Reason,
		APIRefund: req.AutomaticGatewayRefund,
		LineItems: make([]wcRefundLineInput, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		input := wcRefundLineInput{
			ID:          line.LineID,
			RefundTotal: line.Total.String(),
			RefundTax:   line.TotalTax.String(),
		}
		if line.Kind == refund.RefundLineItem {
			input.Quantity = line.Quantity
		}
		body.LineItems = append(body.LineItems, input)
	}
	return a.createRefund(ctx, req.OrderID, body)
}

// CreateAmountRefund submits an amount-mode refund with no line detail
func (a *Adapter) CreateAmountRefund(ctx context.Context, req refund.AmountRequest) (*refund.Record, error) {
	body := wcCreateRefundRequest{
		Amount:    req.Amount.String(),
		Reason:    req.Reason,
		APIRefund: req.AutomaticGatewayRefund,
	}
	return a.createRefund(ctx, req.OrderID, body)
}

func (a *Adapter) createRefund(ctx context.Context, orderID int64, body wcCreateRefundRequest) (*refund.Record, error) {
	var wire wcRefund
	path := fmt.Sprintf("/orders/%d/refunds", orderID)
	if err := a.doPost(ctx, path, body, &wire); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			a.logger.Warn("store rejected refund",
				zap.Int64("order_id", orderID),
				zap.Int("status", apiErr.StatusCode),
				zap.String("code", apiErr.Code),
				zap.String("message", apiErr.Message))
			return nil, fmt.Errorf("%w: %s", refund.ErrRefundRejected, apiErr.Message)
		}
		return nil, err
	}
	record := convertRefund(orderID, &wire)
	return &record, nil
}

// AddOrderNote attaches a private note to the order
func (a *Adapter) AddOrderNote(ctx context.Context, orderID int64, note string) error {
	path := fmt.Sprintf("/orders/%d/notes", orderID)
	return a.doPost(ctx, path, wcCreateNoteRequest{Note: note}, nil)
}

// IsConnected probes the store with a cheap request. Any HTTP response
// counts as connected; only transport failures mean offline.
func (a *Adapter) IsConnected(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, strings.TrimSuffix(a.config.BaseURL, "/")+"/wp-json", nil)
	if err != nil {
		return false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// apiError carries a non-2xx response from the store API
type apiError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store: HTTP %d: %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("store: HTTP %d", e.StatusCode)
}

func (a *Adapter) doGet(ctx context.Context, path string, query url.Values, out any) error {
	return a.doRequest(ctx, http.MethodGet, path, query, nil, out)
}

func (a *Adapter) doPost(ctx context.Context, path string, body any, out any) error {
	return a.doRequest(ctx, http.MethodPost, path, nil, body, out)
}

// doRequest performs one API call, authenticating with the consumer
// credentials, capping how much of the body is read and mapping transport
// failures to the network error
func (a *Adapter) doRequest(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := strings.TrimSuffix(a.config.BaseURL, "/") + apiBasePath + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("store: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("store: failed to create request: %w", err)
	}
	req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", refund.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, a.config.MaxResponseBytes))
	if err != nil {
		return fmt.Errorf("store: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		var wire wcErrorResponse
		if json.Unmarshal(raw, &wire) == nil {
			apiErr.Code = wire.Code
			apiErr.Message = wire.Message
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("store: failed to parse response: %w", err)
		}
	}
	return nil
}

// convertOrder maps the wire order to the refund read model
func convertOrder(wire *wcOrder) *refund.Order {
	currency := valueobject.Currency(wire.Currency)
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	order := &refund.Order{
		ID:                 wire.ID,
		Number:             wire.Number,
		Currency:           currency,
		Total:              parseDecimal(wire.Total),
		TotalTax:           parseDecimal(wire.TotalTax),
		PaymentMethod:      wire.PaymentMethod,
		PaymentMethodTitle: wire.PaymentMethodTitle,
		ChargeID:           metaString(wire.MetaData, chargeIDMetaKey),
		Items:              make([]refund.LineItem, 0, len(wire.LineItems)),
		ShippingLines:      make([]refund.ShippingLine, 0, len(wire.ShippingLines)),
		FeeLines:           make([]refund.FeeLine, 0, len(wire.FeeLines)),
	}

	// The order's refund summaries carry the refund-total-to-date that
	// caps every further refund. Their totals are negative on the wire.
	for _, entry := range wire.Refunds {
		order.RefundTotal = order.RefundTotal.Add(parseDecimal(entry.Total).Abs())
	}

	for _, item := range wire.LineItems {
		order.Items = append(order.Items, refund.LineItem{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: parseDecimal(item.Price),
			Quantity:  item.Quantity,
			Total:     parseDecimal(item.Total),
			TotalTax:  parseDecimal(item.TotalTax),
		})
	}
	for _, line := range wire.ShippingLines {
		order.ShippingLines = append(order.ShippingLines, refund.ShippingLine{
			ItemID:      line.ID,
			MethodTitle: line.MethodTitle,
			Total:       parseDecimal(line.Total),
			TotalTax:    parseDecimal(line.TotalTax),
		})
	}
	for _, line := range wire.FeeLines {
		order.FeeLines = append(order.FeeLines, refund.FeeLine{
			ID:       line.ID,
			Name:     line.Name,
			Total:    parseDecimal(line.Total),
			TotalTax: parseDecimal(line.TotalTax),
		})
	}
	return order
}

// convertRefund maps a wire refund to a refund record. Refund line entries
// carry the original order line id in their metadata; entries without it
// are dropped because they cannot be attributed.
func convertRefund(orderID int64, wire *wcRefund) refund.Record {
	record := refund.Record{
		ID:                     wire.ID,
		OrderID:                orderID,
		Amount:                 parseDecimal(wire.Amount).Abs(),
		Reason:                 wire.Reason,
		AutomaticGatewayRefund: wire.RefundedPayment,
	}

	if wire.DateCreated != "" {
		if t, err := time.Parse(wcDateLayout, wire.DateCreated); err == nil {
			record.CreatedAt = t
		}
	}

	for _, item := range wire.LineItems {
		itemID, ok := metaInt64(item.MetaData, refundedItemIDMetaKey)
		if !ok {
			continue
		}
		record.Items = append(record.Items, refund.RecordItem{
			ItemID:   itemID,
			Quantity: item.Quantity,
			Total:    parseDecimal(item.Total),
			TotalTax: parseDecimal(item.TotalTax),
		})
	}
	for _, line := range wire.ShippingLines {
		if id, ok := metaInt64(line.MetaData, refundedItemIDMetaKey); ok {
			record.ShippingLineIDs = append(record.ShippingLineIDs, id)
		}
	}
	for _, line := range wire.FeeLines {
		if id, ok := metaInt64(line.MetaData, refundedItemIDMetaKey); ok {
			record.FeeLineIDs = append(record.FeeLineIDs, id)
		}
	}
	return record
}

// metaString finds a string metadata value by key
func metaString(meta []wcMetaData, key string) string {
	for _, entry := range meta {
		if entry.Key != key {
			continue
		}
		if s, ok := entry.Value.(string); ok {
			return s
		}
	}
	return ""
}

// metaInt64 finds a numeric metadata value by key. The store serializes
// these inconsistently as strings or numbers.
func metaInt64(meta []wcMetaData, key string) (int64, bool) {
	for _, entry := range meta {
		if entry.Key != key {
			continue
		}
		switch v := entry.Value.(type) {
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id, true
			}
		case float64:
			return int64(v), true
		case json.Number:
			if id, err := v.Int64(); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

// settingInt32 parses a settings value that may arrive as string or number
func settingInt32(value any) (int32, bool) {
	switch v := value.(type) {
	case string:
		parsed, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, false
		}
		return int32(parsed), true
	case float64:
		return int32(v), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int32(parsed), true
	}
	return 0, false
}

// Ensure Adapter implements the outbound ports
var (
	_ refund.StoreGateway  = (*Adapter)(nil)
	_ refund.NetworkStatus = (*Adapter)(nil)
)
