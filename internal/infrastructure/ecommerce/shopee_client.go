package ecommerce

import (
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

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the Shopee API (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	shopeeOrderListPath   = "/api/v2/order/get_order_list"
	shopeeOrderDetailPath = "/api/v2/order/get_order_detail"
)

// ShopeeAPIError is a failure reported by the Shopee API, either through the
// response envelope or an HTTP error status. It unwraps to one of the
// integration platform errors.
type ShopeeAPIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	kind       error
}

func (e *ShopeeAPIError) Error() string {
	var b strings.Builder
	b.WriteString(e.kind.Error())
	if e.StatusCode >= 400 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request_id %s)", e.RequestID)
	}
	return b.String()
}

func (e *ShopeeAPIError) Unwrap() error {
	return e.kind
}

// IsTokenError reports whether the failure looks like a rejected access
// token. The API has no dedicated code for it, so the error code and message
// are matched loosely.
func (e *ShopeeAPIError) IsTokenError() bool {
	text := strings.ToLower(e.Code + " " + e.Message)
	return strings.Contains(text, "token") ||
		strings.Contains(text, "expired") ||
		strings.Contains(text, "invalid")
}

func newShopeeAPIError(status int, env *shopeeEnvelope) *ShopeeAPIError {
	e := &ShopeeAPIError{StatusCode: status, kind: integration.ErrPlatformRequestFailed}
	if env != nil {
		e.Code = env.Error
		e.Message = env.Message
		e.RequestID = env.RequestID
	}
	switch {
	case status == http.StatusTooManyRequests,
		strings.Contains(strings.ToLower(e.Code), "rate_limit"):
		e.kind = integration.ErrPlatformRateLimited
	case strings.Contains(strings.ToLower(e.Code+" "+e.Message), "token"),
		strings.Contains(strings.ToLower(e.Code), "auth"):
		e.kind = integration.ErrPlatformAuthFailed
	}
	return e
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

// ShopeeClientFactory builds shop-scoped Shopee clients that share one HTTP
// client and partner configuration
type ShopeeClientFactory struct {
	config     *ShopeeConfig
	httpClient *http.Client
	tokens     integration.TokenSource
	logger     *zap.Logger
	now        func() time.Time
}

// NewShopeeClientFactory creates a factory. httpClient may be nil.
func NewShopeeClientFactory(config *ShopeeConfig, tokens integration.TokenSource, httpClient *http.Client, logger *zap.Logger) (*ShopeeClientFactory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &ShopeeClientFactory{
		config:     config,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ForShop returns a client bound to the shop
func (f *ShopeeClientFactory) ForShop(_ context.Context, shop *integration.Shop) (integration.MarketplaceClient, error) {
	if shop == nil || shop.ShopID <= 0 {
		return nil, integration.ErrInvalidShopID
	}
	return &ShopeeClient{factory: f, shopID: shop.ShopID}, nil
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// ShopeeClient calls the order API on behalf of one shop
type ShopeeClient struct {
	factory *ShopeeClientFactory
	shopID  int64
}

// ListOrderIdentifiers returns one page of order identifiers modified in the window
func (c *ShopeeClient) ListOrderIdentifiers(ctx context.Context, req integration.OrderListRequest) (*integration.OrderListPage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("time_range_field", string(req.TimeRangeField))
	params.Set("time_from", strconv.FormatInt(req.TimeFrom.Unix(), 10))
	params.Set("time_to", strconv.FormatInt(req.TimeTo.Unix(), 10))
	params.Set("page_size", strconv.Itoa(req.PageSize))
	params.Set("cursor", req.Cursor)

	raw, err := c.get(ctx, shopeeOrderListPath, params)
	if err != nil {
		return nil, err
	}

	var resp shopeeOrderListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse order list: %v", integration.ErrPlatformInvalidResponse, err)
	}

	page := &integration.OrderListPage{
		OrderSNs:   make([]string, 0, len(resp.OrderList)),
		More:       resp.More,
		NextCursor: resp.NextCursor,
	}
	for _, o := range resp.OrderList {
		if o.OrderSN != "" {
			page.OrderSNs = append(page.OrderSNs, o.OrderSN)
		}
	}
	return page, nil
}

// GetOrderDetails fetches details for at most MaxOrderDetailBatch orders
func (c *ShopeeClient) GetOrderDetails(ctx context.Context, orderSNs []string, optionalFields []string) ([]integration.OrderDetail, error) {
	if len(orderSNs) == 0 {
		return nil, integration.ErrEmptyOrderBatch
	}
	if len(orderSNs) > integration.MaxOrderDetailBatch {
		return nil, fmt.Errorf("%w: %d", integration.ErrOrderBatchTooLarge, len(orderSNs))
	}

	params := url.Values{}
	params.Set("order_sn_list", strings.Join(orderSNs, ","))
	if len(optionalFields) > 0 {
		params.Set("response_optional_fields", strings.Join(optionalFields, ","))
	}

	raw, err := c.get(ctx, shopeeOrderDetailPath, params)
	if err != nil {
		return nil, err
	}

	var resp shopeeOrderDetailResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse order details: %v", integration.ErrPlatformInvalidResponse, err)
	}

	details := make([]integration.OrderDetail, 0, len(resp.OrderList))
	for _, item := range resp.OrderList {
		detail, err := decodeShopeeOrderDetail(item)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse order: %v", integration.ErrPlatformInvalidResponse, err)
		}
		details = append(details, detail)
	}
	return details, nil
}

// get performs an authenticated call. A rejected token is refreshed once
// and the call repeated.
func (c *ShopeeClient) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, "shopee.request",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, c.shopID),
		telemetry.WithAttribute("path", path),
	)
	defer span.End()

	var (
		body    json.RawMessage
		attempt int
	)
	err := retry.Do(
		func() error {
			forceRefresh := attempt > 0
			attempt++

			token, err := c.factory.tokens.Token(ctx, c.shopID, forceRefresh)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			body, err = c.do(ctx, path, token, params)
			if err == nil {
				return nil
			}
			var apiErr *ShopeeAPIError
			if errors.As(err, &apiErr) && apiErr.IsTokenError() {
				c.factory.logger.Info("Shopee rejected access token, refreshing",
					zap.Int64("shop_id", c.shopID),
					zap.String("path", path),
					zap.String("request_id", apiErr.RequestID),
				)
				return err
			}
			return retry.Unrecoverable(err)
		},
		retry.Attempts(2),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return body, nil
}

// do sends one signed request and unwraps the response envelope
func (c *ShopeeClient) do(ctx context.Context, path, accessToken string, params url.Values) (json.RawMessage, error) {
	cfg := c.factory.config
	timestamp := c.factory.now().Unix()

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("partner_id", strconv.FormatInt(cfg.PartnerID, 10))
	query.Set("timestamp", strconv.FormatInt(timestamp, 10))
	query.Set("sign", cfg.Sign(path, timestamp, accessToken, c.shopID))
	query.Set("access_token", accessToken)
	query.Set("shop_id", strconv.FormatInt(c.shopID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("shopee: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.factory.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrPlatformUnavailable, err)
	}

	var env shopeeEnvelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 400 {
		if decodeErr != nil {
			return nil, newShopeeAPIError(resp.StatusCode, nil)
		}
		return nil, newShopeeAPIError(resp.StatusCode, &env)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", integration.ErrPlatformInvalidResponse, decodeErr)
	}
	if env.Error != "" {
		return nil, newShopeeAPIError(resp.StatusCode, &env)
	}

	c.factory.logger.Debug("Shopee request completed",
		zap.Int64("shop_id", c.shopID),
		zap.String("path", path),
		zap.String("request_id", env.RequestID),
	)
	return env.Response, nil
}

// Ensure the Shopee client satisfies the marketplace ports
var (
	_ integration.MarketplaceClientFactory = (*ShopeeClientFactory)(nil)
	_ integration.MarketplaceClient        = (*ShopeeClient)(nil)
)
