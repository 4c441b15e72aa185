package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tomsync/shopee-collector/internal/domain/ports"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
	"github.com/tomsync/shopee-collector/internal/infrastructure/config"
)

const (
	apiPrefix       = "/api/v2"
	defaultPageSize = 100

	breakerMaxFailures = 5
	breakerTimeout     = 30 * time.Second
)

// detailOptionalFields is the fixed enumerated list requested on every
// get_order_detail call.
const detailOptionalFields = "buyer_username,recipient_address,item_list,package_list," +
	"shipping_carrier,checkout_shipping_carrier,fulfillment_flag,total_amount," +
	"pay_time,actual_shipping_fee,estimated_shipping_fee,cancel_by,cancel_reason," +
	"note,days_to_ship,message_to_seller"

// trackingOptionalFields adds the fallback tracking numbers to
// get_tracking_number responses.
const trackingOptionalFields = "plp_number,first_mile_tracking_number,last_mile_tracking_number"

// RequestRecorder receives API call metrics; nil disables recording
type RequestRecorder interface {
	RecordAPIRequest(method, endpoint string, statusCode int, seconds float64)
	RecordRateLimitWait(method, endpoint string, seconds float64)
}

// ShopeeClient implements the MarketplaceClient port against the Shopee
// Open API v2. One client serves every shop; signing material comes from
// the partner identity, shop credentials ride in per-call parameters.
type ShopeeClient struct {
	httpClient *http.Client
	signer     *Signer
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
	cfg        *config.ShopeeConfig
	clock      shared.Clock
	log        *logrus.Entry
	metrics    RequestRecorder
	pageSize   int

	baseURLOverride string // tests
}

// NewShopeeClient creates a client with production defaults
func NewShopeeClient(cfg *config.ShopeeConfig, log *logrus.Logger) *ShopeeClient {
	return NewShopeeClientWithDeps(cfg, log, nil, nil)
}

// NewShopeeClientWithDeps creates a client with injectable clock and
// metrics recorder. A nil clock uses the real clock.
func NewShopeeClientWithDeps(cfg *config.ShopeeConfig, log *logrus.Logger, clock shared.Clock, metrics RequestRecorder) *ShopeeClient {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if log == nil {
		log = logrus.New()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &ShopeeClient{
		httpClient: &http.Client{Timeout: timeout},
		signer:     NewSigner(cfg.PartnerID, cfg.PartnerKey),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit.Requests), cfg.RateLimit.Burst),
		breaker:    NewCircuitBreaker(breakerMaxFailures, breakerTimeout, clock),
		cfg:        cfg,
		clock:      clock,
		log:        log.WithField("component", "shopee-client"),
		metrics:    metrics,
		pageSize:   defaultPageSize,
	}
}

// SetBaseURL overrides the marketplace host (tests)
func (c *ShopeeClient) SetBaseURL(u string) {
	c.baseURLOverride = u
}

func (c *ShopeeClient) baseFor(s *shop.Shop) string {
	if c.baseURLOverride != "" {
		return c.baseURLOverride
	}
	if s != nil && s.IsSandbox {
		return config.SandboxAPIURL
	}
	return c.cfg.BaseURL(c.cfg.IsSandbox)
}

// envelope is the common marketplace response wrapper. A response is an
// error iff the top-level error field is non-empty.
type envelope struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response"`
}

// call issues one signed request. GET merges caller params into the
// query; POST keeps the common auth params in the query and sends the
// caller body as JSON. The path is prefixed with /api/v2 if absent.
func (c *ShopeeClient) call(ctx context.Context, method, path string, params url.Values, body any, accessToken string, shopID int64, base string, result any) error {
	if !strings.HasPrefix(path, apiPrefix) {
		path = apiPrefix + path
	}

	return c.breaker.Call(func() error {
		waitStart := c.clock.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return shared.NewTransportError(path, err)
		}
		if c.metrics != nil {
			c.metrics.RecordRateLimitWait(method, path, c.clock.Now().Sub(waitStart).Seconds())
		}

		ts := c.clock.Now().Unix()
		query := c.signer.AuthParams(path, ts, accessToken, shopID)
		for k, vs := range params {
			for _, v := range vs {
				query.Add(k, v)
			}
		}

		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, base+path+"?"+query.Encode(), reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := c.clock.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classifyTransport(path, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return shared.NewTransportError(path, err)
		}

		if c.metrics != nil {
			c.metrics.RecordAPIRequest(method, path, resp.StatusCode, c.clock.Now().Sub(start).Seconds())
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return shared.NewAPIError(path, "", truncate(string(respBody), 512), resp.StatusCode)
		}

		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return shared.NewDataError("", fmt.Sprintf("unparseable response on %s", path))
		}
		if env.Error != "" {
			return shared.NewAPIError(path, env.Error, env.Message, resp.StatusCode)
		}

		if result != nil {
			// List/detail payloads ride under response; token grants sit
			// at the top level.
			raw := respBody
			if len(env.Response) > 0 && string(env.Response) != "null" {
				raw = env.Response
			}
			if err := json.Unmarshal(raw, result); err != nil {
				return shared.NewDataError("", fmt.Sprintf("malformed payload on %s", path))
			}
		}

		return nil
	})
}

func classifyTransport(path string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return shared.NewTransportError(path+" (timeout)", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.NewTransportError(path+" (timeout)", err)
	}
	return shared.NewTransportError(path, err)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// GetAccessToken exchanges an authorization code for a token pair
func (c *ShopeeClient) GetAccessToken(ctx context.Context, code string, shopID int64) (*ports.TokenGrant, error) {
	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpireIn     int64  `json:"expire_in"`
	}

	body := map[string]any{
		"code":       code,
		"partner_id": c.signer.PartnerID(),
		"shop_id":    shopID,
	}

	if err := c.call(ctx, http.MethodPost, "/auth/token/get", nil, body, "", 0, c.baseFor(nil), &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, shared.NewDataError("", "access_token")
	}

	return &ports.TokenGrant{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpireIn:     result.ExpireIn,
	}, nil
}

// RefreshAccessToken exchanges a refresh token for a new token pair
func (c *ShopeeClient) RefreshAccessToken(ctx context.Context, refreshToken string, shopID int64) (*ports.TokenGrant, error) {
	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpireIn     int64  `json:"expire_in"`
	}

	body := map[string]any{
		"refresh_token": refreshToken,
		"partner_id":    c.signer.PartnerID(),
		"shop_id":       shopID,
	}

	if err := c.call(ctx, http.MethodPost, "/auth/access_token/get", nil, body, "", 0, c.baseFor(nil), &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, shared.NewDataError("", "access_token")
	}

	return &ports.TokenGrant{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpireIn:     result.ExpireIn,
	}, nil
}

// GetOrderList walks every cursor page for the query window
func (c *ShopeeClient) GetOrderList(ctx context.Context, s *shop.Shop, q ports.OrderListQuery) ([]ports.OrderListEntry, error) {
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > defaultPageSize {
		pageSize = c.pageSize
	}

	var all []ports.OrderListEntry
	cursor := ""

	for {
		params := url.Values{}
		params.Set("time_range_field", "update_time")
		params.Set("time_from", strconv.FormatInt(q.TimeFrom, 10))
		params.Set("time_to", strconv.FormatInt(q.TimeTo, 10))
		params.Set("page_size", strconv.Itoa(pageSize))
		params.Set("response_optional_fields", "order_status")
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		if q.OrderStatus != "" {
			params.Set("order_status", q.OrderStatus)
		}

		var page struct {
			More       bool   `json:"more"`
			NextCursor string `json:"next_cursor"`
			OrderList  []struct {
				OrderSN     string `json:"order_sn"`
				OrderStatus string `json:"order_status"`
			} `json:"order_list"`
		}

		if err := c.call(ctx, http.MethodGet, "/order/get_order_list", params, nil, s.AccessToken, s.ShopID, c.baseFor(s), &page); err != nil {
			return nil, err
		}

		for _, e := range page.OrderList {
			all = append(all, ports.OrderListEntry{OrderSN: e.OrderSN, OrderStatus: e.OrderStatus})
		}

		if !page.More || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return all, nil
}

// GetOrderDetail fetches detail records for up to 50 order numbers
func (c *ShopeeClient) GetOrderDetail(ctx context.Context, s *shop.Shop, orderSNs []string) ([]ports.OrderDetail, error) {
	if len(orderSNs) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("order_sn_list", strings.Join(orderSNs, ","))
	params.Set("response_optional_fields", detailOptionalFields)

	var result struct {
		OrderList []struct {
			OrderSN                 string  `json:"order_sn"`
			OrderStatus             string  `json:"order_status"`
			Region                  string  `json:"region"`
			Currency                string  `json:"currency"`
			CreateTime              int64   `json:"create_time"`
			UpdateTime              int64   `json:"update_time"`
			PayTime                 int64   `json:"pay_time"`
			ShipByDate              int64   `json:"ship_by_date"`
			DaysToShip              int     `json:"days_to_ship"`
			TotalAmount             float64 `json:"total_amount"`
			ActualShippingFee       float64 `json:"actual_shipping_fee"`
			EstimatedShippingFee    float64 `json:"estimated_shipping_fee"`
			FulfillmentFlag         string  `json:"fulfillment_flag"`
			ShippingCarrier         string  `json:"shipping_carrier"`
			CheckoutShippingCarrier string  `json:"checkout_shipping_carrier"`
			CancelBy                string  `json:"cancel_by"`
			CancelReason            string  `json:"cancel_reason"`
			MessageToSeller         string  `json:"message_to_seller"`
			PackageList             []struct {
				PackageNumber   string `json:"package_number"`
				ShippingCarrier string `json:"shipping_carrier"`
				LogisticsStatus string `json:"logistics_status"`
			} `json:"package_list"`
			ItemList []struct {
				ItemID               int64   `json:"item_id"`
				ItemName             string  `json:"item_name"`
				ItemSKU              string  `json:"item_sku"`
				ModelSKU             string  `json:"model_sku"`
				ModelName            string  `json:"model_name"`
				ModelOriginalPrice   float64 `json:"model_original_price"`
				ModelDiscountedPrice float64 `json:"model_discounted_price"`
				ModelQuantity        int     `json:"model_quantity_purchased"`
				Weight               float64 `json:"weight"`
				PromotionGroupID     int64   `json:"promotion_group_id"`
				ImageInfo            struct {
					ImageURL string `json:"image_url"`
				} `json:"image_info"`
			} `json:"item_list"`
		} `json:"order_list"`
	}

	if err := c.call(ctx, http.MethodGet, "/order/get_order_detail", params, nil, s.AccessToken, s.ShopID, c.baseFor(s), &result); err != nil {
		return nil, err
	}

	details := make([]ports.OrderDetail, 0, len(result.OrderList))
	for _, o := range result.OrderList {
		d := ports.OrderDetail{
			OrderSN:                 o.OrderSN,
			OrderStatus:             o.OrderStatus,
			Region:                  o.Region,
			Currency:                o.Currency,
			CreateTime:              o.CreateTime,
			UpdateTime:              o.UpdateTime,
			PayTime:                 o.PayTime,
			ShipByDate:              o.ShipByDate,
			DaysToShip:              o.DaysToShip,
			TotalAmount:             o.TotalAmount,
			ActualShippingFee:       o.ActualShippingFee,
			EstimatedShippingFee:    o.EstimatedShippingFee,
			FulfillmentFlag:         o.FulfillmentFlag,
			ShippingCarrier:         o.ShippingCarrier,
			CheckoutShippingCarrier: o.CheckoutShippingCarrier,
			CancelBy:                o.CancelBy,
			CancelReason:            o.CancelReason,
			MessageToSeller:         o.MessageToSeller,
		}
		for _, p := range o.PackageList {
			d.PackageList = append(d.PackageList, ports.PackageInfo{
				PackageNumber:   p.PackageNumber,
				ShippingCarrier: p.ShippingCarrier,
				LogisticsStatus: p.LogisticsStatus,
			})
		}
		for _, it := range o.ItemList {
			d.ItemList = append(d.ItemList, ports.ItemInfo{
				ItemID:               it.ItemID,
				ItemName:             it.ItemName,
				ItemSKU:              it.ItemSKU,
				ModelSKU:             it.ModelSKU,
				ModelName:            it.ModelName,
				ModelOriginalPrice:   it.ModelOriginalPrice,
				ModelDiscountedPrice: it.ModelDiscountedPrice,
				Quantity:             it.ModelQuantity,
				Weight:               it.Weight,
				ImageURL:             it.ImageInfo.ImageURL,
			})
		}
		details = append(details, d)
	}

	return details, nil
}

// GetShipmentList walks every cursor page of get_shipment_list
func (c *ShopeeClient) GetShipmentList(ctx context.Context, s *shop.Shop) ([]ports.ShipmentEntry, error) {
	var all []ports.ShipmentEntry
	cursor := ""

	for {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(c.pageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var page struct {
			More       bool   `json:"more"`
			NextCursor string `json:"next_cursor"`
			OrderList  []struct {
				OrderSN       string `json:"order_sn"`
				PackageNumber string `json:"package_number"`
			} `json:"order_list"`
		}

		if err := c.call(ctx, http.MethodGet, "/order/get_shipment_list", params, nil, s.AccessToken, s.ShopID, c.baseFor(s), &page); err != nil {
			return nil, err
		}

		for _, e := range page.OrderList {
			all = append(all, ports.ShipmentEntry{OrderSN: e.OrderSN, PackageNumber: e.PackageNumber})
		}

		if !page.More || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return all, nil
}

// GetTrackingNumber fetches the tracking number for one order.
// packageNumber is a package identifier only; it is never treated as a
// tracking number.
func (c *ShopeeClient) GetTrackingNumber(ctx context.Context, s *shop.Shop, orderSN, packageNumber string) (*ports.TrackingNumberInfo, error) {
	params := url.Values{}
	params.Set("order_sn", orderSN)
	params.Set("response_optional_fields", trackingOptionalFields)
	if packageNumber != "" {
		params.Set("package_number", packageNumber)
	}

	var result struct {
		TrackingNumber          string `json:"tracking_number"`
		FirstMileTrackingNumber string `json:"first_mile_tracking_number"`
		LastMileTrackingNumber  string `json:"last_mile_tracking_number"`
		PLPNumber               string `json:"plp_number"`
		ShippingProviderName    string `json:"shipping_provider_name"`
		LogisticName            string `json:"logistic_name"`
		CarrierName             string `json:"carrier_name"`
		ShippingProvider        string `json:"shipping_provider"`
		Carrier                 string `json:"carrier"`
		LogisticsChannel        string `json:"logistics_channel"`
	}

	if err := c.call(ctx, http.MethodGet, "/logistics/get_tracking_number", params, nil, s.AccessToken, s.ShopID, c.baseFor(s), &result); err != nil {
		return nil, err
	}

	return &ports.TrackingNumberInfo{
		TrackingNumber:          result.TrackingNumber,
		FirstMileTrackingNumber: result.FirstMileTrackingNumber,
		LastMileTrackingNumber:  result.LastMileTrackingNumber,
		PLPNumber:               result.PLPNumber,
		ShippingProviderName:    result.ShippingProviderName,
		LogisticName:            result.LogisticName,
		CarrierName:             result.CarrierName,
		ShippingProvider:        result.ShippingProvider,
		Carrier:                 result.Carrier,
		LogisticsChannel:        result.LogisticsChannel,
	}, nil
}

// GetTrackingInfo fetches the carrier event trail for a tracking number
func (c *ShopeeClient) GetTrackingInfo(ctx context.Context, s *shop.Shop, trackingNumber string) (*ports.TrackingInfo, error) {
	params := url.Values{}
	params.Set("tracking_number", trackingNumber)

	var result struct {
		OrderSN      string `json:"order_sn"`
		TrackingInfo []struct {
			UpdateTime      int64  `json:"update_time"`
			Description     string `json:"description"`
			LogisticsStatus string `json:"logistics_status"`
		} `json:"tracking_info"`
	}

	if err := c.call(ctx, http.MethodGet, "/logistics/get_tracking_info", params, nil, s.AccessToken, s.ShopID, c.baseFor(s), &result); err != nil {
		return nil, err
	}

	info := &ports.TrackingInfo{
		OrderSN:        result.OrderSN,
		TrackingNumber: trackingNumber,
	}
	for _, e := range result.TrackingInfo {
		info.Events = append(info.Events, ports.TrackingEvent{
			UpdateTime:      e.UpdateTime,
			Description:     e.Description,
			LogisticsStatus: e.LogisticsStatus,
		})
	}

	return info, nil
}
