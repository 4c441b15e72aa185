package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomsync/shopee-collector/internal/domain/ports"
	"github.com/tomsync/shopee-collector/internal/domain/shared"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
	"github.com/tomsync/shopee-collector/internal/infrastructure/config"
)

func testClient(t *testing.T, baseURL string) *ShopeeClient {
	t.Helper()
	cfg := &config.ShopeeConfig{
		PartnerID:  843259,
		PartnerKey: "secret-key",
		Timeout:    2 * time.Second,
		RateLimit:  config.RateLimitConfig{Requests: 1000, Burst: 1000},
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	c := NewShopeeClientWithDeps(cfg, log, shared.NewMockClock(time.Unix(1700000000, 0)), nil)
	c.SetBaseURL(baseURL)
	return c
}

func testShop() *shop.Shop {
	return &shop.Shop{ID: "shop-1", ShopID: 123456, AccessToken: "tok"}
}

func TestClient_SignedQueryParams(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{
			"path":             r.URL.Path,
			"partner_id":       q.Get("partner_id"),
			"timestamp":        q.Get("timestamp"),
			"sign":             q.Get("sign"),
			"access_token":     q.Get("access_token"),
			"shop_id":          q.Get("shop_id"),
			"time_range_field": q.Get("time_range_field"),
			"page_size":        q.Get("page_size"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "", "message": "",
			"response": map[string]any{"more": false, "order_list": []any{}},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GetOrderList(context.Background(), testShop(), ports.OrderListQuery{TimeFrom: 1, TimeTo: 2})
	require.NoError(t, err)

	assert.Equal(t, "/api/v2/order/get_order_list", got["path"])
	assert.Equal(t, "843259", got["partner_id"])
	assert.Equal(t, "1700000000", got["timestamp"])
	assert.Equal(t, "tok", got["access_token"])
	assert.Equal(t, "123456", got["shop_id"])
	assert.Equal(t, "update_time", got["time_range_field"])
	assert.Equal(t, "100", got["page_size"])

	expected := NewSigner(843259, "secret-key").
		Sign("/api/v2/order/get_order_list", 1700000000, "tok", 123456)
	assert.Equal(t, expected, got["sign"])
}

func TestClient_EnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "error_param",
			"message": "invalid time range",
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GetOrderList(context.Background(), testShop(), ports.OrderListQuery{TimeFrom: 1, TimeTo: 2})
	require.Error(t, err)

	apiErr, ok := err.(*shared.APIError)
	require.True(t, ok, "expected APIError, got %T", err)
	assert.Equal(t, "error_param", apiErr.Code)
	assert.Equal(t, "invalid time range", apiErr.Message)
	assert.True(t, shared.IsRetriable(err))
}

func TestClient_AuthEnvelopeNotRetriable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "invalid_access_token",
			"message": "token expired",
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GetOrderList(context.Background(), testShop(), ports.OrderListQuery{TimeFrom: 1, TimeTo: 2})
	require.Error(t, err)
	assert.False(t, shared.IsRetriable(err))
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.GetOrderList(context.Background(), testShop(), ports.OrderListQuery{TimeFrom: 1, TimeTo: 2})
	require.Error(t, err)

	apiErr, ok := err.(*shared.APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestClient_PaginationWalksAllPages(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		cursor := r.URL.Query().Get("cursor")
		switch cursor {
		case "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": "",
				"response": map[string]any{
					"more":        true,
					"next_cursor": "abc",
					"order_list":  []map[string]string{{"order_sn": "SN1"}, {"order_sn": "SN2"}},
				},
			})
		case "abc":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": "",
				"response": map[string]any{
					"more":       false,
					"order_list": []map[string]string{{"order_sn": "SN3"}},
				},
			})
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	entries, err := c.GetOrderList(context.Background(), testShop(), ports.OrderListQuery{TimeFrom: 1, TimeTo: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	require.Len(t, entries, 3)
	assert.Equal(t, "SN1", entries[0].OrderSN)
	assert.Equal(t, "SN3", entries[2].OrderSN)
}

func TestClient_RefreshAccessToken(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/auth/access_token/get", r.URL.Path)
		assert.False(t, r.URL.Query().Has("access_token"))
		assert.False(t, r.URL.Query().Has("shop_id"))
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":         "",
			"access_token":  "new-token",
			"refresh_token": "new-refresh",
			"expire_in":     14400,
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	grant, err := c.RefreshAccessToken(context.Background(), "old-refresh", 123456)
	require.NoError(t, err)

	assert.Equal(t, "old-refresh", body["refresh_token"])
	assert.Equal(t, float64(843259), body["partner_id"])
	assert.Equal(t, float64(123456), body["shop_id"])

	assert.Equal(t, "new-token", grant.AccessToken)
	assert.Equal(t, "new-refresh", grant.RefreshToken)
	assert.Equal(t, int64(14400), grant.ExpireIn)
}

func TestClient_TransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := &config.ShopeeConfig{
		PartnerID:  843259,
		PartnerKey: "secret-key",
		Timeout:    50 * time.Millisecond,
		RateLimit:  config.RateLimitConfig{Requests: 1000, Burst: 1000},
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	c := NewShopeeClientWithDeps(cfg, log, nil, nil)
	c.SetBaseURL(srv.URL)

	_, err := c.GetOrderList(context.Background(), testShop(), ports.OrderListQuery{TimeFrom: 1, TimeTo: 2})
	require.Error(t, err)

	var te *shared.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, shared.IsRetriable(err))
}

func TestClient_PackageNumberOnlyWhenPresent(t *testing.T) {
	var hadPackage bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hadPackage = r.URL.Query().Has("package_number")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":    "",
			"response": map[string]any{"tracking_number": "TRK1"},
		})
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	info, err := c.GetTrackingNumber(context.Background(), testShop(), "SN1", "")
	require.NoError(t, err)
	assert.False(t, hadPackage)
	assert.Equal(t, "TRK1", info.Best())

	_, err = c.GetTrackingNumber(context.Background(), testShop(), "SN1", "PKG9")
	require.NoError(t, err)
	assert.True(t, hadPackage)
}
