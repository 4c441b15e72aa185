package helpers

import (
	"context"

	"github.com/tomsync/shopee-collector/internal/domain/ports"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
)

// FakeMarketplaceClient is a scriptable ports.MarketplaceClient. Each
// field overrides one call; unset calls return empty results.
type FakeMarketplaceClient struct {
	GetAccessTokenFn     func(ctx context.Context, code string, shopID int64) (*ports.TokenGrant, error)
	RefreshAccessTokenFn func(ctx context.Context, refreshToken string, shopID int64) (*ports.TokenGrant, error)
	GetOrderListFn       func(ctx context.Context, s *shop.Shop, q ports.OrderListQuery) ([]ports.OrderListEntry, error)
	GetOrderDetailFn     func(ctx context.Context, s *shop.Shop, orderSNs []string) ([]ports.OrderDetail, error)
	GetShipmentListFn    func(ctx context.Context, s *shop.Shop) ([]ports.ShipmentEntry, error)
	GetTrackingNumberFn  func(ctx context.Context, s *shop.Shop, orderSN, packageNumber string) (*ports.TrackingNumberInfo, error)
	GetTrackingInfoFn    func(ctx context.Context, s *shop.Shop, trackingNumber string) (*ports.TrackingInfo, error)

	OrderListCalls      int
	OrderDetailCalls    int
	TrackingNumberCalls int
}

func (f *FakeMarketplaceClient) GetAccessToken(ctx context.Context, code string, shopID int64) (*ports.TokenGrant, error) {
	if f.GetAccessTokenFn != nil {
		return f.GetAccessTokenFn(ctx, code, shopID)
	}
	return &ports.TokenGrant{}, nil
}

func (f *FakeMarketplaceClient) RefreshAccessToken(ctx context.Context, refreshToken string, shopID int64) (*ports.TokenGrant, error) {
	if f.RefreshAccessTokenFn != nil {
		return f.RefreshAccessTokenFn(ctx, refreshToken, shopID)
	}
	return &ports.TokenGrant{AccessToken: "refreshed", RefreshToken: "next", ExpireIn: 14400}, nil
}

func (f *FakeMarketplaceClient) GetOrderList(ctx context.Context, s *shop.Shop, q ports.OrderListQuery) ([]ports.OrderListEntry, error) {
	f.OrderListCalls++
	if f.GetOrderListFn != nil {
		return f.GetOrderListFn(ctx, s, q)
	}
	return nil, nil
}

func (f *FakeMarketplaceClient) GetOrderDetail(ctx context.Context, s *shop.Shop, orderSNs []string) ([]ports.OrderDetail, error) {
	f.OrderDetailCalls++
	if f.GetOrderDetailFn != nil {
		return f.GetOrderDetailFn(ctx, s, orderSNs)
	}
	return nil, nil
}

func (f *FakeMarketplaceClient) GetShipmentList(ctx context.Context, s *shop.Shop) ([]ports.ShipmentEntry, error) {
	if f.GetShipmentListFn != nil {
		return f.GetShipmentListFn(ctx, s)
	}
	return nil, nil
}

func (f *FakeMarketplaceClient) GetTrackingNumber(ctx context.Context, s *shop.Shop, orderSN, packageNumber string) (*ports.TrackingNumberInfo, error) {
	f.TrackingNumberCalls++
	if f.GetTrackingNumberFn != nil {
		return f.GetTrackingNumberFn(ctx, s, orderSN, packageNumber)
	}
	return &ports.TrackingNumberInfo{}, nil
}

func (f *FakeMarketplaceClient) GetTrackingInfo(ctx context.Context, s *shop.Shop, trackingNumber string) (*ports.TrackingInfo, error) {
	if f.GetTrackingInfoFn != nil {
		return f.GetTrackingInfoFn(ctx, s, trackingNumber)
	}
	return &ports.TrackingInfo{TrackingNumber: trackingNumber}, nil
}
