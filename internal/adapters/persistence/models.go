package persistence

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tomsync/shopee-collector/internal/domain/order"
	"github.com/tomsync/shopee-collector/internal/domain/shop"
)

// CompanyModel is the GORM model for the companies table
type CompanyModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:255"`
	IsSandbox bool   `gorm:"column:issandbox"`
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (CompanyModel) TableName() string {
	return "companies"
}

// ShopModel is the GORM model for the shops table
type ShopModel struct {
	ID                string `gorm:"primaryKey;size:64"`
	ShopID            int64  `gorm:"uniqueIndex;not null"`
	PartnerID         int64  `gorm:"not null"`
	PartnerKey        string `gorm:"size:255"`
	AccessToken       string `gorm:"size:512"`
	RefreshToken      string `gorm:"size:512"`
	ExpireAt          *time.Time
	Active            bool
	Deleted           bool
	PollWindowMinutes int
	IsSandbox         bool
	CompanyID         string `gorm:"size:64;index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName specifies the table name for GORM
func (ShopModel) TableName() string {
	return "shops"
}

// OrderModel is the GORM model for the toms_order table. The functional
// key is (platform, order_num); id is the surrogate primary key.
type OrderModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	Platform        string `gorm:"size:32;uniqueIndex:idx_platform_order_num"`
	OrderNum        string `gorm:"size:64;uniqueIndex:idx_platform_order_num"`
	Status          string `gorm:"size:32;index"`
	ActionStatus    string `gorm:"size:32"`
	OtherStatus     string `gorm:"size:32"`
	Country         string `gorm:"size:8"`
	Currency        string `gorm:"size:8"`
	OrderTime       *time.Time
	PayTime         *time.Time
	ShipByDate      *time.Time
	DaysToShip      int
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,4)"`
	CompanyID       string          `gorm:"size:64;index"`
	ShopID          int64           `gorm:"index"`
	FulfillmentFlag string          `gorm:"size:16"`
	CancelBy        string          `gorm:"size:64"`
	CancelReason    string          `gorm:"size:255"`
	MessageToSeller string          `gorm:"size:512"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName specifies the table name for GORM
func (OrderModel) TableName() string {
	return "toms_order"
}

// LogisticModel is the GORM model for the toms_logistic table. The
// unique index on toms_order_id enforces exactly one logistic per order.
type LogisticModel struct {
	ID                   string          `gorm:"primaryKey;size:64"`
	TomsOrderID          string          `gorm:"column:toms_order_id;size:64;uniqueIndex"`
	Name                 string          `gorm:"size:128"`
	TrackingNo           string          `gorm:"size:128;index"`
	EstimatedShippingFee decimal.Decimal `gorm:"type:decimal(18,4)"`
	ActualShippingFee    decimal.Decimal `gorm:"type:decimal(18,4)"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TableName specifies the table name for GORM
func (LogisticModel) TableName() string {
	return "toms_logistic"
}

// LogisticHistoryModel is the GORM model for the toms_logistic_history
// table
type LogisticHistoryModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	TomsLogisticID string `gorm:"column:toms_logistic_id;size:64;index"`
	TrackingNo     string `gorm:"size:128"`
	EventTime      *time.Time
	Location       string `gorm:"size:255"`
	Status         string `gorm:"size:128"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for GORM
func (LogisticHistoryModel) TableName() string {
	return "toms_logistic_history"
}

// OrderItemModel is the GORM model for the toms_order_item table
type OrderItemModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	TomsOrderID    string `gorm:"column:toms_order_id;size:64;index"`
	TomsLogisticID string `gorm:"column:toms_logistic_id;size:64;index"`
	TomsItemID     string `gorm:"column:toms_item_id;size:64"`
	ItemID         int64
	SKU            string          `gorm:"column:sku;size:128"`
	PromoSKU       string          `gorm:"column:promo_sku;size:128"`
	Name           string          `gorm:"size:255"`
	Variation      string          `gorm:"size:255"`
	Price          decimal.Decimal `gorm:"type:decimal(18,4)"`
	OriginalPrice  decimal.Decimal `gorm:"type:decimal(18,4)"`
	Qty            int
	Weight         float64
	ItemIndex      int    `gorm:"column:item_index"`
	TrackingNo     string `gorm:"size:128"`
	ImageURL       string `gorm:"column:image_url;size:512"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for GORM
func (OrderItemModel) TableName() string {
	return "toms_order_item"
}

// ToDomain converts the company model to the domain entity
func (m *CompanyModel) ToDomain() *shop.Company {
	return &shop.Company{
		ID:        m.ID,
		Name:      m.Name,
		IsSandbox: m.IsSandbox,
		Deleted:   m.Deleted,
	}
}

// ToDomain converts the shop model to the domain entity
func (m *ShopModel) ToDomain() *shop.Shop {
	return &shop.Shop{
		ID:                m.ID,
		ShopID:            m.ShopID,
		PartnerID:         m.PartnerID,
		PartnerKey:        m.PartnerKey,
		AccessToken:       m.AccessToken,
		RefreshToken:      m.RefreshToken,
		ExpireAt:          m.ExpireAt,
		Active:            m.Active,
		Deleted:           m.Deleted,
		PollWindowMinutes: m.PollWindowMinutes,
		IsSandbox:         m.IsSandbox,
		CompanyID:         m.CompanyID,
	}
}

// ShopModelFromDomain converts a domain shop to its GORM model
func ShopModelFromDomain(s *shop.Shop) *ShopModel {
	return &ShopModel{
		ID:                s.ID,
		ShopID:            s.ShopID,
		PartnerID:         s.PartnerID,
		PartnerKey:        s.PartnerKey,
		AccessToken:       s.AccessToken,
		RefreshToken:      s.RefreshToken,
		ExpireAt:          s.ExpireAt,
		Active:            s.Active,
		Deleted:           s.Deleted,
		PollWindowMinutes: s.PollWindowMinutes,
		IsSandbox:         s.IsSandbox,
		CompanyID:         s.CompanyID,
	}
}

// ToDomain converts the order model to the domain entity
func (m *OrderModel) ToDomain() *order.Order {
	return &order.Order{
		ID:              m.ID,
		Platform:        m.Platform,
		OrderNum:        m.OrderNum,
		Status:          order.Status(m.Status),
		ActionStatus:    order.ActionStatus(m.ActionStatus),
		OtherStatus:     m.OtherStatus,
		Country:         m.Country,
		Currency:        m.Currency,
		OrderTime:       m.OrderTime,
		PayTime:         m.PayTime,
		ShipByDate:      m.ShipByDate,
		DaysToShip:      m.DaysToShip,
		TotalAmount:     m.TotalAmount,
		CompanyID:       m.CompanyID,
		ShopID:          m.ShopID,
		FulfillmentFlag: order.FulfillmentFlag(m.FulfillmentFlag),
		CancelBy:        m.CancelBy,
		CancelReason:    m.CancelReason,
		MessageToSeller: m.MessageToSeller,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// ToDomain converts the logistic model to the domain entity
func (m *LogisticModel) ToDomain() *order.Logistic {
	return &order.Logistic{
		ID:                   m.ID,
		OrderID:              m.TomsOrderID,
		Name:                 m.Name,
		TrackingNo:           m.TrackingNo,
		EstimatedShippingFee: m.EstimatedShippingFee,
		ActualShippingFee:    m.ActualShippingFee,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}
