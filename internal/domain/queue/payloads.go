package queue

// CollectPayload triggers a full ingestion cycle for one shop. ShopRef
// is either the internal shop key or the marketplace shop id rendered
// as a string.
type CollectPayload struct {
	ShopRef string `json:"shop_ref"`
	Manual  bool   `json:"manual,omitempty"`
}

// DetailPayload carries a batch of order numbers for detail processing
type DetailPayload struct {
	ShopRef  string   `json:"shop_ref"`
	OrderSNs []string `json:"order_sns"`
}

// ShipmentPayload triggers shipment-list ingestion for one shop
type ShipmentPayload struct {
	ShopRef string `json:"shop_ref"`
}

// InventoryPayload triggers a stock sync pass for one shop
type InventoryPayload struct {
	ShopRef string `json:"shop_ref"`
}
