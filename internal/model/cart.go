package model

import "time"

// CartItem is one appointment-to-be inside a checkout cart. Price is the full
// service price; AmountNow is what the customer pays in this checkout (equal
// to Price for a Full plan, half of it for a Half plan).
type CartItem struct {
	Stylist    string  `json:"stylist"`
	Service    string  `json:"service"`
	SubService string  `json:"sub_service"`
	Date       string  `json:"date"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time,omitempty"`
	ClientType string  `json:"client_type"`
	Price      float64 `json:"price"`
	AmountNow  float64 `json:"amount_now"`
}

// PendingCart stages cart contents between "checkout started" and "payment
// confirmed". Its ID is handed to the payment provider as correlation
// metadata. Records expire one hour after creation.
type PendingCart struct {
	ID          string     `json:"id"`
	Items       []CartItem `json:"items"`
	PaymentPlan string     `json:"payment_plan"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
}
