package llm

import "context"

// Request is one provider-neutral generation call.
type Request struct {
	System          string
	Prompt          string
	Image           []byte
	MIMEType        string
	Schema          *Schema
	MaxOutputTokens int32
	Temperature     float32
}

// Generator is a model provider. Implementations must honour ctx cancellation
// and return the raw text of the first candidate.
type Generator interface {
	Name() string
	Generate(ctx context.Context, model string, req Request) (string, error)
	Close() error
}

// OrderSuggestion is the model's reading of an order screenshot.
type OrderSuggestion struct {
	OrderID     string  `json:"order_id,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	OrderDate   string  `json:"order_date,omitempty"` // YYYY-MM-DD
	SoldBy      string  `json:"sold_by,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
	Confidence  int     `json:"confidence"` // 0..100
}

// PurchaseCheck is the model's verdict on a purchase proof.
type PurchaseCheck struct {
	DetectedOrderID string  `json:"detected_order_id,omitempty"`
	DetectedAmount  float64 `json:"detected_amount,omitempty"`
	OrderIDMatch    bool    `json:"order_id_match"`
	AmountMatch     bool    `json:"amount_match"`
	Confidence      int     `json:"confidence"`
	Note            string  `json:"note,omitempty"`
}

// RatingCheck is the model's verdict on a rating or review proof.
type RatingCheck struct {
	DetectedBuyerName    string `json:"detected_buyer_name,omitempty"`
	DetectedProductName  string `json:"detected_product_name,omitempty"`
	DetectedReviewerName string `json:"detected_reviewer_name,omitempty"`
	BuyerNameMatch       bool   `json:"buyer_name_match"`
	ProductNameMatch     bool   `json:"product_name_match"`
	ReviewerNameMatch    bool   `json:"reviewer_name_match"`
	Rating               int    `json:"rating,omitempty"`
	Confidence           int    `json:"confidence"`
	Note                 string `json:"note,omitempty"`
}

// ReturnWindowCheck is the model's verdict on a return-window proof.
type ReturnWindowCheck struct {
	DetectedOrderID     string  `json:"detected_order_id,omitempty"`
	DetectedProductName string  `json:"detected_product_name,omitempty"`
	DetectedAmount      float64 `json:"detected_amount,omitempty"`
	DetectedSoldBy      string  `json:"detected_sold_by,omitempty"`
	OrderIDMatch        bool    `json:"order_id_match"`
	ProductNameMatch    bool    `json:"product_name_match"`
	AmountMatch         bool    `json:"amount_match"`
	SoldByMatch         bool    `json:"sold_by_match"`
	ReturnWindowClosed  bool    `json:"return_window_closed"`
	Confidence          int     `json:"confidence"`
	Note                string  `json:"note,omitempty"`
}
