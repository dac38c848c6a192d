package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PricingRequest is the input to apply and redeem.
// Fields other than amount, userId and orderId are kept in Extra and echoed back.
type PricingRequest struct {
	Amount  float64
	UserID  *string
	OrderID *string
	Extra   map[string]any
}

// PricingResult is the outcome of apply and redeem.
type PricingResult struct {
	Amount   float64
	Discount float64
	Total    float64
	UserID   *string
	OrderID  *string
	Extra    map[string]any
}

// NewPricingResult returns the result for a request with no discount applied.
func NewPricingResult(req *PricingRequest) *PricingResult {
	return &PricingResult{
		Amount:   req.Amount,
		Discount: 0,
		Total:    req.Amount,
		UserID:   req.UserID,
		OrderID:  req.OrderID,
		Extra:    req.Extra,
	}
}

var reservedPricingKeys = map[string]bool{
	"amount":   true,
	"discount": true,
	"total":    true,
	"userId":   true,
	"orderId":  true,
}

// UnmarshalJSON decodes a pricing request, collecting unknown fields into Extra.
func (r *PricingRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	amount, ok := raw["amount"]
	if !ok || bytes.Equal(bytes.TrimSpace(amount), []byte("null")) {
		return &ValidationError{Field: "amount", Message: "is required"}
	}
	if err := json.Unmarshal(amount, &r.Amount); err != nil {
		return &ValidationError{Field: "amount", Message: "must be a number"}
	}

	if v, ok := raw["userId"]; ok {
		if err := json.Unmarshal(v, &r.UserID); err != nil {
			return &ValidationError{Field: "userId", Message: "must be a string"}
		}
	}
	if v, ok := raw["orderId"]; ok {
		if err := json.Unmarshal(v, &r.OrderID); err != nil {
			return &ValidationError{Field: "orderId", Message: "must be a string"}
		}
	}

	for key, value := range raw {
		if reservedPricingKeys[key] {
			continue
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return fmt.Errorf("failed to decode field %s: %w", key, err)
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = decoded
	}

	return nil
}

// MarshalJSON encodes the result as a flat object with Extra merged in.
func (r PricingResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+5)
	for key, value := range r.Extra {
		out[key] = value
	}

	out["amount"] = r.Amount
	out["discount"] = r.Discount
	out["total"] = r.Total
	if r.UserID != nil {
		out["userId"] = *r.UserID
	}
	if r.OrderID != nil {
		out["orderId"] = *r.OrderID
	}

	return json.Marshal(out)
}
