package llm

// Type is a JSON value type understood by every provider.
type Type string

const (
	TypeObject  Type = "object"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
)

// Schema is the provider-neutral response contract. Providers translate it
// to their native form; responses are always validated against JSONSchema().
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
	Enum        []string
	Minimum     *float64
	Maximum     *float64
	Pattern     string
}

// JSONSchema renders s as a draft 2020-12 subset for local validation.
func (s *Schema) JSONSchema() map[string]any {
	m := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	if s.Minimum != nil {
		m["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		m["maximum"] = *s.Maximum
	}
	if s.Pattern != "" {
		m["pattern"] = s.Pattern
	}
	if s.Type == TypeArray && s.Items != nil {
		m["items"] = s.Items.JSONSchema()
	}
	if s.Type == TypeObject {
		props := map[string]any{}
		for k, v := range s.Properties {
			props[k] = v.JSONSchema()
		}
		m["properties"] = props
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	}
	return m
}

func str(desc string) *Schema     { return &Schema{Type: TypeString, Description: desc} }
func boolean(desc string) *Schema { return &Schema{Type: TypeBoolean, Description: desc} }

func amount(desc string) *Schema {
	return &Schema{Type: TypeNumber, Description: desc, Minimum: ptr(0.0)}
}

func confidence() *Schema {
	return &Schema{Type: TypeInteger, Description: "How sure you are, 0 to 100", Minimum: ptr(0.0), Maximum: ptr(100.0)}
}

func ptr[T any](v T) *T { return &v }

// OrderSchema constrains order-detail suggestions.
func OrderSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"order_id":     str("Order identifier exactly as printed, empty if not visible"),
			"amount":       amount("Final amount paid, number without currency symbol, 0 if not visible"),
			"order_date":   {Type: TypeString, Description: "Order date as YYYY-MM-DD, empty if not visible"},
			"sold_by":      str("Seller name, empty if not visible"),
			"product_name": str("Product title, empty if not visible"),
			"confidence":   confidence(),
		},
		Required: []string{"confidence"},
	}
}

// PurchaseSchema constrains purchase-proof verdicts.
func PurchaseSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"detected_order_id": str("Order identifier visible on the screenshot"),
			"detected_amount":   amount("Amount paid visible on the screenshot"),
			"order_id_match":    boolean("Whether the visible order id is the expected one"),
			"amount_match":      boolean("Whether the visible amount is the expected one"),
			"confidence":        confidence(),
			"note":              str("Short reason when something does not match"),
		},
		Required: []string{"order_id_match", "amount_match", "confidence"},
	}
}

// RatingSchema constrains rating-proof verdicts.
func RatingSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"detected_buyer_name":    str("Account or profile name visible on the screenshot"),
			"detected_product_name":  str("Product the review is for"),
			"detected_reviewer_name": str("Name shown as the review author"),
			"buyer_name_match":       boolean("Whether the visible account name is the expected buyer"),
			"product_name_match":     boolean("Whether the reviewed product is the expected one"),
			"reviewer_name_match":    boolean("Whether the review author is the expected reviewer"),
			"rating":                 {Type: TypeInteger, Description: "Star rating given, 0 if not visible", Minimum: ptr(0.0), Maximum: ptr(5.0)},
			"confidence":             confidence(),
			"note":                   str("Short reason when something does not match"),
		},
		Required: []string{"buyer_name_match", "product_name_match", "confidence"},
	}
}

// ReturnWindowSchema constrains return-window verdicts.
func ReturnWindowSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"detected_order_id":     str("Order identifier visible on the screenshot"),
			"detected_product_name": str("Product title visible on the screenshot"),
			"detected_amount":       amount("Amount paid visible on the screenshot"),
			"detected_sold_by":      str("Seller name visible on the screenshot"),
			"order_id_match":        boolean("Whether the visible order id is the expected one"),
			"product_name_match":    boolean("Whether the visible product is the expected one"),
			"amount_match":          boolean("Whether the visible amount is the expected one"),
			"sold_by_match":         boolean("Whether the visible seller is the expected one"),
			"return_window_closed":  boolean("Whether the page states the return window has closed"),
			"confidence":            confidence(),
			"note":                  str("Short reason when something does not match"),
		},
		Required: []string{"order_id_match", "return_window_closed", "confidence"},
	}
}
