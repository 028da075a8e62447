package llm

import (
	"fmt"
	"strings"
)

const maxPromptText = 3000

// Known carries values the deterministic pass already found, so the model can
// confirm them instead of starting over.
type Known struct {
	OrderID  string
	Amount   float64
	Platform string
}

const baseRules = "Return ONLY JSON that matches the provided schema. " +
	"Never output null; omit fields you cannot see. " +
	"Amounts are plain numbers without currency symbols or thousands separators. " +
	"Do not guess: a value that is not visible must be left out."

// OrderSystemPrompt is shared by the refine and direct extraction calls.
func OrderSystemPrompt() string {
	parts := []string{
		"You read e-commerce order screenshots (order details pages, invoices, confirmation mails).",
		baseRules,
		"'order_id' is the marketplace order number, never a tracking, AWB, shipment, invoice or transaction id.",
		"'amount' is the final amount the buyer paid (Order Total, Grand Total, Amount Paid). Never use MRP, list price, savings, discount, cashback or delivery fees.",
		"'order_date' uses YYYY-MM-DD.",
		"'confidence' is 0 to 100.",
	}
	return strings.Join(parts, " ")
}

// RefinePrompt asks the model to fill the gaps in a deterministic read.
func RefinePrompt(text string, known Known) string {
	var b strings.Builder
	b.WriteString("An image of the order screenshot is attached together with its OCR text.\n")
	if known.Platform != "" {
		b.WriteString("The page looks like it comes from: ")
		b.WriteString(known.Platform)
		b.WriteString("\n")
	}
	if known.OrderID != "" {
		b.WriteString("OCR already found order id: ")
		b.WriteString(known.OrderID)
		b.WriteString(" (confirm or correct it)\n")
	}
	if known.Amount > 0 {
		fmt.Fprintf(&b, "OCR already found amount paid: %.2f (confirm or correct it)\n", known.Amount)
	}
	writeText(&b, text)
	return b.String()
}

// DirectPrompt asks the model to read the screenshot with no OCR help.
func DirectPrompt() string {
	return "An image of the order screenshot is attached. OCR could not read it reliably. " +
		"Read the order id, amount paid, order date, seller and product title directly from the image."
}

// VerifySystemPrompt is shared by every proof verification call.
func VerifySystemPrompt() string {
	parts := []string{
		"You check screenshots submitted as proof for cashback claims against the values the buyer declared.",
		baseRules,
		"Compare carefully; ignore letter case, spacing and punctuation in ids and names.",
		"Amounts match when they differ by at most 2 rupees, or 0.5% above 1000.",
		"Report what you actually see in the detected_* fields even when it does not match.",
		"'confidence' is 0 to 100.",
	}
	return strings.Join(parts, " ")
}

// PurchasePrompt asks the model to check a purchase proof.
func PurchasePrompt(orderID string, amount float64, text string) string {
	var b strings.Builder
	b.WriteString("Check that this order screenshot shows the declared purchase.\n")
	fmt.Fprintf(&b, "Declared order id: %s\n", orderID)
	fmt.Fprintf(&b, "Declared amount paid: %.2f\n", amount)
	writeText(&b, text)
	return b.String()
}

// RatingPrompt asks the model to check a rating or review proof.
func RatingPrompt(buyer, product, reviewer string, text string) string {
	var b strings.Builder
	b.WriteString("Check that this screenshot shows a rating or review posted by the declared buyer for the declared product.\n")
	fmt.Fprintf(&b, "Declared buyer account name: %s\n", buyer)
	fmt.Fprintf(&b, "Declared product: %s\n", product)
	if reviewer != "" {
		fmt.Fprintf(&b, "Declared reviewer name: %s\n", reviewer)
	}
	b.WriteString("Set 'rating' to the number of filled stars if visible.\n")
	writeText(&b, text)
	return b.String()
}

// ReturnWindowPrompt asks the model to check a return-window proof.
func ReturnWindowPrompt(orderID, product string, amount float64, soldBy, text string) string {
	var b strings.Builder
	b.WriteString("Check that this order screenshot shows the declared order and states that its return window is closed.\n")
	fmt.Fprintf(&b, "Declared order id: %s\n", orderID)
	fmt.Fprintf(&b, "Declared product: %s\n", product)
	fmt.Fprintf(&b, "Declared amount paid: %.2f\n", amount)
	if soldBy != "" {
		fmt.Fprintf(&b, "Declared seller: %s\n", soldBy)
	}
	writeText(&b, text)
	return b.String()
}

func writeText(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.WriteString("\nOCR text (first ~3k chars):\n")
	if r := []rune(text); len(r) > maxPromptText {
		b.WriteString(string(r[:maxPromptText]))
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
}
