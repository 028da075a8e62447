package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reMoneyNoise = regexp.MustCompile(`(?i)(₹|rs\.?|inr|\$|usd|,|\s)`)
	moneyKeys    = []string{"amount", "detected_amount"}
	boolKeys     = []string{
		"order_id_match", "amount_match", "buyer_name_match", "product_name_match",
		"reviewer_name_match", "sold_by_match", "return_window_closed",
	}
)

// NormalizeReply coerces the loose shapes models like to return into the
// strict response contract: currency strings become numbers, fractional
// confidences are scaled to 0..100, "yes"/"no" become booleans and nulls are
// dropped. It returns the rewritten document and the keys it dropped.
func NormalizeReply(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, fmt.Errorf("normalize: decode: %w", err)
	}

	var dropped []string
	for k, v := range m {
		if v == nil {
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		}
	}

	for _, k := range moneyKeys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		s = reMoneyNoise.ReplaceAllString(s, "")
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
			m[k] = f
		} else {
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	for _, k := range boolKeys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y":
			m[k] = true
		case "false", "no", "n":
			m[k] = false
		default:
			delete(m, k)
			dropped = append(dropped, k+"(type)")
		}
	}

	for _, k := range []string{"confidence", "rating"} {
		var f float64
		switch t := m[k].(type) {
		case float64:
			f = t
		case string:
			p, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
			if err != nil {
				delete(m, k)
				dropped = append(dropped, k+"(type)")
				continue
			}
			f = p
		default:
			continue
		}
		if k == "confidence" && f > 0 && f <= 1 && f != math.Trunc(f) {
			f *= 100
		}
		m[k] = math.Round(f)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
