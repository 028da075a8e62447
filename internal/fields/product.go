package fields

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/orderproof/constants"
)

var (
	reProductKeyword = regexp.MustCompile(`(?i)\b(?:\d+(?:\.\d+)?\s?(?:ml|l|g|gm|kg|gb|tb|mah|w|cm|mm|inch|inches|pcs|pc|pack|pieces|units?)|pack\s*of|set\s*of|combo|men'?s?|women'?s?|kids|unisex|cotton|polyester|shirt|t-shirt|tshirt|jeans|trousers|kurta|kurti|saree|dress|shoes|sneakers|sandals|slippers|watch|phone|smartphone|earbuds|earphones|headphones|charger|cable|cover|case|cream|serum|shampoo|conditioner|lotion|face\s*wash|oil|bottle|bag|backpack|wallet|book|toy|lipstick|perfume|deodorant|protein|supplement|size|colou?r|black|white|blue|red|green)\b`)
	reVariant        = regexp.MustCompile(`\([^)]{2,}\)|\[[^\]]{2,}\]`)
	reAddress        = regexp.MustCompile(`(?i)\b\d{6}\b|\b(?:road|rd\.|street|st\.|nagar|colony|sector|floor|flat\s*no|apartment|apt|near|opp\.?|opposite|district|dist\.|village|lane|block|phase|layout|cross|tehsil|taluk|landmark|pin\s*code|pincode)\b`)
	rePincode        = regexp.MustCompile(`\b[1-9]\d{5}\b`)
	reStreetWord     = regexp.MustCompile(`(?i)\b(?:road|rd|street|marg|nagar|colony|sector|flat\s*no|house\s*no|apartments?|apt|opp|opposite|district|village|lane|tehsil|taluk|landmark|pin\s*code|pincode|bengaluru|bangalore|mumbai|delhi|chennai|hyderabad|kolkata|pune)\b`)
	reBreadcrumb     = regexp.MustCompile(`›|»|\s>\s|\|.*\|`)
	reNavChrome      = regexp.MustCompile(`(?i)^(?:home|cart|account|search|menu|orders|your\s*orders|my\s*orders|back|help|buy\s*(?:it\s*)?again|track\s*(?:package|order)|write\s*a\s*(?:product\s*)?review|rate\s*(?:&|and)\s*review.*|return\s*(?:or|/)\s*replace\s*items?|share|view\s*(?:order|invoice|item|details).*|order\s*(?:details|summary|info)|payment\s*(?:information|method|details)|shipping\s*address|ship\s*to|deliver(?:y|ing)?\s*to.*|need\s*help\??|contact\s*us|sign\s*in|hello,?.*|filter.*|sort.*|download\s*invoice|archive\s*order|cancel\s*items?|see\s*all.*|more\s*items?)$`)
	reDeliveryStatus = regexp.MustCompile(`(?i)\b(?:delivered|arriving|out\s*for\s*delivery|shipped|dispatched|cancel+ed|returned|refund(?:ed)?|replacement|order\s*placed|order\s*confirmed|in\s*transit|return\s*window|package\s*was\s*handed)\b`)
	reFieldLabel     = regexp.MustCompile(`(?i)\b(?:order\s*(?:id|no|number|#|total|date|placed)|grand\s*total|total|price|mrp|sold\s*by|seller|qty|quantity|payment|invoice|gstin?|tracking|subtotal|you\s*(?:pay|paid|save))\b`)
	reHasMoney       = regexp.MustCompile(`(?i)₹|\brs\.?\s*\d|\binr\s*\d|\$\s*\d`)
	reSellerLabel    = regexp.MustCompile(`(?i)\b(?:sold\s*by|seller)\b`)
)

const (
	minProductLen = 8
	maxProductLen = 180
)

type productScanner struct {
	platformNames map[string]struct{}
}

func newProductScanner(platforms []PlatformPattern) productScanner {
	names := map[string]struct{}{}
	for _, p := range platforms {
		names[strings.ToLower(p.Name)] = struct{}{}
		for _, a := range p.Aliases {
			names[strings.ToLower(a)] = struct{}{}
		}
	}
	for _, n := range []string{"amazon.in", "amazon india", "flipkart plus", "myntra insider"} {
		names[n] = struct{}{}
	}
	return productScanner{platformNames: names}
}

// scan scores every line as a product title and returns the best one above
// the threshold.
func (s productScanner) scan(text string) (string, int) {
	lines := strings.Split(text, "\n")
	best, bestScore := "", 0
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if len(line) < minProductLen || len(line) > maxProductLen {
			continue
		}
		score := s.score(lines, i, line)
		if score > bestScore {
			best, bestScore = line, score
		}
	}
	if bestScore < constants.ProductScoreThreshold || s.Rejected(best) {
		return "", 0
	}
	return best, bestScore
}

func (s productScanner) score(lines []string, i int, line string) int {
	score := min(len(line)/10, 5)
	if reProductKeyword.MatchString(line) {
		score += 3
	}
	if reVariant.MatchString(line) {
		score += 2
	}
	if nearby(lines, i, 2, reHasMoney) {
		score += 2
	}
	if nearby(lines, i, 3, reSellerLabel) {
		score += 2
	}

	if reURL.MatchString(line) {
		score -= 10
	}
	if reNavChrome.MatchString(line) {
		score -= 5
	}
	if reDeliveryStatus.MatchString(line) {
		score -= 6
	}
	if reFieldLabel.MatchString(line) {
		score -= 6
	}
	if reAddress.MatchString(line) {
		score -= 5
	}
	if reBreadcrumb.MatchString(line) {
		score -= 4
	}
	if letterRatio(line) < 0.5 {
		score -= 5
	}
	return score
}

// Rejected is the final gate for product names from any source.
func (s productScanner) Rejected(name string) bool {
	n := strings.TrimSpace(name)
	if n == "" {
		return true
	}
	if reURL.MatchString(n) || reDeliveryStatus.MatchString(n) || reNavChrome.MatchString(n) || addressLike(n) {
		return true
	}
	if _, ok := s.platformNames[strings.ToLower(n)]; ok {
		return true
	}
	return !hasLetter(n)
}

// addressLike reports whether s reads as a postal address: a pincode next to
// a street or city word, or two distinct street words.
func addressLike(s string) bool {
	words := map[string]struct{}{}
	for _, w := range reStreetWord.FindAllString(s, -1) {
		words[strings.ToLower(strings.Join(strings.Fields(w), " "))] = struct{}{}
	}
	if rePincode.MatchString(s) {
		return len(words) > 0
	}
	return len(words) >= 2
}

// nearby reports whether re matches a line within dist of i, excluding i.
func nearby(lines []string, i, dist int, re *regexp.Regexp) bool {
	for j := max(0, i-dist); j <= min(len(lines)-1, i+dist); j++ {
		if j != i && re.MatchString(lines[j]) {
			return true
		}
	}
	return false
}

func letterRatio(s string) float64 {
	letters, total := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}
