package fields

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const amazonOrderPage = `Your Orders
Order ID: 408-1234567-7654321
Order placed 12 January 2024
Samsung Galaxy M14 5G (Blue, 6GB RAM, 128GB Storage)
Sold by: Appario Retail Private Ltd
Grand Total ₹1,499.00`

func TestExtract_AmazonOrderPage(t *testing.T) {
	p := NewExtractor(Config{}).Extract(amazonOrderPage)

	assert.Equal(t, "408-1234567-7654321", p.OrderID)
	assert.Equal(t, "amazon", p.OrderPlatform)
	assert.Equal(t, 16, p.OrderIDScore)
	assert.Equal(t, 1499.0, p.Amount)
	assert.Equal(t, AmountScoreFinal, p.AmountScore)
	assert.Equal(t, "2024-01-12", p.OrderDate)
	assert.Equal(t, "Appario Retail Private Ltd", p.SoldBy)
	assert.Equal(t, "Samsung Galaxy M14 5G (Blue, 6GB RAM, 128GB Storage)", p.ProductName)
	assert.True(t, p.Complete())
}

func TestExtract_IsIdempotent(t *testing.T) {
	e := NewExtractor(Config{})
	assert.Equal(t, e.Extract(amazonOrderPage), e.Extract(amazonOrderPage))
}

func TestExtract_EmptyText(t *testing.T) {
	p := NewExtractor(Config{}).Extract("")
	assert.False(t, p.HasOrderID())
	assert.False(t, p.HasAmount())
}

func TestExtract_OrderIDs(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     string
		platform string
	}{
		{"flipkart", "Order ID - OD330012345678901234\nTotal ₹499", "OD330012345678901234", "flipkart"},
		{"amazon without label", "amazon.in\n408-1234567-7654321", "408-1234567-7654321", "amazon"},
		{"spaced digits coerced", "amazon.in\nOrder # 408 1234567 7654321\nTotal ₹ 2,350", "408-1234567-7654321", "amazon"},
		{"generic labelled id", "Order No: 1234567890\nAmount ₹250", "1234567890", ""},
		{"label on previous line", "Order ID\n98765ABCD12", "98765ABCD12", ""},
		{"tracking line excluded", "Tracking ID: 1234567890123\nOrder ID: 171-5550001-2223334", "171-5550001-2223334", "amazon"},
		{"awb only", "AWB 408-1234567-7654321", "", ""},
		{"uuid rejected", "Order ID: 3f2504e0-4f89-11d3-9a0c-0305e82c3301", "", ""},
		{"object id rejected", "Order ID: 65a1b2c3d4e5f6a7b8c9d0e1", "", ""},
		{"internal marker rejected", "Order ID: MOBO-123456", "", ""},
		{"ebay", "eBay order number 12-34567-89012", "12-34567-89012", "ebay"},
	}
	e := NewExtractor(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := e.Extract(tt.text)
			assert.Equal(t, tt.want, p.OrderID)
			assert.Equal(t, tt.platform, p.OrderPlatform)
		})
	}
}

func TestExtract_RepeatedCandidateDeduplicated(t *testing.T) {
	p := NewExtractor(Config{}).Extract("Order ID: 408-1234567-7654321\nInvoice for order 408-1234567-7654321")
	require.Len(t, p.Candidates, 1)
	assert.Equal(t, 17, p.Candidates[0].Score)
}

func TestExtract_Amounts(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		want  float64
		score int
	}{
		{"you pay beats mrp", "MRP ₹999 You Pay ₹599", 599, AmountScoreFinal},
		{"last final label wins", "Order Total ₹1,200\nAmount Paid ₹1,150.50", 1150.5, AmountScoreFinal},
		{"final label value on next line", "Grand Total\n₹3,499", 3499, AmountScoreFinal},
		{"generic max", "Price ₹400\nSubtotal ₹800", 800, AmountScoreGeneric},
		{"currency anywhere", "Deal unlocked\n₹1,299 only", 1299, AmountScoreCurrency},
		{"mrp line ignored", "M.R.P ₹2,999\n₹1,799", 1799, AmountScoreCurrency},
		{"bare money-like", "Some text 749.00 here", 749, AmountScoreBare},
		{"indian grouping", "Grand Total Rs. 1,24,999.00", 124999, AmountScoreFinal},
		{"card digits after paid by", "Order ID: 408-1234567-7654321\nItem total ₹1,499.00\nPaid by Visa ending 8842", 1499, AmountScoreGeneric},
		{"card digits under final label", "Amount Paid\nVisa ending 4412\nItem total ₹1,499.00", 1499, AmountScoreGeneric},
		{"masked card number", "Grand Total ₹2,199\nCard XXXX 4412", 2199, AmountScoreFinal},
		{"above ceiling", "Grand Total ₹9,99,999", 0, 0},
		{"nothing", "Hello there", 0, 0},
	}
	e := NewExtractor(Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := e.Extract(tt.text)
			assert.Equal(t, tt.want, p.Amount)
			assert.Equal(t, tt.score, p.AmountScore)
		})
	}
}

func TestExtract_AmountNeverAnIDFragment(t *testing.T) {
	e := NewExtractor(Config{})
	for _, text := range []string{
		"Order ID: 408-1234567-7654321\nAmount ₹408",
		"Order ID: 408-1234567-7654321\nTotal ₹4567",
		"Order ID: 408-1234567-7654321\nPaid ₹34567",
	} {
		p := e.Extract(text)
		require.Equal(t, "408-1234567-7654321", p.OrderID, text)
		assert.False(t, p.HasAmount(), text)
	}
}

func TestAmountIsIDFragment(t *testing.T) {
	assert.True(t, AmountIsIDFragment(408, "408-1234567-7654321"))
	assert.True(t, AmountIsIDFragment(34567, "408-1234567-7654321"))
	assert.False(t, AmountIsIDFragment(1499, "408-1234567-7654321"))
	assert.False(t, AmountIsIDFragment(599, ""))
}

func TestExtract_Dates(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Ordered on 05/03/2024", "2024-03-05"},
		{"Order Date:\nJan 5, 2024", "2024-01-05"},
		{"Delivered 2024-02-10", "2024-02-10"},
		{"Order date 31/02/2024", ""},
		{"Placed on 3rd March 2025", "2025-03-03"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d, _ := scanDate(tt.text)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestExtract_Seller(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Sold by XYZ Retail and Fulfilled by Amazon", "XYZ Retail"},
		{"Seller:\nCloudtail India", "Cloudtail India"},
		{"Fulfilled by: RetailNet", "RetailNet"},
		{"Sold by: www.shop.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, _ := scanSeller(tt.text)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestExtract_ProductNameGate(t *testing.T) {
	e := NewExtractor(Config{})
	tests := []struct {
		name string
		text string
		want string
	}{
		{"url rejected", "Order ID: 408-1234567-7654321\nhttps://www.amazon.in/gp/your-account/order-details\nGrand Total ₹1,499.00", ""},
		{"status rejected", "Delivered on 12 January\nGrand Total ₹1,499.00", ""},
		{"address rejected", "Flat No 12, MG Road, Indiranagar, Bengaluru 560038\n₹1,499.00\nSold by: Appario Retail", ""},
		{"title picked", "Boat Airdopes 141 Bluetooth Earbuds (Black)\n₹1,299\nSold by: Boat Store", "Boat Airdopes 141 Bluetooth Earbuds (Black)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.text).ProductName)
		})
	}

	s := e.Sanitizer()
	for _, n := range []string{
		"amazon",
		"Flipkart",
		"https://x.in/p",
		"Out for delivery",
		"Your Orders",
		"12345678",
		"Flat No 12, MG Road, Indiranagar, Bengaluru 560038",
		"House No 4, Gandhi Nagar Colony",
	} {
		p, notes := s.Apply(Partial{ProductName: n, ProductScore: 9})
		assert.Empty(t, p.ProductName, n)
		assert.Zero(t, p.ProductScore, n)
		assert.Len(t, notes, 1, n)
	}
	for _, n := range []string{
		"Nivea Men Face Wash 100 ml",
		"Wildcraft Cross Body Bag (Main Compartment)",
		"Road Runner Cycling Gloves",
	} {
		p, notes := s.Apply(Partial{ProductName: n})
		assert.Equal(t, n, p.ProductName)
		assert.Empty(t, notes, n)
	}
}

func TestSanitizer(t *testing.T) {
	s := NewExtractor(Config{MaxPlausibleAmount: 10000}).Sanitizer()
	p, notes := s.Apply(Partial{
		OrderID:     "408-1234567-7654321",
		Amount:      20000,
		ProductName: "www.flipkart.com",
		OrderDate:   "1499.00",
		SoldBy:      "Good Seller",
	})
	assert.Zero(t, p.Amount)
	assert.Empty(t, p.ProductName)
	assert.Empty(t, p.OrderDate)
	assert.Equal(t, "Good Seller", p.SoldBy)
	assert.Len(t, notes, 3)

	p, notes = s.Apply(Partial{
		OrderID:     "408-1234567-7654321",
		Amount:      1499,
		ProductName: "Flat No 12, MG Road, Indiranagar, Bengaluru 560038",
	})
	assert.Empty(t, p.ProductName, "model-suggested address is not a product")
	assert.Equal(t, 1499.0, p.Amount)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "address")
}

func TestPlatformFormat(t *testing.T) {
	amazon := DefaultPlatforms()[0]
	v, ok := amazon.Format("40812345677654321")
	require.True(t, ok)
	assert.Equal(t, "408-1234567-7654321", v)

	_, ok = amazon.Format("4081234567765432")
	assert.False(t, ok)
}

func TestLoadPlatforms(t *testing.T) {
	extra, err := LoadPlatforms(strings.NewReader("platforms:\n  - name: lenskart\n    pattern: '\\bLK\\d{9}\\b'\n    bonus: 6\n"))
	require.NoError(t, err)
	require.Len(t, extra, 1)

	e := NewExtractor(Config{Platforms: MergePlatforms(DefaultPlatforms(), extra)})
	p := e.Extract("Lenskart order LK123456789")
	assert.Equal(t, "LK123456789", p.OrderID)
	assert.Equal(t, "lenskart", p.OrderPlatform)

	_, err = LoadPlatforms(strings.NewReader("platforms:\n  - name: broken\n    pattern: '(['\n"))
	assert.Error(t, err)

	_, err = LoadPlatforms(strings.NewReader("platforms:\n  - pattern: 'x'\n"))
	assert.Error(t, err)
}
