package fields

// Amount source tiers; a higher tier always wins.
const (
	AmountScoreBare     = 10
	AmountScoreCurrency = 20
	AmountScoreGeneric  = 30
	AmountScoreFinal    = 40
)

// Candidate is one scored order-identifier reading.
type Candidate struct {
	Value    string `json:"value"`
	Score    int    `json:"score"`
	Platform string `json:"platform,omitempty"`
	key      string
	length   int
	firstPos int
}

// Partial is what a single recognition pass yields. Zero values mean unset.
type Partial struct {
	OrderID       string
	OrderIDScore  int
	OrderPlatform string // platform whose pattern produced the id, "" for labelled/generic ids

	Amount      float64
	AmountScore int

	OrderDate      string // YYYY-MM-DD
	OrderDateScore int

	SoldBy      string
	SoldByScore int

	ProductName  string
	ProductScore int

	Candidates []Candidate
}

func (p Partial) HasOrderID() bool { return p.OrderID != "" }
func (p Partial) HasAmount() bool  { return p.Amount > 0 }

// Complete reports whether the two fields that end the recognition loop are set.
func (p Partial) Complete() bool { return p.HasOrderID() && p.HasAmount() }
