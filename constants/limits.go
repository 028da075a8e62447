package constants

import "time"

// Tuned defaults. Every value here can be overridden through common.Config.
const (
	DefaultPoolSize           = 2
	DefaultRecognitionTimeout = 20 * time.Second
	DefaultPrepTimeout        = 15 * time.Second
	DefaultWorkingWidth       = 1600
	DefaultModelCallTimeout   = 18 * time.Second
	DefaultMaxOutputTokens    = 1024
	DefaultAcceptConfidence   = 80

	DefaultMaxImageBytes      = 8 << 20
	DefaultMaxEstimatedTokens = 12000
	DefaultMaxPlausibleAmount = 500000

	// Equal-score amount ties prefer values inside this range.
	TypicalAmountMin = 50
	TypicalAmountMax = 50000

	// Product candidates below this score are discarded.
	ProductScoreThreshold = 4
)

// ManualVerificationNote is attached to every result the pipeline refused to process.
const ManualVerificationNote = "manual verification required"
