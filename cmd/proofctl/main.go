package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/orderproof/internal/common"
	"github.com/joseph-ayodele/orderproof/internal/core"
)

const usage = `usage: proofctl <command> [flags] <image>

commands:
  extract        read order id, amount, date, seller and product
  purchase       --order-id ID --amount N
  rating         --buyer NAME --product TITLE [--reviewer NAME]
  return-window  --order-id ID --product TITLE --amount N [--sold-by NAME]
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes one command and returns the process exit code. Every return
// path after the service is built closes it.
func run(args []string, stdout io.Writer) int {
	if len(args) < 1 {
		printError("%s", usage)
		return 2
	}
	cmd := args[0]
	switch cmd {
	case "extract", "purchase", "rating", "return-window":
	default:
		printError("unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	var (
		envFile  = fs.String("env", ".env", "optional .env file")
		orderID  = fs.String("order-id", "", "expected order id")
		amount   = fs.Float64("amount", 0, "expected amount")
		buyer    = fs.String("buyer", "", "expected buyer name")
		product  = fs.String("product", "", "expected product name")
		reviewer = fs.String("reviewer", "", "expected reviewer name")
		soldBy   = fs.String("sold-by", "", "expected seller")
	)
	if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 1 {
		printError("%s", usage)
		return 2
	}

	image, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		printError("Error: read image: %v\n", err)
		return 1
	}

	cfg := common.LoadConfig(*envFile)
	logger := common.NewLogger(os.Stderr, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := core.NewService(ctx, cfg, logger)
	if err != nil {
		logger.Error("service.init.failed", "error", err)
		return 1
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			logger.Warn("service.close.failed", "error", cerr)
		}
	}()

	var out any
	switch cmd {
	case "extract":
		out = svc.ExtractOrderDetails(ctx, image)
	case "purchase":
		out = svc.VerifyPurchaseProof(ctx, image, *orderID, *amount)
	case "rating":
		out = svc.VerifyRatingProof(ctx, image, *buyer, *product, *reviewer)
	case "return-window":
		out = svc.VerifyReturnWindowProof(ctx, image, *orderID, *product, *amount, *soldBy)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("output.encode.failed", "error", err)
		return 1
	}
	return 0
}
