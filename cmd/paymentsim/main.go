// Command paymentsim walks a payment through refund, dispute and resolution
// against an in-memory ledger and prints the balances after each step.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/vitwit/payments"
	"github.com/vitwit/payments/config"
	"github.com/vitwit/payments/events"
	"github.com/vitwit/payments/fees"
	"github.com/vitwit/payments/ledger"
	"github.com/vitwit/payments/logger"
	"github.com/vitwit/payments/metrics"
	"github.com/vitwit/payments/scheduler"
	"github.com/vitwit/payments/store/sqlite"
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
)

const (
	asset    types.AssetID   = "usd"
	sender   types.AccountID = "alice"
	receiver types.AccountID = "bob"
	resolver types.AccountID = "judge"
	treasury types.AccountID = "treasury"
)

func main() {
	amountFlag := flag.String("amount", "20", "payment amount in base units")
	shareFlag := flag.Uint("share", 90, "beneficiary share of the principal awarded by the resolver")
	flag.Parse()

	amount, err := utils.ParseBalance(*amountFlag)
	if err != nil {
		log.Fatal(err)
	}
	if *shareFlag > 100 {
		log.Fatalf("share %d must be between 0 and 100", *shareFlag)
	}

	if err := run(context.Background(), amount, uint8(*shareFlag)); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, amount types.Balance, share uint8) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	policy, err := fees.NewPolicy(fees.PolicyConfig{
		SenderRules:      []fees.Rule{{Recipient: treasury, Fixed: 3, Mandatory: true}},
		BeneficiaryRules: []fees.Rule{{Recipient: treasury, Fixed: 3, Mandatory: true}},
	}, cfg.MaxFees, cfg.MaxDiscounts)
	if err != nil {
		return err
	}

	trail := events.NewLog()
	opts := []payments.Option{
		payments.WithLogger(zl),
		payments.WithFeeHandler(policy),
		payments.WithResolver(payments.NewStaticResolvers(resolver)),
		payments.WithEventSink(trail),
	}

	var reg *prometheus.Registry
	if cfg.EnableMetrics {
		reg = prometheus.NewRegistry()
		rec, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return err
		}
		opts = append(opts, payments.WithMetrics(rec))
	}

	if cfg.StoragePath != "" {
		st, err := sqlite.Open(cfg.StoragePath)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, payments.WithStore(st))
	}

	funds := ledger.NewMemory()
	if err := funds.Mint(asset, sender, 100); err != nil {
		return err
	}
	if err := funds.Mint(asset, receiver, 10); err != nil {
		return err
	}

	clock := scheduler.NewManualClock(1)
	engine, err := payments.New(cfg, funds, clock, opts...)
	if err != nil {
		return err
	}

	id, err := engine.Pay(ctx, sender, receiver, asset, amount, "order 1001")
	if err != nil {
		return err
	}
	if err := printBalances(ctx, "pay", funds); err != nil {
		return err
	}

	clock.Advance(1)
	cancelAt, err := engine.RequestRefund(ctx, sender, receiver, id)
	if err != nil {
		return err
	}
	fmt.Printf("refund scheduled at block %d as %s\n", cancelAt, utils.TaskName(id).Hex())

	clock.Advance(1)
	if err := engine.DisputeRefund(ctx, receiver, sender, id); err != nil {
		return err
	}
	if err := printBalances(ctx, "dispute", funds); err != nil {
		return err
	}

	clock.Advance(1)
	result := types.DisputeResult{InFavorOf: types.RoleBeneficiary, PercentBeneficiary: share}
	if err := engine.ResolveDispute(ctx, types.Signed(resolver), sender, receiver, id, result); err != nil {
		return err
	}
	if err := printBalances(ctx, "resolve", funds); err != nil {
		return err
	}

	fmt.Println("events:")
	for _, ev := range trail.All() {
		fmt.Printf("  block %d  %-32s payment %d\n", ev.Block, ev.Kind, ev.PaymentID)
	}

	if reg != nil {
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
				return err
			}
		}
	}
	return nil
}

func printBalances(ctx context.Context, step string, funds *ledger.Memory) error {
	fmt.Printf("after %s:\n", step)
	for _, who := range funds.Accounts(asset) {
		free, err := funds.Balance(ctx, asset, who)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", who, err)
		}
		held, err := funds.BalanceOnHold(ctx, asset, ledger.ReasonTransferPayment, who)
		if err != nil {
			return fmt.Errorf("held balance of %s: %w", who, err)
		}
		fmt.Printf("  %-10s free=%s held=%s\n", who, utils.FormatBalance(free), utils.FormatBalance(held))
	}
	return nil
}
