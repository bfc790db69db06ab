// Command cli is a small operator console for the ledger: account creation,
// deposits, withdrawals, transfers, balance and history queries, and the
// stale-reservation recovery pass.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/amirasaad/ledger/infra"
	"github.com/amirasaad/ledger/infra/initializer"
	inframepo "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/config"
	domain "github.com/amirasaad/ledger/pkg/domain/ledger"
	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/amirasaad/ledger/pkg/money"
	ledgersvc "github.com/amirasaad/ledger/pkg/service/ledger"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  create [initial_minor_units] [currency]
  deposit  <account_id> <amount_minor_units> <currency> <idempotency_key>
  withdraw <account_id> <amount_minor_units> <currency> <idempotency_key>
  transfer <from_id> <to_id> <amount_minor_units> <currency> <idempotency_key>
  balance  <account_id>
  history  <account_id> [page_token]
  freeze   <account_id>
  close    <account_id>
  recover`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("loading configuration: %v", err)
	}
	logger := initializer.SetupLogger(cfg.Log)

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		fail("connecting to database: %v", err)
	}
	if err := infra.Migrate(db); err != nil {
		fail("migrating schema: %v", err)
	}

	svc := ledgersvc.NewService(config.Deps{
		Uow:    inframepo.NewUoW(db),
		Logger: logger,
		Config: cfg,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "create":
		runCreate(ctx, svc, os.Args[2:])
	case "deposit":
		runDeposit(ctx, svc, os.Args[2:])
	case "withdraw":
		runWithdraw(ctx, svc, os.Args[2:])
	case "transfer":
		runTransfer(ctx, svc, os.Args[2:])
	case "balance":
		runBalance(ctx, svc, os.Args[2:])
	case "history":
		runHistory(ctx, svc, os.Args[2:])
	case "freeze":
		runSetStatus(ctx, svc, os.Args[2:], domain.StatusFrozen)
	case "close":
		runSetStatus(ctx, svc, os.Args[2:], domain.StatusClosed)
	case "recover":
		runRecover(ctx, svc)
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
}

func runCreate(ctx context.Context, svc *ledgersvc.Service, args []string) {
	initial := int64(0)
	currency := money.USD
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fail("invalid initial balance: %v", err)
		}
		initial = v
	}
	if len(args) > 1 {
		currency = money.Code(args[1])
	}
	balance, err := money.New(initial, currency)
	if err != nil {
		fail("invalid balance: %v", err)
	}
	acc, err := svc.CreateAccount(ctx, balance, domain.StatusActive)
	if err != nil {
		fail("creating account: %v", err)
	}
	color.Green("account created: id=%s balance=%s", acc.ID, acc.Balance)
}

func runDeposit(ctx context.Context, svc *ledgersvc.Service, args []string) {
	if len(args) < 4 {
		fail("usage: deposit <account_id> <amount_minor_units> <currency> <idempotency_key>")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fail("invalid amount: %v", err)
	}
	req := dto.DepositRequest{
		AccountID:      args[0],
		Amount:         amount,
		Currency:       args[2],
		IdempotencyKey: args[3],
	}
	if err := req.Validate(); err != nil {
		fail("invalid request: %v", err)
	}
	accountID, m, key, err := req.Args()
	if err != nil {
		fail("invalid request: %v", err)
	}
	printReceipt(svc.Deposit(ctx, accountID, m, key))
}

func runWithdraw(ctx context.Context, svc *ledgersvc.Service, args []string) {
	if len(args) < 4 {
		fail("usage: withdraw <account_id> <amount_minor_units> <currency> <idempotency_key>")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fail("invalid amount: %v", err)
	}
	req := dto.WithdrawRequest{
		AccountID:      args[0],
		Amount:         amount,
		Currency:       args[2],
		IdempotencyKey: args[3],
	}
	if err := req.Validate(); err != nil {
		fail("invalid request: %v", err)
	}
	accountID, m, key, err := req.Args()
	if err != nil {
		fail("invalid request: %v", err)
	}
	printReceipt(svc.Withdraw(ctx, accountID, m, key))
}

func runTransfer(ctx context.Context, svc *ledgersvc.Service, args []string) {
	if len(args) < 5 {
		fail("usage: transfer <from_id> <to_id> <amount_minor_units> <currency> <idempotency_key>")
	}
	amount, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		fail("invalid amount: %v", err)
	}
	req := dto.TransferRequest{
		FromID:         args[0],
		ToID:           args[1],
		Amount:         amount,
		Currency:       args[3],
		IdempotencyKey: args[4],
	}
	if err := req.Validate(); err != nil {
		fail("invalid request: %v", err)
	}
	fromID, toID, m, key, err := req.Args()
	if err != nil {
		fail("invalid request: %v", err)
	}
	printReceipt(svc.Transfer(ctx, fromID, toID, m, key))
}

func runBalance(ctx context.Context, svc *ledgersvc.Service, args []string) {
	if len(args) < 1 {
		fail("usage: balance <account_id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fail("invalid account id: %v", err)
	}
	acc, err := svc.GetAccount(ctx, id)
	if err != nil {
		fail("fetching account: %v", err)
	}
	color.Cyan("account %s: balance=%s status=%s version=%d",
		acc.ID, acc.Balance, acc.Status, acc.Version)
}

func runHistory(ctx context.Context, svc *ledgersvc.Service, args []string) {
	if len(args) < 1 {
		fail("usage: history <account_id> [page_token]")
	}
	req := dto.HistoryRequest{AccountID: args[0]}
	if len(args) > 1 {
		req.PageToken = args[1]
	}
	if err := req.Validate(); err != nil {
		fail("invalid request: %v", err)
	}
	accountID, token, size, err := req.Args()
	if err != nil {
		fail("invalid request: %v", err)
	}
	page, err := svc.GetTransactionHistory(ctx, accountID, token, size)
	if err != nil {
		fail("fetching history: %v", err)
	}
	for _, tx := range page.Transactions {
		entry, _ := tx.EntryFor(accountID)
		fmt.Printf("%s  %-10s %-9s delta=%s balance=%s key=%s\n",
			tx.CreatedAt.Format(time.RFC3339), tx.Kind, tx.Status,
			entry.Delta, entry.BalanceAfter, tx.IdempotencyKey)
	}
	if page.NextPageToken != "" {
		color.Yellow("next page token: %s", page.NextPageToken)
	}
}

func runSetStatus(ctx context.Context, svc *ledgersvc.Service, args []string, status domain.Status) {
	if len(args) < 1 {
		fail("usage: %s <account_id>", os.Args[1])
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fail("invalid account id: %v", err)
	}
	if err := svc.SetAccountStatus(ctx, id, status); err != nil {
		fail("updating status: %v", err)
	}
	color.Green("account %s is now %s", id, status)
}

func runRecover(ctx context.Context, svc *ledgersvc.Service) {
	resolved, err := svc.RecoverPending(ctx)
	if err != nil {
		fail("recovery pass: %v", err)
	}
	color.Green("resolved %d stale reservation(s)", resolved)
}

func printReceipt(receipt *ledgersvc.Receipt, err error) {
	if err != nil {
		if receipt != nil {
			color.Red("operation failed (recorded as %s): %v", receipt.TransactionID, err)
			os.Exit(1)
		}
		fail("operation failed: %v", err)
	}
	color.Green("transaction %s %s", receipt.TransactionID, receipt.Status)
	for id, balance := range receipt.Balances {
		fmt.Printf("  %s -> %s\n", id, balance)
	}
}

func fail(format string, args ...any) {
	color.Red(format, args...)
	os.Exit(1)
}
