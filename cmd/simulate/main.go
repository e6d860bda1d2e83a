package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"libra-pay/internal/domain"
	"libra-pay/internal/infrastructure/payment"
	"libra-pay/internal/settlement"
)

// Runs a handful of payment attempts against the mock gateway and lets a
// settlement watcher ride each one to its terminal state: some get a pushed
// PAID, some a CANCELLED, the rest run out the expiry countdown.
func main() {
	ctx := context.Background()
	gateway := payment.NewMockGateway(3 * time.Second)

	fmt.Println("--- STARTING SETTLEMENT SIMULATION (6 ATTEMPTS) ---")

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 6; i++ {
		i := i
		g.Go(func() error {
			return runAttempt(ctx, gateway, i)
		})
		time.Sleep(200 * time.Millisecond)
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
	fmt.Println("--- SIMULATION COMPLETE ---")
}

func runAttempt(ctx context.Context, gateway *payment.MockGateway, n int) error {
	result, err := gateway.CreatePaymentLink(ctx, payment.CreateLinkRequest{
		BorrowRequestID: int64(n + 1),
		UserID:          uuid.New(),
		Amount:          rand.Float64() * 100000,
		Description:     fmt.Sprintf("borrow request #%d", n+1),
	})
	if err != nil {
		return err
	}

	w := settlement.New(settlement.Options{
		Navigator: settlement.NavigatorFunc(func(path string) {
			fmt.Printf("[%d] navigate -> %s\n", n+1, path)
		}),
	})
	w.AttachSession(&domain.PaymentSession{
		OrderCode:   result.Link.OrderCode,
		QRCode:      result.Link.QRCode,
		Description: result.Link.Description,
		ExpiredAt:   result.Link.ExpiredAt,
	})

	// A third of payers settle, a third walk away, the rest time out.
	switch n % 3 {
	case 0:
		go func() {
			time.Sleep(1 * time.Second)
			gateway.Settle(result.Link.OrderCode)
			w.OfferStatus(domain.TransactionPaid)
		}()
	case 1:
		go func() {
			time.Sleep(1500 * time.Millisecond)
			gateway.Cancel(context.Background(), result.Link.OrderCode)
			w.OfferStatus(domain.TransactionCancelled)
		}()
	}

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	w.Run(runCtx)

	state := w.State()
	fmt.Printf("[%d] final status: %s (left=%s)\n", n+1, state.Status, state.LeftTime)
	return nil
}
