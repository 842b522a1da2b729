package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"moneta/internal/core"
)

const testOwner = "owner-1"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTransferInput(amount string) TransferInput {
	return TransferInput{
		SourceID:            "checking",
		DestinationSourceID: "savings",
		Amount:              dec(amount),
		Date:                core.NewDate(2025, 3, 15),
	}
}

func transferFixture(t *testing.T) (*fakeStore, *fakePublisher, *TransferService) {
	t.Helper()
	store := newFakeStore()
	store.addSource(testOwner, "checking", "1000")
	store.addSource(testOwner, "savings", "0")
	pub := &fakePublisher{}
	return store, pub, NewTransferService(store, store, pub)
}

func TestTransferCreate(t *testing.T) {
	store, pub, svc := transferFixture(t)

	tr, err := svc.Create(context.Background(), testOwner, newTransferInput("200"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !store.balance("checking").Equal(dec("800")) {
		t.Errorf("source balance = %s, want 800", store.balance("checking"))
	}
	if !store.balance("savings").Equal(dec("200")) {
		t.Errorf("destination balance = %s, want 200", store.balance("savings"))
	}

	legs, _ := store.GetTransferLegs(context.Background(), testOwner, tr.ID)
	if len(legs) != 2 {
		t.Fatalf("leg count = %d, want 2", len(legs))
	}
	for _, leg := range legs {
		if leg.Type != core.TypeTransfer || leg.TransferID != tr.ID {
			t.Errorf("leg = %+v", leg)
		}
	}
	if tr.SourceID != "checking" || tr.DestinationSourceID != "savings" {
		t.Errorf("transfer view = %+v", tr)
	}
	if len(pub.events) != 1 || pub.events[0].Entity != "transfer" {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestTransferCreateValidation(t *testing.T) {
	_, _, svc := transferFixture(t)

	tests := []struct {
		name   string
		mutate func(*TransferInput)
	}{
		{name: "same source", mutate: func(in *TransferInput) { in.DestinationSourceID = in.SourceID }},
		{name: "zero amount", mutate: func(in *TransferInput) { in.Amount = decimal.Zero }},
		{name: "negative amount", mutate: func(in *TransferInput) { in.Amount = dec("-5") }},
		{name: "missing destination", mutate: func(in *TransferInput) { in.DestinationSourceID = "" }},
		{name: "zero date", mutate: func(in *TransferInput) { in.Date = core.Date{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTransferInput("100")
			tt.mutate(&in)
			if _, err := svc.Create(context.Background(), testOwner, in); !errors.Is(err, core.ErrValidation) {
				t.Errorf("Create error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestTransferCreateUnknownSource(t *testing.T) {
	_, _, svc := transferFixture(t)

	in := newTransferInput("100")
	in.DestinationSourceID = "missing"
	if _, err := svc.Create(context.Background(), testOwner, in); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Create error = %v, want ErrNotFound", err)
	}
}

func TestTransferCreateCreditFailureRestoresDebit(t *testing.T) {
	store, pub, svc := transferFixture(t)
	boom := errors.New("storage down")
	store.adjustErr = func(id string, _ decimal.Decimal) error {
		if id == "savings" {
			return boom
		}
		return nil
	}

	_, err := svc.Create(context.Background(), testOwner, newTransferInput("200"))
	if !errors.Is(err, boom) {
		t.Fatalf("Create error = %v, want the credit failure", err)
	}
	if core.IsFatal(err) {
		t.Error("clean rollback must not be fatal")
	}

	// The debit was compensated and no legs survived.
	if !store.balance("checking").Equal(dec("1000")) {
		t.Errorf("source balance = %s, want 1000", store.balance("checking"))
	}
	if len(store.txs) != 0 {
		t.Errorf("%d leg rows survived rollback", len(store.txs))
	}
	if len(pub.events) != 0 {
		t.Errorf("events published for a failed transfer: %+v", pub.events)
	}
}

func TestTransferCreateLegFailureRestoresBalances(t *testing.T) {
	store, _, svc := transferFixture(t)
	boom := errors.New("insert failed")
	store.insertLegErr = func(leg core.Transaction) error {
		if leg.TransferLeg == core.LegIn {
			return boom
		}
		return nil
	}

	_, err := svc.Create(context.Background(), testOwner, newTransferInput("200"))
	if !errors.Is(err, boom) {
		t.Fatalf("Create error = %v, want the leg failure", err)
	}

	if !store.balance("checking").Equal(dec("1000")) || !store.balance("savings").Equal(dec("0")) {
		t.Errorf("balances = %s / %s, want 1000 / 0",
			store.balance("checking"), store.balance("savings"))
	}
	if len(store.txs) != 0 {
		t.Errorf("%d leg rows survived rollback", len(store.txs))
	}
}

func TestTransferCreateCompensationFailureIsFatal(t *testing.T) {
	store, _, svc := transferFixture(t)
	// The credit fails, then the compensating re-credit of the origin fails
	// too: the ledger is stuck with a dangling debit.
	calls := 0
	store.adjustErr = func(id string, _ decimal.Decimal) error {
		if id == "savings" {
			return errors.New("credit failed")
		}
		calls++
		if calls > 1 {
			return errors.New("undo failed")
		}
		return nil
	}

	_, err := svc.Create(context.Background(), testOwner, newTransferInput("200"))
	if !core.IsFatal(err) {
		t.Fatalf("Create error = %v, want CompensationFailure", err)
	}
	var cf *core.CompensationFailure
	if !errors.As(err, &cf) || cf.Op != "create transfer" {
		t.Errorf("failure = %+v", cf)
	}
}

func TestTransferUpdateAppliesDelta(t *testing.T) {
	store, _, svc := transferFixture(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, testOwner, newTransferInput("200"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	amount := dec("250")
	updated, err := svc.Update(ctx, testOwner, tr.ID, TransferUpdateInput{Amount: &amount})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Amount.Equal(dec("250")) {
		t.Errorf("updated amount = %s, want 250", updated.Amount)
	}
	if !store.balance("checking").Equal(dec("750")) {
		t.Errorf("source balance = %s, want 750", store.balance("checking"))
	}
	if !store.balance("savings").Equal(dec("250")) {
		t.Errorf("destination balance = %s, want 250", store.balance("savings"))
	}

	// Notes-only update must leave balances alone.
	notes := "rent split"
	if _, err := svc.Update(ctx, testOwner, tr.ID, TransferUpdateInput{Notes: &notes}); err != nil {
		t.Fatalf("notes update: %v", err)
	}
	if !store.balance("checking").Equal(dec("750")) {
		t.Errorf("balance moved on a notes-only update: %s", store.balance("checking"))
	}
}

func TestTransferUpdateSecondLegFailureRestoresFirst(t *testing.T) {
	store, _, svc := transferFixture(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, testOwner, newTransferInput("200"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("leg write failed")
	store.updateLegErr = func(old core.Transaction) error {
		if old.TransferLeg == core.LegIn {
			return boom
		}
		return nil
	}

	amount := dec("300")
	if _, err := svc.Update(ctx, testOwner, tr.ID, TransferUpdateInput{Amount: &amount}); !errors.Is(err, boom) {
		t.Fatalf("Update error = %v, want the leg failure", err)
	}

	// Both legs still carry the original amount and balances are untouched.
	outLeg, inLeg, err := svc.legs(ctx, testOwner, tr.ID)
	if err != nil {
		t.Fatalf("legs: %v", err)
	}
	if !outLeg.Amount.Equal(dec("200")) || !inLeg.Amount.Equal(dec("200")) {
		t.Errorf("leg amounts = %s / %s, want 200 / 200", outLeg.Amount, inLeg.Amount)
	}
	if !store.balance("checking").Equal(dec("800")) || !store.balance("savings").Equal(dec("200")) {
		t.Errorf("balances = %s / %s, want 800 / 200",
			store.balance("checking"), store.balance("savings"))
	}
}

func TestTransferDelete(t *testing.T) {
	store, _, svc := transferFixture(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, testOwner, newTransferInput("200"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(ctx, testOwner, tr.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !store.balance("checking").Equal(dec("1000")) || !store.balance("savings").Equal(dec("0")) {
		t.Errorf("balances after delete = %s / %s, want 1000 / 0",
			store.balance("checking"), store.balance("savings"))
	}

	// Deleting again finds no legs: the reversal can never run twice.
	if err := svc.Delete(ctx, testOwner, tr.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	if !store.balance("checking").Equal(dec("1000")) {
		t.Errorf("balance moved on repeated delete: %s", store.balance("checking"))
	}
}

func TestTransferDeleteRetriesOnConcurrentUpdate(t *testing.T) {
	store, _, svc := transferFixture(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, testOwner, newTransferInput("200"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// An update commits between the delete's read and its row removal. The
	// amount-guarded removal must lose that race and retry, so the reversal
	// credits back the updated amount, never the stale one.
	raced := false
	store.deleteLegsErr = func(string) error {
		if raced {
			return nil
		}
		raced = true
		amount := dec("300")
		if _, err := svc.Update(ctx, testOwner, tr.ID, TransferUpdateInput{Amount: &amount}); err != nil {
			t.Fatalf("racing update: %v", err)
		}
		return nil
	}

	if err := svc.Delete(ctx, testOwner, tr.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !raced {
		t.Fatal("racing update never ran")
	}
	if !store.balance("checking").Equal(dec("1000")) || !store.balance("savings").Equal(dec("0")) {
		t.Errorf("balances after delete = %s / %s, want 1000 / 0",
			store.balance("checking"), store.balance("savings"))
	}
	if legs, _ := store.GetTransferLegs(ctx, testOwner, tr.ID); len(legs) != 0 {
		t.Errorf("%d leg rows survived delete", len(legs))
	}
}

func TestTransferGet(t *testing.T) {
	_, _, svc := transferFixture(t)
	ctx := context.Background()

	tr, err := svc.Create(ctx, testOwner, newTransferInput("125.50"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, testOwner, tr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Amount.Equal(dec("125.50")) || got.SourceID != "checking" || got.DestinationSourceID != "savings" {
		t.Errorf("Get = %+v", got)
	}

	if _, err := svc.Get(ctx, testOwner, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get missing error = %v, want ErrNotFound", err)
	}
	// Another owner's transfer is invisible.
	if _, err := svc.Get(ctx, "other-owner", tr.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-owner Get error = %v, want ErrNotFound", err)
	}
}
