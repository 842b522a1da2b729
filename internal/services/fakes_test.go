package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"moneta/internal/amqp"
	"moneta/internal/core"
)

// fakeStore is an in-memory SourceStore + TransactionStore + CategoryStore
// with injectable failures, used to exercise the compensation paths the real
// repository can't produce on demand.
type fakeStore struct {
	sources map[string]core.Source
	txs     map[string]core.Transaction
	cats    map[string]core.Category
	subs    map[string]core.SubCategory

	history map[string]bool // source id -> has history

	adjustErr     func(id string, delta decimal.Decimal) error
	insertLegErr  func(t core.Transaction) error
	upsertCCErr   error
	deleteSrcErr  error
	updateLegErr  func(old core.Transaction) error
	deleteLegsErr func(transferID string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sources: make(map[string]core.Source),
		txs:     make(map[string]core.Transaction),
		cats:    make(map[string]core.Category),
		subs:    make(map[string]core.SubCategory),
		history: make(map[string]bool),
	}
}

func (f *fakeStore) addSource(owner, id, balance string) core.Source {
	s := core.Source{
		ID: id, Owner: owner, Name: id,
		Type: core.SourceBankAccount, Currency: "EUR",
		InitialBalance: decimal.RequireFromString(balance),
		CurrentBalance: decimal.RequireFromString(balance),
		Version:        1,
	}
	f.sources[id] = s
	return s
}

func (f *fakeStore) balance(id string) decimal.Decimal {
	return f.sources[id].CurrentBalance
}

func (f *fakeStore) CreateSource(_ context.Context, s core.Source) error {
	f.sources[s.ID] = s
	return nil
}

func (f *fakeStore) GetSource(_ context.Context, owner, id string) (core.Source, error) {
	s, ok := f.sources[id]
	if !ok || s.Owner != owner {
		return core.Source{}, fmt.Errorf("select source: %w", core.ErrNotFound)
	}
	return s, nil
}

func (f *fakeStore) ListSources(_ context.Context, owner string) ([]core.Source, error) {
	var out []core.Source
	for _, s := range f.sources {
		if s.Owner == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateSource(_ context.Context, s core.Source) error {
	old, ok := f.sources[s.ID]
	if !ok || old.Owner != s.Owner {
		return fmt.Errorf("update source: %w", core.ErrNotFound)
	}
	s.Version = old.Version + 1
	s.CurrentBalance = old.CurrentBalance
	s.InitialBalance = old.InitialBalance
	f.sources[s.ID] = s
	return nil
}

func (f *fakeStore) DeleteSource(_ context.Context, owner, id string) error {
	if f.deleteSrcErr != nil {
		return f.deleteSrcErr
	}
	s, ok := f.sources[id]
	if !ok || s.Owner != owner {
		return fmt.Errorf("delete source: %w", core.ErrNotFound)
	}
	delete(f.sources, id)
	return nil
}

func (f *fakeStore) UpsertCreditCard(_ context.Context, cc core.CreditCardDetails) error {
	if f.upsertCCErr != nil {
		return f.upsertCCErr
	}
	s := f.sources[cc.SourceID]
	s.CreditCard = &cc
	f.sources[cc.SourceID] = s
	return nil
}

func (f *fakeStore) DeleteCreditCard(_ context.Context, _, sourceID string) error {
	s, ok := f.sources[sourceID]
	if ok {
		s.CreditCard = nil
		f.sources[sourceID] = s
	}
	return nil
}

func (f *fakeStore) AdjustBalance(_ context.Context, owner, id string, delta decimal.Decimal) error {
	if f.adjustErr != nil {
		if err := f.adjustErr(id, delta); err != nil {
			return err
		}
	}
	s, ok := f.sources[id]
	if !ok || s.Owner != owner {
		return fmt.Errorf("read balance: %w", core.ErrNotFound)
	}
	s.CurrentBalance = s.CurrentBalance.Add(delta)
	s.Version++
	f.sources[id] = s
	return nil
}

func (f *fakeStore) SourceHasHistory(_ context.Context, _, id string) (bool, error) {
	return f.history[id], nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	f.txs[t.ID] = t
	s := f.sources[t.SourceID]
	s.CurrentBalance = s.CurrentBalance.Add(t.SignedAmount())
	f.sources[t.SourceID] = s
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, owner, id string) (core.Transaction, error) {
	t, ok := f.txs[id]
	if !ok || t.Owner != owner {
		return core.Transaction{}, fmt.Errorf("select transaction: %w", core.ErrNotFound)
	}
	return t, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, owner, month string) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range f.txs {
		if t.Owner != owner {
			continue
		}
		if month != "" && t.Date.MonthKey() != month {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, old, updated core.Transaction) error {
	if _, ok := f.txs[old.ID]; !ok {
		return fmt.Errorf("update transaction: %w", core.ErrNotFound)
	}
	f.txs[old.ID] = updated
	s := f.sources[old.SourceID]
	s.CurrentBalance = s.CurrentBalance.Add(updated.SignedAmount().Sub(old.SignedAmount()))
	f.sources[old.SourceID] = s
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, owner, id string) (core.Transaction, error) {
	t, ok := f.txs[id]
	if !ok || t.Owner != owner || t.Type == core.TypeTransfer {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", core.ErrNotFound)
	}
	for _, other := range f.txs {
		if other.Owner == owner && other.RelatedTransactionID == id {
			return core.Transaction{}, fmt.Errorf("delete transaction: repayments reference it: %w", core.ErrConflict)
		}
	}
	delete(f.txs, id)
	s := f.sources[t.SourceID]
	s.CurrentBalance = s.CurrentBalance.Sub(t.SignedAmount())
	f.sources[t.SourceID] = s
	return t, nil
}

func (f *fakeStore) InsertTransferLeg(_ context.Context, t core.Transaction) error {
	if f.insertLegErr != nil {
		if err := f.insertLegErr(t); err != nil {
			return err
		}
	}
	f.txs[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTransferLeg(_ context.Context, owner, id string) error {
	t, ok := f.txs[id]
	if !ok || t.Owner != owner || t.TransferID == "" {
		return fmt.Errorf("delete transfer leg: %w", core.ErrNotFound)
	}
	delete(f.txs, id)
	return nil
}

func (f *fakeStore) GetTransferLegs(_ context.Context, owner, transferID string) ([]core.Transaction, error) {
	var out, in []core.Transaction
	for _, t := range f.txs {
		if t.Owner != owner || t.TransferID != transferID {
			continue
		}
		if t.TransferLeg == core.LegOut {
			out = append(out, t)
		} else {
			in = append(in, t)
		}
	}
	return append(out, in...), nil
}

func (f *fakeStore) UpdateTransferLeg(_ context.Context, old, updated core.Transaction) error {
	if f.updateLegErr != nil {
		if err := f.updateLegErr(old); err != nil {
			return err
		}
	}
	t, ok := f.txs[old.ID]
	if !ok {
		return fmt.Errorf("update transfer leg: %w", core.ErrNotFound)
	}
	if !t.Amount.Equal(old.Amount) {
		return fmt.Errorf("update transfer leg: %w", core.ErrConflict)
	}
	f.txs[old.ID] = updated
	return nil
}

func (f *fakeStore) DeleteTransferLegs(_ context.Context, owner, transferID string, amount decimal.Decimal) (int, error) {
	if f.deleteLegsErr != nil {
		if err := f.deleteLegsErr(transferID); err != nil {
			return 0, err
		}
	}
	var ids []string
	for id, t := range f.txs {
		if t.Owner != owner || t.TransferID != transferID {
			continue
		}
		if !t.Amount.Equal(amount) {
			return 0, fmt.Errorf("delete transfer legs: %w", core.ErrConflict)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		delete(f.txs, id)
	}
	return len(ids), nil
}

func (f *fakeStore) CreateCategory(_ context.Context, c core.Category) error {
	f.cats[c.ID] = c
	return nil
}

func (f *fakeStore) GetCategory(_ context.Context, owner, id string) (core.Category, error) {
	c, ok := f.cats[id]
	if !ok || c.Owner != owner {
		return core.Category{}, fmt.Errorf("select category: %w", core.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	var out []core.Category
	for _, c := range f.cats {
		if c.Owner == owner {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateCategory(_ context.Context, c core.Category) error {
	if _, ok := f.cats[c.ID]; !ok {
		return fmt.Errorf("update category: %w", core.ErrNotFound)
	}
	f.cats[c.ID] = c
	return nil
}

func (f *fakeStore) DeleteCategory(_ context.Context, owner, id string) error {
	c, ok := f.cats[id]
	if !ok || c.Owner != owner {
		return fmt.Errorf("delete category: %w", core.ErrNotFound)
	}
	delete(f.cats, id)
	for sid, sc := range f.subs {
		if sc.CategoryID == id {
			delete(f.subs, sid)
		}
	}
	return nil
}

func (f *fakeStore) CategoryInUse(_ context.Context, owner, id string) (bool, error) {
	for _, t := range f.txs {
		if t.Owner == owner && t.CategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateSubCategory(_ context.Context, sc core.SubCategory) error {
	f.subs[sc.ID] = sc
	return nil
}

func (f *fakeStore) GetSubCategory(_ context.Context, owner, id string) (core.SubCategory, error) {
	sc, ok := f.subs[id]
	if !ok || sc.Owner != owner {
		return core.SubCategory{}, fmt.Errorf("select subcategory: %w", core.ErrNotFound)
	}
	return sc, nil
}

func (f *fakeStore) ListSubCategories(_ context.Context, owner, categoryID string) ([]core.SubCategory, error) {
	var out []core.SubCategory
	for _, sc := range f.subs {
		if sc.Owner == owner && sc.CategoryID == categoryID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateSubCategory(_ context.Context, sc core.SubCategory) error {
	if _, ok := f.subs[sc.ID]; !ok {
		return fmt.Errorf("update subcategory: %w", core.ErrNotFound)
	}
	f.subs[sc.ID] = sc
	return nil
}

func (f *fakeStore) DeleteSubCategory(_ context.Context, owner, id string) error {
	sc, ok := f.subs[id]
	if !ok || sc.Owner != owner {
		return fmt.Errorf("delete subcategory: %w", core.ErrNotFound)
	}
	delete(f.subs, id)
	return nil
}

func (f *fakeStore) SubCategoryInUse(_ context.Context, owner, id string) (bool, error) {
	for _, t := range f.txs {
		if t.Owner == owner && t.SubCategoryID == id {
			return true, nil
		}
	}
	return false, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	events []amqp.LedgerEvent
	err    error
}

func (f *fakePublisher) PublishLedgerEvent(_ context.Context, event amqp.LedgerEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}
