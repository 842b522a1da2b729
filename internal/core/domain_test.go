package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTransactionTypeDirection(t *testing.T) {
	tests := []struct {
		typ  TransactionType
		want int
	}{
		{TypeIncome, 1},
		{TypeBorrow, 1},
		{TypeLendRepayment, 1},
		{TypeExpense, -1},
		{TypeLend, -1},
		{TypeBorrowRepayment, -1},
		{TypeTransfer, 0},
	}
	for _, tt := range tests {
		if got := tt.typ.Direction(); got != tt.want {
			t.Errorf("%s.Direction() = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestTransactionSignedAmount(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want string
	}{
		{
			name: "income adds",
			tx:   Transaction{Type: TypeIncome, Amount: dec("100")},
			want: "100",
		},
		{
			name: "expense subtracts",
			tx:   Transaction{Type: TypeExpense, Amount: dec("42.50")},
			want: "-42.50",
		},
		{
			name: "lend subtracts",
			tx:   Transaction{Type: TypeLend, Amount: dec("200")},
			want: "-200",
		},
		{
			name: "lend repayment adds",
			tx:   Transaction{Type: TypeLendRepayment, Amount: dec("50")},
			want: "50",
		},
		{
			name: "borrow adds",
			tx:   Transaction{Type: TypeBorrow, Amount: dec("300")},
			want: "300",
		},
		{
			name: "borrow repayment subtracts",
			tx:   Transaction{Type: TypeBorrowRepayment, Amount: dec("300")},
			want: "-300",
		},
		{
			name: "transfer out leg subtracts",
			tx:   Transaction{Type: TypeTransfer, TransferLeg: LegOut, Amount: dec("75")},
			want: "-75",
		},
		{
			name: "transfer in leg adds",
			tx:   Transaction{Type: TypeTransfer, TransferLeg: LegIn, Amount: dec("75")},
			want: "75",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.SignedAmount(); !got.Equal(dec(tt.want)) {
				t.Errorf("SignedAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSourceValidate(t *testing.T) {
	valid := Source{
		Name:     "Checking",
		Type:     SourceBankAccount,
		Currency: "EUR",
	}

	tests := []struct {
		name    string
		mutate  func(*Source)
		wantErr bool
	}{
		{name: "valid bank account", mutate: func(*Source) {}},
		{name: "empty name", mutate: func(s *Source) { s.Name = "  " }, wantErr: true},
		{name: "lowercase currency", mutate: func(s *Source) { s.Currency = "eur" }, wantErr: true},
		{name: "short currency", mutate: func(s *Source) { s.Currency = "EU" }, wantErr: true},
		{name: "unknown type", mutate: func(s *Source) { s.Type = "mattress" }, wantErr: true},
		{
			name:    "credit card without details",
			mutate:  func(s *Source) { s.Type = SourceCreditCard },
			wantErr: true,
		},
		{
			name: "credit card with details",
			mutate: func(s *Source) {
				s.Type = SourceCreditCard
				s.CreditCard = &CreditCardDetails{CreditLimit: dec("2000"), BillingCycleStartDay: 15}
			},
		},
		{
			name: "negative credit limit",
			mutate: func(s *Source) {
				s.Type = SourceCreditCard
				s.CreditCard = &CreditCardDetails{CreditLimit: dec("-1"), BillingCycleStartDay: 1}
			},
			wantErr: true,
		},
		{
			name: "billing day out of range",
			mutate: func(s *Source) {
				s.Type = SourceCreditCard
				s.CreditCard = &CreditCardDetails{CreditLimit: dec("500"), BillingCycleStartDay: 29}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() error = %v, want validation error", err)
			}
		})
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Date:       NewDate(2025, 3, 15),
		Type:       TypeExpense,
		CategoryID: "cat-1",
		SourceID:   "src-1",
		Amount:     dec("25.00"),
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr bool
	}{
		{name: "valid expense", mutate: func(*Transaction) {}},
		{name: "zero date", mutate: func(tx *Transaction) { tx.Date = Date{} }, wantErr: true},
		{name: "transfer type rejected", mutate: func(tx *Transaction) { tx.Type = TypeTransfer }, wantErr: true},
		{name: "missing source", mutate: func(tx *Transaction) { tx.SourceID = "" }, wantErr: true},
		{name: "expense without category", mutate: func(tx *Transaction) { tx.CategoryID = "" }, wantErr: true},
		{
			name: "subcategory without category",
			mutate: func(tx *Transaction) {
				tx.CategoryID = ""
				tx.SubCategoryID = "sub-1"
			},
			wantErr: true,
		},
		{
			name: "lend without counterparty",
			mutate: func(tx *Transaction) {
				tx.Type = TypeLend
				tx.CategoryID = ""
			},
			wantErr: true,
		},
		{
			name: "lend with counterparty",
			mutate: func(tx *Transaction) {
				tx.Type = TypeLend
				tx.CategoryID = ""
				tx.Counterparty = "Marco"
			},
		},
		{
			name: "repayment without link",
			mutate: func(tx *Transaction) {
				tx.Type = TypeLendRepayment
				tx.CategoryID = ""
				tx.Counterparty = "Marco"
			},
			wantErr: true,
		},
		{
			name: "repayment with link",
			mutate: func(tx *Transaction) {
				tx.Type = TypeLendRepayment
				tx.CategoryID = ""
				tx.Counterparty = "Marco"
				tx.RelatedTransactionID = "tx-9"
			},
		},
		{
			name: "link on a non-repayment",
			mutate: func(tx *Transaction) {
				tx.RelatedTransactionID = "tx-9"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAvailableCredit(t *testing.T) {
	cc := Source{
		Type:           SourceCreditCard,
		CurrentBalance: dec("850"),
		CreditCard:     &CreditCardDetails{CreditLimit: dec("2000")},
	}
	avail, ok := cc.AvailableCredit()
	if !ok {
		t.Fatal("AvailableCredit() ok = false for credit card")
	}
	if !avail.Equal(dec("1150")) {
		t.Errorf("AvailableCredit() = %s, want 1150", avail)
	}

	bank := Source{Type: SourceBankAccount, CurrentBalance: dec("100")}
	if _, ok := bank.AvailableCredit(); ok {
		t.Error("AvailableCredit() ok = true for bank account")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-15")
	if err != nil {
		t.Fatalf("ParseDate error = %v", err)
	}
	if got := d.String(); got != "2025-03-15" {
		t.Errorf("String() = %q, want 2025-03-15", got)
	}
	if got := d.MonthKey(); got != "2025-03" {
		t.Errorf("MonthKey() = %q, want 2025-03", got)
	}

	for _, bad := range []string{"", "15/03/2025", "2025-13-01", "2025-02-30"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) succeeded, want error", bad)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		repaid string
		want   OutstandingStatus
	}{
		{name: "nothing repaid", amount: "200", repaid: "0", want: StatusOngoing},
		{name: "partially repaid", amount: "200", repaid: "50", want: StatusPartial},
		{name: "fully repaid", amount: "200", repaid: "200", want: StatusPaid},
		{name: "overpaid", amount: "200", repaid: "250", want: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(dec(tt.amount), dec(tt.repaid)); got != tt.want {
				t.Errorf("StatusFor(%s, %s) = %s, want %s", tt.amount, tt.repaid, got, tt.want)
			}
		})
	}
}

func TestCompensationFailure(t *testing.T) {
	cause := errors.New("credit failed")
	cf := &CompensationFailure{Op: "transfer.create", Cause: cause, CompensationErr: errors.New("debit revert failed")}

	if !IsFatal(cf) {
		t.Error("IsFatal(CompensationFailure) = false")
	}
	if !errors.Is(cf, cause) {
		t.Error("CompensationFailure should unwrap to its cause")
	}
	if IsFatal(cause) {
		t.Error("IsFatal(plain error) = true")
	}
}
