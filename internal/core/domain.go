package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	SourceType      string
	CategoryType    string
	TransactionType string
	TransferLeg     string

	// Date is a calendar date without time-of-day semantics. Transactions are
	// grouped by its year+month, so only the date portion is ever persisted.
	Date struct {
		time.Time
	}

	// Source is an account-like container of money. CurrentBalance is the
	// authoritative balance; InitialBalance never changes after creation.
	// CreditCard is populated iff Type == SourceCreditCard.
	Source struct {
		ID             string
		Owner          string
		Name           string
		Type           SourceType
		Currency       string
		InitialBalance decimal.Decimal
		CurrentBalance decimal.Decimal
		Notes          string
		Version        int64
		CreditCard     *CreditCardDetails
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// CreditCardDetails is the 1:1 owned extension of a credit-card source.
	// Its lifecycle is strictly coupled to the parent source row.
	CreditCardDetails struct {
		SourceID             string
		Owner                string
		CreditLimit          decimal.Decimal
		InterestRate         decimal.Decimal
		BillingCycleStartDay int
	}

	Category struct {
		ID        string
		Owner     string
		Name      string
		Type      CategoryType
		CreatedAt time.Time
	}

	SubCategory struct {
		ID         string
		Owner      string
		CategoryID string
		Name       string
		CreatedAt  time.Time
	}

	// Transaction is one ledger entry against a single source. Amount is
	// always positive; the sign applied to the source balance comes from the
	// type (and, for transfer legs, from the leg).
	Transaction struct {
		ID            string
		Owner         string
		Date          Date
		Type          TransactionType
		CategoryID    string
		SubCategoryID string
		SourceID      string
		Amount        decimal.Decimal
		Notes         string
		Counterparty  string
		// RelatedTransactionID links a repayment to the lend/borrow entry
		// it pays down.
		RelatedTransactionID string
		// TransferID correlates the two legs of a transfer; TransferLeg says
		// which side this row is.
		TransferID  string
		TransferLeg TransferLeg
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Transfer is the joined view of a correlated leg pair.
	Transfer struct {
		ID                  string
		Owner               string
		Date                Date
		Amount              decimal.Decimal
		Notes               string
		SourceID            string
		DestinationSourceID string
		OutLeg              Transaction
		InLeg               Transaction
	}
)

const (
	SourceBankAccount   SourceType = "bank_account"
	SourceCreditCard    SourceType = "credit_card"
	SourceCash          SourceType = "cash"
	SourceDigitalWallet SourceType = "digital_wallet"
	SourceInvestment    SourceType = "investment"
	SourceOther         SourceType = "other"
)

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

const (
	TypeIncome          TransactionType = "income"
	TypeExpense         TransactionType = "expense"
	TypeLend            TransactionType = "lend"
	TypeBorrow          TransactionType = "borrow"
	TypeLendRepayment   TransactionType = "lend_repayment"
	TypeBorrowRepayment TransactionType = "borrow_repayment"
	TypeTransfer        TransactionType = "transfer"
)

const (
	LegOut TransferLeg = "out"
	LegIn  TransferLeg = "in"
)

// ValidSourceType reports whether t is a recognized source type.
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceBankAccount, SourceCreditCard, SourceCash, SourceDigitalWallet, SourceInvestment, SourceOther:
		return true
	}
	return false
}

// ValidCategoryType reports whether t is a recognized category type.
func ValidCategoryType(t CategoryType) bool {
	return t == CategoryExpense || t == CategoryIncome
}

// ValidTransactionType reports whether t is a recognized non-transfer type.
// Transfer legs are created through the transfer coordinator only.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeLend, TypeBorrow, TypeLendRepayment, TypeBorrowRepayment:
		return true
	}
	return false
}

// Direction returns +1 for types that increase the source balance and -1 for
// types that decrease it. Transfer rows take their sign from the leg instead.
func (t TransactionType) Direction() int {
	switch t {
	case TypeIncome, TypeBorrow, TypeLendRepayment:
		return 1
	case TypeExpense, TypeLend, TypeBorrowRepayment:
		return -1
	}
	return 0
}

// IsRepayment reports whether t pays down a lend/borrow entry.
func (t TransactionType) IsRepayment() bool {
	return t == TypeLendRepayment || t == TypeBorrowRepayment
}

// RequiresCategory reports whether transactions of this type must carry a
// category. Lend/borrow activity and repayments track a counterparty instead.
func (t TransactionType) RequiresCategory() bool {
	return t == TypeIncome || t == TypeExpense
}

// RequiresCounterparty reports whether transactions of this type must name
// the person or entity on the other side.
func (t TransactionType) RequiresCounterparty() bool {
	switch t {
	case TypeLend, TypeBorrow, TypeLendRepayment, TypeBorrowRepayment:
		return true
	}
	return false
}

// SignedAmount returns the amount with the sign it applies to the source
// balance.
func (tx Transaction) SignedAmount() decimal.Decimal {
	if tx.Type == TypeTransfer {
		if tx.TransferLeg == LegIn {
			return tx.Amount
		}
		return tx.Amount.Neg()
	}
	if tx.Type.Direction() < 0 {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

// AvailableCredit returns credit_limit - current_balance for credit-card
// sources. The second return is false for every other source type.
func (s Source) AvailableCredit() (decimal.Decimal, bool) {
	if s.Type != SourceCreditCard || s.CreditCard == nil {
		return decimal.Zero, false
	}
	return s.CreditCard.CreditLimit.Sub(s.CurrentBalance), true
}

func (s Source) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Name) > 120 {
		return Validationf("name", "too long (max 120 characters)")
	}
	if err := ValidateCurrency(s.Currency); err != nil {
		return err
	}
	if !ValidSourceType(s.Type) {
		return Validationf("type", "unrecognized source type %q", s.Type)
	}
	if s.Type == SourceCreditCard {
		if s.CreditCard == nil {
			return Validationf("credit_card", "credit card details required")
		}
		if s.CreditCard.CreditLimit.IsNegative() {
			return Validationf("credit_limit", "must not be negative")
		}
		if s.CreditCard.InterestRate.IsNegative() {
			return Validationf("interest_rate", "must not be negative")
		}
		if d := s.CreditCard.BillingCycleStartDay; d < 1 || d > 28 {
			return Validationf("billing_cycle_start_day", "must be between 1 and 28")
		}
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !ValidCategoryType(c.Type) {
		return Validationf("type", "unrecognized category type %q", c.Type)
	}
	return nil
}

func (sc SubCategory) Validate() error {
	if strings.TrimSpace(sc.Name) == "" {
		return ErrEmptyName
	}
	if sc.CategoryID == "" {
		return Validationf("category_id", "required")
	}
	return nil
}

// Validate checks a non-transfer transaction. Transfer legs are validated by
// the coordinator that creates them.
func (tx Transaction) Validate() error {
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	if !ValidTransactionType(tx.Type) {
		return Validationf("type", "unrecognized transaction type %q", tx.Type)
	}
	if err := ValidateAmount(tx.Amount); err != nil {
		return err
	}
	if tx.SourceID == "" {
		return Validationf("source_id", "required")
	}
	if tx.Type.RequiresCategory() && tx.CategoryID == "" {
		return Validationf("category_id", "required for %s transactions", tx.Type)
	}
	if tx.SubCategoryID != "" && tx.CategoryID == "" {
		return Validationf("subcategory_id", "subcategory requires a category")
	}
	if tx.Type.RequiresCounterparty() && strings.TrimSpace(tx.Counterparty) == "" {
		return Validationf("counterparty", "required for %s transactions", tx.Type)
	}
	if tx.Type.IsRepayment() && tx.RelatedTransactionID == "" {
		return Validationf("related_transaction_id", "required for %s transactions", tx.Type)
	}
	if !tx.Type.IsRepayment() && tx.RelatedTransactionID != "" {
		return Validationf("related_transaction_id", "only repayments may link a transaction")
	}
	if len(tx.Notes) > 500 {
		return Validationf("notes", "too long (max 500 characters)")
	}
	return nil
}

// ValidateCurrency checks for a 3-letter uppercase ISO-4217 style code.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ErrInvalidCurrency
		}
	}
	return nil
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, Validationf("date", "must be YYYY-MM-DD")
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date as YYYY-MM-DD, the storage representation.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MonthKey returns the YYYY-MM grouping key for monthly summaries.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}
