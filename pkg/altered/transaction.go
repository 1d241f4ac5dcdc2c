package altered

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sternrassler/altered-tcg-client/pkg/report"
)

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusSucceeded TransactionStatus = "SUCCEEDED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCanceled  TransactionStatus = "CANCELED"
)

// TransactionType is the kind of money movement.
type TransactionType string

const (
	TransactionTypeBuy        TransactionType = "BUY"
	TransactionTypeSell       TransactionType = "SELL"
	TransactionTypeFee        TransactionType = "FEE"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// Transaction is one entry of the user's payment history.
type Transaction struct {
	ID       string            `json:"id"`
	Date     time.Time         `json:"date"`
	Status   TransactionStatus `json:"status"`
	Amount   decimal.Decimal   `json:"amount"`
	Currency string            `json:"currency"`
	Type     TransactionType   `json:"type"`
}

// TransactionFilter narrows the transaction history. Zero values match
// everything.
type TransactionFilter struct {
	// Status keeps only transactions in this state.
	Status TransactionStatus

	// Types keeps only transactions of one of these types.
	Types []TransactionType

	// OldestDate stops the listing at the first transaction older than it.
	// The history is ordered newest first, so nothing older is fetched.
	OldestDate time.Time
}

// Match reports whether tx passes the status and type predicates.
// OldestDate is not a predicate; it bounds the sequence.
func (f TransactionFilter) Match(tx Transaction) bool {
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, tx.Type) {
		return false
	}
	return true
}

// WithinFloor reports whether tx is not older than OldestDate.
func (f TransactionFilter) WithinFloor(tx Transaction) bool {
	return f.OldestDate.IsZero() || !tx.Date.Before(f.OldestDate)
}

// TransactionDetailCard is the card traded in a transaction.
type TransactionDetailCard struct {
	ImageURL string          `json:"imageURL"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// ReportFields implements report.Item.
func (c TransactionDetailCard) ReportFields() report.Fields {
	price := c.Price
	quantity := c.Quantity
	return report.Fields{
		ImageURL: c.ImageURL,
		Name:     c.Name,
		Price:    &price,
		Quantity: &quantity,
	}
}

type rawTransactionDetail struct {
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Card      struct {
		ImagePath string `json:"imagePath"`
		Name      string `json:"name"`
	} `json:"card"`
}

func (d rawTransactionDetail) card() TransactionDetailCard {
	return TransactionDetailCard{
		ImageURL: d.Card.ImagePath,
		Name:     d.Card.Name,
		Price:    d.UnitPrice,
		Quantity: d.Quantity,
	}
}
