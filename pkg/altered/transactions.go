package altered

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/altered-tcg-client/pkg/pagination"
	"github.com/Sternrassler/altered-tcg-client/pkg/stream"
)

// TransactionsPageSize is the page size of the transaction history.
const TransactionsPageSize = 100

// TransactionRepository reads the signed-in user's payment history.
type TransactionRepository struct {
	api    API
	width  int
	logger zerolog.Logger
}

// NewTransactionRepository creates a repository; width bounds the number of
// concurrent detail fetches in TradedCards.
func NewTransactionRepository(api API, width int) *TransactionRepository {
	if width < 1 {
		width = stream.DefaultWidth
	}
	return &TransactionRepository{
		api:    api,
		width:  width,
		logger: log.With().Str("component", "transactions").Logger(),
	}
}

// Transactions lists transactions newest first. The OldestDate floor ends the
// sequence at the first older transaction; status and type predicates are
// applied to what remains.
func (r *TransactionRepository) Transactions(ctx context.Context, filter TransactionFilter) iter.Seq2[Transaction, error] {
	query := url.Values{"order[date]": {"desc"}}
	seq := pagination.Items[Transaction](ctx, r.api, PathTransactions, query, TransactionsPageSize)
	if !filter.OldestDate.IsZero() {
		seq = stream.TakeWhile(seq, filter.WithinFloor)
	}
	return stream.Filter(seq, filter.Match)
}

// TransactionCard loads the card traded in one transaction.
func (r *TransactionRepository) TransactionCard(ctx context.Context, transactionID string) (TransactionDetailCard, error) {
	var detail rawTransactionDetail
	path := PathPaymentDetail + "/" + url.PathEscape(transactionID)
	if err := r.api.GetJSON(ctx, path, nil, &detail); err != nil {
		return TransactionDetailCard{}, fmt.Errorf("transaction %s detail: %w", transactionID, err)
	}
	return detail.card(), nil
}

// TradedCards enriches every matching transaction with its card. Transactions
// whose detail cannot be loaded are skipped.
func (r *TransactionRepository) TradedCards(ctx context.Context, filter TransactionFilter) iter.Seq2[TransactionDetailCard, error] {
	r.logger.Debug().
		Str("status", string(filter.Status)).
		Interface("types", filter.Types).
		Time("oldest_date", filter.OldestDate).
		Msg("Listing traded cards")

	fetch := func(ctx context.Context, tx Transaction) (TransactionDetailCard, error) {
		return r.TransactionCard(ctx, tx.ID)
	}
	return stream.Enrich(ctx, r.Transactions(ctx, filter), r.width, fetch)
}
