// Package altered models the Altered TCG marketplace: transactions, cards,
// offers and the signed-in user, plus repositories that turn the paginated
// API into lazy, filtered and enriched sequences.
//
// Repositories only need an API, which *client.Client satisfies:
//
//	c, _ := client.New(client.DefaultConfig(token))
//	txs := altered.NewTransactionRepository(c, stream.DefaultWidth)
//	for card, err := range txs.TradedCards(ctx, altered.TransactionFilter{
//		Status: altered.TransactionStatusSucceeded,
//		Types:  []altered.TransactionType{altered.TransactionTypeBuy},
//	}) {
//		...
//	}
package altered

import (
	"context"
	"net/url"

	"github.com/Sternrassler/altered-tcg-client/pkg/pagination"
)

// API is the subset of the HTTP client the repositories depend on.
type API interface {
	pagination.PageFetcher
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// API paths, relative to the base URL.
const (
	PathTransactions  = "payments/wallets/transactions"
	PathPaymentDetail = "payments/detail"
	PathCards         = "cards"
	PathCardStats     = "cards/stats"
	PathMe            = "me"
)
