// Package pagination turns the marketplace's paginated collection endpoints
// into lazy, single-pass sequences.
//
// List endpoints return a Hydra envelope ({"hydra:member": [...]}) and give no
// total page count, so the paginator walks a one-based page cursor and stops at
// the first empty page. A short, non-empty page does not end the walk.
//
// Example usage:
//
//	txs := pagination.Items[RawTransaction](ctx, apiClient, "payments/wallets/transactions",
//		url.Values{"order[date]": {"desc"}}, 100)
//	for tx, err := range txs {
//		if err != nil {
//			return err
//		}
//		...
//	}
//
// Every call to Items starts a fresh cursor at page 1. Breaking out of the
// range loop stops the walk before the next page is requested. A request error
// is yielded once and ends the sequence; items yielded before it stay valid.
// The walk is unbounded if the backend never returns an empty page, so callers
// that need a hard limit wrap the sequence with stream.Take.
package pagination
