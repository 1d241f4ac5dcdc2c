package altered

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Sternrassler/altered-tcg-client/pkg/pagination"
	"github.com/Sternrassler/altered-tcg-client/pkg/stream"
)

// CardRepository reads the card catalogue and its marketplace offers.
type CardRepository struct {
	api   API
	width int
}

// NewCardRepository creates a repository; width bounds the number of
// concurrent card lookups in Cards.
func NewCardRepository(api API, width int) *CardRepository {
	if width < 1 {
		width = stream.DefaultWidth
	}
	return &CardRepository{api: api, width: width}
}

type rawCardStat struct {
	ID         string           `json:"@id"`
	LowerPrice *decimal.Decimal `json:"lowerPrice"`
}

// reference returns the last path segment of the stat's "@id".
func (s rawCardStat) reference() string {
	id := strings.TrimRight(s.ID, "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Cards lists marketplace statistics matching filter and resolves each entry
// to its full card, carrying over the lowest offer price. Entries whose card
// cannot be loaded are skipped.
func (r *CardRepository) Cards(ctx context.Context, filter CardFilter) iter.Seq2[Card, error] {
	stats := pagination.Items[rawCardStat](ctx, r.api, PathCardStats, filter.Query(), pagination.DefaultPageSize)
	fetch := func(ctx context.Context, stat rawCardStat) (Card, error) {
		card, err := r.CardByReference(ctx, stat.reference())
		if err != nil {
			return Card{}, err
		}
		card.LowerPrice = stat.LowerPrice
		return card, nil
	}
	return stream.Enrich(ctx, stats, r.width, fetch)
}

// CardByReference loads one card.
func (r *CardRepository) CardByReference(ctx context.Context, reference string) (Card, error) {
	var raw rawCard
	path := PathCards + "/" + url.PathEscape(reference)
	if err := r.api.GetJSON(ctx, path, nil, &raw); err != nil {
		return Card{}, fmt.Errorf("card %s: %w", reference, err)
	}
	return raw.card(), nil
}

// Offers lists up to limit offers for a card. A limit below 1 means 1.
func (r *CardRepository) Offers(ctx context.Context, reference string, limit int) iter.Seq2[CardOffer, error] {
	if limit < 1 {
		limit = 1
	}
	path := PathCards + "/" + url.PathEscape(reference) + "/offers"
	offers := pagination.Items[CardOffer](ctx, r.api, path, nil, pagination.DefaultPageSize)
	return stream.Take(offers, limit)
}
