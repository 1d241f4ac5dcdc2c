// Package trade builds the user's bought/sold card reports and card search
// reports from the marketplace repositories.
package trade

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sternrassler/altered-tcg-client/pkg/altered"
	"github.com/Sternrassler/altered-tcg-client/pkg/report"
)

// Report names written by BuildReport.
const (
	BoughtReportName = "bought-cards"
	SoldReportName   = "sold-cards"
)

const tracerName = "github.com/Sternrassler/altered-tcg-client/pkg/trade"

// Config configures a Service.
type Config struct {
	// EnrichWidth bounds concurrent detail fetches.
	EnrichWidth int

	// Reports configures where reports are stored.
	Reports report.Options
}

// Paths are the artifact locations produced by BuildReport.
type Paths struct {
	Bought string
	Sold   string
}

// Service builds reports from marketplace data.
type Service struct {
	transactions *altered.TransactionRepository
	cards        *altered.CardRepository
	users        *altered.UserRepository
	reports      report.Options
	logger       zerolog.Logger
}

// NewService creates a Service on top of api.
func NewService(api altered.API, cfg Config) *Service {
	return &Service{
		transactions: altered.NewTransactionRepository(api, cfg.EnrichWidth),
		cards:        altered.NewCardRepository(api, cfg.EnrichWidth),
		users:        altered.NewUserRepository(api),
		reports:      cfg.Reports,
		logger:       log.With().Str("component", "trade").Logger(),
	}
}

// BoughtCards lists cards from succeeded purchases not older than oldestDate.
func (s *Service) BoughtCards(ctx context.Context, oldestDate *time.Time) iter.Seq2[altered.TransactionDetailCard, error] {
	return s.transactions.TradedCards(ctx, tradeFilter(altered.TransactionTypeBuy, oldestDate))
}

// SoldCards lists cards from succeeded sales not older than oldestDate.
func (s *Service) SoldCards(ctx context.Context, oldestDate *time.Time) iter.Seq2[altered.TransactionDetailCard, error] {
	return s.transactions.TradedCards(ctx, tradeFilter(altered.TransactionTypeSell, oldestDate))
}

func tradeFilter(typ altered.TransactionType, oldestDate *time.Time) altered.TransactionFilter {
	filter := altered.TransactionFilter{
		Status: altered.TransactionStatusSucceeded,
		Types:  []altered.TransactionType{typ},
	}
	if oldestDate != nil {
		filter.OldestDate = *oldestDate
	}
	return filter
}

// BuildReport writes the bought-cards and sold-cards reports. An unsupported
// report type fails before any request is sent.
func (s *Service) BuildReport(ctx context.Context, reportType report.Type, oldestDate *time.Time) (paths Paths, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "trade.BuildReport")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("report.type", string(reportType)))

	bought, err := report.New[altered.TransactionDetailCard](reportType, BoughtReportName, s.reports)
	if err != nil {
		return Paths{}, err
	}
	sold, err := report.New[altered.TransactionDetailCard](reportType, SoldReportName, s.reports)
	if err != nil {
		return Paths{}, err
	}

	logEvent := s.logger.Info().Str("report_type", string(reportType))
	if oldestDate != nil {
		logEvent = logEvent.Time("oldest_date", *oldestDate)
	}
	logEvent.Msg("Building trade reports")

	if err := bought.Write(ctx, s.BoughtCards(ctx, oldestDate)); err != nil {
		return Paths{}, fmt.Errorf("write %s report: %w", BoughtReportName, err)
	}
	if err := sold.Write(ctx, s.SoldCards(ctx, oldestDate)); err != nil {
		return Paths{}, fmt.Errorf("write %s report: %w", SoldReportName, err)
	}

	span.SetAttributes(
		attribute.Int("report.bought_items", bought.ItemsCount()),
		attribute.Int("report.sold_items", sold.ItemsCount()),
	)
	s.logger.Info().
		Str("bought", bought.Path()).
		Int("bought_items", bought.ItemsCount()).
		Str("sold", sold.Path()).
		Int("sold_items", sold.ItemsCount()).
		Msg("Trade reports written")

	return Paths{Bought: bought.Path(), Sold: sold.Path()}, nil
}

// SearchCardsReport writes the cards matching filter to a report and returns
// its path. An empty name generates one.
func (s *Service) SearchCardsReport(ctx context.Context, reportType report.Type, filter altered.CardFilter, name string) (path string, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "trade.SearchCardsReport")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("report.type", string(reportType)))

	rep, err := report.New[altered.Card](reportType, name, s.reports)
	if err != nil {
		return "", err
	}
	if err := rep.Write(ctx, s.cards.Cards(ctx, filter)); err != nil {
		return "", fmt.Errorf("write %s report: %w", rep.Name(), err)
	}

	span.SetAttributes(attribute.Int("report.items", rep.ItemsCount()))
	s.logger.Info().
		Str("path", rep.Path()).
		Int("items", rep.ItemsCount()).
		Msg("Card search report written")
	return rep.Path(), nil
}

// CurrentUser returns the account behind the configured token.
func (s *Service) CurrentUser(ctx context.Context) (altered.User, error) {
	return s.users.CurrentUser(ctx)
}
