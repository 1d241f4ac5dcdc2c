package altered

import (
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Sternrassler/altered-tcg-client/pkg/report"
)

// Faction codes.
type Faction string

const (
	FactionAxiom  Faction = "AX"
	FactionBravos Faction = "BR"
	FactionLyra   Faction = "LY"
	FactionMuna   Faction = "MU"
	FactionOrdis  Faction = "OR"
	FactionYzmir  Faction = "YZ"
)

// Rarity codes. Only unique cards are traded individually.
type Rarity string

const RarityUnique Rarity = "UNIQUE"

// CardSet codes.
type CardSet string

const (
	CardSetCoreKS  CardSet = "COREKS"
	CardSetCore    CardSet = "CORE"
	CardSetAlize   CardSet = "ALIZE"
	CardSetBise    CardSet = "BISE"
	CardSetCyclone CardSet = "CYCLONE"
)

// MaxPrice is the highest price filter the marketplace accepts.
const MaxPrice = 250

// Card is a marketplace card.
type Card struct {
	ID         string           `json:"id"`
	Reference  string           `json:"reference"`
	Name       string           `json:"name"`
	Quantity   int              `json:"quantity"`
	Rarity     Rarity           `json:"rarity"`
	Faction    Faction          `json:"faction"`
	CardSet    CardSet          `json:"cardSet"`
	CardType   string           `json:"cardType"`
	ImageURL   string           `json:"imageURL"`
	DetailURL  string           `json:"detailURL"`
	MainCost   int              `json:"mainCost"`
	RecallCost int              `json:"recallCost"`
	MainEffect string           `json:"mainEffect,omitempty"`
	EchoEffect string           `json:"echoEffect,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	LowerPrice *decimal.Decimal `json:"lowerPrice,omitempty"`
}

// ReportFields implements report.Item.
func (c Card) ReportFields() report.Fields {
	quantity := c.Quantity
	return report.Fields{
		ID:         c.ID,
		DetailURL:  c.DetailURL,
		ImageURL:   c.ImageURL,
		Reference:  c.Reference,
		Name:       c.Name,
		Price:      c.Price,
		LowerPrice: c.LowerPrice,
		Quantity:   &quantity,
	}
}

// CardOffer is one listing of a card on the marketplace.
type CardOffer struct {
	ID       string          `json:"id"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Seller   string          `json:"seller,omitempty"`
}

type referenceField struct {
	Reference string `json:"reference"`
}

type rawCard struct {
	ID          string            `json:"id"`
	Reference   string            `json:"reference"`
	Name        string            `json:"name"`
	Quantity    int               `json:"quantity"`
	Rarity      referenceField    `json:"rarity"`
	MainFaction referenceField    `json:"mainFaction"`
	CardSet     referenceField    `json:"cardSet"`
	CardType    referenceField    `json:"cardType"`
	ImagePath   string            `json:"imagePath"`
	QRURLDetail string            `json:"qrUrlDetail"`
	Elements    map[string]string `json:"elements"`
}

func (r rawCard) card() Card {
	return Card{
		ID:         r.ID,
		Reference:  r.Reference,
		Name:       r.Name,
		Quantity:   r.Quantity,
		Rarity:     Rarity(r.Rarity.Reference),
		Faction:    Faction(r.MainFaction.Reference),
		CardSet:    CardSet(r.CardSet.Reference),
		CardType:   r.CardType.Reference,
		ImageURL:   r.ImagePath,
		DetailURL:  r.QRURLDetail,
		MainCost:   atoiOrZero(r.Elements["MAIN_COST"]),
		RecallCost: atoiOrZero(r.Elements["RECALL_COST"]),
		MainEffect: r.Elements["MAIN_EFFECT"],
		EchoEffect: r.Elements["ECHO_EFFECT"],
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// CardFilter selects cards from the marketplace statistics listing.
// Empty fields are omitted from the query.
type CardFilter struct {
	CardSets    []CardSet
	Factions    []Faction
	Rarities    []Rarity
	MainCosts   []int
	RecallCosts []int

	// MaxPrice caps the lowest offer price; 0 leaves it unset.
	MaxPrice int

	// InSale restricts to cards with at least one open offer when set.
	InSale *bool
}

// Query encodes the filter as marketplace query parameters.
func (f CardFilter) Query() url.Values {
	q := url.Values{}
	for _, s := range f.CardSets {
		q.Add("cardSet[]", string(s))
	}
	for _, fa := range f.Factions {
		q.Add("factions[]", string(fa))
	}
	for _, r := range f.Rarities {
		q.Add("rarity[]", string(r))
	}
	for _, c := range f.MainCosts {
		q.Add("mainCost[]", strconv.Itoa(c))
	}
	for _, c := range f.RecallCosts {
		q.Add("recallCost[]", strconv.Itoa(c))
	}
	if f.MaxPrice > 0 {
		q.Set("priceMax", strconv.Itoa(f.MaxPrice))
	}
	if f.InSale != nil {
		q.Set("inSale", strconv.FormatBool(*f.InSale))
	}
	return q
}
