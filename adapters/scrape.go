package adapters

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dynergy/tariff-compare/models"
	"github.com/dynergy/tariff-compare/parser"
	"github.com/dynergy/tariff-compare/transport"
)

// SourceMultiScrape keys the single failure of a multi-provider scrape.
const SourceMultiScrape = "multi-scrape"

// multiRoute is the engine path segment of the multi-provider scrape.
const multiRoute = "tariffs"

// ReservedProviderID reports whether id would clash with another source's
// failure key or with the multi-provider scrape route.
func ReservedProviderID(id string) bool {
	switch id {
	case SourceBasic, SourceCSV, SourceMultiScrape, SourceBacktest, SourceRisk, multiRoute:
		return true
	}
	return false
}

type scrapePayload struct {
	ZipCode           string   `json:"zip_code"`
	AnnualConsumption float64  `json:"annual_consumption"`
	Providers         []string `json:"providers,omitempty"`
	Headless          bool     `json:"headless"`
	DebugMode         bool     `json:"debug_mode"`
}

// validateScrape is the input gate in front of every scrape-class call.
func validateScrape(req models.ProviderRequest) error {
	if err := parser.ValidateZipCode(req.ZipCode); err != nil {
		return transport.ErrParse{Err: err}
	}
	if req.AnnualConsumption <= 0 {
		return transport.Parsef("annual consumption must be positive")
	}
	return nil
}

func payloadFor(req models.ProviderRequest, providers []string) scrapePayload {
	return scrapePayload{
		ZipCode:           strings.TrimSpace(req.ZipCode),
		AnnualConsumption: req.AnnualConsumption,
		Providers:         providers,
		Headless:          req.Headless,
		DebugMode:         req.DebugMode,
	}
}

// Scrape fetches a live quote from exactly one provider.
type Scrape struct {
	client *transport.Client
	req    models.ProviderRequest
}

// NewScrape binds req to its provider.
func NewScrape(client *transport.Client, req models.ProviderRequest) *Scrape {
	req.ProviderID = parser.NormalizeProviderID(req.ProviderID)
	return &Scrape{client: client, req: req}
}

// Source is the provider id. A reserved id is prefixed so its failure
// cannot replace another source's entry.
func (s *Scrape) Source() string {
	if ReservedProviderID(s.req.ProviderID) {
		return "scrape/" + s.req.ProviderID
	}
	return s.req.ProviderID
}

func (s *Scrape) Class() transport.Class { return transport.ClassScrape }

// Timeout is the request's own budget; zero falls back to the class default.
func (s *Scrape) Timeout() time.Duration { return s.req.TimeoutBudget }

// Invoke validates the request, then posts it to the provider's scrape route.
func (s *Scrape) Invoke(ctx context.Context) ([]models.TariffQuote, error) {
	if s.req.ProviderID == "" {
		return nil, transport.Parsef("scrape request has no provider")
	}
	if ReservedProviderID(s.req.ProviderID) {
		return nil, transport.Parsef("provider id %q is reserved", s.req.ProviderID)
	}
	if err := validateScrape(s.req); err != nil {
		return nil, err
	}

	resp, err := s.client.PostJSON(ctx, s.Class(), "/scrape/"+url.PathEscape(s.req.ProviderID), payloadFor(s.req, nil), s.req.TimeoutBudget)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Tariff *engineQuote `json:"tariff"`
	}
	if err := transport.DecodeJSON(resp, &envelope); err != nil {
		return nil, err
	}
	if envelope.Tariff == nil {
		return nil, transport.Parsef("response has no tariff")
	}
	q, err := envelope.Tariff.normalize(models.SourceScraped, s.req.ProviderID, models.TariffDynamic)
	if err != nil {
		return nil, err
	}
	return []models.TariffQuote{q}, nil
}

// MultiScrape asks the engine to scrape several providers in one call. The
// engine fans out server-side, so any failure is a single failure.
type MultiScrape struct {
	client    *transport.Client
	req       models.ProviderRequest
	providers []string
}

// NewMultiScrape binds the shared request and the provider list, defaulting to
// DefaultMultiProviders.
func NewMultiScrape(client *transport.Client, req models.ProviderRequest, providers []string) *MultiScrape {
	seen := make(map[string]struct{}, len(providers))
	normalized := make([]string, 0, len(providers))
	for _, p := range providers {
		id := parser.NormalizeProviderID(p)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	if len(normalized) == 0 {
		normalized = append(normalized, models.DefaultMultiProviders...)
	}
	sort.Strings(normalized)
	return &MultiScrape{client: client, req: req, providers: normalized}
}

// Source is always SourceMultiScrape.
func (m *MultiScrape) Source() string { return SourceMultiScrape }
func (m *MultiScrape) Class() transport.Class { return transport.ClassMultiScrape }
func (m *MultiScrape) Timeout() time.Duration { return m.req.TimeoutBudget }

// Providers returns the normalized provider list.
func (m *MultiScrape) Providers() []string {
	out := make([]string, len(m.providers))
	copy(out, m.providers)
	return out
}

// Invoke posts one request for every bound provider.
func (m *MultiScrape) Invoke(ctx context.Context) ([]models.TariffQuote, error) {
	if err := validateScrape(m.req); err != nil {
		return nil, err
	}

	resp, err := m.client.PostJSON(ctx, m.Class(), "/scrape/"+multiRoute, payloadFor(m.req, m.providers), m.req.TimeoutBudget)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Tariffs []engineQuote `json:"tariffs"`
	}
	if err := transport.DecodeJSON(resp, &envelope); err != nil {
		return nil, err
	}
	return normalizeAll(envelope.Tariffs, models.SourceScraped, "", models.TariffDynamic)
}
