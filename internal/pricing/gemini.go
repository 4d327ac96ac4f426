package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiService implements Service with Gemini and Google Search grounding.
type GeminiService struct {
	models contentGenerator
	model  string
	now    func() time.Time
	log    zerolog.Logger
}

// NewGeminiService creates a Gemini-backed service. An empty apiKey lets the
// SDK read GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGeminiService(ctx context.Context, apiKey, model string, log zerolog.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiService: create genai client: %w", err)
	}
	return newGeminiService(client.Models, model, log), nil
}

func newGeminiService(models contentGenerator, model string, log zerolog.Logger) *GeminiService {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiService{
		models: models,
		model:  model,
		now:    time.Now,
		log:    log,
	}
}

// RefreshPrices implements Service.
func (s *GeminiService) RefreshPrices(ctx context.Context, holdings []domain.StockHolding) []domain.StockHolding {
	if len(holdings) == 0 {
		return holdings
	}

	prices, sources, err := s.fetchPrices(ctx, holdings)
	if err != nil {
		s.log.Error().Err(err).Int("holdings", len(holdings)).Msg("Price refresh failed")
		return holdings
	}

	now := s.now()
	out := make([]domain.StockHolding, len(holdings))
	priced := 0
	for i, h := range holdings {
		h = h.Clone()
		if p, ok := lookupPrice(prices, h.Symbol); ok {
			h.CurrentPrice = domain.Float64(p)
			updated := now
			h.LastUpdated = &updated
			if len(sources) > 0 {
				h.Sources = append([]domain.Source(nil), sources...)
			}
			priced++
		}
		out[i] = h
	}

	s.log.Info().
		Int("holdings", len(holdings)).
		Int("priced", priced).
		Int("sources", len(sources)).
		Msg("Prices refreshed")
	return out
}

func (s *GeminiService) fetchPrices(ctx context.Context, holdings []domain.StockHolding) (map[string]float64, []domain.Source, error) {
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}

	prompt := "Find the real-time or latest closing price for these stock symbols: " + strings.Join(symbols, ", ") + ".\n" +
		"If you cannot find the exact real-time price, use the latest available close price.\n" +
		"Return ONLY a JSON object where keys are the symbols and values are the numeric prices.\n" +
		"Example: {\"2330.TW\": 600.5, \"AAPL\": 150.25}\n"

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	resp, err := s.models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return nil, nil, fmt.Errorf("fetchPrices: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, nil, fmt.Errorf("fetchPrices: empty response from model")
	}

	prices, err := parsePriceMap(rawText)
	if err != nil {
		return nil, nil, fmt.Errorf("fetchPrices: %w", err)
	}
	return prices, groundingSources(resp), nil
}

// parsePriceMap decodes a symbol to price JSON object. Values may be
// numbers or numeric strings; entries that are neither are skipped.
func parsePriceMap(raw string) (map[string]float64, error) {
	clean := cleanModelJSON(raw)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	prices := make(map[string]float64, len(parsed))
	for symbol, v := range parsed {
		switch p := v.(type) {
		case float64:
			prices[symbol] = p
		case string:
			f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(p), ",", ""), 64)
			if err == nil {
				prices[symbol] = f
			}
		}
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no prices in response: %s", raw)
	}
	return prices, nil
}

func lookupPrice(prices map[string]float64, symbol string) (float64, bool) {
	if p, ok := prices[symbol]; ok {
		return p, true
	}
	for k, p := range prices {
		if strings.EqualFold(k, symbol) {
			return p, true
		}
	}
	return 0, false
}

func groundingSources(resp *genai.GenerateContentResponse) []domain.Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}

	var sources []domain.Source
	seen := make(map[string]bool)
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		if seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		sources = append(sources, domain.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}

// AnalyzePortfolio implements Service.
func (s *GeminiService) AnalyzePortfolio(ctx context.Context, holdings []domain.StockHolding, totalAssets float64) (string, bool) {
	var b strings.Builder
	for _, h := range holdings {
		fmt.Fprintf(&b, "- %s (%s): %s shares, average cost %s, current price %s\n",
			h.Name, h.Symbol,
			strconv.FormatFloat(h.Shares, 'f', -1, 64),
			strconv.FormatFloat(h.AverageCost, 'f', -1, 64),
			strconv.FormatFloat(h.Price(), 'f', -1, 64))
	}

	prompt := "You are a professional financial advisor. Give a short analysis of this portfolio.\n\n" +
		"Total assets: " + strconv.FormatFloat(totalAssets, 'f', 2, 64) + "\n" +
		"Holdings:\n" + b.String() + "\n" +
		"Assess the risk distribution and give recommendations in under 200 words."

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}

	resp, err := s.models.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("Portfolio analysis failed")
		return FallbackAnalysis, true
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", false
	}
	return text, true
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

var _ Service = (*GeminiService)(nil)
