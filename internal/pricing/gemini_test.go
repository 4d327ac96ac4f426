package pricing

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/logger"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	calls  int
	config *genai.GenerateContentConfig
	prompt string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string, chunks ...*genai.GroundingChunk) *genai.GenerateContentResponse {
	cand := &genai.Candidate{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
	}
	if len(chunks) > 0 {
		cand.GroundingMetadata = &genai.GroundingMetadata{GroundingChunks: chunks}
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{cand}}
}

func webChunk(uri, title string) *genai.GroundingChunk {
	return &genai.GroundingChunk{Web: &genai.GroundingChunkWeb{URI: uri, Title: title}}
}

func newTestService(gen contentGenerator) *GeminiService {
	s := newGeminiService(gen, "", logger.NewWithWriter(&bytes.Buffer{}))
	s.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func holdings() []domain.StockHolding {
	return []domain.StockHolding{
		{ID: "1", Symbol: "2330.TW", Shares: 1000, AverageCost: 550, CurrentPrice: domain.Float64(580)},
		{ID: "2", Symbol: "AAPL", Shares: 5, AverageCost: 150},
	}
}

func TestRefreshPricesMergesResults(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(
		"```json\n{\"2330.TW\": 612.5}\n```",
		webChunk("https://finance.example/2330", "TSMC quote"),
		webChunk("https://finance.example/2330", "duplicate"),
		webChunk("", "no uri"),
	)}
	s := newTestService(gen)

	in := holdings()
	got := s.RefreshPrices(context.Background(), in)

	if gen.config == nil || len(gen.config.Tools) != 1 || gen.config.Tools[0].GoogleSearch == nil {
		t.Error("expected Google Search tool in request")
	}

	if *got[0].CurrentPrice != 612.5 {
		t.Errorf("price = %v, want 612.5", *got[0].CurrentPrice)
	}
	if got[0].LastUpdated == nil || !got[0].LastUpdated.Equal(s.now()) {
		t.Errorf("lastUpdated = %v", got[0].LastUpdated)
	}
	if len(got[0].Sources) != 1 || got[0].Sources[0].Title != "TSMC quote" {
		t.Errorf("sources = %+v", got[0].Sources)
	}

	// Symbol not found keeps its prior state.
	if got[1].CurrentPrice != nil || got[1].LastUpdated != nil || got[1].Sources != nil {
		t.Errorf("unpriced holding changed: %+v", got[1])
	}

	// Input is not modified.
	if *in[0].CurrentPrice != 580 {
		t.Errorf("input mutated: %v", *in[0].CurrentPrice)
	}
}

func TestRefreshPricesFailureReturnsInput(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"transport error", &fakeGenerator{err: errors.New("unavailable")}},
		{"not json", &fakeGenerator{resp: textResponse("prices are up today")}},
		{"empty", &fakeGenerator{resp: textResponse("")}},
		{"no numeric values", &fakeGenerator{resp: textResponse(`{"AAPL": "n/a"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := holdings()
			got := newTestService(tt.gen).RefreshPrices(context.Background(), in)
			if len(got) != len(in) {
				t.Fatalf("len = %d, want %d", len(got), len(in))
			}
			if *got[0].CurrentPrice != 580 || got[1].CurrentPrice != nil {
				t.Errorf("holdings changed on failure: %+v", got)
			}
		})
	}
}

func TestRefreshPricesEmptyDoesNotCallModel(t *testing.T) {
	gen := &fakeGenerator{}
	newTestService(gen).RefreshPrices(context.Background(), nil)
	if gen.calls != 0 {
		t.Errorf("model called %d times for empty holdings", gen.calls)
	}
}

func TestParsePriceMap(t *testing.T) {
	got, err := parsePriceMap("Here you go:\n{\"AAPL\": \"1,234.5\", \"MSFT\": 410, \"BAD\": null}")
	if err != nil {
		t.Fatalf("parsePriceMap: %v", err)
	}
	if got["AAPL"] != 1234.5 || got["MSFT"] != 410 {
		t.Errorf("parsePriceMap = %v", got)
	}
	if _, ok := got["BAD"]; ok {
		t.Error("null price kept")
	}
}

func TestLookupPriceCaseInsensitive(t *testing.T) {
	p, ok := lookupPrice(map[string]float64{"aapl": 1}, "AAPL")
	if !ok || p != 1 {
		t.Errorf("lookupPrice = %v, %v", p, ok)
	}
}

func TestAnalyzePortfolio(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("  Diversify more.  ")}
	text, ok := newTestService(gen).AnalyzePortfolio(context.Background(), holdings(), 750000)
	if !ok || text != "Diversify more." {
		t.Errorf("AnalyzePortfolio = %q, %v", text, ok)
	}
	if !bytes.Contains([]byte(gen.prompt), []byte("750000.00")) {
		t.Errorf("prompt missing total assets: %s", gen.prompt)
	}

	text, ok = newTestService(&fakeGenerator{err: errors.New("boom")}).AnalyzePortfolio(context.Background(), nil, 0)
	if !ok || text != FallbackAnalysis {
		t.Errorf("on error = %q, %v; want fallback", text, ok)
	}

	_, ok = newTestService(&fakeGenerator{resp: textResponse("")}).AnalyzePortfolio(context.Background(), nil, 0)
	if ok {
		t.Error("empty answer reported as ok")
	}
}

func TestDisabled(t *testing.T) {
	in := holdings()
	if got := (Disabled{}).RefreshPrices(context.Background(), in); len(got) != 2 {
		t.Errorf("Disabled.RefreshPrices = %+v", got)
	}
	if _, ok := (Disabled{}).AnalyzePortfolio(context.Background(), in, 1); ok {
		t.Error("Disabled.AnalyzePortfolio reported ok")
	}
}
