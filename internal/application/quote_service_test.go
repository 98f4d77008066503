package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/persistence"
	"github.com/example/focusguard/internal/persistence/memory"
	"github.com/example/focusguard/internal/testfixtures"
)

type failingQuoteRepo struct {
	persistence.QuoteRepository
	err error
}

func (r failingQuoteRepo) LoadQuoteSettings(context.Context) (persistence.QuoteSettings, bool, error) {
	return persistence.QuoteSettings{}, false, r.err
}

func TestQuoteService_DefaultSettings(t *testing.T) {
	t.Parallel()
	services := testfixtures.NewServices()

	settings, err := services.Quotes.Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings returned error: %v", err)
	}
	if settings != application.DefaultQuoteSettings() {
		t.Fatalf("unexpected defaults %#v", settings)
	}
	if settings.Category != "Motivation" || settings.Source != application.QuoteSourceBoth || !settings.ShowProductivityStats {
		t.Fatalf("unexpected defaults %#v", settings)
	}
}

func TestQuoteService_UpdateSettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	services := testfixtures.NewServices()

	category := "Focus"
	source := application.QuoteSourceCustom
	hide := false
	updated, err := services.Quotes.UpdateSettings(ctx, application.QuoteSettingsPatch{
		Category:              &category,
		Source:                &source,
		ShowProductivityStats: &hide,
	})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	want := application.QuoteSettings{Category: "Focus", Source: application.QuoteSourceCustom}
	if updated != want {
		t.Fatalf("expected %#v, got %#v", want, updated)
	}

	reloaded, err := testfixtures.NewServiceFactory().NewQuoteService(services.Storage).Settings(ctx)
	if err != nil || reloaded != want {
		t.Fatalf("settings not persisted: %#v, %v", reloaded, err)
	}

	bogus := "Sleep"
	badSource := application.QuoteSource("random")
	_, err = services.Quotes.UpdateSettings(ctx, application.QuoteSettingsPatch{Category: &bogus, Source: &badSource})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"quoteCategory", "quoteSource"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected field %q in %v", field, vErr.FieldErrors)
		}
	}
}

func TestQuoteService_CustomQuotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	services := testfixtures.NewServices()

	tests := []struct {
		name       string
		input      application.QuoteInput
		wantFields []string
	}{
		{name: "valid", input: application.QuoteInput{Text: "  Ship small.  ", Category: "Productivity", Author: " Me "}},
		{name: "blank text", input: application.QuoteInput{Text: " ", Category: "Focus"}, wantFields: []string{"text"}},
		{name: "unknown category", input: application.QuoteInput{Text: "Hi", Category: "Sleep"}, wantFields: []string{"category"}},
	}
	for _, tt := range tests {
		_, err := services.Quotes.AddCustomQuote(ctx, tt.input)
		if len(tt.wantFields) == 0 {
			if err != nil {
				t.Fatalf("%s: AddCustomQuote returned error: %v", tt.name, err)
			}
			continue
		}
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected validation error, got %v", tt.name, err)
		}
		for _, field := range tt.wantFields {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("%s: expected field %q in %v", tt.name, field, vErr.FieldErrors)
			}
		}
	}

	quotes, err := services.Quotes.CustomQuotes(ctx)
	if err != nil {
		t.Fatalf("CustomQuotes returned error: %v", err)
	}
	want := application.Quote{ID: "custom-1", Text: "Ship small.", Category: "Productivity", Author: "Me", IsCustom: true}
	if len(quotes) != 1 || quotes[0] != want {
		t.Fatalf("expected %#v, got %#v", want, quotes)
	}

	if err := services.Quotes.DeleteCustomQuote(ctx, "custom-1"); err != nil {
		t.Fatalf("DeleteCustomQuote returned error: %v", err)
	}
	if err := services.Quotes.DeleteCustomQuote(ctx, "custom-1"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuoteService_RandomQuote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(t *testing.T, source application.QuoteSource, pick func(int) int) *application.QuoteService {
		t.Helper()
		storage := memory.New(nil)
		service := application.NewQuoteService(storage, application.QuoteServiceConfig{
			IDGenerator: testfixtures.NewIDGenerator("custom").NextFunc(),
			Intn:        pick,
			Logger:      testfixtures.DiscardLogger(),
		})
		category := "Focus"
		if _, err := service.UpdateSettings(ctx, application.QuoteSettingsPatch{Category: &category, Source: &source}); err != nil {
			t.Fatalf("UpdateSettings returned error: %v", err)
		}
		for _, input := range []application.QuoteInput{
			{Text: "Mine.", Category: "Focus"},
			{Text: "Other.", Category: "Mindfulness"},
		} {
			if _, err := service.AddCustomQuote(ctx, input); err != nil {
				t.Fatalf("AddCustomQuote returned error: %v", err)
			}
		}
		return service
	}

	tests := []struct {
		name     string
		source   application.QuoteSource
		pick     func(int) int
		wantID   string
		wantPool int
	}{
		{name: "default source", source: application.QuoteSourceDefault, wantID: "default-Focus-4", wantPool: 5},
		{name: "custom source", source: application.QuoteSourceCustom, wantID: "custom-1", wantPool: 1},
		{name: "both sources", source: application.QuoteSourceBoth, wantID: "custom-1", wantPool: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var poolSize int
			service := setup(t, tt.source, func(n int) int {
				poolSize = n
				return n - 1
			})
			quote, err := service.RandomQuote(ctx)
			if err != nil {
				t.Fatalf("RandomQuote returned error: %v", err)
			}
			if quote.ID != tt.wantID || quote.Category != "Focus" {
				t.Fatalf("expected %s, got %#v", tt.wantID, quote)
			}
			if poolSize != tt.wantPool {
				t.Fatalf("expected pool of %d, got %d", tt.wantPool, poolSize)
			}
		})
	}

	t.Run("custom source without matching quotes uses built-ins", func(t *testing.T) {
		t.Parallel()
		services := testfixtures.NewServices()
		source := application.QuoteSourceCustom
		if _, err := services.Quotes.UpdateSettings(ctx, application.QuoteSettingsPatch{Source: &source}); err != nil {
			t.Fatalf("UpdateSettings returned error: %v", err)
		}
		quote, err := services.Quotes.RandomQuote(ctx)
		if err != nil {
			t.Fatalf("RandomQuote returned error: %v", err)
		}
		if quote.ID != "default-Motivation-0" || quote.IsCustom {
			t.Fatalf("expected first built-in Motivation quote, got %#v", quote)
		}
	})

	t.Run("storage failure returns the fallback quote", func(t *testing.T) {
		t.Parallel()
		service := testfixtures.NewServiceFactory().NewQuoteService(failingQuoteRepo{err: persistence.ErrBusy})
		quote, err := service.RandomQuote(ctx)
		if !errors.Is(err, persistence.ErrBusy) {
			t.Fatalf("expected wrapped ErrBusy, got %v", err)
		}
		if quote != application.FallbackQuote {
			t.Fatalf("expected fallback quote, got %#v", quote)
		}
	})
}
