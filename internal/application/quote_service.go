package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/focusguard/internal/persistence"
)

const (
	quoteService = "quote_service"

	// DefaultQuoteCategory is used until the user picks a category.
	DefaultQuoteCategory = "Motivation"
)

// QuoteSource selects which quotes RandomQuote draws from.
type QuoteSource string

const (
	QuoteSourceDefault QuoteSource = "default"
	QuoteSourceCustom  QuoteSource = "custom"
	QuoteSourceBoth    QuoteSource = "both"
)

// Valid reports whether s is a known source.
func (s QuoteSource) Valid() bool {
	switch s {
	case QuoteSourceDefault, QuoteSourceCustom, QuoteSourceBoth:
		return true
	}
	return false
}

// FallbackQuote is returned when the stored quotes cannot be read.
var FallbackQuote = Quote{ID: "default-fallback", Text: "Focus on what matters most.", Category: "Focus"}

var quoteCategories = []string{"Motivation", "Focus", "Productivity", "Mindfulness"}

var builtinQuotes = map[string][]string{
	"Motivation": {
		"The only way to do great work is to love what you do.",
		"Don't watch the clock; do what it does. Keep going.",
		"Believe you can and you're halfway there.",
		"It always seems impossible until it's done.",
		"Your time is limited, don't waste it living someone else's life.",
	},
	"Focus": {
		"Concentrate all your thoughts upon the work in hand.",
		"The successful warrior is the average man, with laser-like focus.",
		"Where focus goes, energy flows.",
		"Focus on the solution, not the problem.",
		"Lack of direction, not lack of time, is the problem. We all have 24-hour days.",
	},
	"Productivity": {
		"Productivity is never an accident. It is always the result of a commitment to excellence.",
		"The key is not to prioritize what's on your schedule, but to schedule your priorities.",
		"Until we can manage time, we can manage nothing else.",
		"Amateurs sit and wait for inspiration, the rest of us just get up and go to work.",
		"The way to get started is to quit talking and begin doing.",
	},
	"Mindfulness": {
		"The present moment is the only moment available to us, and it is the door to all moments.",
		"Mindfulness isn't difficult, we just need to remember to do it.",
		"Be where you are, otherwise you will miss your life.",
		"The best way to capture moments is to pay attention.",
		"Mindfulness means being awake. It means knowing what you are doing.",
	},
}

// QuoteCategories lists the categories quotes can be filed under.
func QuoteCategories() []string {
	return slices.Clone(quoteCategories)
}

// DefaultQuotes returns the built-in quotes of category.
func DefaultQuotes(category string) []Quote {
	texts := builtinQuotes[category]
	quotes := make([]Quote, 0, len(texts))
	for i, text := range texts {
		quotes = append(quotes, Quote{ID: fmt.Sprintf("default-%s-%d", category, i), Text: text, Category: category})
	}
	return quotes
}

// NewQuoteID returns a time-ordered custom quote identifier.
func NewQuoteID() string {
	return "custom-" + uuid.Must(uuid.NewV7()).String()
}

// Quote is a motivational quote shown on the lock screen.
type Quote struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Author   string `json:"author,omitempty"`
	IsCustom bool   `json:"isCustom"`
}

// QuoteInput captures the fields of a new custom quote.
type QuoteInput struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Author   string `json:"author,omitempty"`
}

// QuoteSettings are the user's quote preferences.
type QuoteSettings struct {
	Category              string      `json:"quoteCategory"`
	Source                QuoteSource `json:"quoteSource"`
	ShowProductivityStats bool        `json:"showProductivityStats"`
}

// QuoteSettingsPatch is a partial settings update. Nil fields are left unchanged.
type QuoteSettingsPatch struct {
	Category              *string      `json:"quoteCategory,omitempty"`
	Source                *QuoteSource `json:"quoteSource,omitempty"`
	ShowProductivityStats *bool        `json:"showProductivityStats,omitempty"`
}

// DefaultQuoteSettings are reported until settings are saved.
func DefaultQuoteSettings() QuoteSettings {
	return QuoteSettings{Category: DefaultQuoteCategory, Source: QuoteSourceBoth, ShowProductivityStats: true}
}

// QuoteServiceConfig carries optional QuoteService collaborators.
type QuoteServiceConfig struct {
	IDGenerator func() string
	Now         func() time.Time
	// Intn returns a value in [0, n). Defaults to math/rand/v2.
	Intn   func(n int) int
	Logger *slog.Logger
}

// QuoteService manages custom quotes and picks the quote shown when an app
// is blocked.
type QuoteService struct {
	mu          sync.Mutex
	repo        persistence.QuoteRepository
	idGenerator func() string
	now         func() time.Time
	intn        func(n int) int
	logger      *slog.Logger
}

// NewQuoteService wires a service over repo.
func NewQuoteService(repo persistence.QuoteRepository, cfg QuoteServiceConfig) *QuoteService {
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = NewQuoteID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Intn == nil {
		cfg.Intn = rand.IntN
	}
	return &QuoteService{
		repo:        repo,
		idGenerator: cfg.IDGenerator,
		now:         cfg.Now,
		intn:        cfg.Intn,
		logger:      defaultLogger(cfg.Logger),
	}
}

// Settings returns the saved settings or the defaults.
func (s *QuoteService) Settings(ctx context.Context) (QuoteSettings, error) {
	settings, err := s.loadSettings(ctx)
	if err != nil {
		serviceLogger(ctx, s.logger, quoteService, "settings").
			ErrorContext(ctx, "quote settings load failed", "error", err, "error_kind", ErrorKind(err))
	}
	return settings, err
}

// UpdateSettings applies patch and saves the result.
func (s *QuoteService) UpdateSettings(ctx context.Context, patch QuoteSettingsPatch) (QuoteSettings, error) {
	logger := serviceLogger(ctx, s.logger, quoteService, "update_settings")

	vErr := &ValidationError{}
	if patch.Category != nil && !knownCategory(*patch.Category) {
		vErr.add("quoteCategory", "must be one of "+strings.Join(quoteCategories, ", "))
	}
	if patch.Source != nil && !patch.Source.Valid() {
		vErr.add("quoteSource", "must be default, custom or both")
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "quote settings rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return QuoteSettings{}, vErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.loadSettings(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "quote settings load failed", "error", err, "error_kind", ErrorKind(err))
		return QuoteSettings{}, err
	}
	if patch.Category != nil {
		settings.Category = *patch.Category
	}
	if patch.Source != nil {
		settings.Source = *patch.Source
	}
	if patch.ShowProductivityStats != nil {
		settings.ShowProductivityStats = *patch.ShowProductivityStats
	}

	record := persistence.QuoteSettings{
		Category:              settings.Category,
		Source:                string(settings.Source),
		ShowProductivityStats: settings.ShowProductivityStats,
	}
	if err := s.repo.SaveQuoteSettings(ctx, record); err != nil {
		err = mapRepoError("save quote settings", err)
		logger.ErrorContext(ctx, "quote settings save failed", "error", err, "error_kind", ErrorKind(err))
		return QuoteSettings{}, err
	}
	logger.InfoContext(ctx, "quote settings updated", "category", settings.Category, "source", settings.Source)
	return settings, nil
}

// CustomQuotes returns the user's quotes, oldest first.
func (s *QuoteService) CustomQuotes(ctx context.Context) ([]Quote, error) {
	quotes, err := s.customQuotes(ctx)
	if err != nil {
		serviceLogger(ctx, s.logger, quoteService, "custom_quotes").
			ErrorContext(ctx, "custom quote list failed", "error", err, "error_kind", ErrorKind(err))
	}
	return quotes, err
}

// AddCustomQuote stores a new quote written by the user.
func (s *QuoteService) AddCustomQuote(ctx context.Context, input QuoteInput) (Quote, error) {
	logger := serviceLogger(ctx, s.logger, quoteService, "add_custom_quote")

	quote := Quote{
		Text:     strings.TrimSpace(input.Text),
		Category: strings.TrimSpace(input.Category),
		Author:   strings.TrimSpace(input.Author),
		IsCustom: true,
	}
	vErr := &ValidationError{}
	if quote.Text == "" {
		vErr.add("text", "text is required")
	}
	if !knownCategory(quote.Category) {
		vErr.add("category", "must be one of "+strings.Join(quoteCategories, ", "))
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "custom quote rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return Quote{}, vErr
	}

	quote.ID = s.idGenerator()
	record := persistence.CustomQuote{
		ID:        quote.ID,
		Text:      quote.Text,
		Category:  quote.Category,
		Author:    quote.Author,
		CreatedAt: s.now(),
	}
	if err := s.repo.AddCustomQuote(ctx, record); err != nil {
		err = mapRepoError("add custom quote", err)
		logger.ErrorContext(ctx, "custom quote save failed", "error", err, "error_kind", ErrorKind(err))
		return Quote{}, err
	}
	logger.InfoContext(ctx, "custom quote added", "quote_id", quote.ID, "category", quote.Category)
	return quote, nil
}

// DeleteCustomQuote removes the quote with id.
func (s *QuoteService) DeleteCustomQuote(ctx context.Context, id string) error {
	logger := serviceLogger(ctx, s.logger, quoteService, "delete_custom_quote", "quote_id", id)
	if err := s.repo.DeleteCustomQuote(ctx, strings.TrimSpace(id)); err != nil {
		err = mapRepoError("delete custom quote", err)
		logger.WarnContext(ctx, "custom quote delete failed", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "custom quote deleted")
	return nil
}

// RandomQuote picks a quote of the chosen category from the chosen source.
// When the source has nothing for the category the built-in quotes are used.
// On a storage error FallbackQuote is returned along with the error.
func (s *QuoteService) RandomQuote(ctx context.Context) (Quote, error) {
	logger := serviceLogger(ctx, s.logger, quoteService, "random_quote")

	settings, err := s.loadSettings(ctx)
	if err != nil {
		logger.WarnContext(ctx, "quote settings unavailable", "error", err, "error_kind", ErrorKind(err))
		return FallbackQuote, err
	}

	var pool []Quote
	if settings.Source != QuoteSourceCustom {
		pool = append(pool, DefaultQuotes(settings.Category)...)
	}
	if settings.Source != QuoteSourceDefault {
		custom, err := s.customQuotes(ctx)
		if err != nil {
			logger.WarnContext(ctx, "custom quotes unavailable", "error", err, "error_kind", ErrorKind(err))
			return FallbackQuote, err
		}
		for _, quote := range custom {
			if quote.Category == settings.Category {
				pool = append(pool, quote)
			}
		}
	}
	if len(pool) == 0 {
		logger.DebugContext(ctx, "no quotes for source, using built-in quotes", "source", settings.Source)
		pool = DefaultQuotes(settings.Category)
	}
	if len(pool) == 0 {
		return FallbackQuote, nil
	}
	return pool[s.intn(len(pool))], nil
}

func (s *QuoteService) loadSettings(ctx context.Context) (QuoteSettings, error) {
	record, ok, err := s.repo.LoadQuoteSettings(ctx)
	if err != nil {
		return DefaultQuoteSettings(), mapRepoError("load quote settings", err)
	}
	settings := DefaultQuoteSettings()
	if !ok {
		return settings, nil
	}
	if knownCategory(record.Category) {
		settings.Category = record.Category
	}
	if source := QuoteSource(record.Source); source.Valid() {
		settings.Source = source
	}
	settings.ShowProductivityStats = record.ShowProductivityStats
	return settings, nil
}

func (s *QuoteService) customQuotes(ctx context.Context) ([]Quote, error) {
	records, err := s.repo.ListCustomQuotes(ctx)
	if err != nil {
		return nil, mapRepoError("list custom quotes", err)
	}
	quotes := make([]Quote, 0, len(records))
	for _, record := range records {
		quotes = append(quotes, Quote{
			ID:       record.ID,
			Text:     record.Text,
			Category: record.Category,
			Author:   record.Author,
			IsCustom: true,
		})
	}
	return quotes, nil
}

func knownCategory(category string) bool {
	return slices.Contains(quoteCategories, category)
}
