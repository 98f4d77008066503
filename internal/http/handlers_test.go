package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/focusguard/internal/application"
	"github.com/example/focusguard/internal/insights"
	"github.com/example/focusguard/internal/logging"
	"github.com/example/focusguard/internal/testfixtures"
)

type apiFixture struct {
	services *testfixtures.Services
	handler  http.Handler
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()

	services := testfixtures.NewServices()
	clock := services.Factory.Clock
	aggregator := insights.NewAggregator(services.Storage, services.Storage, insights.Config{
		Location:    services.Factory.Location,
		Now:         clock.NowFunc(),
		IDGenerator: testfixtures.NewIDGenerator("event").NextFunc(),
		CacheTTL:    -1,
		Logger:      logging.Discard(),
	})

	handler := NewRouter(RouterConfig{
		Schedules:      NewScheduleHandler(services.Schedules, logging.Discard()),
		Locks:          NewLockHandler(services.Locks, clock.NowFunc(), logging.Discard()),
		Insights:       NewInsightsHandler(aggregator, logging.Discard()),
		Quotes:         NewQuoteHandler(services.Quotes, logging.Discard()),
		AgentConnected: func() bool { return false },
		Logger:         logging.Discard(),
	})
	return apiFixture{services: services, handler: handler}
}

func (f apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		payload.WriteString(v)
	default:
		if err := json.NewEncoder(&payload).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestScheduleHandlers(t *testing.T) {
	t.Parallel()

	validSchedule := map[string]any{
		"appPackageNames": []string{"com.example.video", "com.example.video"},
		"scheduleConfig": map[string]any{
			"startTime":    "09:00",
			"endTime":      "17:00",
			"selectedDays": []bool{true, false, false, false, false, false, false},
		},
	}

	t.Run("create, read, toggle and delete", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/schedules", validSchedule)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		created := decodeBody[scheduleResponse](t, rec)
		if created.Schedule.ID != "schedule-1" {
			t.Fatalf("unexpected id %q", created.Schedule.ID)
		}
		if len(created.Schedule.AppPackageNames) != 1 || !created.Schedule.IsEnabled {
			t.Fatalf("unexpected schedule %#v", created.Schedule)
		}

		rec = api.do(t, http.MethodGet, "/v1/schedules/schedule-1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		rec = api.do(t, http.MethodPut, "/v1/schedules/schedule-1/enabled", map[string]bool{"enabled": false})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if decodeBody[scheduleResponse](t, rec).Schedule.IsEnabled {
			t.Fatalf("expected schedule to be disabled")
		}

		rec = api.do(t, http.MethodGet, "/v1/schedules", nil)
		list := decodeBody[listSchedulesResponse](t, rec)
		if len(list.Schedules) != 1 {
			t.Fatalf("expected one schedule, got %d", len(list.Schedules))
		}

		rec = api.do(t, http.MethodDelete, "/v1/schedules/schedule-1", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("map service errors to status codes", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name       string
			method     string
			path       string
			body       any
			wantStatus int
			wantCode   string
			wantField  string
		}{
			{
				name:       "unknown schedule",
				method:     http.MethodGet,
				path:       "/v1/schedules/missing",
				wantStatus: http.StatusNotFound,
				wantCode:   "not_found",
			},
			{
				name:       "malformed json",
				method:     http.MethodPost,
				path:       "/v1/schedules",
				body:       "{",
				wantStatus: http.StatusBadRequest,
				wantCode:   "bad_request",
			},
			{
				name:   "missing packages",
				method: http.MethodPost,
				path:   "/v1/schedules",
				body: map[string]any{
					"scheduleConfig": map[string]any{"startTime": "09:00", "endTime": "17:00"},
				},
				wantStatus: http.StatusUnprocessableEntity,
				wantCode:   "validation_failed",
				wantField:  "appPackageNames",
			},
			{
				name:       "enabled flag required",
				method:     http.MethodPut,
				path:       "/v1/schedules/schedule-1/enabled",
				body:       map[string]any{},
				wantStatus: http.StatusUnprocessableEntity,
				wantCode:   "validation_failed",
				wantField:  "enabled",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				api := newAPIFixture(t)

				rec := api.do(t, tt.method, tt.path, tt.body)
				if rec.Code != tt.wantStatus {
					t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
				}
				resp := decodeBody[errorResponse](t, rec)
				if resp.ErrorCode != tt.wantCode {
					t.Fatalf("expected error code %q, got %q", tt.wantCode, resp.ErrorCode)
				}
				if tt.wantField != "" {
					if _, ok := resp.Errors[tt.wantField]; !ok {
						t.Fatalf("expected field error for %q, got %v", tt.wantField, resp.Errors)
					}
				}
			})
		}
	})

	t.Run("import legacy document", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		document := `[{"id":"legacy-1","appPackageNames":["com.example.chat"],` +
			`"scheduleConfig":{"startTime":"08:00","endTime":"10:00","selectedDays":[true,true,true,true,true,false,false]},` +
			`"isEnabled":true,"createdAt":"2024-03-01T08:00:00Z"}]`

		rec := api.do(t, http.MethodPost, "/v1/schedules/import", document)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := decodeBody[importResponse](t, rec).Imported; got != 1 {
			t.Fatalf("expected one imported schedule, got %d", got)
		}
	})
}

func TestLockHandlers(t *testing.T) {
	t.Parallel()

	t.Run("lock now reports minutes remaining", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/locks", map[string]any{"packageName": "com.example.game", "minutes": 30})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		created := decodeBody[lockResponse](t, rec)
		if created.Lock.MinutesRemaining == nil || *created.Lock.MinutesRemaining != 30 {
			t.Fatalf("expected 30 minutes remaining, got %#v", created.Lock)
		}
		if created.Lock.Source != "manual" {
			t.Fatalf("unexpected source %q", created.Lock.Source)
		}

		rec = api.do(t, http.MethodGet, "/v1/locks", nil)
		list := decodeBody[listLocksResponse](t, rec)
		if len(list.Locks) != 1 || list.Locks[0].PackageName != "com.example.game" {
			t.Fatalf("unexpected locked set %#v", list.Locks)
		}
	})

	t.Run("indefinite lock then unlock", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/locks", map[string]any{"packageName": "com.example.feed"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if decodeBody[lockResponse](t, rec).Lock.UnlockAt != nil {
			t.Fatalf("expected no unlock time for an indefinite lock")
		}

		if rec := api.do(t, http.MethodDelete, "/v1/locks/com.example.feed", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if rec := api.do(t, http.MethodDelete, "/v1/locks/com.example.feed", nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 on second unlock, got %d", rec.Code)
		}
	})

	t.Run("unlock of a schedule-held app is rejected", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		if _, err := api.services.Schedules.Add(context.Background(), application.ScheduleInput{
			AppPackageNames: []string{"com.example.feed"},
			ScheduleConfig:  testfixtures.RecurringConfig("09:00", "17:00", time.Monday),
		}); err != nil {
			t.Fatalf("Add returned error: %v", err)
		}
		rec := api.do(t, http.MethodDelete, "/v1/locks/com.example.feed", nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
		}
		if _, ok := decodeBody[errorResponse](t, rec).Errors["packageName"]; !ok {
			t.Fatalf("expected packageName field error")
		}
	})

	t.Run("emergency unlock records a bypass", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		api.do(t, http.MethodPost, "/v1/locks", map[string]any{"packageName": "com.example.feed", "minutes": 10})
		rec := api.do(t, http.MethodPost, "/v1/locks/com.example.feed/emergency-unlock", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
		}

		events := api.services.Activity.LockEvents()
		if len(events) != 1 || events[0].WasSuccessful {
			t.Fatalf("expected one bypassed lock event, got %#v", events)
		}
	})

	t.Run("reject invalid durations", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		for _, body := range []string{
			`{"packageName": "com.example.feed", "minutes": 0}`,
			`{"packageName": "com.example.feed", "minutes": 9007199254741022}`,
		} {
			rec := api.do(t, http.MethodPost, "/v1/locks", body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("%s: expected 422, got %d", body, rec.Code)
			}
			if _, ok := decodeBody[errorResponse](t, rec).Errors["duration"]; !ok {
				t.Fatalf("%s: expected duration field error", body)
			}
		}
		if list := decodeBody[listLocksResponse](t, api.do(t, http.MethodGet, "/v1/locks", nil)); len(list.Locks) != 0 {
			t.Fatalf("rejected locks must not be installed, got %#v", list.Locks)
		}
	})
}

func TestBlockedEventsHandler(t *testing.T) {
	t.Parallel()
	api := newAPIFixture(t)

	rec := api.do(t, http.MethodGet, "/v1/blocked-events", nil)
	if rec.Code != http.StatusOK || len(decodeBody[blockedEventsResponse](t, rec).Events) != 0 {
		t.Fatalf("expected empty list, got %d: %s", rec.Code, rec.Body.String())
	}

	api.services.Locks.OnAppBlocked(context.Background(), "com.example.game")
	events := decodeBody[blockedEventsResponse](t, api.do(t, http.MethodGet, "/v1/blocked-events", nil)).Events
	if len(events) != 1 || events[0].PackageName != "com.example.game" || events[0].BlockedAt != "2024-03-04T12:00:00Z" {
		t.Fatalf("unexpected blocked events %#v", events)
	}
}

func TestQuoteHandlers(t *testing.T) {
	t.Parallel()

	t.Run("custom quote lifecycle", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/quotes", map[string]any{"text": "Ship small.", "category": "Productivity"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		created := decodeBody[quoteResponse](t, rec).Quote
		if created.ID == "" || !created.IsCustom {
			t.Fatalf("unexpected quote %#v", created)
		}

		if list := decodeBody[listQuotesResponse](t, api.do(t, http.MethodGet, "/v1/quotes", nil)); len(list.Quotes) != 1 {
			t.Fatalf("expected one custom quote, got %#v", list.Quotes)
		}
		byCategory := decodeBody[listQuotesResponse](t, api.do(t, http.MethodGet, "/v1/quotes?category=Productivity", nil))
		if len(byCategory.Quotes) != 6 || byCategory.Quotes[5].ID != created.ID {
			t.Fatalf("expected built-ins then the custom quote, got %#v", byCategory.Quotes)
		}
		if rec := api.do(t, http.MethodGet, "/v1/quotes?category=Sleep", nil); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422 for unknown category, got %d", rec.Code)
		}

		if rec := api.do(t, http.MethodDelete, "/v1/quotes/"+created.ID, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if rec := api.do(t, http.MethodDelete, "/v1/quotes/"+created.ID, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 on second delete, got %d", rec.Code)
		}
	})

	t.Run("reject invalid quotes", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/quotes", map[string]any{"text": " ", "category": "Sleep"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		errs := decodeBody[errorResponse](t, rec).Errors
		if _, ok := errs["text"]; !ok {
			t.Fatalf("expected text field error in %v", errs)
		}
		if _, ok := errs["category"]; !ok {
			t.Fatalf("expected category field error in %v", errs)
		}
	})

	t.Run("settings drive the random quote", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		settings := decodeBody[quoteSettingsResponse](t, api.do(t, http.MethodGet, "/v1/quotes/settings", nil))
		if settings.Category != "Motivation" || settings.Source != "both" || len(settings.Categories) != 4 {
			t.Fatalf("unexpected default settings %#v", settings)
		}

		rec := api.do(t, http.MethodPatch, "/v1/quotes/settings", map[string]any{"quoteCategory": "Mindfulness", "quoteSource": "default"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec := api.do(t, http.MethodPatch, "/v1/quotes/settings", map[string]any{"quoteSource": "everything"}); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}

		quote := decodeBody[quoteResponse](t, api.do(t, http.MethodGet, "/v1/quotes/random", nil)).Quote
		if quote.ID != "default-Mindfulness-0" {
			t.Fatalf("unexpected random quote %#v", quote)
		}
	})
}

func TestInsightsHandlers(t *testing.T) {
	t.Parallel()

	t.Run("record usage and read cards", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/usage", map[string]any{
			"packageName": "com.example.video",
			"appName":     "Video",
			"durationMs":  90 * 60 * 1000,
		})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec := api.do(t, http.MethodPost, "/v1/usage/unlocks", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}

		usage := decodeBody[usageResponse](t, api.do(t, http.MethodGet, "/v1/usage", nil))
		if len(usage.Apps) != 1 || len(usage.Daily) != 1 || usage.Daily[0].UnlockCount != 1 {
			t.Fatalf("unexpected usage %#v", usage)
		}

		rec = api.do(t, http.MethodGet, "/v1/insights?period=daily", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		cards := decodeBody[cardsResponse](t, rec)
		if cards.Period != "daily" || len(cards.Cards) == 0 {
			t.Fatalf("unexpected cards %#v", cards)
		}
		if cards.Cards[0].ID != "most_used_app" || cards.Cards[0].Value != "1h 30m" {
			t.Fatalf("expected Video as most used app, got %#v", cards.Cards[0])
		}
	})

	t.Run("lock events require both times", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/lock-events", map[string]any{"packageName": "com.example.video"})
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		resp := decodeBody[errorResponse](t, rec)
		if len(resp.Errors) != 2 {
			t.Fatalf("expected two field errors, got %v", resp.Errors)
		}
	})

	t.Run("record lock event then reset", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/v1/lock-events", map[string]any{
			"appName":       "Video",
			"packageName":   "com.example.video",
			"startTime":     "2024-03-04T10:00:00Z",
			"endTime":       "2024-03-04T11:00:00Z",
			"wasSuccessful": true,
		})
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
		}

		events := decodeBody[lockEventsResponse](t, api.do(t, http.MethodGet, "/v1/lock-events", nil))
		if len(events.Events) != 1 || events.Events[0].ID != "event-1" {
			t.Fatalf("unexpected events %#v", events.Events)
		}

		if rec := api.do(t, http.MethodDelete, "/v1/insights", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		events = decodeBody[lockEventsResponse](t, api.do(t, http.MethodGet, "/v1/lock-events", nil))
		if len(events.Events) != 0 {
			t.Fatalf("expected reset to clear events, got %d", len(events.Events))
		}
	})

	t.Run("unknown period is a validation error", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodGet, "/v1/insights?period=hourly", nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	api := newAPIFixture(t)

	rec := api.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBody[healthResponse](t, rec)
	if resp.Status != "ok" || resp.AgentConnected == nil || *resp.AgentConnected {
		t.Fatalf("unexpected health %#v", resp)
	}
}
