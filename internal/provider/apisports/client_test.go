package apisports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsync/internal/config"
	"github.com/timmy/sportsync/internal/domain"
	"github.com/timmy/sportsync/internal/provider"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ProviderConfig{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		AuthHeader: "x-apisports-key",
		Timeout:    200 * time.Millisecond,
		MaxPages:   5,
	})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestFetchTeamsAcrossPages(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/teams", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-apisports-key"))
		assert.Equal(t, "39", r.URL.Query().Get("league"))

		if r.URL.Query().Get("page") == "2" {
			writeJSON(w, http.StatusOK, `{"errors":[],"paging":{"current":2,"total":2},
				"response":[{"team":{"id":33,"name":"Manchester United","code":"MUN","logo":"mun.png"}}]}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"errors":[],"paging":{"current":1,"total":2},
			"response":[{"team":{"id":50,"name":"Manchester City","code":"MAC","logo":"mac.png"}}]}`)
	})

	records, err := client.Fetch(context.Background(), domain.EntityTeams, provider.Params{"league": "39", "season": "2025"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	assert.Equal(t, domain.ProviderRecord{
		EntityType:       domain.EntityTeams,
		ExternalID:       "50",
		Name:             "Manchester City",
		Code:             "MAC",
		ImageURL:         "mac.png",
		ParentExternalID: "39",
	}, records[0])
	assert.Equal(t, "33", records[1].ExternalID)
}

func TestFetchFixturesNormalizes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"errors":[],"paging":{"current":1,"total":1},"response":[
			{"fixture":{"id":1035037,"date":"2025-08-16T14:00:00+00:00","status":{"short":"NS"}},
			 "league":{"id":39,"season":2025},
			 "teams":{"home":{"id":50,"name":"Manchester City"},"away":{"id":33,"name":"Manchester United"}}}]}`)
	})

	records, err := client.Fetch(context.Background(), domain.EntityFixtures, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "1035037", rec.ExternalID)
	assert.Equal(t, "Manchester City vs Manchester United", rec.Name)
	assert.Equal(t, "39", rec.ParentExternalID)
	assert.Equal(t, "NS", rec.Status)
	require.NotNil(t, rec.StartsAt)
	assert.True(t, rec.StartsAt.Equal(time.Date(2025, 8, 16, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025", rec.Extra["season"])
}

func TestFetchClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, target: domain.ErrProviderAuth},
		{name: "forbidden", status: http.StatusForbidden, body: `{}`, target: domain.ErrProviderAuth},
		{name: "token error in body", status: http.StatusOK, body: `{"errors":{"token":"Error/Missing application key."},"response":[]}`, target: domain.ErrProviderAuth},
		{name: "server error", status: http.StatusBadGateway, body: `{}`, target: domain.ErrProviderUnavailable},
		{name: "throttled", status: http.StatusTooManyRequests, body: `{}`, target: domain.ErrProviderUnavailable},
		{name: "daily quota in body", status: http.StatusOK, body: `{"errors":{"requests":"You have reached the request limit for the day"},"response":[]}`, target: domain.ErrProviderUnavailable},
		{name: "unexpected status", status: http.StatusBadRequest, body: `{}`, target: domain.ErrProviderRejected},
		{name: "parameter error in body", status: http.StatusOK, body: `{"errors":{"league":"The League field must contain an integer."},"response":[]}`, target: domain.ErrProviderRejected},
		{name: "undecodable response", status: http.StatusOK, body: `{"errors":[],"response":"maintenance"}`, target: domain.ErrProviderRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := client.Fetch(context.Background(), domain.EntityCountries, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestFetchTimeoutIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		writeJSON(w, http.StatusOK, `{"errors":[],"response":[]}`)
	})

	_, err := client.Fetch(context.Background(), domain.EntityLeagues, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
	assert.False(t, errors.Is(err, domain.ErrProviderAuth))
}

func TestFetchUnknownEntityType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Fetch(context.Background(), domain.EntityType("players"), nil)
	assert.True(t, errors.Is(err, domain.ErrUnknownEntityType))
}

func TestEntityTypesFollowDependencyOrder(t *testing.T) {
	client := NewClient(config.ProviderConfig{BaseURL: "http://localhost"})
	assert.Equal(t, domain.AllEntityTypes, client.EntityTypes())
}
