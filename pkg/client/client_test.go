package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openmobility/mds-provider-client/internal/testutil"
	"github.com/openmobility/mds-provider-client/pkg/auth"
	"github.com/openmobility/mds-provider-client/pkg/paging"
	"github.com/openmobility/mds-provider-client/pkg/provider"
	"github.com/openmobility/mds-provider-client/pkg/query"
)

func TestGetItems_EmptyStore(t *testing.T) {
	server := testutil.NewFakeMDS(nil, nil)
	defer server.Close()

	c := New(server.Provider("empty"))
	items, err := c.GetItems(context.Background(), query.Trips, query.Filters{})
	if err != nil {
		t.Fatalf("GetItems() failed: %v", err)
	}

	if len(items) != 0 {
		t.Errorf("Items = %d, want 0", len(items))
	}
	if got := server.GetRequestCount(); got != 1 {
		t.Errorf("Requests = %d, want 1 (nothing beyond the first fetch)", got)
	}
}

func TestGetItems_AllPages(t *testing.T) {
	trips := testutil.MakeTrips(100, time.Unix(1700000000, 0))
	server := testutil.NewFakeMDS(trips, nil, testutil.WithPageSize(20))
	defer server.Close()

	c := New(server.Provider("full"))
	items, err := c.GetItems(context.Background(), query.Trips, query.Filters{})
	if err != nil {
		t.Fatalf("GetItems() failed: %v", err)
	}

	if len(items) != 100 {
		t.Errorf("Items = %d, want 100", len(items))
	}
	if got := server.GetRequestCount(); got != 5 {
		t.Errorf("Requests = %d, want 5", got)
	}
}

func TestGetPages_NoFollow(t *testing.T) {
	trips := testutil.MakeTrips(100, time.Unix(1700000000, 0))
	server := testutil.NewFakeMDS(trips, nil, testutil.WithPageSize(20))
	defer server.Close()

	c := New(server.Provider("first-page"))
	pages, err := c.GetPages(context.Background(), query.Trips, query.Filters{}, false)
	if err != nil {
		t.Fatalf("GetPages() failed: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("Pages = %d, want 1", len(pages))
	}
	if got := len(pages[0].Items("trips")); got != 20 {
		t.Errorf("Items = %d, want 20", got)
	}
	if got := server.GetRequestCount(); got != 1 {
		t.Errorf("Requests = %d, want 1", got)
	}
}

func TestGetItems_VehicleFilter(t *testing.T) {
	// MakeTrips cycles vehicle ids over 5 values, so each selects 20 of 100.
	trips := testutil.MakeTrips(100, time.Unix(1700000000, 0))
	server := testutil.NewFakeMDS(trips, nil, testutil.WithPageSize(20))
	defer server.Close()

	c := New(server.Provider("filtered"))
	items, err := c.GetItems(context.Background(), query.Trips, query.Filters{VehicleID: "vehicle-000"})
	if err != nil {
		t.Fatalf("GetItems() failed: %v", err)
	}

	if len(items) != 20 {
		t.Errorf("Items = %d, want 20", len(items))
	}
}

func TestGetItems_DisjointTimeWindows(t *testing.T) {
	// 120 trips, one starting each minute, each 10 minutes long. Trips
	// straddling a window edge fall out of both disjoint halves but stay
	// inside the single wide window.
	base := time.Unix(1700000000, 0)
	pivot := base.Add(time.Hour)
	trips := testutil.MakeTrips(120, base)
	server := testutil.NewFakeMDS(trips, nil, testutil.WithPageSize(20))
	defer server.Close()

	c := New(server.Provider("windows"))
	ctx := context.Background()

	count := func(start, end time.Time) int {
		items, err := c.GetItems(ctx, query.Trips, query.Filters{
			StartTime: query.Time(start),
			EndTime:   query.Time(end),
		})
		if err != nil {
			t.Fatalf("GetItems() failed: %v", err)
		}
		return len(items)
	}

	wide := count(pivot.Add(-time.Hour), pivot.Add(time.Hour))
	early := count(pivot.Add(-time.Hour), pivot)
	late := count(pivot, pivot.Add(time.Hour))

	if wide <= early+late {
		t.Errorf("Wide window = %d items, disjoint halves = %d+%d; boundary trips should be double-excluded",
			wide, early, late)
	}
}

func TestGetStatusChanges(t *testing.T) {
	changes := testutil.MakeStatusChanges(30, time.Unix(1700000000, 0))
	server := testutil.NewFakeMDS(nil, changes, testutil.WithPageSize(20))
	defer server.Close()

	c := New(server.Provider("status"))
	pages, err := c.GetStatusChanges(context.Background(), query.Filters{})
	if err != nil {
		t.Fatalf("GetStatusChanges() failed: %v", err)
	}

	items := 0
	for _, page := range pages {
		items += len(page.Items("status_changes"))
	}
	if items != 30 {
		t.Errorf("Items = %d, want 30", items)
	}
}

func TestGetPages_TransportErrorIsFatal(t *testing.T) {
	server := testutil.NewFakeMDS(nil, nil)
	defer server.Close()
	server.FailWith(http.StatusInternalServerError, `{"error":"boom"}`)

	c := New(server.Provider("broken"))
	_, err := c.GetPages(context.Background(), query.Trips, query.Filters{}, true)

	var terr *paging.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("GetPages() error = %v, want *TransportError", err)
	}
	if terr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", terr.StatusCode)
	}
}

func TestGetPages_AuthErrorIsFatal(t *testing.T) {
	c := New(provider.Provider{
		Name:   "bad-auth",
		ID:     uuid.New(),
		APIURL: "http://127.0.0.1:1",
		Auth: provider.OAuthClientCredentials{
			TokenURL:     "http://127.0.0.1:1/token",
			ClientID:     "id",
			ClientSecret: "secret",
		},
	})

	_, err := c.GetPages(context.Background(), query.Trips, query.Filters{}, true)

	var aerr *auth.AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("GetPages() error = %v, want *AuthError", err)
	}
}

func TestIteratePages_RejectsBadFilters(t *testing.T) {
	server := testutil.NewFakeMDS(nil, nil)
	defer server.Close()

	c := New(server.Provider("filters"))
	_, err := c.IteratePages(context.Background(), query.StatusChanges, query.Filters{DeviceID: "dev"}, true)
	if !errors.Is(err, query.ErrFilterNotSupported) {
		t.Errorf("IteratePages() error = %v, want ErrFilterNotSupported", err)
	}
	if got := server.GetRequestCount(); got != 0 {
		t.Errorf("Requests = %d, want 0 for rejected filters", got)
	}
}

func TestBearerTokenEnforced(t *testing.T) {
	trips := testutil.MakeTrips(5, time.Unix(1700000000, 0))
	server := testutil.NewFakeMDS(trips, nil, testutil.WithBearerToken("right-token"))
	defer server.Close()

	wrong := server.Provider("wrong")
	wrong.Auth = provider.StaticToken{Token: "wrong-token"}

	_, err := New(wrong).GetPages(context.Background(), query.Trips, query.Filters{}, true)
	var terr *paging.TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("GetPages() error = %v, want 401 *TransportError", err)
	}

	items, err := New(server.Provider("right")).GetItems(context.Background(), query.Trips, query.Filters{})
	if err != nil {
		t.Fatalf("GetItems() with valid token failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Items = %d, want 5", len(items))
	}
}
