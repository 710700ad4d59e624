package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/aura/internal/events"
)

func TestCatalogRoutesEveryEventType(t *testing.T) {
	for _, eventType := range []string{events.TypeActivityScored, events.TypeXPApplied, events.TypeLevelUp} {
		route, ok := Lookup(eventType)
		require.True(t, ok, eventType)
		require.NotEmpty(t, route.Topic)
		require.NotEmpty(t, route.SchemaSubject)
		require.True(t, json.Valid([]byte(route.Schema)), eventType)
	}
	_, ok := Lookup("activity.created")
	require.False(t, ok)
}

func TestFrameAddsConfluentHeader(t *testing.T) {
	framed := frame(513, []byte(`{"a":1}`))
	require.Equal(t, byte(0), framed[0])
	require.Equal(t, uint32(513), binary.BigEndian.Uint32(framed[1:5]))
	require.JSONEq(t, `{"a":1}`, string(framed[5:]))
}

func TestBackoffDelayIsCapped(t *testing.T) {
	m := NewDLQManager(nil, 5, time.Minute, nil)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 4*time.Minute, m.backoffDelay(3))
	require.Equal(t, time.Hour, m.backoffDelay(10))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			http.NotFound(w, r)
		case r.Method == http.MethodPost:
			registered = true
			require.Equal(t, "/subjects/aura_ledger_events-ledger.xp_applied/versions", r.URL.Path)
			_, _ = w.Write([]byte(`{"id":12}`))
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL, time.Second)
	id, err := client.EnsureSchema(context.Background(), "aura_ledger_events-ledger.xp_applied", xpAppliedSchema)
	require.NoError(t, err)
	require.Equal(t, 12, id)
	require.True(t, registered)
}

func TestSchemaRegistryDoesNotRegisterOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL, time.Second).EnsureSchema(context.Background(), "s", "{}")
	var regErr *RegistryError
	require.ErrorAs(t, err, &regErr)
	require.Equal(t, http.StatusServiceUnavailable, regErr.Status)
	require.False(t, regErr.NotFound())
}

func TestStaticRegistryReturnsFixedID(t *testing.T) {
	id, err := StaticRegistry{ID: 3}.EnsureSchema(context.Background(), "any", "{}")
	require.NoError(t, err)
	require.Equal(t, 3, id)
}
