package achievement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSourceSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/snapshots/620", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"apiname":"ACH_WIN","name":"Winner","achieved":1,"percent":4.5,"unlocktime":1769767200},
			{"apiname":"ACH_LOSE","achieved":0,"percent":80}
		]`))
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL + "/snapshots/")
	snap, err := src.Snapshot(context.Background(), 620)
	require.NoError(t, err)
	require.Len(t, snap, 2)

	assert.Equal(t, "ACH_WIN", snap[0].APIName)
	assert.True(t, snap[0].Unlocked)
	assert.Equal(t, 4.5, snap[0].Percent)
	require.NotNil(t, snap[0].UnlockTime)
	assert.Equal(t, time.Unix(1769767200, 0).UTC(), *snap[0].UnlockTime)

	assert.False(t, snap[1].Unlocked)
	assert.Nil(t, snap[1].UnlockTime)
}

func TestHTTPSourceNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "private profile", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL).Snapshot(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "private profile")
}
