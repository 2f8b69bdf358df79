package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/umputun/autoapply/app/store"
)

type persistenceMock struct {
	ListApplicationsFunc func(limit int) ([]store.ApplicationInfo, error)
	StatusCountsFunc     func() (map[string]int, error)
}

func (m *persistenceMock) ListApplications(limit int) ([]store.ApplicationInfo, error) {
	return m.ListApplicationsFunc(limit)
}
func (m *persistenceMock) StatusCounts() (map[string]int, error) { return m.StatusCountsFunc() }

func TestServer_Status(t *testing.T) {
	p := &persistenceMock{
		StatusCountsFunc: func() (map[string]int, error) {
			return map[string]int{"submitted": 2, "timeout": 1}, nil
		},
	}
	srv := New(p, "1.0", "host1", "")
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "host1", res.Host)
	assert.Equal(t, "1.0", res.Version)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Counts["submitted"])
}

func TestServer_StatusFailed(t *testing.T) {
	p := &persistenceMock{
		StatusCountsFunc: func() (map[string]int, error) { return nil, errors.New("db gone") },
	}
	srv := New(p, "1.0", "host1", "")
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_Applications(t *testing.T) {
	var gotLimit int
	p := &persistenceMock{
		ListApplicationsFunc: func(limit int) ([]store.ApplicationInfo, error) {
			gotLimit = limit
			return []store.ApplicationInfo{
				{JobID: "123", Title: "Go Developer", Company: "Example Corp", Status: "submitted",
					StartedAt: time.Now().Add(-time.Minute), FinishedAt: time.Now()},
			}, nil
		},
	}
	srv := New(p, "1.0", "host1", "")
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/applications")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, defaultApplicationsLimit, gotLimit)

	var res ApplicationsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "123", res.Applications[0].JobID)

	resp2, err := http.Get(ts.URL + "/api/v1/applications?limit=5")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, 5, gotLimit)
}

func TestServer_ApplicationsBadLimit(t *testing.T) {
	p := &persistenceMock{
		ListApplicationsFunc: func(limit int) ([]store.ApplicationInfo, error) { return nil, nil },
	}
	srv := New(p, "1.0", "host1", "")
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	for _, bad := range []string{"abc", "0", "-1"} {
		resp, err := http.Get(ts.URL + "/api/v1/applications?limit=" + bad)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", bad)
	}
}

func TestServer_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	p := &persistenceMock{
		StatusCountsFunc: func() (map[string]int, error) { return map[string]int{}, nil },
	}
	srv := New(p, "1.0", "host1", string(hash))
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	// no credentials rejected
	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// wrong password rejected
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/status", http.NoBody)
	require.NoError(t, err)
	req.SetBasicAuth("autoapply", "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// correct credentials accepted
	req, err = http.NewRequest(http.MethodGet, ts.URL+"/api/v1/status", http.NoBody)
	require.NoError(t, err)
	req.SetBasicAuth("autoapply", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RunShutdown(t *testing.T) {
	p := &persistenceMock{}
	srv := New(p, "1.0", "host1", "")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	st := time.Now()
	err := srv.Run(ctx, "127.0.0.1:0")
	assert.NoError(t, err)
	assert.Less(t, time.Since(st), time.Second, "shut down on context cancel")
}

func TestServer_Ping(t *testing.T) {
	p := &persistenceMock{}
	srv := New(p, "1.0", "host1", "")
	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
}
