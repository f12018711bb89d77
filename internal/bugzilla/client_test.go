package bugzilla

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBug(t *testing.T) {
	var got CreateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rest/bug", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 123456}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	id, err := client.CreateBug(CreateRequest{
		Product:            "Gentoo Linux",
		Component:          "Stabilization",
		Summary:            "dev-libs/foo-1.0: stablereq",
		StabilisationAtoms: "=dev-libs/foo-1.0 amd64",
		AssignedTo:         "dev@example.org",
		DependsOn:          []int{111},
	})
	require.NoError(t, err)
	assert.Equal(t, 123456, id)
	assert.Equal(t, "secret", got.APIKey)
	assert.Equal(t, "Stabilization", got.Component)
	assert.Equal(t, []int{111}, got.DependsOn)
}

func TestCreateBugHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.CreateBug(CreateRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCreateBugMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.CreateBug(CreateRequest{})
	assert.Error(t, err)
}

func TestSearchStabilizationBugs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "Stabilization", q.Get("component"))
		assert.Equal(t, "---", q.Get("resolution"))
		assert.Equal(t, "cf_stabilisation_atoms", q.Get("f1"))
		assert.Equal(t, "anywords", q.Get("o1"))
		assert.ElementsMatch(t, []string{"dev-libs/foo", "app-misc/tool"}, q["v1"])
		w.Write([]byte(`{"bugs": [{"id": 42, "cf_stabilisation_atoms": "=dev-libs/foo-1.0 amd64", "summary": "stablereq"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	found, err := client.SearchStabilizationBugs("Stabilization", []string{"dev-libs/foo", "app-misc/tool"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 42, found[0].ID)
	assert.Contains(t, found[0].StabilisationAtoms, "dev-libs/foo")
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("", "key")
	assert.Equal(t, DefaultBaseURL, client.BaseURL)
}
