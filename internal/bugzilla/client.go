// Package bugzilla is a minimal Bugzilla REST client covering the two calls
// the stabilization workflow needs: creating bugs and searching open
// stabilization bugs by their atom list field.
package bugzilla

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pkgdev/pkg/logging"
)

// DefaultBaseURL is the Gentoo Bugzilla instance.
const DefaultBaseURL = "https://bugs.gentoo.org"

const requestTimeout = 30 * time.Second

// Client talks to a Bugzilla instance. Calls are synchronous with a fixed
// timeout; failures are returned to the caller and never retried.
type Client struct {
	BaseURL string
	APIKey  string

	httpClient *http.Client
}

// NewClient returns a client for the given instance. An empty baseURL uses
// the Gentoo instance.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// CreateRequest is the JSON body of a bug creation call. Field names follow
// the Bugzilla REST contract.
type CreateRequest struct {
	APIKey             string   `json:"Bugzilla_api_key"`
	Product            string   `json:"product"`
	Component          string   `json:"component"`
	Severity           string   `json:"severity"`
	Version            string   `json:"version"`
	Summary            string   `json:"summary"`
	Description        string   `json:"description"`
	Keywords           []string `json:"keywords"`
	StabilisationAtoms string   `json:"cf_stabilisation_atoms"`
	AssignedTo         string   `json:"assigned_to"`
	CC                 []string `json:"cc"`
	DependsOn          []int    `json:"depends_on"`
	Blocks             []int    `json:"blocks"`
}

// Bug is a search result entry.
type Bug struct {
	ID                 int    `json:"id"`
	StabilisationAtoms string `json:"cf_stabilisation_atoms"`
	Summary            string `json:"summary"`
}

// CreateBug files a new bug and returns its id.
func (c *Client) CreateBug(req CreateRequest) (int, error) {
	req.APIKey = c.APIKey
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("encoding bug request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.BaseURL+"/rest/bug", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	var reply struct {
		ID int `json:"id"`
	}
	if err := c.do(httpReq, &reply); err != nil {
		return 0, err
	}
	if reply.ID == 0 {
		return 0, fmt.Errorf("bug creation returned no id")
	}
	logging.Debug("Bugzilla", "created bug %d", reply.ID)
	return reply.ID, nil
}

// SearchStabilizationBugs returns open bugs in the given component whose
// stabilization atom list contains any of the given words.
func (c *Client) SearchStabilizationBugs(component string, words []string) ([]Bug, error) {
	params := url.Values{}
	params.Set("Bugzilla_api_key", c.APIKey)
	params.Set("include_fields", "id,cf_stabilisation_atoms,summary")
	params.Set("component", component)
	params.Set("resolution", "---")
	params.Set("f1", "cf_stabilisation_atoms")
	params.Set("o1", "anywords")
	for _, word := range words {
		params.Add("v1", word)
	}

	httpReq, err := http.NewRequest(http.MethodGet, c.BaseURL+"/rest/bug?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")

	var reply struct {
		Bugs []Bug `json:"bugs"`
	}
	if err := c.do(httpReq, &reply); err != nil {
		return nil, err
	}
	return reply.Bugs, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bugzilla request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading bugzilla response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bugzilla returned %s: %s", resp.Status, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding bugzilla response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
