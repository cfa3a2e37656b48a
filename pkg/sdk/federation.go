package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	contextEndpoint  = "/fl/context"
	statusEndpoint   = "/fl/status"
	roundsEndpoint   = "/fl/rounds"
	versionsEndpoint = "/fl/versions"
	nodesEndpoint    = "/nodes"
)

type Status struct {
	Round       int    `json:"round"`
	TotalRounds int    `json:"total_rounds"`
	Phase       string `json:"phase"`
	NumClients  int    `json:"num_clients"`
	NumResults  int    `json:"num_results"`
}

type Node struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Alive    bool      `json:"alive"`
	LastSeen time.Time `json:"last_seen"`
	Rounds   int       `json:"rounds"`
}

type NodePage struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Total  uint64 `json:"total"`
	Nodes  []Node `json:"nodes"`
}

type RoundMetric struct {
	RoundNumber    int       `json:"round_number"`
	AvgAccuracy    float64   `json:"avg_accuracy"`
	AvgLoss        float64   `json:"avg_loss"`
	AvgUncertainty float64   `json:"avg_uncertainty"`
	NumClients     int       `json:"num_clients"`
	CreatedAt      time.Time `json:"created_at"`
}

type RoundMetricPage struct {
	Offset  uint64        `json:"offset"`
	Limit   uint64        `json:"limit"`
	Total   uint64        `json:"total"`
	Metrics []RoundMetric `json:"metrics"`
}

type ModelVersion struct {
	VersionNumber int       `json:"version_number"`
	AvgAccuracy   float64   `json:"avg_accuracy"`
	AvgLoss       float64   `json:"avg_loss"`
	Description   string    `json:"description"`
	FilePath      string    `json:"file_path"`
	CreatedAt     time.Time `json:"created_at"`
}

type ModelVersionPage struct {
	Offset   uint64         `json:"offset"`
	Limit    uint64         `json:"limit"`
	Total    uint64         `json:"total"`
	Versions []ModelVersion `json:"versions"`
}

func (sdk *fedSDK) PublicContext() ([]byte, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+contextEndpoint, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Context []byte `json:"context"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return resp.Context, nil
}

func (sdk *fedSDK) Status() (Status, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.coordinatorURL+statusEndpoint, nil, http.StatusOK)
	if err != nil {
		return Status{}, err
	}

	var s Status
	if err := json.Unmarshal(body, &s); err != nil {
		return Status{}, err
	}

	return s, nil
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}

func (sdk *fedSDK) ListNodes(offset, limit uint64) (NodePage, error) {
	url := sdk.coordinatorURL + nodesEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return NodePage{}, err
	}

	var p NodePage
	if err := json.Unmarshal(body, &p); err != nil {
		return NodePage{}, err
	}

	return p, nil
}

func (sdk *fedSDK) ListRoundMetrics(offset, limit uint64) (RoundMetricPage, error) {
	url := sdk.coordinatorURL + roundsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return RoundMetricPage{}, err
	}

	var p RoundMetricPage
	if err := json.Unmarshal(body, &p); err != nil {
		return RoundMetricPage{}, err
	}

	return p, nil
}

func (sdk *fedSDK) ListModelVersions(offset, limit uint64) (ModelVersionPage, error) {
	url := sdk.coordinatorURL + versionsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return ModelVersionPage{}, err
	}

	var p ModelVersionPage
	if err := json.Unmarshal(body, &p); err != nil {
		return ModelVersionPage{}, err
	}

	return p, nil
}

func (sdk *fedSDK) GetModelVersion(version int) (ModelVersion, error) {
	url := fmt.Sprintf("%s%s/%d", sdk.coordinatorURL, versionsEndpoint, version)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return ModelVersion{}, err
	}

	var v ModelVersion
	if err := json.Unmarshal(body, &v); err != nil {
		return ModelVersion{}, err
	}

	return v, nil
}
