// Package sdk is a thin HTTP client for the coordinator API, used by
// the CLI and by nodes bootstrapping their encryption context.
package sdk

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
)

const CTJSON string = "application/json"

type SDK interface {
	// PublicContext fetches the serialized public encryption context a
	// node needs before it can encrypt updates.
	//
	// example:
	//  blob, _ := sdk.PublicContext()
	//  pub, _ := hecrypt.LoadPublicContext(blob)
	PublicContext() ([]byte, error)

	// Status reports the coordinator's current round and phase.
	//
	// example:
	//  status, _ := sdk.Status()
	//  fmt.Println(status)
	Status() (Status, error)

	// ListNodes lists the nodes the coordinator knows about.
	//
	// example:
	//  nodePage, _ := sdk.ListNodes(0, 10)
	//  fmt.Println(nodePage)
	ListNodes(offset, limit uint64) (NodePage, error)

	// ListRoundMetrics lists the per-round metric history.
	//
	// example:
	//  metricPage, _ := sdk.ListRoundMetrics(0, 10)
	//  fmt.Println(metricPage)
	ListRoundMetrics(offset, limit uint64) (RoundMetricPage, error)

	// ListModelVersions lists published model versions.
	//
	// example:
	//  versionPage, _ := sdk.ListModelVersions(0, 10)
	//  fmt.Println(versionPage)
	ListModelVersions(offset, limit uint64) (ModelVersionPage, error)

	// GetModelVersion gets one model version by number.
	//
	// example:
	//  version, _ := sdk.GetModelVersion(5)
	//  fmt.Println(version)
	GetModelVersion(version int) (ModelVersion, error)
}

type fedSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *fedSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}
