package api

import (
	"net/http"

	"github.com/absmach/supermq"

	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/round"
)

var (
	_ supermq.Response = (*statusResponse)(nil)
	_ supermq.Response = (*contextResponse)(nil)
	_ supermq.Response = (*listNodesResponse)(nil)
	_ supermq.Response = (*listMetricsResponse)(nil)
	_ supermq.Response = (*listVersionsResponse)(nil)
	_ supermq.Response = (*versionResponse)(nil)
)

type statusResponse struct {
	round.Status
}

func (s statusResponse) Code() int                  { return http.StatusOK }
func (s statusResponse) Headers() map[string]string { return map[string]string{} }
func (s statusResponse) Empty() bool                { return false }

// contextResponse carries the serialized public encryption context;
// the JSON encoder emits the bytes base64-encoded.
type contextResponse struct {
	Context []byte `json:"context"`
}

func (c contextResponse) Code() int                  { return http.StatusOK }
func (c contextResponse) Headers() map[string]string { return map[string]string{} }
func (c contextResponse) Empty() bool                { return false }

type listNodesResponse struct {
	node.Page
}

func (l listNodesResponse) Code() int                  { return http.StatusOK }
func (l listNodesResponse) Headers() map[string]string { return map[string]string{} }
func (l listNodesResponse) Empty() bool                { return false }

type listMetricsResponse struct {
	coordinator.RoundMetricPage
}

func (l listMetricsResponse) Code() int                  { return http.StatusOK }
func (l listMetricsResponse) Headers() map[string]string { return map[string]string{} }
func (l listMetricsResponse) Empty() bool                { return false }

type listVersionsResponse struct {
	coordinator.ModelVersionPage
}

func (l listVersionsResponse) Code() int                  { return http.StatusOK }
func (l listVersionsResponse) Headers() map[string]string { return map[string]string{} }
func (l listVersionsResponse) Empty() bool                { return false }

type versionResponse struct {
	ledger.ModelVersion
}

func (v versionResponse) Code() int                  { return http.StatusOK }
func (v versionResponse) Headers() map[string]string { return map[string]string{} }
func (v versionResponse) Empty() bool                { return false }
