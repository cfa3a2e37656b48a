package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/pkg/api"
)

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/fl", func(r chi.Router) {
		r.Get("/context", otelhttp.NewHandler(kithttp.NewServer(
			publicContextEndpoint(svc),
			decodeNothing,
			api.EncodeResponse,
			opts...,
		), "get-public-context").ServeHTTP)
		r.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
			statusEndpoint(svc),
			decodeNothing,
			api.EncodeResponse,
			opts...,
		), "get-status").ServeHTTP)
		r.Get("/rounds", otelhttp.NewHandler(kithttp.NewServer(
			listRoundMetricsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-round-metrics").ServeHTTP)
		r.Get("/versions", otelhttp.NewHandler(kithttp.NewServer(
			listModelVersionsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-model-versions").ServeHTTP)
		r.Get("/versions/{versionNumber}", otelhttp.NewHandler(kithttp.NewServer(
			getModelVersionEndpoint(svc),
			decodeVersionReq,
			api.EncodeResponse,
			opts...,
		), "get-model-version").ServeHTTP)
	})

	mux.Get("/nodes", otelhttp.NewHandler(kithttp.NewServer(
		listNodesEndpoint(svc),
		decodeListEntityReq,
		api.EncodeResponse,
		opts...,
	), "list-nodes").ServeHTTP)

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeNothing(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeVersionReq(_ context.Context, r *http.Request) (any, error) {
	v, err := strconv.Atoi(chi.URLParam(r, "versionNumber"))
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return versionReq{version: v}, nil
}
