package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"

	"github.com/hospinet/fedtrain/coordinator"
	pkgerrors "github.com/hospinet/fedtrain/pkg/errors"
)

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return statusResponse{}, err
		}

		return statusResponse{Status: status}, nil
	}
}

func publicContextEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		blob, err := svc.PublicContext(ctx)
		if err != nil {
			return contextResponse{}, err
		}

		return contextResponse{Context: blob}, nil
	}
}

func listNodesEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listNodesResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listNodesResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListNodes(ctx, req.offset, req.limit)
		if err != nil {
			return listNodesResponse{}, err
		}

		return listNodesResponse{Page: page}, nil
	}
}

func listRoundMetricsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listMetricsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listMetricsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListRoundMetrics(ctx, req.offset, req.limit)
		if err != nil {
			return listMetricsResponse{}, err
		}

		return listMetricsResponse{RoundMetricPage: page}, nil
	}
}

func listModelVersionsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listVersionsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listVersionsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListModelVersions(ctx, req.offset, req.limit)
		if err != nil {
			return listVersionsResponse{}, err
		}

		return listVersionsResponse{ModelVersionPage: page}, nil
	}
}

func getModelVersionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(versionReq)
		if !ok {
			return versionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return versionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		version, err := svc.GetModelVersion(ctx, req.version)
		if err != nil {
			return versionResponse{}, err
		}

		return versionResponse{ModelVersion: version}, nil
	}
}
