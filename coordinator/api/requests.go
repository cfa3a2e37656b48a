package api

import (
	apiutil "github.com/absmach/supermq/api/http/util"
)

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	return nil
}

type versionReq struct {
	version int
}

func (v *versionReq) validate() error {
	if v.version <= 0 {
		return apiutil.ErrMissingID
	}

	return nil
}
