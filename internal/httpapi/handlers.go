package httpapi

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roach88/dynaquery/internal/engine"
	"github.com/roach88/dynaquery/internal/request"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type viewJSON struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// GetViews implements the http wrapper for the /dynaquery/views route.
func GetViews(_ context.Context, _ Request, api *API) *JSONResponse {
	views := api.service.Views()
	out := make([]viewJSON, len(views))
	for i, v := range views {
		out[i] = viewJSON{Name: v.Name, Fields: v.FieldPaths()}
	}
	return NewJSONResponse(out, nil)
}

// QueryOne implements the http wrapper for the /dynaquery/queryOne route.
// The result is null when nothing matched.
func QueryOne(ctx context.Context, r Request, api *API) *JSONResponse {
	req, err := decodeBody(r)
	if err != nil {
		return NewJSONResponse(nil, err)
	}

	rec, ok, err := api.service.QueryOne(ctx, req)
	if err != nil || !ok {
		return NewJSONResponse(nil, err)
	}
	return NewJSONResponse(rec, nil)
}

// QueryAll implements the http wrapper for the /dynaquery/queryAll routes.
func QueryAll(ctx context.Context, r Request, api *API) *JSONResponse {
	page, err := pageVars(r)
	if err != nil {
		return NewJSONResponse(nil, err)
	}
	req, err := decodeBody(r)
	if err != nil {
		return NewJSONResponse(nil, err)
	}

	p, err := api.service.QueryAll(ctx, req, page)
	return NewJSONResponse(p, err)
}

// QuerySaved implements the http wrapper for the
// /dynaquery/queryAll/query/{id} routes.
func QuerySaved(ctx context.Context, r Request, api *API) *JSONResponse {
	id, err := idVar(r)
	if err != nil {
		return NewJSONResponse(nil, err)
	}
	page, err := pageVars(r)
	if err != nil {
		return NewJSONResponse(nil, err)
	}

	p, err := api.service.QuerySaved(ctx, id, page)
	return NewJSONResponse(p, err)
}

// SaveQuery implements the http wrapper for the
// /dynaquery/saveQuery/{name}/isDefault/{isDefault} route.
func SaveQuery(ctx context.Context, r Request, api *API) *JSONResponse {
	vars := mux.Vars(r.Request)
	isDefault, err := strconv.ParseBool(vars["isDefault"])
	if err != nil {
		return NewJSONResponse(nil, &badRequest{fmt.Errorf("isDefault: %q is not a boolean", vars["isDefault"])})
	}
	req, err := decodeBody(r)
	if err != nil {
		return NewJSONResponse(nil, err)
	}

	ref, err := api.service.SaveQuery(ctx, req, vars["name"], isDefault)
	return NewJSONResponse(ref, err)
}

// ListReferences implements the http wrapper for the
// /dynaquery/queryReferences route.
func ListReferences(ctx context.Context, _ Request, api *API) *JSONResponse {
	refs, err := api.service.ListReferences(ctx)
	return NewJSONResponse(refs, err)
}

// SetDefault implements the http wrapper for the
// /dynaquery/queryReferences/{id}/default route.
func SetDefault(ctx context.Context, r Request, api *API) *JSONResponse {
	id, err := idVar(r)
	if err != nil {
		return NewJSONResponse(nil, err)
	}
	if err := api.service.SetDefault(ctx, id); err != nil {
		return NewJSONResponse(nil, err)
	}
	return NewJSONResponse(map[string]int64{"id": id}, nil)
}

func decodeBody(r Request) (*request.Request, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, &badRequest{fmt.Errorf("read body: %w", err)}
	}
	req, err := request.DecodeJSON(data)
	if err != nil {
		return nil, &badRequest{err}
	}
	return req, nil
}

// pageVars reads the optional page path parameters. Routes without them
// are unpaged.
func pageVars(r Request) (engine.PageRequest, error) {
	vars := mux.Vars(r.Request)
	if _, ok := vars["pageSize"]; !ok {
		return engine.Unpaged, nil
	}

	number, err := strconv.Atoi(vars["pageNum"])
	if err != nil {
		return engine.PageRequest{}, &badRequest{fmt.Errorf("pageNumber: %w", err)}
	}
	size, err := strconv.Atoi(vars["pageSize"])
	if err != nil {
		return engine.PageRequest{}, &badRequest{fmt.Errorf("pageSize: %w", err)}
	}
	return engine.PageRequest{Number: number, Size: size}, nil
}

func idVar(r Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r.Request)["id"], 10, 64)
	if err != nil {
		return 0, &badRequest{fmt.Errorf("id: %w", err)}
	}
	return id, nil
}
