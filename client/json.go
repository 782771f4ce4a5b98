package client

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
)

// Decode unmarshals the response body into T. A success status with an empty
// body is an error: callers must never mistake a missing payload for data.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return out, NewEmptyResponseError(resp.StatusCode, resp.CorrelationID)
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, NewDecodeError(resp.StatusCode, string(resp.Body), resp.CorrelationID, err)
	}
	return out, nil
}

// GetAs performs a GET and decodes the JSON response into T.
func GetAs[T any](ctx context.Context, c Client, path string) (T, error) {
	return doAs[T](ctx, c, nethttp.MethodGet, &Request{Path: path})
}

// PostAs performs a POST with a JSON body and decodes the response into T.
func PostAs[T any](ctx context.Context, c Client, path string, body any) (T, error) {
	return bodyAs[T](ctx, c, nethttp.MethodPost, path, body)
}

// PutAs performs a PUT with a JSON body and decodes the response into T.
func PutAs[T any](ctx context.Context, c Client, path string, body any) (T, error) {
	return bodyAs[T](ctx, c, nethttp.MethodPut, path, body)
}

// PatchAs performs a PATCH with a JSON body and decodes the response into T.
func PatchAs[T any](ctx context.Context, c Client, path string, body any) (T, error) {
	return bodyAs[T](ctx, c, nethttp.MethodPatch, path, body)
}

// DeleteAs performs a DELETE and decodes the JSON response into T.
func DeleteAs[T any](ctx context.Context, c Client, path string) (T, error) {
	return doAs[T](ctx, c, nethttp.MethodDelete, &Request{Path: path})
}

func bodyAs[T any](ctx context.Context, c Client, method, path string, body any) (T, error) {
	req := &Request{Path: path}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			var zero T
			return zero, NewValidationError("failed to encode request body: " + err.Error())
		}
		req.Body = raw
	}
	return doAs[T](ctx, c, method, req)
}

func doAs[T any](ctx context.Context, c Client, method string, req *Request) (T, error) {
	resp, err := c.Do(ctx, method, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](resp)
}
