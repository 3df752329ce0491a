// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"

	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/gorilla/rpc/v2"
)

// Wrapper decorates the root handler, for example with metrics.
type Wrapper interface {
	WrapHandler(h http.Handler) http.Handler
}

type WrapperFunc func(http.Handler) http.Handler

func (f WrapperFunc) WrapHandler(h http.Handler) http.Handler {
	return f(h)
}

// NewJSONRPCHandler serves [service] over JSON-RPC 2.0 under [name].
func NewJSONRPCHandler(service any, name string) (http.Handler, error) {
	s := rpc.NewServer()
	codec := json.NewCodec()
	s.RegisterCodec(codec, "application/json")
	s.RegisterCodec(codec, "application/json;charset=UTF-8")
	if err := s.RegisterService(service, name); err != nil {
		return nil, err
	}
	return s, nil
}
