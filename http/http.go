// Package http serves a node over a JSON API and provides a typed client for it.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technostore/technostore/go/idempotency"
	"github.com/technostore/technostore/go/node"
)

var log = logging.Logger("technostore/http")

// Server routes API requests to a node.
type Server struct {
	node      *node.Node
	submitter idempotency.Submitter
	mounts    map[string]http.Handler
	engine    *gin.Engine
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSubmitter replaces the transaction submitter.
//
// Default: idempotency.Wrap(node)
func WithSubmitter(s idempotency.Submitter) ServerOption {
	return func(srv *Server) {
		srv.submitter = s
	}
}

// WithHandler serves h for every method at path.
func WithHandler(path string, h http.Handler) ServerOption {
	return func(srv *Server) {
		if srv.mounts == nil {
			srv.mounts = make(map[string]http.Handler)
		}
		srv.mounts[path] = h
	}
}

// NewServer builds the router for n.
func NewServer(n *node.Node, opts ...ServerOption) *Server {
	s := &Server{node: n}
	for _, opt := range opts {
		opt(s)
	}
	if s.submitter == nil {
		s.submitter = idempotency.Wrap(n)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(n.Metrics().Registry(), promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.GET("/store", s.storeInfo)
	v1.GET("/products", s.listProducts)
	v1.GET("/products/:index", s.getProduct)
	v1.GET("/products/:index/buyers", s.listBuyers)
	v1.GET("/products/:index/purchases/:buyer", s.getPurchase)
	v1.GET("/products/:index/permit-hash", s.permitHash)
	v1.GET("/accounts/:address", s.getAccount)
	v1.GET("/events", s.listEvents)
	v1.GET("/events/stream", s.streamEvents)
	v1.POST("/tx", s.submitTx)

	for path, h := range s.mounts {
		r.Any(path, gin.WrapH(h))
	}

	s.engine = r
	return s
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.engine
}
