package discovery

import (
	"google.golang.org/grpc"

	"github.com/oggyb/muzz-discovery/internal/app"
)

// Registrar ties the Discovery service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
	opts   []Option
}

// NewRegistrar creates a new Registrar for the Discovery service
func NewRegistrar(appCtx *app.AppContext, opts ...Option) *Registrar {
	return &Registrar{appCtx: appCtx, opts: opts}
}

// Register attaches the Discovery service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	service := NewDiscoveryService(r.appCtx, r.opts...)
	RegisterDiscoveryServer(s, NewHandler(service))
}
