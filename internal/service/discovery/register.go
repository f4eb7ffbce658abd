package discovery

import (
	"google.golang.org/grpc"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/app"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/drops"
)

// Registrar ties the Discovery service into the gRPC server
type Registrar struct {
	appCtx  *app.AppContext
	dropSvc *drops.Service
}

// NewRegistrar creates a new Registrar for the Discovery service. dropSvc
// is the process-wide drop service, also driven by the scheduler.
func NewRegistrar(appCtx *app.AppContext, dropSvc *drops.Service) *Registrar {
	return &Registrar{appCtx: appCtx, dropSvc: dropSvc}
}

// Register attaches the Discovery service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	RegisterDiscoveryServer(s, NewDiscoveryService(r.appCtx, r.dropSvc))
}
