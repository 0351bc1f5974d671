// Package handler exposes the dispatcher over HTTP for POS terminals on the
// local network.
package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xenking/ticket-dispatch/internal/dispatch"
	"github.com/xenking/ticket-dispatch/internal/domain/order"
	"github.com/xenking/ticket-dispatch/internal/printer"
	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// Dispatcher is the part of *dispatch.Dispatcher the API drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, s *order.Snapshot, kind ticket.Kind) (dispatch.Outcome, error)
	Connect(ctx context.Context) (printer.Status, error)
	Disconnect(ctx context.Context) error
	PrinterStatus() printer.Status
	State() dispatch.State
}

// Handler serves the print API.
type Handler struct {
	d           Dispatcher
	lg          *zap.Logger
	defaultKind ticket.Kind
	maxBody     int64
}

// NewHandler creates a Handler. Requests naming no kind print defaultKind.
func NewHandler(d Dispatcher, defaultKind ticket.Kind, lg *zap.Logger) *Handler {
	return &Handler{d: d, lg: lg, defaultKind: defaultKind, maxBody: 1 << 20}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/print", h.Print)
	mux.HandleFunc("GET /v1/printer", h.Status)
	mux.HandleFunc("POST /v1/printer/connect", h.Connect)
	mux.HandleFunc("POST /v1/printer/disconnect", h.Disconnect)
}
