package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/ticket-dispatch/internal/dispatch"
	"github.com/xenking/ticket-dispatch/internal/domain/order"
	"github.com/xenking/ticket-dispatch/internal/printer"
	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// Print formats the snapshot in the request body as ?kind= and dispatches it.
func (h *Handler) Print(w http.ResponseWriter, r *http.Request) {
	kind := h.defaultKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, err := ticket.ParseKind(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		kind = k
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	s, err := order.DecodeSnapshot(body)
	if err != nil {
		writeError(w, statusForDecode(err), err)
		return
	}

	out, err := h.d.Dispatch(r.Context(), s, kind)
	if err != nil {
		writeError(w, statusForDispatch(err), err)
		return
	}

	status := http.StatusOK
	if out.Status == dispatch.StatusFailed {
		status = http.StatusServiceUnavailable
		h.lg.Warn("Print request failed", zap.String("order_ref", out.OrderRef), zap.String("reason", out.Reason))
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(out.Status.String()) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(out.Kind.String()) })
		e.Field("order_ref", func(e *jx.Encoder) { e.Str(out.OrderRef) })
		if out.JobID != "" {
			e.Field("job_id", func(e *jx.Encoder) { e.Str(out.JobID) })
		}
		if out.Device != "" {
			e.Field("device", func(e *jx.Encoder) { e.Str(out.Device) })
		}
		if out.Reason != "" {
			e.Field("reason", func(e *jx.Encoder) { e.Str(out.Reason) })
		}
	})
}

// Status reports the printer connection and dispatcher phase.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.d.PrinterStatus(), h.d.State())
}

// Connect opens the printer connection.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	st, err := h.d.Connect(r.Context())
	if err != nil {
		writeError(w, statusForDispatch(err), err)
		return
	}
	writeStatus(w, st, h.d.State())
}

// Disconnect closes the printer connection.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Disconnect(r.Context()); err != nil {
		writeError(w, statusForDispatch(err), err)
		return
	}
	writeStatus(w, h.d.PrinterStatus(), h.d.State())
}

func statusForDecode(err error) int {
	var itemErr *order.InvalidItemError
	switch {
	case errors.Is(err, order.ErrEmptyID),
		errors.Is(err, order.ErrNegativeMoney),
		errors.As(err, &itemErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func statusForDispatch(err error) int {
	var connErr *printer.ConnectError
	switch {
	case errors.Is(err, dispatch.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ticket.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrConnectTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &connErr):
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeStatus(w http.ResponseWriter, st printer.Status, state dispatch.State) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("printer", func(e *jx.Encoder) { e.Str(st.State.String()) })
		if st.Device != "" {
			e.Field("device", func(e *jx.Encoder) { e.Str(st.Device) })
		}
		e.Field("dispatcher", func(e *jx.Encoder) { e.Str(state.String()) })
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(err.Error()) })
	})
}

func writeJSON(w http.ResponseWriter, status int, fields func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(fields)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
