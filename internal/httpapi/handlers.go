package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vpinscope.com/internal/stream"
	"vpinscope.com/internal/ws"
	"vpinscope.com/pkg/common"
	"vpinscope.com/pkg/xerr"
)

// Handlers is the control plane over a running monitor: lifecycle,
// status, reading history, the latest intelligence brief and the
// websocket upgrade endpoint.
type Handlers struct {
	sup *stream.Supervisor
	bus *stream.Bus
	inv *stream.Investigations
	ws  *ws.Server
}

func NewHandlers(sup *stream.Supervisor, bus *stream.Bus, inv *stream.Investigations, wsSrv *ws.Server) *Handlers {
	return &Handlers{sup: sup, bus: bus, inv: inv, ws: wsSrv}
}

func (h *Handlers) Status(c *gin.Context) {
	common.Success(c, h.sup.Status())
}

func (h *Handlers) Start(c *gin.Context) {
	if !h.sup.Start() {
		common.Fail(c, http.StatusConflict, xerr.StreamAlreadyRunning, xerr.MapErrMsg(xerr.StreamAlreadyRunning))
		return
	}
	common.Success(c, h.sup.Status())
}

func (h *Handlers) Stop(c *gin.Context) {
	if !h.sup.Stop() {
		common.Fail(c, http.StatusConflict, xerr.StreamNotRunning, xerr.MapErrMsg(xerr.StreamNotRunning))
		return
	}
	common.Success(c, h.sup.Status())
}

// Reset discards all computation state. ?start_stream=true restarts
// ingestion right after the wipe.
func (h *Handlers) Reset(c *gin.Context) {
	restart := false
	if raw := c.Query("start_stream"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, "start_stream must be a boolean")
			return
		}
		restart = b
	}
	h.sup.Reset(restart)
	common.Success(c, h.sup.Status())
}

func (h *Handlers) Readings(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, "limit must be a positive integer")
			return
		}
		limit = n
	}
	readings := h.bus.RecentReadings(limit)
	common.Success(c, gin.H{
		"count":    len(readings),
		"readings": readings,
	})
}

func (h *Handlers) Brief(c *gin.Context) {
	brief, ok := h.inv.Latest()
	if !ok {
		common.Success(c, gin.H{"available": false, "brief": nil})
		return
	}
	common.Success(c, gin.H{"available": true, "brief": brief})
}

func (h *Handlers) WS(c *gin.Context) {
	h.ws.ServeWS(c.Writer, c.Request)
}
