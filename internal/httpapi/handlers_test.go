package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"vpinscope.com/internal/marketdata/model"
	"vpinscope.com/internal/marketdata/source"
	"vpinscope.com/internal/stream"
	"vpinscope.com/internal/ws"
	"vpinscope.com/pkg/common"
	"vpinscope.com/pkg/logger"
	"vpinscope.com/pkg/xerr"
)

// The prometheus plugin registers collectors globally, so the router is
// built once and the tests walk it through a sequential scenario.
var testRouter *gin.Engine

func TestMain(m *testing.M) {
	logger.Init("test", "error")

	bus := stream.NewBus()
	inv := stream.NewInvestigations(nil, bus, 0)
	sup := stream.NewSupervisor(stream.Config{
		Symbol:     "TESTUSDT",
		BucketSize: decimal.NewFromInt(1),
	}, func() source.Source { return idleSource{} }, bus, inv)

	h := NewHandlers(sup, bus, inv, ws.NewServer(context.Background(), bus))
	testRouter = NewRouter(context.Background(), h)

	os.Exit(m.Run())
}

type idleSource struct{}

func (idleSource) Name() string { return "idle" }
func (idleSource) Run(ctx context.Context, out chan<- model.Trade) error {
	<-ctx.Done()
	return ctx.Err()
}

func do(t *testing.T, method, path string) (*httptest.ResponseRecorder, common.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	testRouter.ServeHTTP(rec, req)

	var resp common.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestControlPlane(t *testing.T) {
	t.Run("status while stopped", func(t *testing.T) {
		rec, resp := do(t, http.MethodGet, "/stream/status")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, http.StatusOK, resp.Code)

		data := resp.Data.(map[string]any)
		require.Equal(t, "stopped", data["state"])
		require.Equal(t, false, data["running"])
	})

	t.Run("start", func(t *testing.T) {
		rec, _ := do(t, http.MethodPost, "/stream/start")
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("start again conflicts", func(t *testing.T) {
		rec, resp := do(t, http.MethodPost, "/stream/start")
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, xerr.StreamAlreadyRunning, resp.Code)
	})

	t.Run("stop", func(t *testing.T) {
		rec, _ := do(t, http.MethodPost, "/stream/stop")
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("stop again conflicts", func(t *testing.T) {
		rec, resp := do(t, http.MethodPost, "/stream/stop")
		require.Equal(t, http.StatusConflict, rec.Code)
		require.Equal(t, xerr.StreamNotRunning, resp.Code)
	})

	t.Run("reset restarts when asked", func(t *testing.T) {
		rec, resp := do(t, http.MethodPost, "/system/reset?start_stream=true")
		require.Equal(t, http.StatusOK, rec.Code)

		data := resp.Data.(map[string]any)
		require.Equal(t, true, data["running"])

		rec, _ = do(t, http.MethodPost, "/stream/stop")
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("reset rejects bad flag", func(t *testing.T) {
		rec, resp := do(t, http.MethodPost, "/system/reset?start_stream=maybe")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, xerr.RequestParamsError, resp.Code)
	})
}

func TestReadingsEndpoint(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		rec, resp := do(t, http.MethodGet, "/readings")
		require.Equal(t, http.StatusOK, rec.Code)

		data := resp.Data.(map[string]any)
		require.Equal(t, float64(0), data["count"])
	})

	t.Run("bad limit", func(t *testing.T) {
		for _, q := range []string{"abc", "0", "-5"} {
			rec, resp := do(t, http.MethodGet, "/readings?limit="+q)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, xerr.RequestParamsError, resp.Code)
		}
	})
}

func TestBriefEndpointEmpty(t *testing.T) {
	rec, resp := do(t, http.MethodGet, "/agent/brief")
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	require.Equal(t, false, data["available"])
}
