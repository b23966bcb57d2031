// Package api serves the daemons' HTTP surface: acquisition control, window
// snapshots, recording, CSV export, calibration and packet analysis. Each
// daemon builds one Server with the components its pipeline actually has;
// routes for absent components are not registered.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/sensor.watch/internal/analysis"
	"github.com/banshee-data/sensor.watch/internal/config"
	"github.com/banshee-data/sensor.watch/internal/db"
	"github.com/banshee-data/sensor.watch/internal/httputil"
	"github.com/banshee-data/sensor.watch/internal/monitoring"
	"github.com/banshee-data/sensor.watch/internal/telemetry"
	"github.com/banshee-data/sensor.watch/internal/telemetry/capture"
	"github.com/banshee-data/sensor.watch/internal/timeutil"
	"github.com/banshee-data/sensor.watch/internal/units"
	"github.com/banshee-data/sensor.watch/internal/version"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// LoopControl is the part of the acquisition loop the API drives. Loop[T]
// satisfies it for every record type.
type LoopControl interface {
	Start(ctx context.Context)
	Stop()
	State() capture.State
	Seq() uint64
	Stats() *capture.CaptureStats
}

// Config wires a Server. Loop and one of Samples/Packets are required;
// everything else is optional and gates its routes.
type Config struct {
	// Pipeline names the daemon in responses and export filenames.
	// Defaults to the sample schema's name when Samples is set.
	Pipeline string

	// Loop is the acquisition loop behind /api/start and friends.
	Loop LoopControl

	// Samples is a serial dashboard's window store.
	Samples *telemetry.SampleStore

	// Packets is the sniffer's window store.
	Packets *telemetry.PacketStore

	// History enables the record endpoints. Stopping a recording flushes
	// it into DB under the Samples schema, so all three must be set.
	History *telemetry.HistoryLog

	// DB stores finished recordings.
	DB *db.DB

	// Dispatcher enables the analyze endpoints.
	Dispatcher *analysis.Dispatcher

	// Calibrate runs the device calibration flow.
	Calibrate func(context.Context) error

	// Params is the effective configuration served by /api/params.
	Params *config.PipelineConfig

	// BaseContext outlives any single request. Loop starts and analysis
	// submissions run on it, not on the request context that triggered
	// them. context.Background when nil.
	BaseContext context.Context

	// Clock stamps recordings and export filenames. Wall clock when nil.
	Clock timeutil.Clock
}

// Server holds one daemon's components and serves its /api routes.
type Server struct {
	pipeline   string
	loop       LoopControl
	samples    *telemetry.SampleStore
	packets    *telemetry.PacketStore
	history    *telemetry.HistoryLog
	db         *db.DB
	dispatcher *analysis.Dispatcher
	calibrate  func(context.Context) error
	params     *config.PipelineConfig
	baseCtx    context.Context
	clock      timeutil.Clock

	recordMu      sync.Mutex
	recordStarted time.Time
}

func NewServer(cfg Config) *Server {
	if cfg.Pipeline == "" && cfg.Samples != nil {
		cfg.Pipeline = cfg.Samples.Schema().Name
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Server{
		pipeline:   cfg.Pipeline,
		loop:       cfg.Loop,
		samples:    cfg.Samples,
		packets:    cfg.Packets,
		history:    cfg.History,
		db:         cfg.DB,
		dispatcher: cfg.Dispatcher,
		calibrate:  cfg.Calibrate,
		params:     cfg.Params,
		baseCtx:    cfg.BaseContext,
		clock:      cfg.Clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux builds the daemon's /api route table. Callers mount charts and
// debug routes on the returned mux before serving it.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/clear", s.handleClear)
	if s.samples != nil || s.packets != nil {
		mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	}
	if s.samples != nil {
		mux.HandleFunc("/api/export", s.handleExport)
	}
	if s.packets != nil {
		mux.HandleFunc("/api/packets", s.handlePackets)
	}
	if s.history != nil && s.db != nil && s.samples != nil {
		mux.HandleFunc("/api/record/start", s.handleRecordStart)
		mux.HandleFunc("/api/record/stop", s.handleRecordStop)
	}
	if s.calibrate != nil {
		mux.HandleFunc("/api/calibrate", s.handleCalibrate)
	}
	if s.dispatcher != nil {
		mux.HandleFunc("/api/analyze", s.handleAnalyze)
		mux.HandleFunc("/api/analysis", s.handleAnalysis)
	}
	if s.params != nil {
		mux.HandleFunc("/api/params", s.handleParams)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":   "ok",
		"pipeline": s.pipeline,
		"version":  version.Version,
		"git_sha":  version.GitSHA,
		"state":    s.loop.State().String(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := map[string]interface{}{
		"pipeline": s.pipeline,
		"state":    s.loop.State().String(),
		"seq":      s.loop.Seq(),
		"stats":    s.loop.Stats().Snapshot(),
	}
	if s.history != nil {
		resp["recording"] = s.history.Active()
		resp["recorded_samples"] = s.history.Len()
	}
	if s.dispatcher != nil {
		resp["analyses_in_flight"] = s.dispatcher.InFlight()
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.loop.Start(s.baseCtx)
	httputil.WriteJSONOK(w, map[string]string{"state": s.loop.State().String()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.loop.Stop()
	httputil.WriteJSONOK(w, map[string]string{"state": s.loop.State().String()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.samples != nil {
		s.samples.Clear()
	}
	if s.packets != nil {
		s.packets.Clear()
	}
	s.loop.Stats().GetAndReset()
	httputil.WriteJSONOK(w, map[string]bool{"cleared": true})
}

// windowResponse is the sample snapshot wire shape: the window rows plus the
// channel names that give the columns meaning.
type windowResponse struct {
	Pipeline string             `json:"pipeline"`
	Units    string             `json:"units,omitempty"`
	Channels []string           `json:"channels"`
	Times    []time.Time        `json:"times"`
	Rows     [][]float64        `json:"rows"`
	Counters telemetry.Counters `json:"counters"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if s.packets != nil {
		httputil.WriteJSONOK(w, map[string]interface{}{
			"pipeline": s.pipeline,
			"window":   s.packets.Snapshot(),
		})
		return
	}

	target := r.URL.Query().Get("units")
	if target != "" && !units.IsValid(target) {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q: must be one of %s", target, units.GetValidUnitsString()))
		return
	}

	win := s.samples.Window()
	resp := windowResponse{
		Pipeline: s.pipeline,
		Channels: win.Schema.ChannelNames(),
		Times:    win.Times,
		Rows:     win.Rows,
		Counters: s.samples.Counters(),
	}
	// Distance conversion only makes sense for the ranging pipeline; the
	// motion channels are not centimeters.
	if target != "" && s.pipeline == "sonar" {
		resp.Units = target
		if target != units.CM {
			converted := make([][]float64, len(win.Rows))
			for i, row := range win.Rows {
				out := make([]float64, len(row))
				for j, v := range row {
					out[j] = units.ConvertDistance(v, target)
				}
				converted[i] = out
			}
			resp.Rows = converted
		}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) handlePackets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap := s.packets.Snapshot()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"pipeline": s.pipeline,
		"total":    s.loop.Seq(),
		"counts":   snap.Counts,
		"packets":  snap.Records,
	})
}

func (s *Server) handleRecordStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	if !s.history.Active() {
		s.recordStarted = s.clock.Now()
	}
	s.history.Start()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"recording":  true,
		"started_at": s.recordStarted,
	})
}

func (s *Server) handleRecordStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.recordMu.Lock()
	defer s.recordMu.Unlock()
	if !s.history.Active() {
		httputil.WriteJSONError(w, http.StatusConflict, "no recording in progress")
		return
	}
	records := s.history.Stop()
	rec, err := s.db.FlushRecording(r.Context(), s.samples.Schema(), records, s.recordStarted, s.clock.Now())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to store recording: %v", err))
		return
	}
	monitoring.Logf("Recording %s stored: %d %s samples", rec.ID, rec.SampleCount, rec.Pipeline)
	httputil.WriteJSONOK(w, rec)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	win := s.samples.Window()
	if len(win.Rows) == 0 {
		httputil.NotFound(w, "no samples to export")
		return
	}
	filename := telemetry.ExportFilename(s.pipeline, s.clock.Now())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := telemetry.WriteCSV(w, win); err != nil {
		monitoring.Logf("Export write failed: %v", err)
	}
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.calibrate(r.Context()); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("calibration failed: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]bool{"calibrated": true})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req struct {
		Seq uint64 `json:"seq"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, `request body must be JSON with a "seq" field`)
		return
	}
	rec, ok := s.packets.Find(req.Seq)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("packet %d is not in the capture window", req.Seq))
		return
	}
	id := s.dispatcher.Submit(s.baseCtx, rec)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"request_id": id.String(),
		"seq":        rec.Seq,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if res, ok := s.dispatcher.Latest(); ok {
		resp := map[string]interface{}{
			"request_id": res.ID.String(),
			"seq":        res.Seq,
		}
		if res.Err != nil {
			resp["error"] = res.Err.Error()
		} else {
			resp["analysis"] = res.Text
		}
		httputil.WriteJSONOK(w, resp)
		return
	}
	if s.dispatcher.InFlight() > 0 {
		httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}
	httputil.NotFound(w, "no analysis available")
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := map[string]interface{}{
		"pipeline":        s.pipeline,
		"capacity":        s.params.GetCapacity(),
		"read_timeout":    s.params.GetReadTimeout().String(),
		"idle_sleep":      s.params.GetIdleSleep().String(),
		"stats_interval":  s.params.GetStatsInterval().String(),
		"render_interval": s.params.GetRenderInterval().String(),
	}
	if s.samples != nil {
		resp["serial_device"] = s.params.GetSerialDevice()
		resp["baud_rate"] = s.params.GetBaudRate()
	}
	if s.calibrate != nil {
		resp["calibrate_phrase"] = s.params.GetCalibratePhrase()
		resp["calibrate_timeout"] = s.params.GetCalibrateTimeout().String()
	}
	if s.dispatcher != nil {
		resp["analysis_endpoint"] = s.params.GetAnalysisEndpoint()
		resp["analysis_model"] = s.params.GetAnalysisModel()
		resp["analysis_max_tokens"] = s.params.GetAnalysisMaxTokens()
	}
	httputil.WriteJSONOK(w, resp)
}
