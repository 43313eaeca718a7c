package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/eightd/eightd/internal/constants"
	"github.com/eightd/eightd/internal/models"
	"github.com/eightd/eightd/internal/validation"
	"github.com/eightd/eightd/internal/version"
	"github.com/eightd/eightd/internal/views"
	"github.com/eightd/eightd/internal/workflow"
)

// multipartOverhead is slack for form boundaries and headers on top of the file limit.
const multipartOverhead = 1 << 20

func (s *Server) routes() nethttp.Handler {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /static/style.css", s.handleStylesheet)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /file", s.handleFile)
	mux.HandleFunc("POST /params", s.handleParams)
	mux.HandleFunc("POST /submit", s.handleSubmit)
	mux.HandleFunc("POST /cancel", s.handleCancel)
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("POST /dismiss", s.handleDismiss)
	return s.logRequests(mux)
}

func (s *Server) handleIndex(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	page := views.NewPage(c.Snapshot(), s.cfg.MaxUploadMB)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := views.RenderPage(w, page); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render page")
		nethttp.Error(w, "internal error", nethttp.StatusInternalServerError)
	}
}

func (s *Server) handleStylesheet(w nethttp.ResponseWriter, r *nethttp.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(views.Stylesheet)
}

func (s *Server) handleHealth(w nethttp.ResponseWriter, r *nethttp.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"version":  version.Version,
		"sessions": s.registry.Len(),
		"results":  s.results.Len(),
	})
}

// handleState returns the caller's snapshot as JSON for scripts and polling clients.
func (s *Server) handleState(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(toJSON(c.Snapshot()))
}

func (s *Server) handleFile(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	defer redirectHome(w, r)

	limit := s.cfg.MaxUploadBytes()
	r.Body = nethttp.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *nethttp.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.RejectFile(fmt.Sprintf("File is too large (%dMB max)", s.cfg.MaxUploadMB))
			return
		}
		s.logger.Warn().Err(err).Msg("Malformed upload form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile(constants.FormFieldFile)
	if err != nil {
		// An empty picker submission leaves the current selection alone
		return
	}
	defer f.Close()

	if hdr.Size > limit {
		c.RejectFile(fmt.Sprintf("File is too large (%dMB max)", s.cfg.MaxUploadMB))
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", hdr.Filename).Msg("Failed to read uploaded file")
		return
	}

	name := validation.DisplayName(hdr.Filename)
	if name == "" {
		c.RejectFile(workflow.MsgMissingInput)
		return
	}
	c.SelectFile(models.NewAudioFile(name, hdr.Header.Get("Content-Type"), data))
}

func (s *Server) handleParams(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	defer redirectHome(w, r)

	if err := r.ParseForm(); err != nil {
		return
	}
	if n, ok := formInt(r, constants.FormFieldPanningFrequency); ok {
		c.SetPanningFrequency(n)
	}
	if n, ok := formInt(r, constants.FormFieldAmplitude); ok {
		c.SetAmplitude(n)
	}
}

func (s *Server) handleSubmit(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	if err := c.Start(s.baseCtx); err != nil {
		s.logger.Debug().Err(err).Str("session", c.ID()).Msg("Submit rejected")
	}
	redirectHome(w, r)
}

func (s *Server) handleCancel(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	c.Cancel()
	redirectHome(w, r)
}

// handleDownload streams the held result as an attachment and then dismisses it.
func (s *Server) handleDownload(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	snap := c.Snapshot()
	if !snap.HasResult() {
		redirectHome(w, r)
		return
	}

	h := snap.Result
	w.Header().Set("Content-Type", constants.ResultContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, h.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(h.Size(), 10))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(h.Payload()); err != nil {
		s.logger.Warn().Err(err).Str("session", c.ID()).Msg("Result download interrupted")
	}
	c.DismissResult()
}

func (s *Server) handleDismiss(w nethttp.ResponseWriter, r *nethttp.Request) {
	c := s.controllerFor(w, r)
	c.DismissResult()
	redirectHome(w, r)
}

func redirectHome(w nethttp.ResponseWriter, r *nethttp.Request) {
	nethttp.Redirect(w, r, "/", nethttp.StatusSeeOther)
}

func formInt(r *nethttp.Request, key string) (int, bool) {
	v := r.PostFormValue(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// statusRecorder captures the response code for request logging.
type statusRecorder struct {
	nethttp.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next nethttp.Handler) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: nethttp.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

// snapshotJSON is the body of GET /state.
type snapshotJSON struct {
	Phase            string `json:"phase"`
	File             string `json:"file,omitempty"`
	PanningFrequency int    `json:"panningFrequency"`
	Amplitude        int    `json:"amplitude"`
	Notice           string `json:"notice,omitempty"`
	NoticeKind       string `json:"noticeKind,omitempty"`
	ResultBytes      int64  `json:"resultBytes,omitempty"`
}

func toJSON(snap workflow.Snapshot) snapshotJSON {
	out := snapshotJSON{
		Phase:            snap.Phase.String(),
		PanningFrequency: snap.Params.PanningFrequency,
		Amplitude:        snap.Params.Amplitude,
	}
	if snap.File != nil {
		out.File = snap.File.Name
	}
	if snap.Notice != nil {
		out.Notice = snap.Notice.Message
		out.NoticeKind = snap.Notice.Kind.String()
	}
	if snap.Result != nil {
		out.ResultBytes = snap.Result.Size()
	}
	return out
}
