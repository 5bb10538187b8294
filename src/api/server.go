package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/calvinhus/statistics-project/src/processor"
	"github.com/calvinhus/statistics-project/src/storage"
	"github.com/calvinhus/statistics-project/src/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server 把只读数据表的查询暴露为HTTP接口
type Server struct {
	table   *processor.Table
	logger  *storage.Logger
	metrics *Metrics
}

func NewServer(table *processor.Table, logger *storage.Logger, metrics *Metrics) *Server {
	metrics.rows.Set(float64(table.Len()))
	return &Server{
		table:   table,
		logger:  logger,
		metrics: metrics,
	}
}

// OptionsResponse 下拉框选项
type OptionsResponse struct {
	AllCurricula string   `json:"all_curricula"`
	AllFormats   string   `json:"all_formats"`
	Curricula    []string `json:"curricula"`
	Formats      []string `json:"formats"`
	TotalRows    int      `json:"total_rows"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes 返回全部路由
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.health)
	r.Get("/logs", s.streamLogs)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.With(render.SetContentType(render.ContentTypeJSON)).Get("/options", s.options)
		r.With(render.SetContentType(render.ContentTypeJSON)).Get("/dashboard", s.dashboard)
		r.Get("/export.xlsx", s.export)
	})
	return r
}

// filterFrom 读取查询参数，缺省为 "全部"
func (s *Server) filterFrom(r *http.Request) processor.Filter {
	rules := s.table.Rules()
	f := processor.Filter{
		Curriculum: r.URL.Query().Get("curriculum"),
		Format:     r.URL.Query().Get("format"),
	}
	if f.Curriculum == "" {
		f.Curriculum = rules.AllCurricula
	}
	if f.Format == "" {
		f.Format = rules.AllFormats
	}
	return f
}

func (s *Server) query(endpoint string, r *http.Request) processor.Dashboard {
	start := time.Now()
	d := s.table.Query(s.filterFrom(r))
	s.metrics.observeQuery(endpoint, d.Total.Count > 0, time.Since(start).Seconds())
	return d
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{"status": "ok", "rows": s.table.Len()})
}

func (s *Server) options(w http.ResponseWriter, r *http.Request) {
	rules := s.table.Rules()
	render.JSON(w, r, OptionsResponse{
		AllCurricula: rules.AllCurricula,
		AllFormats:   rules.AllFormats,
		Curricula:    s.table.Curricula(),
		Formats:      s.table.Formats(),
		TotalRows:    s.table.Len(),
	})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.query("dashboard", r))
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	d := s.query("export", r)

	var buf bytes.Buffer
	if err := utils.WriteExcel(&buf, d.Sheets()...); err != nil {
		s.logger.Error("导出Excel失败: " + err.Error())
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "export failed"})
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard.xlsx"`)
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// streamLogs 持续把日志推送给客户端，直到客户端断开
func (s *Server) streamLogs(w http.ResponseWriter, r *http.Request) {
	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	// 先订阅再回写响应头，客户端收到响应头时订阅已生效
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case msg := <-logChan:
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		// 日志流本身不记录，否则每条日志都会引出新日志
		if r.URL.Path == "/logs" {
			return
		}
		s.logger.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"query":      r.URL.RawQuery,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}, "http request")
	})
}
