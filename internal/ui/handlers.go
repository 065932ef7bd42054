package ui

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"diagrammer/internal/domain/entity"
)

//go:embed templates/*.html
var templatesFS embed.FS

type API interface {
	Generate(ctx context.Context, prompt string) (*entity.GenerateResponse, error)
	History(ctx context.Context) ([]entity.DiagramRequestSummary, error)
}

type Handler struct {
	api    API
	tmpl   *template.Template
	logger *slog.Logger
}

type pageData struct {
	Prompt       string
	Error        string
	Result       *entity.GenerateResponse
	ImageURL     template.URL
	History      []entity.DiagramRequestSummary
	HistoryError string
}

func New(api API, logger *slog.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Handler{
		api:    api,
		tmpl:   tmpl,
		logger: logger,
	}, nil
}

func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Home).Methods(http.MethodGet)
	r.HandleFunc("/generate", h.Generate).Methods(http.MethodPost)
	return r
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, &pageData{})
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	data := &pageData{Prompt: r.FormValue("prompt")}
	if strings.TrimSpace(data.Prompt) == "" {
		data.Error = "Please enter a description of your architecture."
		h.render(w, r, http.StatusBadRequest, data)
		return
	}

	resp, err := h.api.Generate(r.Context(), data.Prompt)
	if err != nil {
		h.logger.Error("generate diagram failed", "err", err)
		data.Error = err.Error()
		h.render(w, r, http.StatusOK, data)
		return
	}

	data.Result = resp
	// base64 payload, safe to mark as URL
	data.ImageURL = template.URL("data:image/png;base64," + resp.DiagramImage)
	h.render(w, r, http.StatusOK, data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, code int, data *pageData) {
	history, err := h.api.History(r.Context())
	if err != nil {
		h.logger.Warn("fetch history failed", "err", err)
		data.HistoryError = err.Error()
	}
	data.History = history

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		h.logger.Error("execute template failed", "err", err)
	}
}
