package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/olgkv/todolist/internal/domain"
	"github.com/olgkv/todolist/internal/service"
)

const (
	maxBodyBytes            = 1 << 20
	reportGenerationTimeout = 30 * time.Second
)

type TaskRequest struct {
	ID     textValue `json:"id"`
	Task   textValue `json:"task"`
	Status textValue `json:"status"`
}

// textValue accepts a JSON string, number or boolean and keeps its text form.
// null leaves the value empty.
type textValue string

func (v *textValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = textValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = textValue(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = textValue(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("expected string, number or boolean, got %s", data)
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// GetTasks serves GET /getTasks.
func (h *Handler) GetTasks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	tasks, err := h.svc.ListTasks(r.Context())
	if err != nil {
		h.internalError(w, r, "There was an error fetching the tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTasksPaginated serves GET /getTasks/paginated?page=&limit=.
func (h *Handler) GetTasksPaginated(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	page, limit, err := h.svc.Pagination(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.ListPage(r.Context(), page, limit)
	if err != nil {
		h.internalError(w, r, "There was an error fetching the tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetTasksByStatus serves GET /getTasks/bystatus?status=&page=&limit=.
func (h *Handler) GetTasksByStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	page, limit, err := h.svc.Pagination(q.Get("page"), q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.ListByStatus(r.Context(), q.Get("status"), page, limit)
	if err != nil {
		h.internalError(w, r, "There was an error fetching the tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UpdateTask serves PUT /updatetask?id=.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	var req TaskRequest
	if err := decodeTaskRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.UpdateTask(r.Context(), r.URL.Query().Get("id"), service.TaskPatch{Task: string(req.Task), Status: string(req.Status)})
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		h.internalError(w, r, "There was an error updating the task", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Task updated successfully"})
}

// AddTask serves POST /addTask.
func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req TaskRequest
	if err := decodeTaskRequest(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task := domain.Task{ID: string(req.ID), Task: string(req.Task), Status: string(req.Status)}
	if err := h.svc.AddTask(r.Context(), task); err != nil {
		h.internalError(w, r, "There was an error adding the task", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Task added successfully"})
}

// DeleteByID serves DELETE /deletebyid?id=.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodDelete) {
		return
	}
	if err := h.svc.DeleteTask(r.Context(), r.URL.Query().Get("id")); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		h.internalError(w, r, "There was an error deleting the task", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}

// Report serves GET /getTasks/report?status= as a PDF attachment.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportGenerationTimeout)
	defer cancel()

	data, err := h.svc.GenerateReport(ctx, r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, "report generation timeout")
			return
		}
		h.internalError(w, r, "There was an error generating the report", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=tasks.pdf")
	_, _ = w.Write(data)
}

// internalError logs the cause and answers 500 without echoing internal detail.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// decodeTaskRequest accepts either a JSON or a form-encoded body. An empty
// body leaves req untouched.
func decodeTaskRequest(w http.ResponseWriter, r *http.Request, req *TaskRequest) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return err
		}
		req.ID = textValue(r.PostForm.Get("id"))
		req.Task = textValue(r.PostForm.Get("task"))
		req.Status = textValue(r.PostForm.Get("status"))
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
