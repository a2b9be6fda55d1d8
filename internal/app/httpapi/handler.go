// Package httpapi implements the HTTP surface described by spec.md §6: C6's
// request/response cycle and C7's envelope, routed with go-chi/chi (the
// teacher's go.mod carries chi but its working code never imports it —
// wired here as the real router, SPEC_FULL.md §B).
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	core "github.com/tacc-cloud/abaco/internal/app/core/service"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/execution"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
	"github.com/tacc-cloud/abaco/internal/app/envelope"
	"github.com/tacc-cloud/abaco/internal/app/reqctx"
	"github.com/tacc-cloud/abaco/internal/app/services/actors"
)

// handler bundles the actor-control-plane HTTP endpoints over one
// actors.Service. Every method follows the same shape: resolve the caller
// identity from context, delegate to the service (which itself enforces
// authorization), and write an envelope.
type handler struct {
	actors *actors.Service
}

// mount attaches every route in spec.md §6's table under /actors/v2.
func (h *handler) mount(r chi.Router) {
	r.Route("/actors/v2/actors", func(r chi.Router) {
		r.Get("/", h.listActors)
		r.Post("/", h.createActor)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getActor)
			r.Put("/", h.updateActor)
			r.Delete("/", h.deleteActor)

			r.Get("/state", h.getState)
			r.Post("/state", h.setState)

			r.Get("/executions", h.executionsSummary)
			r.Post("/executions", h.recordExecutionStats)
			r.Get("/executions/{eid}", h.getExecution)
			r.Get("/executions/{eid}/logs", h.getExecutionLogs)

			r.Get("/messages", h.messagesLen)
			r.Post("/messages", h.postMessage)

			r.Get("/workers", h.listWorkers)
			r.Post("/workers", h.ensureWorkers)
			r.Get("/workers/{wid}", h.getWorker)
			r.Delete("/workers/{wid}", h.stopWorker)

			r.Get("/permissions", h.listPermissions)
			r.Post("/permissions", h.grantPermission)
		})
	})
}

func (h *handler) listActors(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	list, err := h.actors.ListActors(r.Context(), id.Tenant, id.User)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	list = list[:queryLimit(r, len(list))]
	out := make([]actor.Display, len(list))
	for i, a := range list {
		out[i] = a.Display()
	}
	writeSuccess(w, h.actors.KeyCase(), "actors retrieved successfully", out)
}

func (h *handler) createActor(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req actor.Request
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, apierr.Conflict("malformed request body: %v", err))
		return
	}
	if req.APIServer == "" {
		req.APIServer = id.APIServer
	}
	a, err := h.actors.CreateActor(r.Context(), id.Tenant, id.User, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessWithLinks(w, h.actors.KeyCase(), "actor created", a.Display(), links(a))
}

func (h *handler) getActor(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	a, err := h.actors.GetActor(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessWithLinks(w, h.actors.KeyCase(), "actor retrieved successfully", a.Display(), links(a))
}

func (h *handler) updateActor(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var req actor.Request
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, apierr.Conflict("malformed request body: %v", err))
		return
	}
	a, err := h.actors.UpdateActor(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessWithLinks(w, h.actors.KeyCase(), "actor updated successfully", a.Display(), links(a))
}

func (h *handler) deleteActor(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	if err := h.actors.DeleteActor(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "actor deleted successfully", map[string]interface{}{})
}

func (h *handler) getState(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	state, err := h.actors.GetState(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "actor state retrieved successfully", state)
}

func (h *handler) setState(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var state map[string]interface{}
	if err := decodeJSON(r, &state); err != nil {
		writeServiceError(w, apierr.Conflict("malformed request body: %v", err))
		return
	}
	a, err := h.actors.SetState(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), state)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "actor state updated successfully", a.Display())
}

func (h *handler) executionsSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	summary, err := h.actors.GetExecutionsSummary(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "executions summary retrieved successfully", summary)
}

func (h *handler) recordExecutionStats(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var payload struct {
		ExecutionID string `json:"execution_id"`
		Status      string `json:"status"`
		Runtime     int64  `json:"runtime"`
		CPU         int64  `json:"cpu"`
		IO          int64  `json:"io"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeServiceError(w, apierr.Conflict("malformed request body: %v", err))
		return
	}
	if payload.ExecutionID == "" {
		writeServiceError(w, apierr.Validation("execution_id is required"))
		return
	}
	status := execution.Status(strings.ToUpper(strings.TrimSpace(payload.Status)))
	if status == "" {
		status = execution.StatusRunning
	}
	e, err := h.actors.RecordExecutionStats(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), payload.ExecutionID, status,
		execution.Stats{RuntimeMS: payload.Runtime, CPU: payload.CPU, IO: payload.IO})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "execution updated successfully", e.Display())
}

func (h *handler) getExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	e, err := h.actors.GetExecution(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), chi.URLParam(r, "eid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "execution retrieved successfully", e.Display())
}

func (h *handler) getExecutionLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	actorID := chi.URLParam(r, "id")
	execID := chi.URLParam(r, "eid")
	logs, err := h.actors.GetExecutionLogs(r.Context(), id.Tenant, id.User, actorID, execID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Hypermedia on logs responses (SPEC_FULL.md §C): the execution/logs
	// link pair, not just the actor's default links.
	writeSuccessWithLinks(w, h.actors.KeyCase(), "logs retrieved successfully",
		map[string]interface{}{"logs": logs},
		envelope.ExecutionLinks(id.APIServer, actorID, execID))
}

func (h *handler) messagesLen(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	actorID := chi.URLParam(r, "id")
	n, err := h.actors.MessagesApproxLen(r.Context(), id.Tenant, id.User, actorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessWithLinks(w, h.actors.KeyCase(), "messages retrieved successfully",
		map[string]interface{}{"messages": n}, envelope.Links(id.APIServer, actorID))
}

func (h *handler) postMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	actorID := chi.URLParam(r, "id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBodyBytes))
	if err != nil {
		writeServiceError(w, apierr.Conflict("reading request body: %v", err))
		return
	}
	isJSON := strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json")

	query := make(map[string]string)
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}

	e, err := h.actors.PostMessage(r.Context(), id.Tenant, id.User, id.APIServer, id.JWTHeaderName, actorID, body, isJSON, query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccessWithLinks(w, h.actors.KeyCase(), "message accepted",
		map[string]interface{}{"execution_id": e.ID},
		envelope.ExecutionLinks(id.APIServer, actorID, e.ID))
}

func (h *handler) listWorkers(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	workers, err := h.actors.ListWorkers(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	workers = workers[:queryLimit(r, len(workers))]
	out := make([]interface{}, len(workers))
	for i, wk := range workers {
		out[i] = wk.Display()
	}
	writeSuccess(w, h.actors.KeyCase(), "workers retrieved successfully", out)
}

func (h *handler) ensureWorkers(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var payload struct {
		Num int `json:"num"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeServiceError(w, apierr.Conflict("malformed request body: %v", err))
		return
	}
	if payload.Num <= 0 {
		writeServiceError(w, apierr.Validation("num must be a positive integer"))
		return
	}
	newIDs, err := h.actors.EnsureWorkers(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), payload.Num)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "workers requested", map[string]interface{}{"worker_ids": newIDs})
}

func (h *handler) getWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	wk, err := h.actors.GetWorker(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), chi.URLParam(r, "wid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "worker retrieved successfully", wk.Display())
}

func (h *handler) stopWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	if err := h.actors.StopWorker(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), chi.URLParam(r, "wid")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "worker stop requested", map[string]interface{}{})
}

func (h *handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	grants, err := h.actors.ListPermissions(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]permission.Display, len(grants))
	for i, g := range grants {
		out[i] = g.Display()
	}
	writeSuccess(w, h.actors.KeyCase(), "permissions retrieved successfully", out)
}

func (h *handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(w, r)
	if !ok {
		return
	}
	var payload struct {
		User  string `json:"user"`
		Level string `json:"level"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		writeServiceError(w, apierr.Conflict("malformed request body: %v", err))
		return
	}
	if payload.User == "" {
		writeServiceError(w, apierr.Validation("user is required"))
		return
	}
	level, err := permission.Parse(strings.ToUpper(strings.TrimSpace(payload.Level)))
	if err != nil {
		writeServiceError(w, apierr.Validation("invalid permission level %q", payload.Level))
		return
	}
	if err := h.actors.GrantPermission(r.Context(), id.Tenant, id.User, chi.URLParam(r, "id"), payload.User, level); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, h.actors.KeyCase(), "permission granted successfully", map[string]interface{}{"user": payload.User, "level": level.String()})
}

// maxMessageBodyBytes bounds a single message-POST body; generous enough
// for typical JSON payloads without letting one request exhaust memory.
const maxMessageBodyBytes = 4 << 20

func links(a *actor.Actor) map[string]string {
	return envelope.Links(a.APIServer, a.ID)
}

func identityFrom(w http.ResponseWriter, r *http.Request) (reqctx.Identity, bool) {
	id, ok := reqctx.From(r.Context())
	if !ok || id.Tenant == "" || id.User == "" {
		writeErrorEnvelope(w, http.StatusUnauthorized, "authentication required")
		return reqctx.Identity{}, false
	}
	return id, true
}

// queryLimit reads an optional "limit" query parameter, applies the standard
// default/max page size via core.ClampLimit (so an unbounded listActors/
// listWorkers request doesn't always return the whole tenant population),
// then caps the result to the slice's actual length so callers can safely
// slice with it.
func queryLimit(r *http.Request, total int) int {
	requested := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			requested = n
		}
	}
	limit := core.ClampLimit(requested, core.DefaultListLimit, core.MaxListLimit)
	if limit > total {
		limit = total
	}
	return limit
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeSuccess(w http.ResponseWriter, keyCase envelope.KeyCase, message string, result interface{}) {
	writeEnvelope(w, http.StatusOK, envelope.NewSuccess(message, toResult(result), keyCase))
}

func writeSuccessWithLinks(w http.ResponseWriter, keyCase envelope.KeyCase, message string, result interface{}, linkMap map[string]string) {
	merged := toResult(result)
	if m, ok := merged.(map[string]interface{}); ok {
		m["_links"] = linkMap
		merged = m
	}
	writeEnvelope(w, http.StatusOK, envelope.NewSuccess(message, merged, keyCase))
}

// toResult converts any JSON-marshalable value into the
// map[string]interface{}/[]interface{} shape envelope.NewSuccess expects so
// camelCase rewriting can walk it structurally.
func toResult(v interface{}) interface{} {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func writeServiceError(w http.ResponseWriter, err error) {
	se := apierr.Wrap(err)
	writeErrorEnvelope(w, apierr.HTTPStatus(se), se.Message)
}

func writeErrorEnvelope(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope.NewError(message))
}

func writeEnvelope(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
