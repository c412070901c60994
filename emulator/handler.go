package emulator

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ruteri/enrollment-registry-client/api"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// defaultPageSize applies when a query carries no page-size header.
const defaultPageSize = 100

// Handler processes the registry wire protocol against in-memory storage.
type Handler struct {
	enrollments   *collection
	groups        *collection
	registrations *collection
	log           *slog.Logger

	// registration id -> owning enrollment group, for group-scoped queries
	groupOf   map[string]string
	groupOfMu sync.RWMutex
}

// NewHandler creates an emulator handler with empty collections.
func NewHandler(log *slog.Logger) *Handler {
	return &Handler{
		enrollments:   newCollection("registrationId", true),
		groups:        newCollection("enrollmentGroupId", true),
		registrations: newCollection("registrationId", false),
		log:           log,
		groupOf:       make(map[string]string),
	}
}

// SeedRegistrationState inserts a device registration state as if a device
// of the given enrollment group had registered. Only the service ever
// creates states, so tests and the dev binary seed them in-process.
func (h *Handler) SeedRegistrationState(groupID string, state *api.DeviceRegistrationState) error {
	fields, err := toFields(state)
	if err != nil {
		return fmt.Errorf("could not encode registration state: %w", err)
	}
	if _, reqErr := h.registrations.put(state.RegistrationID, fields, ""); reqErr != nil {
		return fmt.Errorf("could not store registration state: %s", reqErr.Message)
	}
	h.groupOfMu.Lock()
	h.groupOf[state.RegistrationID] = groupID
	h.groupOfMu.Unlock()
	return nil
}

func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// writeError emits the service's JSON error payload.
func writeError(w http.ResponseWriter, reqErr *requestError) {
	w.Header().Set("Content-Type", api.ContentTypeJSON)
	w.WriteHeader(reqErr.Status)
	json.NewEncoder(w).Encode(map[string]any{
		"errorCode": reqErr.Code,
		"message":   reqErr.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", api.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ifMatchValue normalizes the If-Match header: quotes stripped, "*" and
// absence both meaning unconditional.
func ifMatchValue(r *http.Request) string {
	etag := strings.Trim(r.Header.Get(api.IfMatchHeader), `"`)
	if etag == "*" {
		return ""
	}
	return etag
}

func (h *Handler) handlePut(col *collection, idParam string, w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, idParam)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400001, Message: "could not read request body"})
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400002, Message: "request body is not valid JSON"})
		return
	}
	if bodyID, _ := fields[col.idField].(string); bodyID != id {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400003, Message: fmt.Sprintf("%s in body does not match URL", col.idField)})
		return
	}

	stored, reqErr := col.put(id, fields, ifMatchValue(r))
	if reqErr != nil {
		writeError(w, reqErr)
		return
	}

	h.log.Debug("record stored", "collection", col.idField, "id", id)
	w.Header().Set(api.ETagHeader, stored["etag"].(string))
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) handleGet(col *collection, idParam string, w http.ResponseWriter, r *http.Request) {
	stored, reqErr := col.get(chi.URLParam(r, idParam))
	if reqErr != nil {
		writeError(w, reqErr)
		return
	}
	w.Header().Set(api.ETagHeader, stored["etag"].(string))
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) handleDelete(col *collection, idParam string, w http.ResponseWriter, r *http.Request) {
	if reqErr := col.delete(chi.URLParam(r, idParam), ifMatchValue(r)); reqErr != nil {
		writeError(w, reqErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePutEnrollment handles PUT /enrollments/{registration_id}.
func (h *Handler) HandlePutEnrollment(w http.ResponseWriter, r *http.Request) {
	h.handlePut(h.enrollments, "registration_id", w, r)
}

// HandleGetEnrollment handles GET /enrollments/{registration_id}.
func (h *Handler) HandleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	h.handleGet(h.enrollments, "registration_id", w, r)
}

// HandleDeleteEnrollment handles DELETE /enrollments/{registration_id}.
func (h *Handler) HandleDeleteEnrollment(w http.ResponseWriter, r *http.Request) {
	h.handleDelete(h.enrollments, "registration_id", w, r)
}

// HandlePutEnrollmentGroup handles PUT /enrollmentGroups/{group_id}.
func (h *Handler) HandlePutEnrollmentGroup(w http.ResponseWriter, r *http.Request) {
	h.handlePut(h.groups, "group_id", w, r)
}

// HandleGetEnrollmentGroup handles GET /enrollmentGroups/{group_id}.
func (h *Handler) HandleGetEnrollmentGroup(w http.ResponseWriter, r *http.Request) {
	h.handleGet(h.groups, "group_id", w, r)
}

// HandleDeleteEnrollmentGroup handles DELETE /enrollmentGroups/{group_id}.
func (h *Handler) HandleDeleteEnrollmentGroup(w http.ResponseWriter, r *http.Request) {
	h.handleDelete(h.groups, "group_id", w, r)
}

// HandleGetRegistration handles GET /registrations/{registration_id}.
func (h *Handler) HandleGetRegistration(w http.ResponseWriter, r *http.Request) {
	h.handleGet(h.registrations, "registration_id", w, r)
}

// HandleDeleteRegistration handles DELETE /registrations/{registration_id}.
func (h *Handler) HandleDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	h.handleDelete(h.registrations, "registration_id", w, r)
}

// HandleBulkEnrollment handles POST /enrollments: one mutation mode applied
// to every record in the batch, per-record failures collected into the
// result rather than failing the request.
func (h *Handler) HandleBulkEnrollment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400001, Message: "could not read request body"})
		return
	}

	var bulk struct {
		Mode        api.BulkOperationMode `json:"mode"`
		Enrollments []map[string]any      `json:"enrollments"`
	}
	if err := json.Unmarshal(body, &bulk); err != nil {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400002, Message: "request body is not valid JSON"})
		return
	}
	if len(bulk.Enrollments) == 0 {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400004, Message: "bulk operation requires at least one enrollment"})
		return
	}

	result := api.BulkEnrollmentOperationResult{IsSuccessful: true, Errors: []api.BulkEnrollmentOperationError{}}
	for _, fields := range bulk.Enrollments {
		id, _ := fields["registrationId"].(string)
		if id == "" {
			writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400005, Message: "enrollment is missing registrationId"})
			return
		}

		var reqErr *requestError
		switch bulk.Mode {
		case api.BulkCreate:
			_, reqErr = h.enrollments.create(id, fields)
		case api.BulkUpdate:
			_, reqErr = h.enrollments.put(id, fields, "")
		case api.BulkUpdateIfMatchETag:
			etag, _ := fields["etag"].(string)
			_, reqErr = h.enrollments.put(id, fields, etag)
		case api.BulkDelete:
			reqErr = h.enrollments.delete(id, "")
		default:
			writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400006, Message: fmt.Sprintf("unknown bulk mode %q", bulk.Mode)})
			return
		}

		if reqErr != nil {
			result.IsSuccessful = false
			result.Errors = append(result.Errors, api.BulkEnrollmentOperationError{
				RegistrationID: id,
				ErrorCode:      reqErr.Code,
				ErrorStatus:    reqErr.Message,
			})
		}
	}

	h.log.Debug("bulk operation applied", "mode", bulk.Mode, "records", len(bulk.Enrollments), "failed", len(result.Errors))
	writeJSON(w, http.StatusOK, result)
}

// HandleQueryEnrollments handles POST /enrollments/query.
func (h *Handler) HandleQueryEnrollments(w http.ResponseWriter, r *http.Request) {
	h.handleQuery(h.enrollments.list(), w, r)
}

// HandleQueryEnrollmentGroups handles POST /enrollmentGroups/query.
func (h *Handler) HandleQueryEnrollmentGroups(w http.ResponseWriter, r *http.Request) {
	h.handleQuery(h.groups.list(), w, r)
}

// HandleQueryRegistrations handles POST /registrations/{id}/query, where the
// id names an enrollment group; it returns the registration states seeded
// for that group. The URL parameter shares its name with the single-record
// registration routes so the router patterns stay compatible.
func (h *Handler) HandleQueryRegistrations(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "registration_id")

	h.groupOfMu.RLock()
	all := h.registrations.list()
	matching := make([]map[string]any, 0, len(all))
	for _, fields := range all {
		id, _ := fields["registrationId"].(string)
		if h.groupOf[id] == groupID {
			matching = append(matching, fields)
		}
	}
	h.groupOfMu.RUnlock()

	h.handleQuery(matching, w, r)
}

// handleQuery paginates the full result set. The body must carry a query
// specification; its contents are ignored, every record matches. The
// continuation token is the offset into the id-ordered result set.
func (h *Handler) handleQuery(records []map[string]any, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400001, Message: "could not read request body"})
		return
	}
	var spec api.QuerySpecification
	if err := json.Unmarshal(body, &spec); err != nil {
		writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400002, Message: "query specification is not valid JSON"})
		return
	}

	pageSize := defaultPageSize
	if raw := r.Header.Get(api.PageSizeHeader); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize <= 0 {
			writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400007, Message: "invalid page size header"})
			return
		}
	}

	offset := 0
	if token := r.Header.Get(api.ContinuationHeader); token != "" {
		offset, err = strconv.Atoi(token)
		if err != nil || offset < 0 {
			writeError(w, &requestError{Status: http.StatusBadRequest, Code: 400008, Message: "invalid continuation token"})
			return
		}
	}

	if offset > len(records) {
		offset = len(records)
	}
	end := offset + pageSize
	if end > len(records) {
		end = len(records)
	}

	if end < len(records) {
		w.Header().Set(api.ContinuationHeader, strconv.Itoa(end))
	}
	writeJSON(w, http.StatusOK, records[offset:end])
}
