package emulator

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// requestError carries the HTTP status and service error payload for a
// failed request.
type requestError struct {
	Status  int
	Code    int
	Message string
}

// collection is one record kind's storage: canonical JSON objects keyed by
// id, with server-assigned eTags and timestamps.
type collection struct {
	idField     string
	keepCreated bool

	mu      sync.RWMutex
	records map[string]map[string]any
}

func newCollection(idField string, keepCreated bool) *collection {
	return &collection{
		idField:     idField,
		records:     make(map[string]map[string]any),
		keepCreated: keepCreated,
	}
}

// put upserts a record. ifMatch empty means unconditional; otherwise the
// stored eTag must match. Returns the stored copy with its fresh eTag.
func (c *collection) put(id string, fields map[string]any, ifMatch string) (map[string]any, *requestError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putLocked(id, fields, ifMatch)
}

// putLocked is put with c.mu already held.
func (c *collection) putLocked(id string, fields map[string]any, ifMatch string) (map[string]any, *requestError) {
	existing, ok := c.records[id]
	if ifMatch != "" {
		if !ok {
			return nil, &requestError{Status: http.StatusNotFound, Code: 404201, Message: "record not found"}
		}
		if existing["etag"] != ifMatch {
			return nil, &requestError{Status: http.StatusPreconditionFailed, Code: 412001, Message: "etag does not match"}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stored := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		stored[k] = v
	}
	stored["etag"] = uuid.NewString()
	stored["lastUpdatedDateTimeUtc"] = now
	if c.keepCreated {
		if ok {
			stored["createdDateTimeUtc"] = existing["createdDateTimeUtc"]
		} else {
			stored["createdDateTimeUtc"] = now
		}
	}

	c.records[id] = stored
	return stored, nil
}

// create inserts a record, failing when the id already exists. The exists
// check and the insert happen under one write lock so concurrent creates of
// the same id cannot both succeed.
func (c *collection) create(id string, fields map[string]any) (map[string]any, *requestError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[id]; exists {
		return nil, &requestError{Status: http.StatusConflict, Code: 409201, Message: "record already exists"}
	}
	return c.putLocked(id, fields, "")
}

// get returns the stored record by id.
func (c *collection) get(id string) (map[string]any, *requestError) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored, ok := c.records[id]
	if !ok {
		return nil, &requestError{Status: http.StatusNotFound, Code: 404201, Message: "record not found"}
	}
	return stored, nil
}

// delete removes a record. ifMatch empty means unconditional.
func (c *collection) delete(id, ifMatch string) *requestError {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.records[id]
	if !ok {
		return &requestError{Status: http.StatusNotFound, Code: 404201, Message: "record not found"}
	}
	if ifMatch != "" && existing["etag"] != ifMatch {
		return &requestError{Status: http.StatusPreconditionFailed, Code: 412001, Message: "etag does not match"}
	}
	delete(c.records, id)
	return nil
}

// list returns all records ordered by id.
func (c *collection) list() []map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.records))
	for id := range c.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.records[id])
	}
	return out
}
