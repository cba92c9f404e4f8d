package session

import (
	"fmt"
	"net/url"
)

// routeIndex is the secondary index from routing path to session id.
// It is owned by the registry and guarded by the registry's lock; it has
// no locking of its own. Every mutation of a session's stage or identity
// removes the old entry before installing the new one, so a stale path
// can never resolve to the wrong session.
type routeIndex struct {
	byPath map[string]string
}

func newRouteIndex() *routeIndex {
	return &routeIndex{byPath: make(map[string]string)}
}

func (ri *routeIndex) put(path, id string) {
	ri.byPath[path] = id
}

func (ri *routeIndex) remove(path string) {
	delete(ri.byPath, path)
}

func (ri *routeIndex) resolve(path string) (string, bool) {
	id, ok := ri.byPath[path]
	return id, ok
}

func (ri *routeIndex) len() int {
	return len(ri.byPath)
}

// routingPath derives the session-scoped path for a stage. The token in
// the query string is what authorizes access; the stage segment only
// routes.
func routingPath(stage, id, token string) string {
	q := url.Values{}
	q.Set("client_id", id)
	q.Set("token", token)
	return fmt.Sprintf("/%s?%s", stage, q.Encode())
}
