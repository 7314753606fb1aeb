// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

const objectKindHeader = "X-Ember-Object-Kind"

// BearerClaims is the JWT payload an HTTP remote issues after authorizing a
// push or fetch, the same shape the teacher's bearer token carries (uid,
// repo, operation, standard registered claims) trimmed to what a
// single-repo remote needs.
type BearerClaims struct {
	Repo      string `json:"repo"`
	CanPush   bool   `json:"can_push"`
	jwt.RegisteredClaims
}

// IssueToken signs a bearer token authorizing repo access for ttl, HS256
// with secret (the remote's configured signing key).
func IssueToken(secret []byte, repo string, canPush bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := BearerClaims{
		Repo:    repo,
		CanPush: canPush,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func verifyToken(secret []byte, raw string) (*BearerClaims, error) {
	var claims BearerClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// Server exposes a Repository's object and reference stores over HTTP, the
// wire side of an httpTransport client (§4.7's remote is an external
// collaborator; this is one concrete realisation of it).
type Server struct {
	store  objectBackend
	refs   refBackend
	secret []byte
	repo   string
}

// objectBackend and refBackend are the read/write surfaces Server needs;
// *odb.Store and *refs.Store satisfy them without pkg/ember/remote having
// to import pkg/ember and create a cycle.
type objectBackend interface {
	Exists(oid plumbing.Hash) bool
	Get(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error)
	Put(ctx context.Context, kind object.Kind, payload []byte) (plumbing.Hash, error)
}

type refBackend interface {
	List(prefix plumbing.ReferenceName) ([]*plumbing.Reference, error)
	Update(name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error
}

func NewServer(store objectBackend, refs refBackend, repo string, secret []byte) *Server {
	return &Server{store: store, refs: refs, secret: secret, repo: repo}
}

// Router builds the mux.Router serving this remote's endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/refs", s.handleListRefs).Methods(http.MethodGet)
	r.HandleFunc("/refs/{name:.*}", s.handleUpdateRef).Methods(http.MethodPost)
	r.HandleFunc("/objects/{oid}", s.handleHasObject).Methods(http.MethodHead)
	r.HandleFunc("/objects/{oid}", s.handleGetObject).Methods(http.MethodGet)
	r.HandleFunc("/objects/{oid}", s.handlePutObject).Methods(http.MethodPut)
	return r
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request, requirePush bool) bool {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return false
	}
	claims, err := verifyToken(s.secret, h[len(prefix):])
	if err != nil || claims.Repo != s.repo || (requirePush && !claims.CanPush) {
		http.Error(w, "access denied", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) handleListRefs(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, false) {
		return
	}
	refs, err := s.refs.List(plumbing.ReferenceName("refs/"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		out[ref.Name().String()] = ref.Hash().String()
	}
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleUpdateRef(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, true) {
		return
	}
	var body struct {
		NewOid      string  `json:"new_oid"`
		ExpectedOld *string `json:"expected_old"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := plumbing.ReferenceName(mux.Vars(r)["name"])
	var expected *plumbing.Hash
	if body.ExpectedOld != nil {
		h := plumbing.NewHash(*body.ExpectedOld)
		expected = &h
	}
	if err := s.refs.Update(name, plumbing.NewHash(body.NewOid), expected); err != nil {
		if plumbing.IsErrConcurrentUpdate(err) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHasObject(w http.ResponseWriter, r *http.Request) {
	oid := plumbing.NewHash(mux.Vars(r)["oid"])
	if s.store.Exists(oid) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, false) {
		return
	}
	oid := plumbing.NewHash(mux.Vars(r)["oid"])
	kind, payload, err := s.store.Get(r.Context(), oid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set(objectKindHeader, strconv.Itoa(int(kind)))
	w.Write(payload)
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r, true) {
		return
	}
	kind, err := strconv.Atoi(r.Header.Get(objectKindHeader))
	if err != nil {
		http.Error(w, "missing object kind", http.StatusBadRequest)
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.store.Put(r.Context(), object.Kind(kind), payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// httpTransport is the client side of Server, implementing Transport.
type httpTransport struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPTransport dials an ember remote served by Server.
func NewHTTPTransport(base, token string) Transport {
	return &httpTransport{base: base, token: token, client: &http.Client{Timeout: 30 * time.Second}}
}

func (t *httpTransport) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.client.Do(req)
}

func (t *httpTransport) ListRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	resp, err := t.do(ctx, http.MethodGet, "/refs", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: list refs: %s", resp.Status)
	}
	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]*plumbing.Reference, 0, len(raw))
	for name, oid := range raw {
		out = append(out, plumbing.NewReferenceFromStrings(name, oid))
	}
	return out, nil
}

func (t *httpTransport) HasObject(ctx context.Context, oid plumbing.Hash) (bool, error) {
	resp, err := t.do(ctx, http.MethodHead, "/objects/"+oid.String(), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (t *httpTransport) PullObject(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error) {
	resp, err := t.do(ctx, http.MethodGet, "/objects/"+oid.String(), nil)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("remote: pull %s: %s", oid, resp.Status)
	}
	kind, err := strconv.Atoi(resp.Header.Get(objectKindHeader))
	if err != nil {
		return 0, nil, fmt.Errorf("remote: pull %s: missing object kind", oid)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return object.Kind(kind), payload, nil
}

func (t *httpTransport) PushObject(ctx context.Context, oid plumbing.Hash, kind object.Kind, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.base+"/objects/"+oid.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set(objectKindHeader, strconv.Itoa(int(kind)))
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("remote: push %s: %s", oid, resp.Status)
	}
	return nil
}

func (t *httpTransport) UpdateRef(ctx context.Context, name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error {
	body := struct {
		NewOid      string  `json:"new_oid"`
		ExpectedOld *string `json:"expected_old"`
	}{NewOid: newOid.String()}
	if expectedOld != nil {
		s := expectedOld.String()
		body.ExpectedOld = &s
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := t.do(ctx, http.MethodPost, "/refs/"+name.String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return &plumbing.ErrConcurrentUpdate{Name: name, Expected: zeroIfNil(expectedOld), Actual: newOid}
	default:
		return fmt.Errorf("remote: update ref %s: %s", name, resp.Status)
	}
}

func zeroIfNil(h *plumbing.Hash) plumbing.Hash {
	if h == nil {
		return plumbing.ZeroHash
	}
	return *h
}
