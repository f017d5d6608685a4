package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/forgo/docrepo/internal/docstore"
	"github.com/forgo/docrepo/internal/model"
	"github.com/forgo/docrepo/internal/repository"
)

// DocumentHandler serves the documents of the exposed collections
type DocumentHandler struct {
	store   docstore.Store
	exposed map[string]bool
}

// NewDocumentHandler creates a document handler. An empty collections list
// exposes every collection of the store.
func NewDocumentHandler(store docstore.Store, collections []string) *DocumentHandler {
	exposed := make(map[string]bool, len(collections))
	for _, c := range collections {
		exposed[c] = true
	}
	return &DocumentHandler{store: store, exposed: exposed}
}

// RegisterRoutes registers document routes
func (h *DocumentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/collections/{collection}/documents", h.ListDocuments)
	mux.HandleFunc("POST /v1/collections/{collection}/documents", h.CreateDocument)
	mux.HandleFunc("GET /v1/collections/{collection}/documents/{id}", h.GetDocument)
	mux.HandleFunc("HEAD /v1/collections/{collection}/documents/{id}", h.HeadDocument)
	mux.HandleFunc("PATCH /v1/collections/{collection}/documents/{id}", h.UpdateDocument)
	mux.HandleFunc("DELETE /v1/collections/{collection}/documents/{id}", h.DeleteDocument)
	mux.HandleFunc("GET /v1/collections/{collection}/documents/{id}/state", h.GetDocumentState)
	mux.HandleFunc("GET /v1/collections/{collection}/states", h.ListStates)
}

// repo returns the repository for the request's collection, or writes a 404.
func (h *DocumentHandler) repo(w http.ResponseWriter, r *http.Request) (*repository.DocumentRepository[map[string]any], bool) {
	collection := r.PathValue("collection")
	if docstore.ValidateCollection(collection) != nil || (len(h.exposed) > 0 && !h.exposed[collection]) {
		WriteError(w, model.NewNotFoundError(fmt.Sprintf("collection '%s' not found", collection)))
		return nil, false
	}
	return repository.NewDocumentRepository[map[string]any](h.store, collection, repository.StateMap), true
}

func notFound(msg string) error { return model.NewNotFoundError(msg) }
func conflict(msg string) error { return model.NewConflictError(msg) }

// listQuery holds the parsed filter, pagination and projection query parameters.
type listQuery struct {
	filter docstore.Filter
	skip   int
	limit  int
	order  []docstore.FindOption
	sel    *docstore.PartialSelect
}

// options asks for one extra document to detect a further page.
func (q listQuery) options() []docstore.FindOption {
	return append([]docstore.FindOption{docstore.Skip(q.skip), docstore.Limit(q.limit + 1)}, q.order...)
}

// pagination describes a page built from fetched documents, of which
// returned items made it into the response. skip and next_skip count
// documents, not returned items.
func (q listQuery) pagination(fetched, returned int) *PaginationInfo {
	return &PaginationInfo{
		Skip:     q.skip,
		Limit:    q.limit,
		Count:    returned,
		HasMore:  fetched > q.limit,
		NextSkip: q.skip + min(fetched, q.limit),
	}
}

func parseListQuery(r *http.Request) (listQuery, error) {
	params := r.URL.Query()
	q := listQuery{filter: docstore.Any(), limit: model.DefaultPageLimit}

	if raw := params.Get("filter"); raw != "" {
		f, err := docstore.ParseFilter([]byte(raw))
		if err != nil {
			return q, err
		}
		q.filter = f
	}
	if raw := params.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("%w: skip must be a non-negative integer", docstore.ErrInvalidQuery)
		}
		q.skip = n
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("%w: limit must be a non-negative integer", docstore.ErrInvalidQuery)
		}
		q.limit = min(n, model.MaxPageLimit)
	}
	if raw := params.Get("order"); raw != "" {
		opts, err := docstore.ParseOrder(raw)
		if err != nil {
			return q, err
		}
		q.order = opts
	}
	if raw := params.Get("select"); raw != "" {
		sel, err := docstore.ParseSelect(raw)
		if err != nil {
			return q, err
		}
		q.sel = &sel
	}
	return q, nil
}

// ListDocuments handles GET /v1/collections/{collection}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}
	q, err := parseListQuery(r)
	if err != nil {
		WriteError(w, MapError(err))
		return
	}

	seq := repo.FindDocuments(r.Context(), q.filter, q.options()...)
	if q.sel != nil {
		seq = repo.FindPartialDocuments(r.Context(), *q.sel, q.filter, q.options()...)
	}
	docs, err := docstore.Collect(seq)
	if err != nil {
		h.writeFailure(w, r, err, "list documents")
		return
	}
	page := q.pagination(len(docs), min(len(docs), q.limit))
	docs = docs[:page.Count]

	WriteCollection(w, http.StatusOK, docs, page, map[string]string{
		"self": r.URL.RequestURI(),
	})
}

// ListStates handles GET /v1/collections/{collection}/states
func (h *DocumentHandler) ListStates(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}
	q, err := parseListQuery(r)
	if err != nil {
		WriteError(w, MapError(err))
		return
	}

	// The page window is taken over documents before decoding, so documents
	// without a decodable state shrink the page without shifting the next one.
	docs, err := docstore.Collect(repo.FindDocuments(r.Context(), q.filter, q.options()...))
	if err != nil {
		h.writeFailure(w, r, err, "list states")
		return
	}
	states := make([]map[string]any, 0, min(len(docs), q.limit))
	for _, doc := range docs[:min(len(docs), q.limit)] {
		if state := repo.StateFromDocument(doc); state != nil {
			states = append(states, *state)
		}
	}
	page := q.pagination(len(docs), len(states))

	WriteCollection(w, http.StatusOK, states, page, map[string]string{
		"self": r.URL.RequestURI(),
	})
}

// GetDocument handles GET /v1/collections/{collection}/documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	doc, err := repo.NeedDocument(r.Context(), id, repository.WithFailure(notFound))
	if err != nil {
		h.writeFailure(w, r, err, "get document")
		return
	}

	WriteData(w, http.StatusOK, model.DocumentResponse{ID: id, Document: doc}, map[string]string{
		"self":  documentPath(repo.Collection(), id),
		"state": documentPath(repo.Collection(), id) + "/state",
	})
}

// HeadDocument handles HEAD /v1/collections/{collection}/documents/{id}
func (h *DocumentHandler) HeadDocument(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	has, err := repo.HasDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		w.WriteHeader(MapError(err).Status)
		return
	}
	if !has {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetDocumentState handles GET /v1/collections/{collection}/documents/{id}/state.
// A document without a decodable state yields null data.
func (h *DocumentHandler) GetDocumentState(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	state, err := repo.NeedDocumentState(r.Context(), id, repository.WithFailure(notFound))
	if err != nil {
		h.writeFailure(w, r, err, "get document state")
		return
	}

	var data any
	if state != nil {
		data = *state
	}
	WriteData(w, http.StatusOK, data, map[string]string{
		"document": documentPath(repo.Collection(), id),
	})
}

// CreateDocument handles POST /v1/collections/{collection}/documents
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}

	var req model.CreateDocumentRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if fieldErrors := req.Validate(); len(fieldErrors) > 0 {
		WriteError(w, model.NewValidationError(fieldErrors))
		return
	}
	if req.ID == "" {
		req.ID = docstore.NewID()
	}

	if err := repo.DontNeedDocument(r.Context(), req.ID, repository.WithFailure(conflict)); err != nil {
		h.writeFailure(w, r, err, "create document")
		return
	}

	doc := docstore.Document(req.Document)
	doc["id"] = req.ID
	if err := h.store.AddDoc(r.Context(), repo.Collection(), req.ID, doc); err != nil {
		h.writeFailure(w, r, err, "create document")
		return
	}

	stored, err := repo.NeedDocument(r.Context(), req.ID, repository.WithFailure(notFound))
	if err != nil {
		h.writeFailure(w, r, err, "create document")
		return
	}
	location := documentPath(repo.Collection(), req.ID)
	w.Header().Set("Location", location)
	WriteData(w, http.StatusCreated, model.DocumentResponse{ID: req.ID, Document: stored}, map[string]string{
		"self": location,
	})
}

// UpdateDocument handles PATCH /v1/collections/{collection}/documents/{id}.
// Top-level fields of the body replace those of the stored document.
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	var patch map[string]any
	if err := DecodeJSON(r, &patch); err != nil || patch == nil {
		WriteError(w, model.NewBadRequestError("request body must be a JSON object"))
		return
	}
	if v, ok := patch["id"]; ok && v != id {
		WriteError(w, model.NewValidationError([]model.FieldError{{Field: "id", Message: "id is immutable"}}))
		return
	}

	if _, err := repo.NeedDocument(r.Context(), id, repository.WithFailure(notFound)); err != nil {
		h.writeFailure(w, r, err, "update document")
		return
	}
	if err := h.store.UpdateDoc(r.Context(), repo.Collection(), id, patch); err != nil {
		h.writeFailure(w, r, err, "update document")
		return
	}

	updated, err := repo.NeedDocument(r.Context(), id, repository.WithFailure(notFound))
	if err != nil {
		h.writeFailure(w, r, err, "update document")
		return
	}
	WriteData(w, http.StatusOK, model.DocumentResponse{ID: id, Document: updated}, map[string]string{
		"self": documentPath(repo.Collection(), id),
	})
}

// DeleteDocument handles DELETE /v1/collections/{collection}/documents/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repo(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	if _, err := repo.NeedDocument(r.Context(), id, repository.WithFailure(notFound)); err != nil {
		h.writeFailure(w, r, err, "delete document")
		return
	}
	if err := h.store.DeleteDoc(r.Context(), repo.Collection(), id); err != nil {
		h.writeFailure(w, r, err, "delete document")
		return
	}
	WriteNoContent(w)
}

// writeFailure maps err and logs it when the response is a server error.
func (h *DocumentHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error, operation string) {
	pd := MapErrorWithContext(err, operation)
	if pd.Status >= http.StatusInternalServerError {
		slog.Error(operation+" failed",
			slog.String("collection", r.PathValue("collection")),
			slog.String("error", err.Error()),
		)
	}
	WriteError(w, pd)
}

func documentPath(collection, id string) string {
	return "/v1/collections/" + collection + "/documents/" + id
}
