package handlers

import (
	"net/http"
	"strconv"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

const (
	defaultDocumentLimit = 20
	maxDocumentLimit     = 100
)

type DocumentLister interface {
	Documents() []domain.DocumentSummary
}

type DocumentHandler struct {
	docs DocumentLister
}

func NewDocumentHandler(docs DocumentLister) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// List pages through the indexed documents in id order.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultDocumentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDocumentLimit {
			api.HandleError(w, domain.ErrInvalidLimit)
			return
		}
		limit = n
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.HandleError(w, domain.ErrInvalidCursor)
		return
	}

	page := pagination.Paginate(h.docs.Documents(), cursor, limit, func(d domain.DocumentSummary) string {
		return d.ID
	})
	api.Success(w, http.StatusOK, page)
}
