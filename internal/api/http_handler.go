package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"storefront-catalog-service/internal/auth"
	"storefront-catalog-service/internal/catalog"
	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/inquiry"
	"storefront-catalog-service/internal/logging"
	"storefront-catalog-service/internal/metrics"
)

// CatalogReader serves the public catalog reads.
type CatalogReader interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error)
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]domain.ProductWithCategory, error)
	SearchProducts(ctx context.Context, query string, limit, offset int) ([]domain.ProductWithCategory, error)
	GetProductByID(ctx context.Context, id int64) (*domain.ProductWithCategory, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.ProductWithCategory, error)
}

// CatalogWriter performs admin catalog mutations.
type CatalogWriter interface {
	CreateCategory(ctx context.Context, in domain.CategoryCreate) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id int64, in domain.CategoryUpdate) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CreateProduct(ctx context.Context, in domain.ProductCreate) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, in domain.ProductUpdate) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	BulkUpdateProducts(ctx context.Context, op catalog.BulkOperation, ids []int64) (*catalog.BulkResult, error)
}

// InquirySubmitter delivers contact form submissions.
type InquirySubmitter interface {
	Submit(ctx context.Context, in inquiry.Inquiry) error
}

// TokenIssuer issues and verifies access tokens.
type TokenIssuer interface {
	IssueAccessToken(identity auth.Identity) (auth.IssuedToken, error)
	VerifyContext(ctx context.Context, token string) (*auth.Claims, error)
}

// Deps are the collaborators of HTTPHandler. Inquiries may be nil when no
// mail relay is configured; the inquiry route then answers 503.
type Deps struct {
	Reader         CatalogReader
	Writer         CatalogWriter
	Inquiries      InquirySubmitter
	Credentials    auth.CredentialStore
	Tokens         TokenIssuer
	Health         *HealthChecker
	LoginLimiter   *RateLimiter
	InquiryLimiter *RateLimiter
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	reader      CatalogReader
	writer      CatalogWriter
	inquiries   InquirySubmitter
	credentials auth.CredentialStore
	tokens      TokenIssuer
	health      *HealthChecker
	loginRL     *RateLimiter
	inquiryRL   *RateLimiter
	validate    *validator.Validate
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(d Deps) *HTTPHandler {
	return &HTTPHandler{
		reader:      d.Reader,
		writer:      d.Writer,
		inquiries:   d.Inquiries,
		credentials: d.Credentials,
		tokens:      d.Tokens,
		health:      d.Health,
		loginRL:     d.LoginLimiter,
		inquiryRL:   d.InquiryLimiter,
		validate:    catalog.NewValidator(),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// MessageResponse is the body of operations that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logrus.WithError(err).Error("response_encode_failed")
		}
	}
}

// respondWithDomainError maps err onto the public error contract. notFound
// is the message used for domain.ErrNotFound.
func respondWithDomainError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var (
		verr     *domain.ValidationError
		upstream *domain.UpstreamError
		delivery *inquiry.DeliveryError
	)
	l := logging.FromContext(r.Context())
	switch {
	case errors.As(err, &verr):
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Fields: verr.Fields})
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrConflict):
		respondWithError(w, http.StatusConflict, "resource already exists or is still referenced")
	case errors.As(err, &upstream):
		l.WithError(err).WithField("source", upstream.Source).WithField("status", upstream.Status).Error("upstream_failure")
		respondWithError(w, http.StatusBadGateway, "upstream service failure")
	case errors.As(err, &delivery):
		l.WithError(err).Error("inquiry_delivery_failed")
		respondWithError(w, http.StatusBadGateway, "upstream service failure")
	default:
		l.WithError(err).Error("internal_error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads the request body into dst. A malformed body is a
// validation failure.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("invalid request payload: " + err.Error())
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("invalid id "+strconv.Quote(raw), "id")
	}
	return id, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError("invalid "+name+" "+strconv.Quote(raw), name)
	}
	return n, nil
}

// --- Category Handlers ---

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.reader.ListCategories(r.Context())
	if err != nil {
		respondWithDomainError(w, r, err, "category not found")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

// GetCategory resolves {key} as an id when it is all digits and as a slug
// otherwise.
func (h *HTTPHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var (
		category *domain.Category
		err      error
	)
	if isNumeric(key) {
		var id int64
		if id, err = parseID(key); err == nil {
			category, err = h.reader.GetCategoryByID(r.Context(), id)
		}
	} else {
		category, err = h.reader.GetCategoryBySlug(r.Context(), key)
	}
	if err != nil {
		respondWithDomainError(w, r, err, "Category not found")
		return
	}
	respondWithJSON(w, http.StatusOK, category)
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input domain.CategoryCreate
	if err := decodeJSON(r, &input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	created, err := h.writer.CreateCategory(r.Context(), input)
	if err != nil {
		respondWithDomainError(w, r, err, "Category not found")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "key"))
	if err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	var input domain.CategoryUpdate
	if err := decodeJSON(r, &input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	updated, err := h.writer.UpdateCategory(r.Context(), id, input)
	if err != nil {
		respondWithDomainError(w, r, err, "Category not found")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "key"))
	if err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	if err := h.writer.DeleteCategory(r.Context(), id); err != nil {
		respondWithDomainError(w, r, err, "Category not found")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Category deleted successfully"})
}

// --- Product Handlers ---

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var filter catalog.ProductFilter
	q := r.URL.Query()

	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithDomainError(w, r, domain.NewValidationError("invalid category_id "+strconv.Quote(raw), "category_id"), "")
			return
		}
		filter.CategoryID = &id
	}
	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			respondWithDomainError(w, r, domain.NewValidationError("invalid featured "+strconv.Quote(raw), "featured"), "")
			return
		}
		filter.Featured = &featured
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	if filter.Offset, err = queryInt(r, "offset"); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}

	products, err := h.reader.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithDomainError(w, r, err, "Product not found")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	products, err := h.reader.SearchProducts(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		respondWithDomainError(w, r, err, "Product not found")
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

// GetProduct resolves {key} as an id when it is all digits and as a slug
// otherwise.
func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var (
		product *domain.ProductWithCategory
		err     error
	)
	if isNumeric(key) {
		var id int64
		if id, err = parseID(key); err == nil {
			product, err = h.reader.GetProductByID(r.Context(), id)
		}
	} else {
		product, err = h.reader.GetProductBySlug(r.Context(), key)
	}
	if err != nil {
		respondWithDomainError(w, r, err, "Product not found")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductCreate
	if err := decodeJSON(r, &input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	created, err := h.writer.CreateProduct(r.Context(), input)
	if err != nil {
		respondWithDomainError(w, r, err, "Product not found")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "key"))
	if err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	var input domain.ProductUpdate
	if err := decodeJSON(r, &input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	updated, err := h.writer.UpdateProduct(r.Context(), id, input)
	if err != nil {
		respondWithDomainError(w, r, err, "Product not found")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "key"))
	if err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	if err := h.writer.DeleteProduct(r.Context(), id); err != nil {
		respondWithDomainError(w, r, err, "Product not found")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Product deleted successfully"})
}

// BulkRequest is the body of POST /api/products/bulk.
type BulkRequest struct {
	Operation  catalog.BulkOperation `json:"operation"`
	ProductIDs []int64               `json:"product_ids"`
}

func (h *HTTPHandler) BulkUpdateProducts(w http.ResponseWriter, r *http.Request) {
	var input BulkRequest
	if err := decodeJSON(r, &input); err != nil {
		respondWithDomainError(w, r, err, "")
		return
	}
	result, err := h.writer.BulkUpdateProducts(r.Context(), input.Operation, input.ProductIDs)
	if err != nil {
		respondWithDomainError(w, r, err, "Product not found")
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	admin := RequireAdmin(h.tokens)

	r.Get("/", h.Root)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if h.health != nil {
			r.Get("/healthz", h.health.ServeHTTP)
		}

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)              // GET /api/categories
			r.With(admin).Post("/", h.CreateCategory) // POST /api/categories
			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", h.GetCategory)                   // GET /api/categories/{id|slug}
				r.With(admin).Put("/", h.UpdateCategory)    // PUT /api/categories/{id}
				r.With(admin).Delete("/", h.DeleteCategory) // DELETE /api/categories/{id}
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.With(admin).Post("/", h.CreateProduct)
			// Static segments before {key} so "search" and "bulk" are not slugs.
			r.With(admin).Get("/search", h.SearchProducts)
			r.With(admin).Post("/bulk", h.BulkUpdateProducts)
			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", h.GetProduct)
				r.With(admin).Put("/", h.UpdateProduct)
				r.With(admin).Delete("/", h.DeleteProduct)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(h.loginRL.Handler).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(RequireToken(h.tokens)).Get("/me", h.Me)
		})

		r.With(h.inquiryRL.Handler).Post("/inquiry", h.SubmitInquiry)
	})
}

// Root reports that the service is up.
func (h *HTTPHandler) Root(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "API is running"})
}
