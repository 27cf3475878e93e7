package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"storefront-cart/internal/bundle"
	"storefront-cart/internal/cart"
	"storefront-cart/internal/logger"
	"storefront-cart/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler exposes the cart of the calling session over HTTP. The session is
// resolved upstream by middleware.SessionMiddleware.
type Handler struct {
	sessions *cart.Sessions
	resolver *bundle.Resolver
}

func NewHandler(sessions *cart.Sessions, resolver *bundle.Resolver) *Handler {
	return &Handler{sessions: sessions, resolver: resolver}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)

	r.Post("/items", h.addItem)
	r.Patch("/items/{id}", h.updateQuantity)
	r.Delete("/items/{id}", h.removeItem)
	r.Get("/items/{id}/bundle", h.bundleDetails)

	r.Post("/bundles", h.addBundle)

	return r
}

type bundleResponse struct {
	LineID          string         `json:"lineId"`
	Details         bundle.Details `json:"details"`
	FeaturePreview  []string       `json:"featurePreview"`
	MoreFeatures    int            `json:"moreFeatures"`
	Included        bundle.Preview `json:"included"`
	ComponentValue  string         `json:"componentValue"`
	IncludedMissing bool           `json:"includedMissing"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, store.Snapshot(), http.StatusOK)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, store.Clear(r.Context()), http.StatusOK)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var in cart.AddInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	c, err := store.AddToCart(r.Context(), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, c, http.StatusOK)
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	c, err := store.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, c, http.StatusOK)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, store.RemoveFromCart(r.Context(), chi.URLParam(r, "id")), http.StatusOK)
}

func (h *Handler) bundleDetails(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	limit := bundle.DefaultPreviewLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.WriteJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	item, found := store.Snapshot().Item(chi.URLParam(r, "id"))
	if !found {
		utils.WriteJSONError(w, "line item not found", http.StatusNotFound)
		return
	}

	details, err := h.resolver.ResolveBundleDetails(r.Context(), item)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	included, err := h.resolver.ResolveIncludedProducts(r.Context(), item)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	features, more := details.FeaturePreview(limit)
	utils.WriteJSON(w, bundleResponse{
		LineID:          item.ID,
		Details:         details,
		FeaturePreview:  features,
		MoreFeatures:    more,
		Included:        included.Preview(limit),
		ComponentValue:  included.ComponentValue().String(),
		IncludedMissing: included.Missing > 0,
	}, http.StatusOK)
}

func (h *Handler) addBundle(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req addBundleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	in, err := h.resolver.QuoteBundle(r.Context(), req.Kind, req.BundleID, req.Quantity)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	c, err := store.AddToCart(r.Context(), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, c, http.StatusOK)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	sessionID, ok := utils.GetSessionIDFromContext(r.Context())
	if !ok {
		utils.WriteJSONError(w, "missing cart session", http.StatusBadRequest)
		return nil, false
	}
	return h.sessions.Get(r.Context(), sessionID), true
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidInput),
		errors.Is(err, bundle.ErrNotBundle),
		errors.Is(err, bundle.ErrInvalidQuantity):
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, bundle.ErrBundleUnavailable):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
	default:
		logger.FromCtx(ctx).Error("request failed",
			zap.String("layer", "transport"),
			zap.Error(err),
		)
		utils.WriteJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
