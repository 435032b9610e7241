package shell

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/cartstore"
	"github.com/example/pharmacy-storefront/internal/cartsync"
	"github.com/example/pharmacy-storefront/internal/catalog"
	"github.com/example/pharmacy-storefront/internal/orders"
	"github.com/example/pharmacy-storefront/internal/session"
)

// Handlers bundles everything the view layer needs. Views only read
// the cart store and dispatch mutations through the sync layer; they
// never write state directly.
type Handlers struct {
	sessions  *session.Manager
	store     *cartstore.Store
	sync      *cartsync.Syncer
	catalog   *catalog.Service
	orders    *orders.Service
	medicines *backend.MedicineAPI
	admin     *backend.AdminAPI
}

func NewHandlers(
	sessions *session.Manager,
	store *cartstore.Store,
	sync *cartsync.Syncer,
	catalogSvc *catalog.Service,
	orderSvc *orders.Service,
	medicines *backend.MedicineAPI,
	admin *backend.AdminAPI,
) *Handlers {
	return &Handlers{
		sessions:  sessions,
		store:     store,
		sync:      sync,
		catalog:   catalogSvc,
		orders:    orderSvc,
		medicines: medicines,
		admin:     admin,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorView is the uniform shape every failure renders as.
type errorView struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind"`
	Fields    map[string]string `json:"fields,omitempty"`
	Remaining *int              `json:"remaining,omitempty"`
	Retryable bool              `json:"retryable"`
}

// respondError maps the error taxonomy onto view responses. Conflicts
// keep their actionable message (remaining stock) instead of collapsing
// into a generic failure.
func respondError(w http.ResponseWriter, err error) {
	var stockErr *cartstore.StockLimitError
	if errors.As(err, &stockErr) {
		remaining := stockErr.Remaining
		respondJSON(w, http.StatusConflict, errorView{
			Error:     stockErr.Error(),
			Kind:      string(backend.KindConflict),
			Remaining: &remaining,
		})
		return
	}

	var be *backend.Error
	if errors.As(err, &be) {
		view := errorView{
			Error:     be.Message,
			Kind:      string(be.Kind),
			Fields:    be.Fields,
			Retryable: be.Kind == backend.KindNetwork,
		}
		if be.Remaining >= 0 {
			view.Remaining = &be.Remaining
		}
		status := be.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		respondJSON(w, status, view)
		return
	}

	switch {
	case errors.Is(err, cartstore.ErrQuantityTooLow),
		errors.Is(err, catalog.ErrInvalidRating),
		errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrInvalidAddress),
		errors.Is(err, orders.ErrInvalidPhone),
		errors.Is(err, orders.ErrInvalidPayment),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrConfirmationRequired):
		respondJSON(w, http.StatusBadRequest, errorView{Error: err.Error(), Kind: string(backend.KindValidation)})
	case errors.Is(err, orders.ErrCheckoutInFlight):
		respondJSON(w, http.StatusConflict, errorView{Error: err.Error(), Kind: string(backend.KindConflict)})
	default:
		respondJSON(w, http.StatusInternalServerError, errorView{Error: err.Error(), Kind: string(backend.KindServer), Retryable: true})
	}
}

func extractPathParam(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i]
	}
	return rest
}

// ============================================
// Home and auth
// ============================================

type homeView struct {
	User      *backend.User `json:"user,omitempty"`
	Nav       []NavLink     `json:"nav"`
	CartBadge int           `json:"cart_badge"`
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	view := homeView{
		Nav:       NavLinks(h.sessions.CurrentRole()),
		CartBadge: h.store.Snapshot().ItemCount,
	}
	if h.sessions.Authenticated() {
		u := h.sessions.Current()
		view.User = &u
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	// The cart persisted on this device may belong to this user; pull
	// the authoritative copy now that we can.
	if err := h.sync.FetchCart(r.Context()); err != nil {
		// Not fatal for login; the cart page will retry.
		respondJSON(w, http.StatusOK, map[string]any{"user": user, "cart_synced": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": user, "cart_synced": true})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req backend.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.sessions.Register(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) Account(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sessions.Current())
}

// ============================================
// Catalog
// ============================================

func (h *Handlers) ListMedicines(w http.ResponseWriter, r *http.Request) {
	q := backend.ListQuery{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}
	meds, err := h.catalog.List(r.Context(), q)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, meds)
}

func (h *Handlers) MedicineCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

func (h *Handlers) MedicineDetail(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/medicines/")
	detail, err := h.catalog.Detail(r.Context(), id)
	if err != nil {
		if backend.IsKind(err, backend.KindNotFound) {
			respondJSON(w, http.StatusNotFound, errorView{Error: "medicine not found", Kind: string(backend.KindNotFound)})
			return
		}
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handlers) SubmitReview(w http.ResponseWriter, r *http.Request) {
	// The detail page is public but reviewing is not.
	if !h.sessions.Authenticated() {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	id := extractPathParam(r.URL.Path, "/medicines/")

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.catalog.SubmitReview(r.Context(), id, req.Rating, req.Comment, h.sessions.Current())
	if err != nil {
		respondError(w, err)
		return
	}

	detail, err := h.catalog.Detail(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, detail)
}

// ============================================
// Cart
// ============================================

type cartView struct {
	Lines     []cartstore.Line `json:"lines"`
	Total     decimal.Decimal  `json:"total"`
	ItemCount int              `json:"item_count"`
	Busy      bool             `json:"busy"`
}

func (h *Handlers) cartView() cartView {
	st := h.store.Snapshot()
	return cartView{Lines: st.Lines, Total: st.Total, ItemCount: st.ItemCount, Busy: h.sync.Busy()}
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cartView())
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MedicineID string `json:"medicine_id"`
		Quantity   int    `json:"quantity"`
		Stock      int    `json:"stock"` // snapshot from the product detail the page already has
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.sync.AddToCart(r.Context(), req.MedicineID, req.Quantity, req.Stock); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartView())
}

func (h *Handlers) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.sync.UpdateQuantity(r.Context(), id, req.Quantity); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartView())
}

func (h *Handlers) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/cart/items/")
	if err := h.sync.RemoveLine(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartView())
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.ClearCart(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cartView())
}

// ============================================
// Checkout and orders
// ============================================

type checkoutPageView struct {
	Cart           cartView `json:"cart"`
	PaymentMethods []string `json:"payment_methods"`
}

func (h *Handlers) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, checkoutPageView{
		Cart:           h.cartView(),
		PaymentMethods: []string{orders.PaymentCashOnDelivery, orders.PaymentCardOnFile},
	})
}

func (h *Handlers) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress string `json:"shipping_address"`
		Phone           string `json:"phone"`
		PaymentMethod   string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.orders.Checkout(r.Context(), orders.CheckoutForm{
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

type orderView struct {
	Order       backend.Order `json:"order"`
	Cancellable bool          `json:"cancellable"`
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")
	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if backend.IsKind(err, backend.KindNotFound) {
			respondJSON(w, http.StatusNotFound, errorView{Error: "order not found", Kind: string(backend.KindNotFound)})
			return
		}
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderView{
		Order:       *order,
		Cancellable: orders.Cancellable(orders.Status(order.Status)),
	})
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.orders.Cancel(r.Context(), id, req.Confirm)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
