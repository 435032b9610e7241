package shell

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/pharmacy-storefront/internal/backend"
	"github.com/example/pharmacy-storefront/internal/orders"
)

// Seller dashboard

type sellerDashboardView struct {
	Medicines []backend.Medicine `json:"medicines"`
	Orders    []backend.Order    `json:"orders"`
}

func (h *Handlers) SellerDashboard(w http.ResponseWriter, r *http.Request) {
	meds, err := h.catalog.List(r.Context(), backend.ListQuery{})
	if err != nil {
		respondError(w, err)
		return
	}
	// The catalog listing is marketplace-wide; the dashboard shows
	// only this seller's entries.
	sellerID := h.sessions.Current().ID
	own := make([]backend.Medicine, 0, len(meds))
	for _, m := range meds {
		if m.SellerID == sellerID {
			own = append(own, m)
		}
	}

	incoming, err := h.orders.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sellerDashboardView{Medicines: own, Orders: incoming})
}

func (h *Handlers) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	var in backend.MedicineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	med, err := h.medicines.Create(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, med)
}

func (h *Handlers) UpdateMedicine(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/seller/medicines/")

	var in backend.MedicineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	med, err := h.medicines.Update(r.Context(), id, in)
	if err != nil {
		respondError(w, err)
		return
	}
	// The cached detail (if any) is stale now.
	h.catalog.Refresh(id)
	respondJSON(w, http.StatusOK, med)
}

// DeleteMedicine is destructive: without confirm it never reaches the
// backend.
func (h *Handlers) DeleteMedicine(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/seller/medicines/")

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Confirm {
		respondError(w, orders.ErrConfirmationRequired)
		return
	}

	if err := h.medicines.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	h.catalog.Refresh(id)
	respondJSON(w, http.StatusOK, map[string]string{"message": "medicine deleted"})
}

// UpdateOrderStatus serves both dashboards: sellers move their own
// orders along, admins can move any order.
func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	prefix := "/seller/orders/"
	if strings.HasPrefix(r.URL.Path, "/admin/orders/") {
		prefix = "/admin/orders/"
	}
	id := extractPathParam(r.URL.Path, prefix)

	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id,
		orders.Status(strings.ToUpper(req.From)), orders.Status(strings.ToUpper(req.To)))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// Admin dashboard

type adminDashboardView struct {
	Users          []backend.User  `json:"users"`
	PendingSellers []backend.User  `json:"pending_sellers"`
	Orders         []backend.Order `json:"orders"`
}

func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	pending, err := h.admin.PendingSellers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	allOrders, err := h.orders.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, adminDashboardView{
		Users:          users,
		PendingSellers: pending,
		Orders:         allOrders,
	})
}

func (h *Handlers) ApproveSeller(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/sellers/")
	if err := h.admin.ApproveSeller(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "seller approved"})
}

// DeactivateUser is destructive: confirm is required.
func (h *Handlers) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/admin/users/")

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Confirm {
		respondError(w, orders.ErrConfirmationRequired)
		return
	}

	if err := h.admin.DeactivateUser(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deactivated"})
}
