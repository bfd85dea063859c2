package http

import (
	"net/http"
	"strings"

	"github.com/Strob0t/foodshare/internal/domain/reward"
)

type redeemRequest struct {
	ItemID string `json:"item_id"`
}

// Redeem handles POST /api/v1/shop/redeem.
func (h *Handlers) Redeem(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[redeemRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if strings.TrimSpace(req.ItemID) == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	res, err := h.Rewards.Redeem(r.Context(), userID(r), req.ItemID)
	if err != nil {
		writeDomainError(w, err, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetShop handles GET /api/v1/shops/{shop}.
func (h *Handlers) GetShop(w http.ResponseWriter, r *http.Request) {
	items, err := h.Rewards.Shop(reward.Shop(urlParam(r, "shop")))
	if err != nil {
		writeDomainError(w, err, "shop not found")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GetLeaderboard handles GET /api/v1/leaderboard.
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.Rewards.Leaderboard(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// ListTransactions handles GET /api/v1/me/transactions[?limit=N].
func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Rewards.Transactions(r.Context(), userID(r), queryInt(r, "limit", defaultListLimit))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if txs == nil {
		txs = []reward.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}
