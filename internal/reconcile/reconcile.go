// Package reconcile computes the mutations needed to fold a guest cart into
// an authenticated cart at login. The merge is additive: a product present
// in both carts ends up with the summed quantity, and nothing already in
// the remote cart is ever removed.
package reconcile

import "cart-proxy/internal/model"

// MergePlan describes the upstream calls a merge requires.
// Bumps reuse the remote item's server-assigned ID; adds carry only the
// product, since the server assigns IDs on insert.
type MergePlan struct {
	ToAdd  []AddOp  // products in the guest cart only
	ToBump []BumpOp // products in both carts, quantity summed
}

// AddOp inserts a product the remote cart does not have yet.
type AddOp struct {
	ProductID int64
	Quantity  int
}

// BumpOp raises an existing remote item to the summed quantity.
type BumpOp struct {
	ItemID      string // server-assigned remote item ID
	ProductID   int64  // informational
	NewQuantity int    // remote quantity + guest quantity
}

// IsEmpty returns true when the guest cart contributed nothing.
func (p *MergePlan) IsEmpty() bool {
	return len(p.ToAdd) == 0 && len(p.ToBump) == 0
}

// PlanMerge diffs guest items against the remote snapshot. Matching is by
// product ID; guest item IDs are synthesized and meaningless upstream.
// Guest entries with non-positive quantities are skipped; a removal signal
// must never survive into stored state.
func PlanMerge(remote, guest []model.CartItem) *MergePlan {
	plan := &MergePlan{}

	remoteByProduct := make(map[int64]model.CartItem, len(remote))
	for _, item := range remote {
		remoteByProduct[item.Product.ID] = item
	}

	for _, g := range guest {
		if g.Quantity <= 0 {
			continue
		}
		if r, exists := remoteByProduct[g.Product.ID]; exists {
			plan.ToBump = append(plan.ToBump, BumpOp{
				ItemID:      r.ID,
				ProductID:   g.Product.ID,
				NewQuantity: r.Quantity + g.Quantity,
			})
		} else {
			plan.ToAdd = append(plan.ToAdd, AddOp{
				ProductID: g.Product.ID,
				Quantity:  g.Quantity,
			})
		}
	}

	return plan
}
