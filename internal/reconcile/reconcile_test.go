package reconcile

import (
	"testing"

	"cart-proxy/internal/model"
)

func guestItem(productID int64, qty int) model.CartItem {
	return model.CartItem{
		ID:       model.NewSyntheticID(model.ScopeGuest, productID),
		Product:  model.ProductStub(productID),
		Quantity: qty,
	}
}

func remoteItem(id string, productID int64, qty int) model.CartItem {
	return model.CartItem{ID: id, Product: model.Product{ID: productID}, Quantity: qty}
}

func TestPlanMerge_EmptyGuest(t *testing.T) {
	plan := PlanMerge([]model.CartItem{remoteItem("1", 101, 2)}, nil)
	if !plan.IsEmpty() {
		t.Errorf("plan = %+v, want empty", plan)
	}
}

func TestPlanMerge_AllNewProducts(t *testing.T) {
	guest := []model.CartItem{guestItem(101, 2), guestItem(102, 1)}

	plan := PlanMerge(nil, guest)

	if len(plan.ToAdd) != 2 {
		t.Fatalf("ToAdd = %d, want 2", len(plan.ToAdd))
	}
	if len(plan.ToBump) != 0 {
		t.Errorf("ToBump = %d, want 0", len(plan.ToBump))
	}
	if plan.ToAdd[0].ProductID != 101 || plan.ToAdd[0].Quantity != 2 {
		t.Errorf("ToAdd[0] = %+v", plan.ToAdd[0])
	}
}

func TestPlanMerge_OverlappingProductSums(t *testing.T) {
	remote := []model.CartItem{remoteItem("srv-9", 101, 2)}
	guest := []model.CartItem{guestItem(101, 3)}

	plan := PlanMerge(remote, guest)

	if len(plan.ToBump) != 1 {
		t.Fatalf("ToBump = %d, want 1", len(plan.ToBump))
	}
	bump := plan.ToBump[0]
	if bump.ItemID != "srv-9" {
		t.Errorf("ItemID = %q, want the remote server ID", bump.ItemID)
	}
	if bump.NewQuantity != 5 {
		t.Errorf("NewQuantity = %d, want 2+3=5", bump.NewQuantity)
	}
	if len(plan.ToAdd) != 0 {
		t.Errorf("ToAdd = %d, want 0", len(plan.ToAdd))
	}
}

func TestPlanMerge_SkipsNonPositiveGuestQuantities(t *testing.T) {
	guest := []model.CartItem{guestItem(101, 0), guestItem(102, -2)}

	plan := PlanMerge(nil, guest)
	if !plan.IsEmpty() {
		t.Errorf("plan = %+v, want empty for non-positive quantities", plan)
	}
}

func TestPlanMerge_RemoteOnlyItemsUntouched(t *testing.T) {
	remote := []model.CartItem{remoteItem("srv-1", 101, 2), remoteItem("srv-2", 102, 1)}
	guest := []model.CartItem{guestItem(101, 1)}

	plan := PlanMerge(remote, guest)

	// Product 102 lives only upstream; the plan must not touch it.
	for _, b := range plan.ToBump {
		if b.ProductID == 102 {
			t.Error("plan touches a remote-only product")
		}
	}
	if len(plan.ToAdd) != 0 || len(plan.ToBump) != 1 {
		t.Errorf("plan = %+v", plan)
	}
}
