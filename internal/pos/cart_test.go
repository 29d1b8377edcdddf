package pos

import (
	"errors"
	"testing"

	"github.com/Jar-Mar/tukjaishop-pos/internal/validation"
)

func TestCartAddLine_MergesDuplicates(t *testing.T) {
	cart := Cart{}

	var err error
	cart, err = cart.AddLine("123456", "Camera Lens", 1500, 1)
	if err != nil {
		t.Fatalf("AddLine error: %v", err)
	}

	// Повторное сканирование того же товара с другими именем и ценой.
	cart, err = cart.AddLine("123456", "Wrong Name", 9999, 1)
	if err != nil {
		t.Fatalf("AddLine error: %v", err)
	}
	cart, err = cart.AddLine("123456", "Camera Lens", 1500, 1)
	if err != nil {
		t.Fatalf("AddLine error: %v", err)
	}

	lines := cart.Lines()
	if len(lines) != 1 {
		t.Fatalf("len(lines) = %d, want 1", len(lines))
	}
	if lines[0].Quantity != 3 {
		t.Fatalf("quantity = %d, want 3", lines[0].Quantity)
	}
	if lines[0].Name != "Camera Lens" || lines[0].Price != 1500 {
		t.Fatalf("merge must keep the original line identity: %+v", lines[0])
	}
}

func TestCartAddLine_BlankIDGetsSentinel(t *testing.T) {
	cart, err := Cart{}.AddLine("   ", "Manual Item", 250, 1)
	if err != nil {
		t.Fatalf("AddLine error: %v", err)
	}
	if got := cart.Lines()[0].ID; got != "99" {
		t.Fatalf("id = %q, want sentinel \"99\"", got)
	}
}

func TestCartAddLine_ZeroQuantityDefaultsToOne(t *testing.T) {
	cart, err := Cart{}.AddLine("123456", "Camera Lens", 1500, 0)
	if err != nil {
		t.Fatalf("AddLine error: %v", err)
	}
	if got := cart.Lines()[0].Quantity; got != 1 {
		t.Fatalf("quantity = %d, want 1", got)
	}
}

func TestCartAddLine_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		itemName string
		price    float64
		quantity int
		wantErr  error
	}{
		{"empty name", "", 100, 1, validation.ErrEmptyName},
		{"negative price", "Camera Lens", -1, 1, validation.ErrNegativePrice},
		{"negative quantity", "Camera Lens", 100, -3, validation.ErrBadQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, _ := Cart{}.AddLine("123456", "Camera Lens", 1500, 1)

			got, err := cart.AddLine("789012", tt.itemName, tt.price, tt.quantity)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got.Len() != cart.Len() {
				t.Fatalf("rejected AddLine must not change the cart")
			}
		})
	}
}

func TestCartUpdateAndRemove(t *testing.T) {
	cart, _ := Cart{}.AddLine("123456", "Camera Lens", 1500, 1)
	cart, _ = cart.AddLine("789012", "Lighting Kit", 3200, 1)

	cart, err := cart.UpdateQuantity("123456", 4)
	if err != nil {
		t.Fatalf("UpdateQuantity error: %v", err)
	}
	if cart.Lines()[0].Quantity != 4 {
		t.Fatalf("quantity = %d, want 4", cart.Lines()[0].Quantity)
	}

	if _, err := cart.UpdateQuantity("123456", 0); !errors.Is(err, validation.ErrBadQuantity) {
		t.Fatalf("err = %v, want ErrBadQuantity", err)
	}
	if _, err := cart.UpdateQuantity("000000", 2); !errors.Is(err, ErrLineNotFound) {
		t.Fatalf("err = %v, want ErrLineNotFound", err)
	}

	cart, err = cart.UpdateDiscount("789012", 200)
	if err != nil {
		t.Fatalf("UpdateDiscount error: %v", err)
	}
	if cart.Lines()[1].Discount != 200 {
		t.Fatalf("discount = %v, want 200", cart.Lines()[1].Discount)
	}
	if _, err := cart.UpdateDiscount("789012", -1); !errors.Is(err, ErrNegativeDiscount) {
		t.Fatalf("err = %v, want ErrNegativeDiscount", err)
	}

	cart = cart.RemoveLine("123456")
	if cart.Len() != 1 || cart.Lines()[0].ID != "789012" {
		t.Fatalf("unexpected lines after remove: %+v", cart.Lines())
	}

	// Удаление отсутствующей позиции — no-op.
	cart = cart.RemoveLine("000000")
	if cart.Len() != 1 {
		t.Fatalf("remove of missing line must not change the cart")
	}
}

func TestCartSnapshotsAreIndependent(t *testing.T) {
	base, _ := Cart{}.AddLine("123456", "Camera Lens", 1500, 1)

	updated, _ := base.UpdateQuantity("123456", 10)

	if base.Lines()[0].Quantity != 1 {
		t.Fatalf("base snapshot changed: %+v", base.Lines())
	}
	if updated.Lines()[0].Quantity != 10 {
		t.Fatalf("updated snapshot wrong: %+v", updated.Lines())
	}
}

func TestCartGrandTotal(t *testing.T) {
	if got := (Cart{}).GrandTotal(); got != 0 {
		t.Fatalf("empty cart grand total = %v, want 0", got)
	}

	cart, _ := Cart{}.AddLine("1", "A", 100, 2)
	cart, _ = cart.AddLine("2", "B", 450, 1)
	cart, _ = cart.UpdateDiscount("2", 50)

	if got := cart.GrandTotal(); got != 600 {
		t.Fatalf("grand total = %v, want 600", got)
	}
}

func TestCartGrandTotal_NegativeLineIsNotClamped(t *testing.T) {
	cart, _ := Cart{}.AddLine("1", "A", 100, 1)
	cart, _ = cart.UpdateDiscount("1", 150)

	if got := cart.GrandTotal(); got != -50 {
		t.Fatalf("grand total = %v, want -50", got)
	}
}
