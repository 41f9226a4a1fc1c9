package sellers

import "testing"

func TestKeepReturnsRemovedIDs(t *testing.T) {
	collection := &Sellers{
		Items: []*Seller{
			{ID: "1", Institution: "X"},
			{ID: "2", Institution: "Y"},
			{ID: "3", Institution: "X"},
		},
	}

	removed := collection.Keep(func(s *Seller) bool {
		return s.Institution == "X"
	})

	if len(removed) != 1 || removed[0] != "2" {
		t.Fatalf("expected removed [2], got %v", removed)
	}
	if collection.Len() != 2 {
		t.Fatalf("expected 2 sellers left, got %d", collection.Len())
	}
	if collection.FindByID("2") != nil {
		t.Fatalf("seller 2 should have been removed")
	}
}

func TestReportByInstitution(t *testing.T) {
	collection := &Sellers{
		Items: []*Seller{
			{ID: "1", Institution: "X"},
			{ID: "2", Institution: "X"},
			{ID: "3", Institution: "Y"},
		},
	}

	report := collection.ReportByInstitution()

	if report["X"] != 2 {
		t.Fatalf("expected 2 sellers for X, got %d", report["X"])
	}
	if report["Y"] != 1 {
		t.Fatalf("expected 1 seller for Y, got %d", report["Y"])
	}
}

func TestLenOnNilCollection(t *testing.T) {
	var collection *Sellers
	if collection.Len() != 0 {
		t.Fatalf("expected 0 for nil collection")
	}
}
