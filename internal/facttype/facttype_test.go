package facttype

import "testing"

func TestRegistryLookup(t *testing.T) {
	info, ok := Lookup(IdentifierNZBN)
	if !ok {
		t.Fatal("NZBN type not registered")
	}
	if !info.Singular {
		t.Error("NZBN should be singular")
	}
	if info.Jurisdiction != JurisdictionNZ {
		t.Errorf("NZBN jurisdiction = %q, want %q", info.Jurisdiction, JurisdictionNZ)
	}
}

func TestAllStableOrder(t *testing.T) {
	a := All()
	b := All()
	if len(a) == 0 {
		t.Fatal("registry is empty")
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			t.Fatalf("registry order not stable at %d: %q vs %q", i, a[i].Type, b[i].Type)
		}
	}
}

func TestIsSingular(t *testing.T) {
	if !IsSingular(ContactEmail) {
		t.Error("contact-email should be singular")
	}
	if IsSingular(Certification) {
		t.Error("certification-entry should be multi-valued")
	}
	// Unknown types are never overwritten.
	if IsSingular(Type("future-fact-type")) {
		t.Error("unknown types must be treated as multi-valued")
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		typ  Type
		in   string
		want string
	}{
		{IdentifierNZBN, "9429 041 398 978", "9429041398978"},
		{IdentifierABN, "12 345 678 901", "12345678901"},
		{ContactEmail, "  Info@Example.NZ ", "info@example.nz"},
		{ContactPhone, "021 555 000", "021555000"},
		{ContactPhone, "+64 21 555 000", "+6421555000"},
		{AnnualTurnover, "$5,500,000", "5500000"},
		{AnnualTurnover, "$5,500,000.75", "5500000"},
		{PublicLiability, "$1.5M", "1500000"},
		{Certification, "Class  4   License", "Class 4 License"},
		{Type("future-fact-type"), "  a   b ", "a b"},
	}
	for _, tt := range tests {
		if got := NormalizeValue(tt.typ, tt.in); got != tt.want {
			t.Errorf("NormalizeValue(%q, %q) = %q, want %q", tt.typ, tt.in, got, tt.want)
		}
	}
}

func TestCurrencyEdgeCases(t *testing.T) {
	tests := []struct{ in, want string }{
		{"$18K", "18000"},
		{"$2B", "2000000000"},
		{"0", "0"},
		{"$0.00", "0"},
		{"", ""},
		{"no digits", ""},
	}
	for _, tt := range tests {
		if got := Currency(tt.in); got != tt.want {
			t.Errorf("Currency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
