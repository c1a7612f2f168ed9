package wine

import "testing"

func TestParseType(t *testing.T) {
	cases := []struct {
		in   string
		want Type
	}{
		{"tinto", Red},
		{"branco", White},
		{"rose", Rose},
		{"rosé", Rose},
		{"TINTO", Red},
		{"  Branco ", White},
	}

	for _, c := range cases {
		got, err := ParseType(c.in)
		if err != nil {
			t.Errorf("ParseType(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseType(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseType("verde"); err == nil {
		t.Errorf("expected error for unknown type")
	}
}

func TestValidate(t *testing.T) {
	valid := Record{WineID: 1, Label: "Periquita", HarvestYear: 2015, Type: Red}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	blank := valid
	blank.Label = "   "
	if err := blank.Validate(); err == nil {
		t.Errorf("expected error for whitespace label")
	}

	badYear := valid
	badYear.HarvestYear = 0
	if err := badYear.Validate(); err == nil {
		t.Errorf("expected error for non-positive year")
	}
}
