package types

import "testing"

func TestDateRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       DateRange
		wantErr bool
	}{
		{"valid", DateRange{From: "2020-01-01", To: "2020-12-31"}, false},
		{"same day", DateRange{From: "2020-01-01", To: "2020-01-01"}, false},
		{"reversed", DateRange{From: "2021-01-01", To: "2020-01-01"}, true},
		{"bad from", DateRange{From: "2020/01/01", To: "2020-12-31"}, true},
		{"bad to", DateRange{From: "2020-01-01", To: ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{From: "2020-01-02", To: "2020-01-10"}
	if !r.Contains("2020-01-02") || !r.Contains("2020-01-10") {
		t.Error("range bounds should be inclusive")
	}
	if r.Contains("2020-01-01") || r.Contains("2020-01-11") {
		t.Error("dates outside range reported as contained")
	}
}

func TestOrderSide(t *testing.T) {
	if NewOrder("A", 3).Side() != SideBuy {
		t.Error("positive shares should be a buy")
	}
	if NewOrder("A", -3).Side() != SideSell {
		t.Error("negative shares should be a sell")
	}
	if NewOrder("A", 0).Side() != SideNone {
		t.Error("zero shares should be a no-op")
	}
}
