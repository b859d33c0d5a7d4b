package memory

import (
	"reflect"
	"testing"
	"time"
)

func candidatesByKey(cands []Candidate) map[string]Candidate {
	out := make(map[string]Candidate, len(cands))
	for _, c := range cands {
		out[string(c.Category)+"."+c.Key] = c
	}
	return out
}

func TestPersonalInfoExtractor(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{
			name: "name via introduction",
			text: "tên tôi là Minh Anh",
			want: map[string]any{"name": "Minh Anh"},
		},
		{
			name: "name and direct age",
			text: "mình là Lan, mình 28 tuổi",
			want: map[string]any{"name": "Lan", "age": 28},
		},
		{
			name: "birth year converts to age",
			text: "em sinh năm 2000",
			want: map[string]any{"age": time.Now().Year() - 2000},
		},
		{
			name: "phone with label",
			text: "số điện thoại là 0912345678",
			want: map[string]any{"phone": "0912345678"},
		},
		{
			name: "bare number must look like a local phone",
			text: "1234567890",
			want: map[string]any{},
		},
		{
			name: "age outside range ignored",
			text: "năm nay 7",
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[string]any{}
			for _, c := range (personalInfoExtractor{}).Extract(tt.text) {
				got[c.Key] = c.Value
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestPreferencesExtractor(t *testing.T) {
	cands := candidatesByKey(preferencesExtractor{}.Extract(
		"Mình hay dùng toner và son, ngân sách khoảng 500000"))

	if c, ok := cands["preferences.product_skincare"]; !ok || c.Confidence != 0.7 {
		t.Error("skincare preference not extracted at 0.7")
	}
	if _, ok := cands["preferences.product_makeup"]; !ok {
		t.Error("makeup preference not extracted")
	}
	budget, ok := cands["preferences.budget_range"]
	if !ok {
		t.Fatal("budget not extracted")
	}
	if budget.Value != 500000 || budget.Confidence != 0.8 {
		t.Errorf("budget = %v at %.2f, want 500000 at 0.8", budget.Value, budget.Confidence)
	}
}

func TestPreferencesExtractorRejectsTinyBudget(t *testing.T) {
	cands := candidatesByKey(preferencesExtractor{}.Extract("ngân sách khoảng 500"))
	if _, ok := cands["preferences.budget_range"]; ok {
		t.Error("budget of 500 should not be treated as a real budget")
	}
}

func TestHealthInfoExtractor(t *testing.T) {
	cands := candidatesByKey(healthInfoExtractor{}.Extract(
		"Tôi đang mang thai, da nhạy cảm và bị dị ứng với nước hoa"))

	preg, ok := cands["health_info.pregnancy_status"]
	if !ok || preg.Value != true || preg.Confidence != 0.9 || !preg.NeedsConfirmation {
		t.Errorf("pregnancy candidate = %+v", preg)
	}

	allergy, ok := cands["health_info.allergies"]
	if !ok {
		t.Fatal("allergies not extracted")
	}
	list, isList := allergy.Value.([]string)
	if !isList || len(list) == 0 || list[0] != "nước hoa" {
		t.Errorf("allergies = %v, want [nước hoa]", allergy.Value)
	}

	skin, ok := cands["health_info.skin_type"]
	if !ok || skin.Value != "sensitive" || skin.Confidence != 0.8 {
		t.Errorf("skin type candidate = %+v", skin)
	}
}
