package memory

import (
	"fmt"
	"strings"
)

// Profile completeness tiers. Discovery keeps asking questions until
// the profile reaches the "good" tier.
const (
	BasicThreshold     = 0.3
	GoodThreshold      = 0.6
	ExcellentThreshold = 0.8
)

// NextAction values returned by DetermineNextAction.
const (
	ActionContinueDiscovery    = "continue_discovery"
	ActionTargetedQuestions    = "targeted_questions"
	ActionOptionalDiscovery    = "optional_discovery"
	ActionReadyForConsultation = "ready_for_consultation"
)

var discoveryQuestions = map[Category][]string{
	CategoryPersonalInfo: {
		"Chào bạn! Mình có thể gọi bạn là gì ạ?",
		"Bạn bao nhiêu tuổi rồi ạ?",
		"Bạn đang sống ở đâu vậy?",
	},
	CategoryPreferences: {
		"Bạn thường quan tâm đến loại sản phẩm nào nhất?",
		"Ngân sách mà bạn dành cho việc chăm sóc sắc đẹp thường là bao nhiêu?",
		"Bạn có thương hiệu yêu thích nào không?",
		"Bạn thích mua sắm online hay offline hơn?",
	},
	CategoryHealthInfo: {
		"Bạn có đang mang thai không ạ?",
		"Da của bạn thuộc loại nào? (khô, dầu, hỗn hợp, nhạy cảm)",
		"Bạn có bị dị ứng với thành phần nào không?",
		"Bạn có vấn đề gì về da cần quan tâm đặc biệt không?",
	},
	CategoryLifestyle: {
		"Bạn có thói quen chăm sóc da hàng ngày như thế nào?",
		"Bạn thường làm việc trong môi trường nào? (văn phòng, ngoài trời...)",
		"Bạn có tập thể thao thường xuyên không?",
	},
}

// Asked in this order when more than one category is missing.
var discoveryPriority = []Category{
	CategoryPersonalInfo,
	CategoryHealthInfo,
	CategoryPreferences,
	CategoryLifestyle,
}

var completenessWeights = map[Category]float64{
	CategoryPersonalInfo: 0.3,
	CategoryHealthInfo:   0.25,
	CategoryPreferences:  0.25,
	CategoryLifestyle:    0.2,
}

// ProfileAnalysis summarizes how well known a user is and what to ask
// next.
type ProfileAnalysis struct {
	Completeness    float64
	MissingInfo     []Category
	NextQuestions   []string
	ProfileSummary  string
	Recommendations []string
}

func AnalyzeProfile(ctx Context) ProfileAnalysis {
	return ProfileAnalysis{
		Completeness:    CompletenessScore(ctx),
		MissingInfo:     MissingCategories(ctx),
		NextQuestions:   NextQuestions(ctx),
		ProfileSummary:  ProfileSummary(ctx),
		Recommendations: Recommendations(ctx),
	}
}

// CompletenessScore rates the profile in [0,1]. Each category
// contributes a weighted share based on which of its signals are
// present; lifestyle facts never come from extraction, so an
// extraction-only profile tops out at 0.8.
func CompletenessScore(ctx Context) float64 {
	var total, filled float64

	for category, weight := range completenessWeights {
		total += weight
		facts := ctx[category]

		switch category {
		case CategoryPersonalInfo:
			if ctx.has(category, "name") || ctx.has(category, "age") {
				filled += weight * 0.5
			}
			if ctx.has(category, "name") && ctx.has(category, "age") {
				filled += weight * 0.5
			}
		case CategoryHealthInfo:
			if ctx.has(category, "skin_type") || ctx.has(category, "pregnancy_status") {
				filled += weight * 0.7
			}
			if ctx.has(category, "allergies") {
				filled += weight * 0.3
			}
		case CategoryPreferences:
			if hasProductPreference(facts) {
				filled += weight * 0.6
			}
			if ctx.has(category, "budget_range") {
				filled += weight * 0.4
			}
		case CategoryLifestyle:
			if len(facts) > 0 {
				filled += weight * min(float64(len(facts))*0.3, 1.0)
			}
		}
	}

	if total == 0 {
		return 0
	}
	return min(filled/total, 1.0)
}

func hasProductPreference(facts map[string]FactView) bool {
	for k := range facts {
		if strings.HasPrefix(k, "product_") {
			return true
		}
	}
	return false
}

// MissingCategories lists the categories whose core signals are still
// unknown, in discovery priority order.
func MissingCategories(ctx Context) []Category {
	var missing []Category
	for _, category := range discoveryPriority {
		switch category {
		case CategoryPersonalInfo:
			if !ctx.has(category, "name") && !ctx.has(category, "age") {
				missing = append(missing, category)
			}
		case CategoryHealthInfo:
			if !ctx.has(category, "skin_type") && !ctx.has(category, "pregnancy_status") {
				missing = append(missing, category)
			}
		case CategoryPreferences:
			if !hasProductPreference(ctx[category]) {
				missing = append(missing, category)
			}
		case CategoryLifestyle:
			if len(ctx[category]) == 0 {
				missing = append(missing, category)
			}
		}
	}
	return missing
}

// NextQuestions suggests up to two questions targeting the highest
// priority gaps.
func NextQuestions(ctx Context) []string {
	missing := MissingCategories(ctx)
	var out []string
	for i, category := range missing {
		if i >= 2 {
			break
		}
		if qs := discoveryQuestions[category]; len(qs) > 0 {
			out = append(out, qs[0])
		}
	}
	return out
}

// NextQuestion picks the first unanswered question, optionally scoped
// to a category. Returns "" when the profile needs nothing more.
func NextQuestion(ctx Context, category Category) string {
	missing := MissingCategories(ctx)
	if len(missing) == 0 {
		return ""
	}

	var target Category
	for _, m := range missing {
		if category != "" && m == category {
			target = m
			break
		}
	}
	if target == "" {
		target = missing[0]
	}

	if qs := discoveryQuestions[target]; len(qs) > 0 {
		return qs[0]
	}
	return ""
}

// ShouldContinueDiscovery reports whether the profile is still below
// the "good" tier.
func ShouldContinueDiscovery(ctx Context) bool {
	return CompletenessScore(ctx) < GoodThreshold
}

func DetermineNextAction(completeness float64) string {
	switch {
	case completeness < BasicThreshold:
		return ActionContinueDiscovery
	case completeness < GoodThreshold:
		return ActionTargetedQuestions
	case completeness < ExcellentThreshold:
		return ActionOptionalDiscovery
	default:
		return ActionReadyForConsultation
	}
}

// ProfileSummary renders the known profile as a short Vietnamese
// sentence for prompt injection.
func ProfileSummary(ctx Context) string {
	var parts []string

	if v, ok := ctx.get(CategoryPersonalInfo, "name"); ok {
		parts = append(parts, fmt.Sprintf("Tên: %v", v.Value))
	}
	if v, ok := ctx.get(CategoryPersonalInfo, "age"); ok {
		parts = append(parts, fmt.Sprintf("Tuổi: %v", v.Value))
	}
	if v, ok := ctx.get(CategoryHealthInfo, "skin_type"); ok {
		parts = append(parts, fmt.Sprintf("Loại da: %v", v.Value))
	}
	if _, ok := ctx.get(CategoryHealthInfo, "pregnancy_status"); ok {
		parts = append(parts, "Đang mang thai")
	}
	if v, ok := ctx.get(CategoryPreferences, "budget_range"); ok {
		parts = append(parts, fmt.Sprintf("Ngân sách: %v", v.Value))
	}

	if len(parts) == 0 {
		return "Chưa có thông tin"
	}
	return strings.Join(parts, "; ")
}

// Recommendations derives product guidance from health and budget
// facts.
func Recommendations(ctx Context) []string {
	var out []string

	if v, ok := ctx.get(CategoryHealthInfo, "skin_type"); ok {
		switch v.Value {
		case "dry":
			out = append(out, "Nên sử dụng kem dưỡng ẩm và serum hyaluronic acid")
		case "oily":
			out = append(out, "Nên sử dụng sản phẩm kiểm soát dầu và BHA")
		case "sensitive":
			out = append(out, "Nên chọn sản phẩm không mùi, không cồn")
		}
	}

	if v, ok := ctx.get(CategoryHealthInfo, "pregnancy_status"); ok {
		if pregnant, _ := v.Value.(bool); pregnant {
			out = append(out, "Tránh retinol, salicylic acid và các thành phần không an toàn cho thai kỳ")
		}
	}

	if v, ok := ctx.get(CategoryPreferences, "budget_range"); ok {
		if budget, isNum := v.Value.(float64); isNum && budget < 500000 {
			out = append(out, "Có nhiều sản phẩm chất lượng trong tầm giá của bạn")
		}
	}

	return out
}

// ResponseQuality is a rough read on how forthcoming a discovery
// answer was.
type ResponseQuality struct {
	Length          int
	HasSpecificInfo bool
	EngagementLevel string
}

func AnalyzeResponseQuality(message string) ResponseQuality {
	q := ResponseQuality{
		Length:          len(message),
		HasSpecificInfo: strings.ContainsAny(message, "0123456789"),
	}
	switch {
	case len(message) > 50:
		q.EngagementLevel = "high"
	case len(message) > 20:
		q.EngagementLevel = "medium"
	default:
		q.EngagementLevel = "low"
	}
	return q
}
