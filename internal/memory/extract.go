package memory

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extractor proposes fact candidates from a piece of conversation
// text. Extractors are deterministic and never fail; an extractor that
// finds nothing returns an empty slice.
type Extractor interface {
	Extract(text string) []Candidate
}

func defaultExtractors() []Extractor {
	return []Extractor{
		personalInfoExtractor{},
		preferencesExtractor{},
		healthInfoExtractor{},
	}
}

type personalInfoExtractor struct{}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)tên (?:tôi là|của tôi là|mình là) ([A-Za-zÀ-ỹ\s]+)`),
	regexp.MustCompile(`(?i)mình là ([A-Za-zÀ-ỹ\s]+)`),
	regexp.MustCompile(`(?i)tôi là ([A-Za-zÀ-ỹ\s]+)`),
	regexp.MustCompile(`(?i)em tên ([A-Za-zÀ-ỹ\s]+)`),
}

var (
	agePattern       = regexp.MustCompile(`(?i)(?:tuổi|năm nay) (\d{1,2})`)
	ageSuffixPattern = regexp.MustCompile(`(?i)(\d{1,2}) tuổi`)
	birthYearPattern = regexp.MustCompile(`(?i)sinh năm (\d{4})`)
	phonePattern     = regexp.MustCompile(`(?i)(?:số điện thoại|sdt|phone) (?:là )?(\d{10,11})`)
	barePhonePattern = regexp.MustCompile(`(\d{10,11})`)
)

func (personalInfoExtractor) Extract(text string) []Candidate {
	var out []Candidate

	for _, p := range namePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if len(name) > 1 && len(name) < 50 {
			out = append(out, Candidate{
				Category:   CategoryPersonalInfo,
				Key:        "name",
				Value:      name,
				Confidence: 0.9,
			})
			break
		}
	}

	if m := agePattern.FindStringSubmatch(text); m != nil {
		if age, ok := validAge(m[1]); ok {
			out = append(out, ageCandidate(age, 0.9))
		}
	} else if m := ageSuffixPattern.FindStringSubmatch(text); m != nil {
		if age, ok := validAge(m[1]); ok {
			out = append(out, ageCandidate(age, 0.9))
		}
	} else if m := birthYearPattern.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		if age, ok := validAgeInt(time.Now().Year() - year); ok {
			out = append(out, ageCandidate(age, 0.8))
		}
	}

	for _, pattern := range []*regexp.Regexp{phonePattern, barePhonePattern} {
		found := false
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			phone := m[1]
			if strings.HasPrefix(phone, "0") || strings.HasPrefix(phone, "84") {
				out = append(out, Candidate{
					Category:   CategoryPersonalInfo,
					Key:        "phone",
					Value:      phone,
					Confidence: 0.8,
				})
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	return out
}

func ageCandidate(age int, confidence float64) Candidate {
	return Candidate{
		Category:   CategoryPersonalInfo,
		Key:        "age",
		Value:      age,
		Confidence: confidence,
	}
}

func validAge(s string) (int, bool) {
	age, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return validAgeInt(age)
}

func validAgeInt(age int) (int, bool) {
	if age < 10 || age > 100 {
		return 0, false
	}
	return age, true
}

type preferencesExtractor struct{}

var productKeywords = map[string][]string{
	"skincare":  {"kem dưỡng", "serum", "toner", "cleanser", "chăm sóc da"},
	"makeup":    {"son", "phấn", "mascara", "foundation", "trang điểm"},
	"haircare":  {"dầu gội", "dầu xả", "chăm sóc tóc"},
	"fragrance": {"nước hoa", "perfume"},
}

var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ngân sách (?:khoảng )?(\d+)`),
	regexp.MustCompile(`(?i)(\d+)k?(?:\s*đồng|\s*vnđ|\s*vnd)`),
	regexp.MustCompile(`(?i)dưới (\d+)`),
}

func (preferencesExtractor) Extract(text string) []Candidate {
	var out []Candidate
	lower := strings.ToLower(text)

	for group, keywords := range productKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, Candidate{
					Category:   CategoryPreferences,
					Key:        "product_" + group,
					Value:      true,
					Confidence: 0.7,
				})
				break
			}
		}
	}

	for _, p := range budgetPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		budget, err := strconv.Atoi(m[1])
		if err != nil || budget <= 1000 {
			continue
		}
		out = append(out, Candidate{
			Category:   CategoryPreferences,
			Key:        "budget_range",
			Value:      budget,
			Confidence: 0.8,
		})
		break
	}

	return out
}

type healthInfoExtractor struct{}

var pregnancyKeywords = []string{"có thai", "mang thai", "bầu bí", "thai kỳ", "em bé"}

var allergyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)dị ứng (?:với )?([A-Za-zÀ-ỹ\s]+)`),
	regexp.MustCompile(`(?i)bị dị ứng ([A-Za-zÀ-ỹ\s]+)`),
	regexp.MustCompile(`(?i)không dùng được ([A-Za-zÀ-ỹ\s]+)`),
}

var skinTypes = []struct {
	Vietnamese string
	Normalized string
}{
	{"da khô", "dry"},
	{"da dầu", "oily"},
	{"da hỗn hợp", "combination"},
	{"da nhạy cảm", "sensitive"},
	{"da thường", "normal"},
}

func (healthInfoExtractor) Extract(text string) []Candidate {
	var out []Candidate
	lower := strings.ToLower(text)

	for _, kw := range pregnancyKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, Candidate{
				Category:          CategoryHealthInfo,
				Key:               "pregnancy_status",
				Value:             true,
				Confidence:        0.9,
				NeedsConfirmation: true,
			})
			break
		}
	}

	var allergies []string
	for _, p := range allergyPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			allergies = append(allergies, strings.TrimSpace(m[1]))
		}
	}
	if len(allergies) > 0 {
		out = append(out, Candidate{
			Category:          CategoryHealthInfo,
			Key:               "allergies",
			Value:             allergies,
			Confidence:        0.9,
			NeedsConfirmation: true,
		})
	}

	for _, st := range skinTypes {
		if strings.Contains(lower, st.Vietnamese) {
			out = append(out, Candidate{
				Category:          CategoryHealthInfo,
				Key:               "skin_type",
				Value:             st.Normalized,
				Confidence:        0.8,
				NeedsConfirmation: true,
			})
			break
		}
	}

	return out
}
