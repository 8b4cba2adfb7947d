package services

import (
	"strings"

	"github.com/moshaveran/moshaver-backend/internal/types"
)

// Classifier maps a question to a consulting category. It is a plain
// function type so the keyword heuristic can be swapped for a smarter model
// without touching callers.
type Classifier func(text string) types.Category

// categoryKeywords are checked in a fixed priority order; the first category
// with a substring hit wins. Keywords cover both Persian and English since
// users mix the two.
var categoryOrder = []types.Category{
	types.CategoryFinance,
	types.CategoryMarketing,
	types.CategorySales,
	types.CategoryHR,
	types.CategoryProductManagement,
}

var categoryKeywords = map[types.Category][]string{
	types.CategoryFinance: {
		"مالی", "سرمایه", "بودجه", "حسابداری", "هزینه", "سود", "وام", "مالیات",
		"finance", "budget", "investment", "accounting", "profit", "loan", "tax",
	},
	types.CategoryMarketing: {
		"بازاریابی", "تبلیغ", "برند", "کمپین", "مشتری", "دیجیتال مارکتینگ",
		"marketing", "advertis", "brand", "campaign", "seo",
	},
	types.CategorySales: {
		"فروش", "قیمت گذاری", "قیمت‌گذاری", "مذاکره", "قرارداد",
		"sales", "sell", "pricing", "negotiat", "deal",
	},
	types.CategoryHR: {
		"استخدام", "منابع انسانی", "کارمند", "پرسنل", "حقوق و دستمزد", "مصاحبه",
		"hiring", "recruit", "employee", "hr ", "payroll", "interview",
	},
	types.CategoryProductManagement: {
		"محصول", "توسعه محصول", "نقشه راه", "ویژگی", "کاربر",
		"product", "roadmap", "feature", "mvp", "backlog",
	},
}

// KeywordClassifier returns the default case-insensitive substring
// classifier. Deterministic, no I/O, always returns a category.
func KeywordClassifier() Classifier {
	return func(text string) types.Category {
		lowered := strings.ToLower(text)
		for _, category := range categoryOrder {
			for _, keyword := range categoryKeywords[category] {
				if strings.Contains(lowered, keyword) {
					return category
				}
			}
		}
		return types.CategoryGeneral
	}
}
