package services

import (
	"testing"

	"github.com/moshaveran/moshaver-backend/internal/types"
)

func TestKeywordClassifier(t *testing.T) {
	classify := KeywordClassifier()

	cases := []struct {
		name string
		text string
		want types.Category
	}{
		{
			name: "finance_persian",
			text: "چطور بودجه سال آینده را برنامه‌ریزی کنم؟",
			want: types.CategoryFinance,
		},
		{
			name: "finance_english_case_insensitive",
			text: "How should I plan my BUDGET for next year?",
			want: types.CategoryFinance,
		},
		{
			name: "marketing_persian",
			text: "بهترین روش تبلیغ در اینستاگرام چیست؟",
			want: types.CategoryMarketing,
		},
		{
			name: "sales_persian",
			text: "چطور در مذاکره فروش موفق باشم؟",
			want: types.CategorySales,
		},
		{
			name: "hr_persian",
			text: "برای استخدام برنامه‌نویس چه کنم؟",
			want: types.CategoryHR,
		},
		{
			name: "product_english",
			text: "what should go into our product roadmap",
			want: types.CategoryProductManagement,
		},
		{
			name: "no_match_is_general",
			text: "سلام، حال شما چطور است؟",
			want: types.CategoryGeneral,
		},
		{
			name: "empty_is_general",
			text: "",
			want: types.CategoryGeneral,
		},
		{
			// "سود" (finance) and "فروش" (sales) both present; finance
			// is checked first.
			name: "priority_order_finance_over_sales",
			text: "افزایش سود از طریق فروش بیشتر",
			want: types.CategoryFinance,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.text)
			if got != tc.want {
				t.Fatalf("classify(%q)=%q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestKeywordClassifierDeterministic(t *testing.T) {
	classify := KeywordClassifier()
	text := "مشکل بازاریابی و برند ما چیست؟"
	first := classify(text)
	for i := 0; i < 50; i++ {
		if got := classify(text); got != first {
			t.Fatalf("classification changed between calls: %q vs %q", first, got)
		}
	}
}
