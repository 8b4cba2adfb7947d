package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/moshaveran/moshaver-backend/internal/logger"
)

// Expert is one consulting persona the frontend can select. Instructions
// are appended to the base system prompt verbatim.
type Expert struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Title        string `yaml:"title" json:"title"`
	Instructions string `yaml:"instructions" json:"-"`
}

type ExpertRegistry struct {
	log     *logger.Logger
	ordered []Expert
	byID    map[string]Expert
}

func defaultExperts() []Expert {
	return []Expert{
		{
			ID:           "finance",
			Name:         "دکتر سارا محمدی",
			Title:        "مشاور مالی و سرمایه‌گذاری",
			Instructions: "شما یک مشاور مالی باتجربه هستید. روی بودجه‌بندی، جریان نقدی، تامین مالی و مدیریت هزینه تمرکز کنید و پیشنهادهای عملی با اعداد مشخص بدهید.",
		},
		{
			ID:           "marketing",
			Name:         "مهندس علی رضایی",
			Title:        "مشاور بازاریابی دیجیتال",
			Instructions: "شما یک متخصص بازاریابی هستید. روی برندسازی، کمپین‌های دیجیتال، شبکه‌های اجتماعی و جذب مشتری تمرکز کنید.",
		},
		{
			ID:           "sales",
			Name:         "مهندس رضا کریمی",
			Title:        "مشاور فروش و توسعه بازار",
			Instructions: "شما یک مشاور فروش هستید. روی قیمت‌گذاری، مذاکره، قیف فروش و افزایش نرخ تبدیل تمرکز کنید.",
		},
		{
			ID:           "hr",
			Name:         "دکتر مریم حسینی",
			Title:        "مشاور منابع انسانی",
			Instructions: "شما یک مشاور منابع انسانی هستید. روی استخدام، نگهداشت نیرو، فرهنگ سازمانی و ارزیابی عملکرد تمرکز کنید.",
		},
		{
			ID:           "product",
			Name:         "مهندس نیما احمدی",
			Title:        "مشاور مدیریت محصول",
			Instructions: "شما یک مدیر محصول باتجربه هستید. روی اولویت‌بندی ویژگی‌ها، نقشه راه محصول، تحقیق کاربر و MVP تمرکز کنید.",
		},
	}
}

// NewExpertRegistry builds the registry from the built-in personas, with an
// optional YAML override file (EXPERTS_CONFIG_PATH). A bad file keeps the
// defaults rather than failing startup.
func NewExpertRegistry(log *logger.Logger, configPath string) *ExpertRegistry {
	registry := &ExpertRegistry{
		log:  log.With("service", "ExpertRegistry"),
		byID: map[string]Expert{},
	}
	registry.replace(defaultExperts())

	if configPath == "" {
		return registry
	}
	experts, err := loadExpertsYAML(configPath)
	if err != nil {
		registry.log.Warn("Failed to load experts config, using defaults", "path", configPath, "error", err)
		return registry
	}
	registry.replace(experts)
	registry.log.Info("Loaded experts from config", "path", configPath, "count", len(experts))
	return registry
}

func loadExpertsYAML(path string) ([]Expert, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Experts []Expert `yaml:"experts"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Experts) == 0 {
		return nil, fmt.Errorf("no experts defined in %s", path)
	}
	for i, e := range doc.Experts {
		if e.ID == "" {
			return nil, fmt.Errorf("expert %d has no id", i)
		}
	}
	return doc.Experts, nil
}

func (r *ExpertRegistry) replace(experts []Expert) {
	r.ordered = experts
	r.byID = make(map[string]Expert, len(experts))
	for _, e := range experts {
		r.byID[e.ID] = e
	}
}

func (r *ExpertRegistry) Get(id string) (Expert, bool) {
	e, ok := r.byID[id]
	return e, ok
}

func (r *ExpertRegistry) List() []Expert {
	out := make([]Expert, len(r.ordered))
	copy(out, r.ordered)
	return out
}
