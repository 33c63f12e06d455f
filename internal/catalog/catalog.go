// Package catalog загружает шаблоны этапов взыскания из YAML.
//
// Формат файла:
//
//	version: 1
//	templates:
//	  - reference: "1"
//	    label: Eerste aanmaning
//	    kind: first_collection   # необязательно: ordinary | first_collection | final
//	    price: "9.50"
//	    needs_notification: true
//	    owner_performable: false
//	    actions:
//	      - type: debtor_notice
//	        condition: perform     # по умолчанию perform
//	        delay_days: 0
//	        document: eerste_aanmaning
//	    next:
//	      - reference: "2"
//	        after_days: 14
//
// Если kind не указан, он определяется по ссылке ("1" — первое
// взыскание, "6" — финальный этап). Цены и суммы задаются строками,
// чтобы не терять точность.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Collector/internal/domain"
)

//go:embed default.yaml
var defaultYAML []byte

// Ошибки каталога.
var (
	// ErrTemplateNotFound — шаблон с такой ссылкой отсутствует.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidCatalog — файл каталога нарушает правила.
	ErrInvalidCatalog = errors.New("invalid template catalog")
)

// fileConfig — структура YAML-файла каталога.
type fileConfig struct {
	Version   int            `yaml:"version"`
	Templates []templateYAML `yaml:"templates"`
}

type templateYAML struct {
	Reference         string          `yaml:"reference"`
	Label             string          `yaml:"label"`
	Kind              string          `yaml:"kind,omitempty"`
	Price             string          `yaml:"price,omitempty"`
	NeedsNotification bool            `yaml:"needs_notification"`
	OwnerPerformable  bool            `yaml:"owner_performable"`
	Actions           []actionYAML    `yaml:"actions,omitempty"`
	Next              []successorYAML `yaml:"next,omitempty"`
}

type actionYAML struct {
	Type      string `yaml:"type"`
	Condition string `yaml:"condition,omitempty"`
	DelayDays int    `yaml:"delay_days,omitempty"`
	Document  string `yaml:"document,omitempty"`
	Amount    string `yaml:"amount,omitempty"`
}

type successorYAML struct {
	Reference string `yaml:"reference"`
	AfterDays int    `yaml:"after_days"`
}

// Catalog — неизменяемый набор шаблонов, индексированный по ссылке.
// Безопасен для конкурентного чтения.
type Catalog struct {
	templates map[string]*domain.WorkflowTemplate
	order     []string
}

// Default возвращает встроенный стандартный каталог.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load читает каталог из файла. Пустой путь — встроенный каталог.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse разбирает и проверяет каталог.
func Parse(data []byte) (*Catalog, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version != 1 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidCatalog, cfg.Version)
	}

	c := &Catalog{templates: make(map[string]*domain.WorkflowTemplate, len(cfg.Templates))}
	for i := range cfg.Templates {
		tpl, err := cfg.Templates[i].toDomain()
		if err != nil {
			return nil, err
		}
		if _, dup := c.templates[tpl.Reference]; dup {
			return nil, fmt.Errorf("%w: duplicate reference %q", ErrInvalidCatalog, tpl.Reference)
		}
		c.templates[tpl.Reference] = tpl
		c.order = append(c.order, tpl.Reference)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Template возвращает шаблон по ссылке.
func (c *Catalog) Template(ref string) (*domain.WorkflowTemplate, error) {
	tpl, ok := c.templates[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, ref)
	}
	return tpl, nil
}

// NextSteps возвращает шаблоны-преемники этапа ref.
func (c *Catalog) NextSteps(ref string) ([]*domain.WorkflowTemplate, error) {
	tpl, err := c.Template(ref)
	if err != nil {
		return nil, err
	}
	next := make([]*domain.WorkflowTemplate, 0, len(tpl.Next))
	for _, s := range tpl.Next {
		n, err := c.Template(s.Reference)
		if err != nil {
			return nil, err
		}
		next = append(next, n)
	}
	return next, nil
}

// All возвращает шаблоны в порядке объявления.
func (c *Catalog) All() []*domain.WorkflowTemplate {
	all := make([]*domain.WorkflowTemplate, 0, len(c.order))
	for _, ref := range c.order {
		all = append(all, c.templates[ref])
	}
	return all
}

// Roots возвращает ссылки этапов, которые не являются чьими-либо преемниками.
// С них начинается взыскание по делу.
func (c *Catalog) Roots() []string {
	successors := make(map[string]bool)
	for _, tpl := range c.templates {
		for _, s := range tpl.Next {
			successors[s.Reference] = true
		}
	}
	var roots []string
	for _, ref := range c.order {
		if !successors[ref] {
			roots = append(roots, ref)
		}
	}
	sort.Strings(roots)
	return roots
}

// validate проверяет ссылки на преемников и смещения.
func (c *Catalog) validate() error {
	for _, ref := range c.order {
		tpl := c.templates[ref]
		for _, s := range tpl.Next {
			if s.AfterDays < 0 {
				return fmt.Errorf("%w: template %q: successor %q has negative offset %d",
					ErrInvalidCatalog, ref, s.Reference, s.AfterDays)
			}
			if _, ok := c.templates[s.Reference]; !ok {
				return fmt.Errorf("%w: template %q: unknown successor %q",
					ErrInvalidCatalog, ref, s.Reference)
			}
		}
	}
	return nil
}

func (t *templateYAML) toDomain() (*domain.WorkflowTemplate, error) {
	if t.Reference == "" {
		return nil, fmt.Errorf("%w: template without reference", ErrInvalidCatalog)
	}

	kind := domain.KindForReference(t.Reference)
	if t.Kind != "" {
		k, err := domain.ParseStepKind(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: template %q: %v", ErrInvalidCatalog, t.Reference, err)
		}
		kind = k
	}

	price, err := parseMoney(t.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: template %q: price: %v", ErrInvalidCatalog, t.Reference, err)
	}

	tpl := &domain.WorkflowTemplate{
		Reference:         t.Reference,
		Label:             t.Label,
		Kind:              kind,
		Price:             price,
		NeedsNotification: t.NeedsNotification,
		OwnerPerformable:  t.OwnerPerformable,
	}

	for i, a := range t.Actions {
		if a.Type == "" {
			return nil, fmt.Errorf("%w: template %q: action %d without type", ErrInvalidCatalog, t.Reference, i)
		}
		if a.DelayDays < 0 {
			return nil, fmt.Errorf("%w: template %q: action %s has negative delay", ErrInvalidCatalog, t.Reference, a.Type)
		}
		amount, err := parseMoney(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: template %q: action %s amount: %v", ErrInvalidCatalog, t.Reference, a.Type, err)
		}
		condition := a.Condition
		if condition == "" {
			condition = domain.ConditionPerform
		}
		tpl.Actions = append(tpl.Actions, domain.ActionTemplate{
			Type:      a.Type,
			Condition: condition,
			DelayDays: a.DelayDays,
			Document:  a.Document,
			Amount:    amount,
		})
	}

	for _, s := range t.Next {
		tpl.Next = append(tpl.Next, domain.Successor{Reference: s.Reference, AfterDays: s.AfterDays})
	}

	return tpl, nil
}

// parseMoney разбирает сумму; пустая строка — ноль.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %s", s)
	}
	return d, nil
}
