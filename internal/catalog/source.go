package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"finitefield.org/bloomcare-web/internal/domain"
)

// Source lists products a page at a time.
type Source interface {
	ListProducts(ctx context.Context, q domain.ProductQuery) (domain.Page, error)
}

// StaticSource serves a fixed product list held in memory.
type StaticSource struct {
	products []domain.Product
}

type staticFile struct {
	Products []staticProduct `yaml:"products"`
}

type staticProduct struct {
	ID       any     `yaml:"id"`
	Name     string  `yaml:"name"`
	Desc     string  `yaml:"desc"`
	Price    float64 `yaml:"price"`
	Image    string  `yaml:"image"`
	Discount float64 `yaml:"discount"`
}

// NewStaticSource wraps products. The slice is copied.
func NewStaticSource(products []domain.Product) *StaticSource {
	out := make([]domain.Product, len(products))
	copy(out, products)
	return &StaticSource{products: out}
}

// LoadStaticFile reads a YAML catalog. A file holding legacy records (numeric ids) is
// replaced by DefaultProducts.
func LoadStaticFile(path string, newID func() string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	products, err := ParseStatic(data, newID)
	if errors.Is(err, domain.ErrLegacyRecord) {
		return NewStaticSource(DefaultProducts(newID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return NewStaticSource(products), nil
}

// ParseStatic decodes a YAML catalog. Records without an id get one from newID.
func ParseStatic(data []byte, newID func() string) ([]domain.Product, error) {
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	var file staticFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(file.Products))
	for i, sp := range file.Products {
		var id string
		switch v := sp.ID.(type) {
		case nil:
			id = newID()
		case string:
			id = strings.TrimSpace(v)
			if id == "" {
				id = newID()
			}
		default:
			return nil, fmt.Errorf("record %d: %w", i, domain.ErrLegacyRecord)
		}
		if strings.TrimSpace(sp.Name) == "" {
			return nil, fmt.Errorf("record %d: %w", i, &domain.ShapeError{Kind: "product", Field: "name", Cause: "missing"})
		}
		if sp.Price < 0 {
			return nil, fmt.Errorf("record %d: %w", i, &domain.ShapeError{Kind: "product", Field: "price", Cause: "negative"})
		}
		if sp.Discount < 0 || sp.Discount > 100 {
			return nil, fmt.Errorf("record %d: %w", i, &domain.ShapeError{Kind: "product", Field: "discount", Cause: "outside 0..100"})
		}
		out = append(out, domain.Product{
			ID:          id,
			Name:        sp.Name,
			Description: sp.Desc,
			Price:       decimal.NewFromFloat(sp.Price),
			Image:       sp.Image,
			Discount:    decimal.NewFromFloat(sp.Discount),
		})
	}
	return out, nil
}

// DefaultProducts is the catalog seeded when nothing else is available.
func DefaultProducts(newID func() string) []domain.Product {
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	price := decimal.NewFromInt(1000)
	return []domain.Product{
		{ID: newID(), Name: "Compresas Suaves", Price: price, Description: "Paquete de 20 compresas ultra suaves.",
			Image: "https://images.unsplash.com/photo-1592928306923-7a1b9b2fec1b?auto=format&fit=crop&w=800&q=60"},
		{ID: newID(), Name: "Protectores Diarios", Price: price, Description: "Protectores discretos para el día a día.",
			Image: "https://images.unsplash.com/photo-1542831371-d531d36971e6?auto=format&fit=crop&w=800&q=60"},
		{ID: newID(), Name: "Copas Menstruales", Price: price, Description: "Reutilizable, ecológica y cómoda.",
			Image: "https://images.unsplash.com/photo-1603575448362-7b6d2d7f9d76?auto=format&fit=crop&w=800&q=60"},
		{ID: newID(), Name: "Toallitas Íntimas", Price: price, Description: "Frescor y cuidado íntimo.",
			Image: "https://images.unsplash.com/photo-1522335789203-aabd1fc54bc9?auto=format&fit=crop&w=800&q=60"},
	}
}

// ListProducts pages through the static list, matching the backend's paging arithmetic.
func (s *StaticSource) ListProducts(_ context.Context, q domain.ProductQuery) (domain.Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 3
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if term == "" || strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Description), term) {
			matched = append(matched, p)
		}
	}

	total := len(matched)
	pages := (total + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}
	var items []domain.Product
	hasNext := false
	// Past the last page nothing is sliced, so huge page numbers never reach the multiplication.
	if page <= pages {
		skip := (page - 1) * limit
		end := min(skip+limit, total)
		items = append(items, matched[skip:end]...)
		hasNext = end < total
	}
	return domain.Page{
		Items:   items,
		Total:   total,
		Page:    page,
		Pages:   pages,
		HasNext: hasNext,
		HasPrev: page > 1,
	}, nil
}
