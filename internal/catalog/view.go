package catalog

import (
	"sort"
	"time"

	"finitefield.org/bloomcare-web/internal/domain"
)

// ViewOptions controls how a fetched batch is split.
type ViewOptions struct {
	CarouselSize   int
	Sort           SortOrder
	OnlyDiscounted bool
}

// View is the rendered split of one batch into carousel and grid. The two never share a product.
type View struct {
	Carousel         []domain.Product
	Grid             []domain.Product
	CarouselInterval time.Duration
}

// BuildView puts the CarouselSize most expensive products in the carousel and the rest,
// filtered and sorted by final price, in the grid.
func BuildView(items []domain.Product, opts ViewOptions) View {
	n := opts.CarouselSize
	if n < 0 {
		n = 0
	}
	if n > len(items) {
		n = len(items)
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Price.GreaterThan(items[order[b]].Price)
	})

	inCarousel := make(map[int]bool, n)
	view := View{Carousel: make([]domain.Product, 0, n)}
	for _, idx := range order[:n] {
		inCarousel[idx] = true
		view.Carousel = append(view.Carousel, items[idx])
	}

	view.Grid = make([]domain.Product, 0, len(items)-n)
	for i, p := range items {
		if inCarousel[i] {
			continue
		}
		if opts.OnlyDiscounted && !p.Discounted() {
			continue
		}
		view.Grid = append(view.Grid, p)
	}

	switch opts.Sort {
	case SortAsc:
		sort.SliceStable(view.Grid, func(a, b int) bool {
			return view.Grid[a].FinalPrice().LessThan(view.Grid[b].FinalPrice())
		})
	case SortDesc:
		sort.SliceStable(view.Grid, func(a, b int) bool {
			return view.Grid[a].FinalPrice().GreaterThan(view.Grid[b].FinalPrice())
		})
	}
	return view
}
