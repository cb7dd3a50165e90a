package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/catalog"
	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/rbac"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

const (
	msgConnection    = "Error de conexión"
	msgReviewSaved   = "¡Gracias por tu reseña!"
	msgReviewsFailed = "No se pudieron cargar las reseñas."
)

type catalogView struct {
	Pager            catalog.Pager
	Carousel         []domain.Product
	Grid             []domain.Product
	CarouselInterval time.Duration
	Empty            bool
}

type productView struct {
	Product   domain.Product
	CanReview bool
}

type reviewsView struct {
	ProductID string
	Items     []domain.Review
	Average   float64
	Error     string
	CanReview bool
}

// Home renders the storefront: catalog, cart and auth state. The catalog fragment alone is
// returned when htmx targets it.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	pager := catalog.ParsePager(r.URL.Query())

	if dev.state.Authenticated() && !IsHTMXRequest(ctx) {
		if err := s.controller.Probe(ctx, dev.state, dev.api); err != nil {
			requestctx.Logger(ctx).Debug("session probe failed", zap.Error(err))
		}
	}

	var (
		page  domain.Page
		carts *cartView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page = s.catalog.FetchPage(gctx, pager.Page, s.cfg.PageSize, pager.Search)
		return nil
	})
	g.Go(func() error {
		carts = s.loadCart(gctx, dev)
		return nil
	})
	if err := g.Wait(); err != nil {
		requestctx.Logger(ctx).Error("load storefront", zap.Error(err))
	}

	if pager.Page > page.Pages {
		// Out of range (stale link or edited URL): show the last page instead of an empty one.
		pager.SetTotal(page.Pages)
		page = s.catalog.FetchPage(ctx, pager.Page, s.cfg.PageSize, pager.Search)
	}
	pager.SetTotal(page.Pages)
	view := catalog.BuildView(page.Items, catalog.ViewOptions{
		CarouselSize:   s.cfg.CarouselSize,
		Sort:           pager.Sort,
		OnlyDiscounted: pager.OnlyDiscounted,
	})

	data := s.newPageData(r, "BloomCare")
	data.Catalog = &catalogView{
		Pager:            pager,
		Carousel:         view.Carousel,
		Grid:             view.Grid,
		CarouselInterval: s.cfg.CarouselInterval,
		Empty:            len(page.Items) == 0,
	}
	data.Cart = carts

	if IsHTMXRequest(ctx) && HTMXInfoFromContext(ctx).Target == "catalog" {
		w.Header().Set("HX-Push-Url", pager.URL(pager.Page))
		s.render(w, r, http.StatusOK, "catalog", data)
		return
	}
	s.render(w, r, http.StatusOK, "home", data)
}

// ProductDetail renders the discount detail modal for a product the storefront has shown.
func (s *Server) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.catalog.Product(id)
	if errors.Is(err, catalog.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	dev := deviceFromContext(r.Context())
	data := s.newPageData(r, p.Name)
	data.Product = &productView{
		Product:   p,
		CanReview: s.caps(dev).Can(rbac.CapReviewsWrite),
	}
	s.render(w, r, http.StatusOK, "product_modal", data)
}

// ProductReviews renders the review list of a product.
func (s *Server) ProductReviews(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "Reseñas")
	data.Reviews = s.loadReviews(r, chi.URLParam(r, "id"))
	s.render(w, r, http.StatusOK, "reviews", data)
}

// SubmitReview posts a review as the signed-in user and re-renders the list.
func (s *Server) SubmitReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	productID := chi.URLParam(r, "id")
	if !s.caps(dev).Can(rbac.CapReviewsWrite) {
		toast(w, r, msgLoginFirst)
		redirect(w, r, "/")
		return
	}

	rating, _ := strconv.Atoi(r.FormValue("rating"))
	in := domain.ReviewInput{Rating: rating, Comment: r.FormValue("comment")}
	data := s.newPageData(r, "Reseñas")
	data.Form["rating"] = r.FormValue("rating")
	data.Form["comment"] = in.Comment

	if err := in.Validate(); err != nil {
		data.Errors = fieldErrors(err)
	} else {
		user := dev.state.User()
		review := domain.Review{
			ProductID: productID,
			Author:    user.Name,
			Rating:    in.Rating,
			Comment:   strings.TrimSpace(in.Comment),
			CreatedAt: time.Now().UTC(),
		}
		if err := dev.api.SubmitReview(ctx, review); err != nil {
			requestctx.Logger(ctx).Warn("submit review failed", zap.String("product_id", productID), zap.Error(err))
			data.Errors = domain.FieldErrors{"form": userMessage(err, "No se pudo guardar la reseña.")}
		} else {
			data.Form = map[string]string{}
			toast(w, r, msgReviewSaved)
		}
	}
	data.Reviews = s.loadReviews(r, productID)
	if !IsHTMXRequest(ctx) {
		redirect(w, r, "/")
		return
	}
	s.render(w, r, http.StatusOK, "reviews", data)
}

func (s *Server) loadReviews(r *http.Request, productID string) *reviewsView {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	view := &reviewsView{
		ProductID: productID,
		CanReview: s.caps(dev).Can(rbac.CapReviewsWrite),
	}
	items, err := s.backend.Reviews(ctx, productID)
	if err != nil {
		requestctx.Logger(ctx).Warn("load reviews failed", zap.String("product_id", productID), zap.Error(err))
		view.Error = msgReviewsFailed
		return view
	}
	view.Items = items
	if len(items) > 0 {
		sum := 0
		for _, rv := range items {
			sum += rv.Rating
		}
		view.Average = float64(sum) / float64(len(items))
	}
	return view
}

// userMessage maps an error to the text shown to the user.
func userMessage(err error, fallback string) string {
	if errors.Is(err, backend.ErrConnection) || errors.Is(err, backend.ErrNotConfigured) {
		return msgConnection
	}
	return backend.Message(err, fallback)
}

func fieldErrors(err error) domain.FieldErrors {
	var fe domain.FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return domain.FieldErrors{"form": err.Error()}
}
