package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/rastalife/storefront/internal/domain/catalog"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f.Status = catalog.StatusPublished

	products, err := h.Products.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProducts(e, products)
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// Drafts are invisible to shoppers.
	if !p.Published() {
		h.fail(w, r, catalog.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, p)
	})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Categories.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range categories {
			encodeCategory(e, &categories[i])
		}
		e.ArrEnd()
	})
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Load(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("inside_dhaka_charge")
		encodeMoney(e, s.InsideCharge)
		e.FieldStart("outside_dhaka_charge")
		encodeMoney(e, s.OutsideCharge)
		e.FieldStart("fb_pixel_id")
		encodeNullStr(e, s.Pixel.ID)
		e.FieldStart("fb_pixel_active")
		e.Bool(s.Pixel.Active)
		e.ObjEnd()
	})
}

func productFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()
	f := catalog.Filter{
		Category:  strings.TrimSpace(q.Get("category")),
		Condition: strings.TrimSpace(q.Get("condition")),
		Search:    strings.TrimSpace(q.Get("search")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, badRequest("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

func (h *Handler) encodeProducts(e *jx.Encoder, products []catalog.Product) {
	e.ArrStart()
	for i := range products {
		h.encodeProduct(e, &products[i])
	}
	e.ArrEnd()
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("slug")
	e.Str(p.Slug)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("regular_price")
	encodeMoney(e, p.RegularPrice)
	e.FieldStart("sale_price")
	if p.SalePrice.Valid {
		encodeMoney(e, p.SalePrice.Decimal)
	} else {
		e.Null()
	}
	e.FieldStart("price")
	encodeMoney(e, p.UnitPrice())
	e.FieldStart("feature_image")
	e.Str(h.imageURL(p.FeatureImage))
	e.FieldStart("additional_images")
	e.ArrStart()
	for _, img := range p.AdditionalImages {
		e.Str(h.imageURL(img))
	}
	e.ArrEnd()
	e.FieldStart("sizes")
	encodeStrings(e, p.Sizes)
	e.FieldStart("colors")
	encodeStrings(e, p.Colors.Options)
	e.FieldStart("multiple_colors")
	e.Bool(p.Colors.Multiple)
	e.FieldStart("max_color_selection")
	e.Int(p.Colors.MaxSelection)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("conditions")
	encodeStrings(e, p.Conditions)
	e.FieldStart("stock")
	if p.Stock != nil {
		e.Int(*p.Stock)
	} else {
		e.Null()
	}
	e.FieldStart("offer_end_date")
	encodeNullTime(e, p.OfferEndDate)
	e.FieldStart("status")
	e.Str(string(p.Status))
	e.FieldStart("created_at")
	encodeTime(e, p.CreatedAt)
	e.FieldStart("updated_at")
	encodeTime(e, p.UpdatedAt)
	e.ObjEnd()
}

func encodeCategory(e *jx.Encoder, c *catalog.Category) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("slug")
	e.Str(c.Slug)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("created_at")
	encodeTime(e, c.CreatedAt)
	e.ObjEnd()
}

// decodeProduct reads an admin product payload into p. A missing slug is
// derived from the title.
func (h *Handler) decodeProduct(w http.ResponseWriter, r *http.Request, p *catalog.Product) error {
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "title":
			p.Title, err = d.Str()
		case "slug":
			p.Slug, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "regular_price":
			p.RegularPrice, err = decodeMoney(d)
		case "sale_price":
			p.SalePrice, err = decodeNullMoney(d)
		case "feature_image":
			p.FeatureImage, err = d.Str()
		case "additional_images":
			p.AdditionalImages, err = decodeStrings(d)
		case "sizes":
			p.Sizes, err = decodeStrings(d)
		case "colors":
			p.Colors.Options, err = decodeStrings(d)
		case "multiple_colors":
			p.Colors.Multiple, err = d.Bool()
		case "max_color_selection":
			p.Colors.MaxSelection, err = d.Int()
		case "category":
			p.Category, err = d.Str()
		case "conditions":
			p.Conditions, err = decodeStrings(d)
		case "stock":
			p.Stock, err = decodeNullInt(d)
		case "offer_end_date":
			p.OfferEndDate, err = decodeNullTime(d)
		case "status":
			var s string
			s, err = d.Str()
			p.Status = catalog.Status(s)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Slug == "" {
		p.Slug = catalog.Slugify(p.Title)
	}
	if p.Status == "" {
		p.Status = catalog.StatusDraft
	}
	if !p.Colors.Multiple {
		p.Colors.MaxSelection = 1
	}
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	return nil
}

func (h *Handler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if s := catalog.Status(r.URL.Query().Get("status")); s != "" {
		if !s.IsValid() {
			h.fail(w, r, badRequest("unknown status %q", s))
			return
		}
		f.Status = s
	}

	products, err := h.Products.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProducts(e, products)
	})
}

func (h *Handler) adminGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, p)
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := h.decodeProduct(w, r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Products.Create(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		h.encodeProduct(e, &p)
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.Products.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// Fields absent from the payload keep their stored values.
	if err := h.decodeProduct(w, r, p); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Products.Update(ctx, p); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodeProduct(e, p)
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeCategory(w http.ResponseWriter, r *http.Request, c *catalog.Category) error {
	err := h.readObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "slug":
			c.Slug, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return badRequest("name is required")
	}
	if c.Slug = strings.TrimSpace(c.Slug); c.Slug == "" {
		c.Slug = catalog.Slugify(c.Name)
	}
	return nil
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var c catalog.Category
	if err := h.decodeCategory(w, r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Categories.Create(r.Context(), &c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeCategory(e, &c)
	})
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	c := catalog.Category{ID: chi.URLParam(r, "id")}
	if err := h.decodeCategory(w, r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Categories.Update(r.Context(), &c); err != nil {
		h.fail(w, r, categoryErr(err))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCategory(e, &c)
	})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, categoryErr(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func categoryErr(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return errCategoryNotFound
	}
	return err
}
