package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/shopspring/decimal"

	"finitefield.org/bloomcare-web/internal/domain"
)

// Upload is an image file forwarded to the backend.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ProductForm is the multipart payload for product create/update.
type ProductForm struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Image       *Upload
}

func (f ProductForm) encode() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fields := [][2]string{
		{"name", f.Name},
		{"desc", f.Description},
		{"price", f.Price.String()},
		{"discount", f.Discount.String()},
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", err
		}
	}
	if f.Image != nil && f.Image.Body != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, sanitizeFilename(f.Image.Filename)))
		ct := f.Image.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header.Set("Content-Type", ct)
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Image.Body); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "image"
	}
	return strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return -1
		}
		return r
	}, name)
}

// CreateProduct uploads a new product with POST /api/products.
func (s *Session) CreateProduct(ctx context.Context, form ProductForm) error {
	body, ct, err := form.encode()
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, s.http, request{
		op:          "create_product",
		method:      http.MethodPost,
		path:        []string{"api", "products"},
		body:        body,
		contentType: ct,
		idempotent:  true,
	})
	return err
}

// UpdateProduct edits a product with PUT /api/products/{id}. A nil image keeps the current one.
func (s *Session) UpdateProduct(ctx context.Context, id string, form ProductForm) error {
	if err := checkID(id); err != nil {
		return err
	}
	body, ct, err := form.encode()
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, s.http, request{
		op:          "update_product",
		method:      http.MethodPut,
		path:        []string{"api", "products", id},
		body:        body,
		contentType: ct,
		idempotent:  true,
	})
	return err
}

// DeleteProduct removes a product with DELETE /api/products/{id}.
func (s *Session) DeleteProduct(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := s.client.do(ctx, s.http, request{
		op:         "delete_product",
		method:     http.MethodDelete,
		path:       []string{"api", "products", id},
		idempotent: true,
	})
	return err
}

type adminsPayload struct {
	Admins []domain.AdminAccount `json:"admins"`
}

// Admins lists admin accounts with GET /api/admin/users.
func (s *Session) Admins(ctx context.Context) ([]domain.AdminAccount, error) {
	raw, err := s.client.do(ctx, s.http, request{
		op:     "list_admins",
		method: http.MethodGet,
		path:   []string{"api", "admin", "users"},
	})
	if err != nil {
		return nil, err
	}
	var payload adminsPayload
	if err := decodeInto("list_admins", raw, &payload); err != nil {
		return nil, err
	}
	for i, a := range payload.Admins {
		if a.ID == "" {
			return nil, fmt.Errorf("backend: list_admins: record %d: %w", i, &domain.ShapeError{Kind: "admin", Field: "_id", Cause: "missing"})
		}
	}
	return payload.Admins, nil
}

// CreateAdmin registers another admin with POST /api/admin/create-admin.
func (s *Session) CreateAdmin(ctx context.Context, name, email, password string) error {
	payload, err := json.Marshal(credentials{Name: name, Email: email, Password: password})
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, s.http, request{
		op:          "create_admin",
		method:      http.MethodPost,
		path:        []string{"api", "admin", "create-admin"},
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		idempotent:  true,
	})
	return err
}

// DeleteAdmin removes an admin account with DELETE /api/admin/users/{id}.
func (s *Session) DeleteAdmin(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := s.client.do(ctx, s.http, request{
		op:         "delete_admin",
		method:     http.MethodDelete,
		path:       []string{"api", "admin", "users", id},
		idempotent: true,
	})
	return err
}
