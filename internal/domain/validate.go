package domain

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MinPasswordLength = 6
	MinRating         = 1
	MaxRating         = 5
	MaxCommentLength  = 1000
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldErrors maps form field names to user-facing messages.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err returns nil when no field failed.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// ValidEmail reports whether the address has the local@domain.tld shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// Validate checks the registration form in the order the form reports problems.
func (in RegisterInput) Validate() error {
	fe := FieldErrors{}
	if strings.TrimSpace(in.Name) == "" {
		fe.add("name", "El nombre es obligatorio.")
	}
	if !ValidEmail(strings.TrimSpace(in.Email)) {
		fe.add("email", "Por favor, introduce un email válido.")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		fe.add("password", "La contraseña debe tener al menos 6 caracteres.")
	} else if in.Password != in.PasswordConfirm {
		fe.add("password_confirm", "Las contraseñas no coinciden.")
	}
	return fe.Err()
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string
	Password string
}

func (in LoginInput) Validate() error {
	fe := FieldErrors{}
	if strings.TrimSpace(in.Email) == "" {
		fe.add("email", "El email es obligatorio.")
	}
	if in.Password == "" {
		fe.add("password", "La contraseña es obligatoria.")
	}
	return fe.Err()
}

// ProfileInput is the profile edit form.
type ProfileInput struct {
	Name  string
	Email string
}

func (in ProfileInput) Validate() error {
	fe := FieldErrors{}
	if strings.TrimSpace(in.Name) == "" {
		fe.add("name", "Por favor completa todos los campos.")
	}
	if !ValidEmail(strings.TrimSpace(in.Email)) {
		fe.add("email", "Por favor, introduce un email válido.")
	}
	return fe.Err()
}

// AdminInput is the create-admin form.
type AdminInput struct {
	Name     string
	Email    string
	Password string
}

func (in AdminInput) Validate() error {
	fe := FieldErrors{}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		fe.add("form", "Todos los campos son obligatorios")
		return fe
	}
	if !ValidEmail(strings.TrimSpace(in.Email)) {
		fe.add("email", "Por favor, introduce un email válido.")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		fe.add("password", "La contraseña debe tener al menos 6 caracteres")
	}
	return fe.Err()
}

// ProductInput is the admin product form. Image presence is checked by the caller, which
// knows whether the form creates or edits a product.
type ProductInput struct {
	Name        string
	Description string
	Price       string
	Discount    string
}

// Parse validates the form and returns the numeric fields.
func (in ProductInput) Parse() (price, discount decimal.Decimal, err error) {
	fe := FieldErrors{}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Description) == "" {
		fe.add("form", "Faltan campos de texto")
	}
	price, perr := decimal.NewFromString(strings.TrimSpace(in.Price))
	switch {
	case perr != nil:
		fe.add("price", "El precio debe ser un número")
	case price.IsNegative():
		fe.add("price", "El precio no puede ser negativo")
	}
	if raw := strings.TrimSpace(in.Discount); raw != "" {
		d, derr := decimal.NewFromString(raw)
		switch {
		case derr != nil:
			fe.add("discount", "El descuento debe ser un número")
		case d.IsNegative() || d.GreaterThan(hundred):
			fe.add("discount", "El descuento debe estar entre 0 y 100")
		default:
			discount = d
		}
	}
	if err := fe.Err(); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return price, discount, nil
}

// ReviewInput is the review form.
type ReviewInput struct {
	Rating  int
	Comment string
}

func (in ReviewInput) Validate() error {
	fe := FieldErrors{}
	if in.Rating < MinRating || in.Rating > MaxRating {
		fe.add("rating", "La calificación debe estar entre 1 y 5.")
	}
	comment := strings.TrimSpace(in.Comment)
	switch {
	case comment == "":
		fe.add("comment", "El comentario es obligatorio.")
	case utf8.RuneCountInString(comment) > MaxCommentLength:
		fe.add("comment", "El comentario es demasiado largo.")
	}
	return fe.Err()
}

// Strength is a coarse password strength rating shown while typing.
type Strength string

const (
	StrengthNone   Strength = ""
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// PasswordStrength rates a password: weak under 6 characters, strong at 8+ with a digit.
func PasswordStrength(pw string) Strength {
	n := utf8.RuneCountInString(pw)
	switch {
	case n == 0:
		return StrengthNone
	case n < MinPasswordLength:
		return StrengthWeak
	case n >= 8 && strings.IndexFunc(pw, unicode.IsDigit) >= 0:
		return StrengthStrong
	default:
		return StrengthMedium
	}
}
