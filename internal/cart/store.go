package cart

import (
	"context"
	"errors"
	"fmt"

	"finitefield.org/bloomcare-web/internal/domain"
)

// Store persists the cart lines.
type Store interface {
	Load(ctx context.Context) ([]domain.CartItem, error)
	Save(ctx context.Context, items []domain.CartItem) error
}

// AuthState reports whether the current device has an authenticated user.
type AuthState interface {
	Authenticated() bool
}

// AuthFunc adapts a function to AuthState.
type AuthFunc func() bool

func (f AuthFunc) Authenticated() bool { return f() }

// RemoteCart is the backend cart API.
type RemoteCart interface {
	Cart(ctx context.Context) ([]domain.CartItem, error)
	SaveCart(ctx context.Context, items []domain.CartItem) error
}

// RemoteStore keeps the cart on the backend, tied to the user's session.
type RemoteStore struct {
	api RemoteCart
}

// NewRemoteStore wraps the backend cart API.
func NewRemoteStore(api RemoteCart) *RemoteStore {
	return &RemoteStore{api: api}
}

func (s *RemoteStore) Load(ctx context.Context) ([]domain.CartItem, error) {
	return s.api.Cart(ctx)
}

func (s *RemoteStore) Save(ctx context.Context, items []domain.CartItem) error {
	return s.api.SaveCart(ctx, items)
}

// DeviceStorage holds the anonymous cart on the device.
type DeviceStorage interface {
	CartLines() []domain.CartItem
	SetCartLines(items []domain.CartItem)
}

// ErrCartFull is returned when the device storage cannot hold the lines.
var ErrCartFull = errors.New("cart: device storage full")

// LocalStore keeps the anonymous cart in device storage.
type LocalStore struct {
	device DeviceStorage
	fits   func([]domain.CartItem) error
}

// NewLocalStore wraps device storage. fits, when set, rejects line sets the device cannot
// persist; a nil fits accepts everything.
func NewLocalStore(device DeviceStorage, fits func([]domain.CartItem) error) *LocalStore {
	return &LocalStore{device: device, fits: fits}
}

func (s *LocalStore) Load(context.Context) ([]domain.CartItem, error) {
	return cloneItems(s.device.CartLines()), nil
}

func (s *LocalStore) Save(_ context.Context, items []domain.CartItem) error {
	if s.fits != nil {
		if err := s.fits(items); err != nil {
			return fmt.Errorf("%w: %v", ErrCartFull, err)
		}
	}
	s.device.SetCartLines(cloneItems(items))
	return nil
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
