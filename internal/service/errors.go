package service

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")

	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrBasketNotFound   = fmt.Errorf("current basket %w", ErrNotFound)

	ErrPasswordMissing = errors.New("password missing in record")
)

// translate maps repository and domain errors onto the service sentinels.
// Errors it does not know are returned unchanged and surface as internal.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrCustomerNotFound):
		return ErrCustomerNotFound
	case errors.Is(err, repository.ErrProductNotFound):
		return ErrProductNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, domain.ErrNoCurrentBasket):
		return ErrBasketNotFound
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrMissingSKU):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}
