package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/session"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	customers repository.CustomerRepository
}

func NewAuthService(customers repository.CustomerRepository) *AuthService {
	return &AuthService{customers: customers}
}

// Authenticate checks the password against the customer's bcrypt hash and
// returns the summary stored in the session.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*session.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	customer, err := s.customers.FindByEmail(ctx, email)
	if err != nil {
		return nil, translate(err)
	}
	if customer.PasswordHash == "" {
		return nil, ErrPasswordMissing
	}

	err = bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fmt.Errorf("%w: incorrect password", ErrUnauthorized)
		}
		return nil, fmt.Errorf("compare password hash: %w", err)
	}

	return &session.User{
		ID:    customer.ID,
		Name:  customer.Name,
		Email: customer.Email,
	}, nil
}

// SetPassword stores a bcrypt hash of password for the customer with email.
func (s *AuthService) SetPassword(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return translate(s.customers.SetPasswordHash(ctx, email, string(hash)))
}
