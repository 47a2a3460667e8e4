package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/bookstore/internal/domain"
	"github.com/vladislavdragonenkov/bookstore/internal/storage/memory"
)

func newCustomer() domain.Customer {
	return domain.Customer{
		ID:        "customer-1",
		FirstName: "Paul",
		LastName:  "Atreides",
		Email:     "paul@arrakis.example",
		Address:   "1 Sietch Tabr",
	}
}

func TestCustomerRepository_CreateGet(t *testing.T) {
	repo := memory.NewCustomerRepository()
	if err := repo.Create(newCustomer()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get("customer-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Email != "paul@arrakis.example" {
		t.Fatalf("unexpected email %s", stored.Email)
	}
}

func TestCustomerRepository_DuplicateEmail(t *testing.T) {
	repo := memory.NewCustomerRepository()
	if err := repo.Create(newCustomer()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dup := newCustomer()
	dup.ID = "customer-2"
	dup.Email = "PAUL@arrakis.example" // email сравнивается без учёта регистра
	if err := repo.Create(dup); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCustomerRepository_CreateDuplicateID(t *testing.T) {
	repo := memory.NewCustomerRepository()
	if err := repo.Create(newCustomer()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dup := newCustomer()
	dup.Email = "other@arrakis.example"
	if err := repo.Create(dup); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCustomerRepository_FindByEmail(t *testing.T) {
	repo := memory.NewCustomerRepository()
	if err := repo.Create(newCustomer()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.FindByEmail("paul@arrakis.example")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if stored.ID != "customer-1" {
		t.Fatalf("expected customer-1, got %s", stored.ID)
	}

	if _, err := repo.FindByEmail("nobody@example.com"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}
