package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"moneta/internal/amqp"
	"moneta/internal/core"
)

// CategoryService owns the category catalog. Deleting a category cascades
// to its subcategories; deleting anything still referenced by a transaction
// is refused (same policy as sources).
type CategoryService struct {
	store  CategoryStore
	events EventPublisher
}

func NewCategoryService(store CategoryStore, events EventPublisher) *CategoryService {
	return &CategoryService{store: store, events: events}
}

func (s *CategoryService) Create(ctx context.Context, owner, name string, typ core.CategoryType) (core.Category, error) {
	c := core.Category{
		ID:        uuid.NewString(),
		Owner:     owner,
		Name:      name,
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	publishEvent(ctx, s.events, amqp.EntityCategory, c.ID, owner, amqp.OpCreated)
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, owner, id, name string, typ core.CategoryType) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, owner, id)
	if err != nil {
		return core.Category{}, err
	}
	c.Name = name
	c.Type = typ
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	publishEvent(ctx, s.events, amqp.EntityCategory, id, owner, amqp.OpUpdated)
	return c, nil
}

// Delete removes a category and all its subcategories. Refused when any
// transaction references the category or one of its subcategories.
func (s *CategoryService) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.store.GetCategory(ctx, owner, id); err != nil {
		return err
	}
	inUse, err := s.store.CategoryInUse(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if inUse {
		return fmt.Errorf("delete category: transactions reference it: %w", core.ErrConflict)
	}
	if err := s.store.DeleteCategory(ctx, owner, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	publishEvent(ctx, s.events, amqp.EntityCategory, id, owner, amqp.OpDeleted)
	return nil
}

func (s *CategoryService) Get(ctx context.Context, owner, id string) (core.Category, error) {
	return s.store.GetCategory(ctx, owner, id)
}

func (s *CategoryService) List(ctx context.Context, owner string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, owner)
}

// CreateSub adds a subcategory under an existing category of the same owner.
func (s *CategoryService) CreateSub(ctx context.Context, owner, categoryID, name string) (core.SubCategory, error) {
	if _, err := s.store.GetCategory(ctx, owner, categoryID); err != nil {
		return core.SubCategory{}, err
	}
	sc := core.SubCategory{
		ID:         uuid.NewString(),
		Owner:      owner,
		CategoryID: categoryID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
	if err := sc.Validate(); err != nil {
		return core.SubCategory{}, err
	}
	if err := s.store.CreateSubCategory(ctx, sc); err != nil {
		return core.SubCategory{}, fmt.Errorf("create subcategory: %w", err)
	}
	publishEvent(ctx, s.events, amqp.EntitySubCategory, sc.ID, owner, amqp.OpCreated)
	return sc, nil
}

func (s *CategoryService) UpdateSub(ctx context.Context, owner, id, name string) (core.SubCategory, error) {
	sc, err := s.store.GetSubCategory(ctx, owner, id)
	if err != nil {
		return core.SubCategory{}, err
	}
	sc.Name = name
	if err := sc.Validate(); err != nil {
		return core.SubCategory{}, err
	}
	if err := s.store.UpdateSubCategory(ctx, sc); err != nil {
		return core.SubCategory{}, fmt.Errorf("update subcategory: %w", err)
	}
	publishEvent(ctx, s.events, amqp.EntitySubCategory, id, owner, amqp.OpUpdated)
	return sc, nil
}

func (s *CategoryService) DeleteSub(ctx context.Context, owner, id string) error {
	if _, err := s.store.GetSubCategory(ctx, owner, id); err != nil {
		return err
	}
	inUse, err := s.store.SubCategoryInUse(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("delete subcategory: %w", err)
	}
	if inUse {
		return fmt.Errorf("delete subcategory: transactions reference it: %w", core.ErrConflict)
	}
	if err := s.store.DeleteSubCategory(ctx, owner, id); err != nil {
		return fmt.Errorf("delete subcategory: %w", err)
	}
	publishEvent(ctx, s.events, amqp.EntitySubCategory, id, owner, amqp.OpDeleted)
	return nil
}

func (s *CategoryService) ListSubs(ctx context.Context, owner, categoryID string) ([]core.SubCategory, error) {
	return s.store.ListSubCategories(ctx, owner, categoryID)
}
