package admin

import (
	"context"

	"github.com/hitoshi/periodico/internal/backend"
	"github.com/hitoshi/periodico/internal/model"
)

// キャッシュと共有するリソース名
const (
	ResourceUsers        = "users"
	ResourceCategories   = "categories"
	ResourcePublications = "publications"
)

// UserAPI はユーザー管理に必要なバックエンド操作。
type UserAPI interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, in backend.UserInput) (*model.User, bool, error)
	UpdateUser(ctx context.Context, id int, in backend.UserInput) error
	DeleteUser(ctx context.Context, id int) error
}

// CategoryAPI はカテゴリ管理に必要なバックエンド操作。
type CategoryAPI interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, in backend.CategoryInput) (*model.Category, bool, error)
	UpdateCategory(ctx context.Context, id int, in backend.CategoryInput) error
	DeleteCategory(ctx context.Context, id int) error
}

// PublicationAPI は記事管理に必要なバックエンド操作。
type PublicationAPI interface {
	ListPublications(ctx context.Context) ([]model.Publication, error)
	CreatePublication(ctx context.Context, in backend.PublicationInput) (*model.Publication, bool, error)
	UpdatePublication(ctx context.Context, id int, in backend.PublicationInput) error
	DeletePublication(ctx context.Context, id int) error
}

// Users はユーザー画面のResource。
type Users struct{ API UserAPI }

func (Users) Name() string { return ResourceUsers }

func (r Users) List(ctx context.Context) ([]model.User, error) { return r.API.ListUsers(ctx) }

func (r Users) Create(ctx context.Context, in backend.UserInput) (*model.User, bool, error) {
	return r.API.CreateUser(ctx, in)
}

func (r Users) Update(ctx context.Context, id int, in backend.UserInput) error {
	return r.API.UpdateUser(ctx, id, in)
}

func (r Users) Delete(ctx context.Context, id int) error { return r.API.DeleteUser(ctx, id) }

func (Users) ID(u model.User) int { return u.ID }

func (Users) Merge(id int, in backend.UserInput, _ model.User) model.User {
	return model.User{
		ID:       id,
		Name:     in.Name,
		Phone:    model.Phone(in.Phone),
		Username: in.Username,
		Password: in.Password,
	}
}

func (Users) RefetchAfterCreate() bool { return false }

// Categories はカテゴリ画面のResource。
type Categories struct{ API CategoryAPI }

func (Categories) Name() string { return ResourceCategories }

func (r Categories) List(ctx context.Context) ([]model.Category, error) {
	return r.API.ListCategories(ctx)
}

func (r Categories) Create(ctx context.Context, in backend.CategoryInput) (*model.Category, bool, error) {
	return r.API.CreateCategory(ctx, in)
}

func (r Categories) Update(ctx context.Context, id int, in backend.CategoryInput) error {
	return r.API.UpdateCategory(ctx, id, in)
}

func (r Categories) Delete(ctx context.Context, id int) error { return r.API.DeleteCategory(ctx, id) }

func (Categories) ID(c model.Category) int { return c.ID }

func (Categories) Merge(id int, in backend.CategoryInput, prev model.Category) model.Category {
	return model.Category{ID: id, Description: in.Description, Status: prev.Status}
}

func (Categories) RefetchAfterCreate() bool { return false }

// Publications は記事画面のResource。
// 作成APIの応答が安定しないため、作成後は常に一覧を再取得する。
type Publications struct{ API PublicationAPI }

func (Publications) Name() string { return ResourcePublications }

func (r Publications) List(ctx context.Context) ([]model.Publication, error) {
	return r.API.ListPublications(ctx)
}

func (r Publications) Create(ctx context.Context, in backend.PublicationInput) (*model.Publication, bool, error) {
	return r.API.CreatePublication(ctx, in)
}

func (r Publications) Update(ctx context.Context, id int, in backend.PublicationInput) error {
	return r.API.UpdatePublication(ctx, id, in)
}

func (r Publications) Delete(ctx context.Context, id int) error {
	return r.API.DeletePublication(ctx, id)
}

func (Publications) ID(p model.Publication) int { return p.ID }

// Merge は画像URL・閲覧数などフォームにない項目を既存レコードから引き継ぐ。
func (Publications) Merge(id int, in backend.PublicationInput, prev model.Publication) model.Publication {
	merged := prev
	merged.ID = id
	merged.Title = in.Title
	merged.Description = in.Description
	merged.Date = in.Date
	merged.IDCategoria = in.CategoryID
	merged.CategoryID = in.CategoryID
	if prev.Category != nil && prev.Category.ID != in.CategoryID {
		merged.Category = nil
	}
	if in.UserID != 0 {
		merged.IDUsuario = in.UserID
	}
	return merged
}

func (Publications) RefetchAfterCreate() bool { return true }
