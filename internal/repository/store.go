package repository

import (
	"context"

	"gorm.io/gorm"

	"taskapi/internal/model"
)

// Store is the credential store: every user and task operation behind one
// swappable abstraction.
type Store interface {
	UserRepository
	TaskRepository
}

type gormStore struct {
	UserRepository
	TaskRepository
}

// NewStore builds the GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		UserRepository: NewUserRepository(db),
		TaskRepository: NewTaskRepository(db),
	}
}

// Models lists the tables owned by the store, parents first.
func Models() []interface{} {
	return []interface{}{&model.User{}, &model.Task{}}
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(Models()...)
}

// DropAll drops every store table, children first.
func DropAll(ctx context.Context, db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.WithContext(ctx).Migrator().DropTable(models[i]); err != nil {
			return err
		}
	}
	return nil
}
