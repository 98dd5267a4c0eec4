package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"alarm-planner/internal/model"
)

// OwnerRepository stores the single local user's Telegram binding.
type OwnerRepository struct {
	db *gorm.DB
}

func NewOwnerRepository(db *gorm.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// Bind records the Telegram user and chat that receive alarms. Only the first
// user to bind becomes the owner; a later call from the same user refreshes the
// profile and chat, a call from anyone else returns ErrNotOwner.
func (r *OwnerRepository) Bind(ctx context.Context, telegramID, chatID int64, firstName, lastName, username string) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Order("id ASC").First(&owner).Error
		switch {
		case err == nil:
			if owner.TelegramID != telegramID {
				return ErrNotOwner
			}
			updates := map[string]interface{}{
				"chat_id":    chatID,
				"first_name": firstName,
				"last_name":  lastName,
				"username":   username,
			}
			if err := tx.Model(&owner).Updates(updates).Error; err != nil {
				return fmt.Errorf("update owner: %w", err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			owner = model.Owner{
				TelegramID: telegramID,
				ChatID:     chatID,
				FirstName:  firstName,
				LastName:   lastName,
				Username:   username,
			}
			if err := tx.Create(&owner).Error; err != nil {
				return fmt.Errorf("create owner: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("find owner: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

// Get returns the bound owner, or ErrNoOwner.
func (r *OwnerRepository) Get(ctx context.Context) (*model.Owner, error) {
	var owner model.Owner
	err := r.db.WithContext(ctx).Order("id ASC").First(&owner).Error
	switch {
	case err == nil:
		return &owner, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNoOwner
	default:
		return nil, fmt.Errorf("find owner: %w", err)
	}
}

var (
	ErrNoOwner  = errors.New("repository: no owner bound")
	ErrNotOwner = errors.New("repository: chat is not the owner")
)
