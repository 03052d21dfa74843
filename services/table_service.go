package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/cart"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

type TableService struct {
	db    *gorm.DB
	carts *cart.Store
}

func NewTableService(db *gorm.DB, carts *cart.Store) *TableService {
	return &TableService{db: db, carts: carts}
}

// Scan returns the table's active session, opening one if the table is free.
// Every device that scans the same table joins the same session.
func (s *TableService) Scan(ctx context.Context, tableID uint) (*models.TableSession, error) {
	var session models.TableSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, tableID).Error; err != nil {
			return notFound(err, ErrTableNotFound)
		}

		err := tx.Where("table_id = ? AND status = ?", tableID, models.SessionStatusActive).First(&session).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		session = models.TableSession{
			TableID:    tableID,
			SessionKey: uuid.NewString(),
			Status:     models.SessionStatusActive,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		return tx.Model(&table).Update("status", models.TableStatusOccupied).Error
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *TableService) ActiveSession(ctx context.Context, tableID uint) (*models.TableSession, error) {
	var session models.TableSession
	err := s.db.WithContext(ctx).
		Where("table_id = ? AND status = ?", tableID, models.SessionStatusActive).
		First(&session).Error
	if err != nil {
		return nil, notFound(err, ErrNoActiveSession)
	}
	return &session, nil
}

func (s *TableService) List(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	if err := s.db.WithContext(ctx).Order("id").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

// FinishSession closes the seating, marks the table for cleaning and drops
// whatever is left in its cart.
func (s *TableService) FinishSession(ctx context.Context, tableID uint) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TableSession{}).
			Where("table_id = ? AND status = ?", tableID, models.SessionStatusActive).
			Updates(map[string]interface{}{"status": models.SessionStatusFinished, "finished_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoActiveSession
		}
		return tx.Model(&models.Table{}).Where("id = ?", tableID).Update("status", models.TableStatusDirty).Error
	})
	if err != nil {
		return err
	}

	if err := s.carts.Clear(ctx, tableID); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{"table_id": tableID}).Warnf("Error clearing cart: %v", err)
	}
	return nil
}
