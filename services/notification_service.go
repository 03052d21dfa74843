package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-ordering/hub"
	"github.com/yeremiapane/restaurant-ordering/models"
	"github.com/yeremiapane/restaurant-ordering/utils"
)

// Broadcaster pushes events to connected screens. *hub.Hub implements it.
type Broadcaster interface {
	BroadcastToTable(tableID uint, event string, data interface{})
	BroadcastToStaff(event string, data interface{})
}

type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastToTable(uint, string, interface{}) {}
func (NopBroadcaster) BroadcastToStaff(string, interface{})       {}

type NotificationService struct {
	db     *gorm.DB
	events Broadcaster
}

func NewNotificationService(db *gorm.DB, events Broadcaster) *NotificationService {
	return &NotificationService{db: db, events: events}
}

// Notify stores a staff notification and pushes it to staff screens.
// Failures are logged; a missing notification never fails the caller.
func (s *NotificationService) Notify(ctx context.Context, kind, title, message string, orderID *uint) {
	n := models.Notification{
		Type:    kind,
		Title:   title,
		Message: message,
		OrderID: orderID,
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		utils.ErrorLogger.Errorf("Error creating notification: %v", err)
		return
	}
	s.events.BroadcastToStaff(hub.EventStaffNotif, n)
}

func (s *NotificationService) List(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	var notifications []models.Notification
	q := s.db.WithContext(ctx).Order("created_at desc")
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Notification{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
