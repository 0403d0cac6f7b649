// Package cleanup expires overdue deliveries and purges terminal ones with their stored files.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sealdrop-api/internal/domain"
)

// Report summarizes one run. Deleted + Errors always equals Processed.
type Report struct {
	Success      bool `json:"success"`
	Processed    int  `json:"processed"`
	Deleted      int  `json:"deleted"`
	Errors       int  `json:"errors"`
	FilesDeleted int  `json:"files_deleted"`
	FileErrors   int  `json:"file_errors"`
	Expired      int  `json:"expired"`
}

type Service interface {
	Run(ctx context.Context) (*Report, error)
}

type deliveryStore interface {
	ListByStatus(ctx context.Context, status string) ([]domain.Delivery, error)
	UpdateStatus(ctx context.Context, deliveryID, status string) (*domain.Delivery, error)
	ListFiles(ctx context.Context, deliveryID string) ([]domain.DeliveryFile, error)
	Delete(ctx context.Context, deliveryID string) error
}

type objectStore interface {
	Delete(ctx context.Context, key string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.DeliveryEvent) error
}

type service struct {
	deliveries deliveryStore
	objects    objectStore
	events     eventPublisher
	now        func() time.Time
}

func NewService(deliveries deliveryStore, objects objectStore, events eventPublisher) Service {
	return &service{
		deliveries: deliveries,
		objects:    objects,
		events:     events,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run processes deliveries one at a time and never retries. A failure on one
// delivery is counted and the run moves on; only listing failures abort it.
func (s *service) Run(ctx context.Context) (*Report, error) {
	r := &Report{}

	expired, err := s.expireOverdue(ctx)
	if err != nil {
		return nil, err
	}
	r.Expired = expired

	var terminal []domain.Delivery
	for _, status := range []string{domain.DeliveryExpired, domain.DeliveryRevoked} {
		ds, err := s.deliveries.ListByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		terminal = append(terminal, ds...)
	}

	for i := range terminal {
		d := &terminal[i]
		r.Processed++
		filesDeleted, fileErrors, err := s.purge(ctx, d)
		r.FilesDeleted += filesDeleted
		r.FileErrors += fileErrors
		if err != nil {
			slog.Error("failed to purge delivery", "delivery_id", d.DeliveryID, "err", err)
			r.Errors++
			continue
		}
		r.Deleted++
	}

	r.Success = true
	slog.Info("cleanup finished",
		"processed", r.Processed, "deleted", r.Deleted, "errors", r.Errors,
		"files_deleted", r.FilesDeleted, "file_errors", r.FileErrors, "expired", r.Expired)
	return r, nil
}

// expireOverdue moves active deliveries past their expiry to expired.
func (s *service) expireOverdue(ctx context.Context) (int, error) {
	active, err := s.deliveries.ListByStatus(ctx, domain.DeliveryActive)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, d := range active {
		if now.Before(d.ExpiresAt) {
			continue
		}
		if _, err := s.deliveries.UpdateStatus(ctx, d.DeliveryID, domain.DeliveryExpired); err != nil {
			// Revoked concurrently; the purge pass picks it up either way.
			if !errors.Is(err, domain.ErrConflict) {
				slog.Warn("failed to expire delivery", "delivery_id", d.DeliveryID, "err", err)
			}
			continue
		}
		n++
		s.publish(ctx, domain.DeliveryEvent{
			Type:           domain.EventDeliveryStatusChanged,
			DeliveryID:     d.DeliveryID,
			OrganizationID: d.OrganizationID,
			Status:         domain.DeliveryExpired,
			OccurredAt:     now,
		})
	}
	return n, nil
}

// purge removes the stored objects, then the rows. Object failures are counted
// but do not stop the rows from being deleted.
func (s *service) purge(ctx context.Context, d *domain.Delivery) (filesDeleted, fileErrors int, err error) {
	files, err := s.deliveries.ListFiles(ctx, d.DeliveryID)
	if err != nil {
		return 0, 0, err
	}
	for _, f := range files {
		if err := s.objects.Delete(ctx, f.StoragePath); err != nil {
			slog.Warn("failed to delete stored file", "delivery_id", d.DeliveryID, "key", f.StoragePath, "err", err)
			fileErrors++
			continue
		}
		filesDeleted++
	}
	if err := s.deliveries.Delete(ctx, d.DeliveryID); err != nil {
		return filesDeleted, fileErrors, err
	}
	s.publish(ctx, domain.DeliveryEvent{
		Type:           domain.EventDeliveryPurged,
		DeliveryID:     d.DeliveryID,
		OrganizationID: d.OrganizationID,
		Status:         d.Status,
		OccurredAt:     s.now(),
	})
	return filesDeleted, fileErrors, nil
}

func (s *service) publish(ctx context.Context, e domain.DeliveryEvent) {
	if err := s.events.Publish(ctx, e); err != nil {
		slog.Warn("failed to publish delivery event", "type", e.Type, "delivery_id", e.DeliveryID, "err", err)
	}
}
