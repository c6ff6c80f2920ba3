package services

import (
	"context"
	"time"

	"salonpro-billing/models"
	"salonpro-billing/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type BookingService struct {
	repos  *repository.Repositories
	locker Locker
}

func NewBookingService(repos *repository.Repositories, locker Locker) *BookingService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &BookingService{repos: repos, locker: locker}
}

// overlaps reports whether [start, end) intersects the existing interval
// [existingStart, existingEnd). Touching endpoints do not overlap.
func overlaps(start, end, existingStart, existingEnd time.Time) bool {
	startsInside := !start.Before(existingStart) && start.Before(existingEnd)
	endsInside := end.After(existingStart) && !end.After(existingEnd)
	contains := !start.After(existingStart) && !end.Before(existingEnd)
	return startsInside || endsInside || contains
}

type TimeAssignment struct {
	StylistID uuid.UUID `json:"stylistId" binding:"required"`
	Start     time.Time `json:"start" binding:"required"`
	End       time.Time `json:"end" binding:"required"`
}

func validateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return validation("start and end time are required")
	}
	if !end.After(start) {
		return validation("end time must be after start time")
	}
	return nil
}

// FindConflict returns the first calendar-blocking booking of the stylist
// that overlaps [start, end), or nil. exclude skips the booking being moved.
func (s *BookingService) FindConflict(ctx context.Context, stylistID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (*models.Booking, error) {
	if err := validateInterval(start, end); err != nil {
		return nil, err
	}
	return s.findConflict(ctx, nil, stylistID, start, end, exclude)
}

func (s *BookingService) findConflict(ctx context.Context, tx *gorm.DB, stylistID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (*models.Booking, error) {
	candidates, err := s.repos.Bookings.ListActiveAssigned(ctx, tx, stylistID, start, end)
	if err != nil {
		return nil, storage(err, "bookings")
	}
	for i := range candidates {
		b := &candidates[i]
		if exclude != nil && b.ID == *exclude {
			continue
		}
		if !b.Status.BlocksCalendar() || b.AssignedStartTime == nil || b.AssignedEndTime == nil {
			continue
		}
		if overlaps(start, end, *b.AssignedStartTime, *b.AssignedEndTime) {
			return b, nil
		}
	}
	return nil, nil
}

// AssignTime gives a booking a stylist and an exact slot. The conflict
// check and the write happen under the stylist's lock in one transaction.
func (s *BookingService) AssignTime(ctx context.Context, bookingID uuid.UUID, a TimeAssignment) (*models.Booking, error) {
	if err := validateInterval(a.Start, a.End); err != nil {
		return nil, err
	}
	if a.StylistID == uuid.Nil {
		return nil, validation("stylist is required")
	}

	unlock, err := s.locker.Lock(ctx, stylistKey(a.StylistID))
	if err != nil {
		return nil, &Error{Kind: KindStorage, Message: "could not lock stylist calendar", Err: err}
	}
	defer unlock()

	var booking *models.Booking
	err = runTx(ctx, s.repos.DB, func(tx *gorm.DB) error {
		if err := s.repos.Catalog.LockStylist(ctx, tx, a.StylistID); err != nil {
			return storage(err, "stylist")
		}
		b, err := s.repos.Bookings.FindByID(ctx, tx, bookingID)
		if err != nil {
			return storage(err, "booking")
		}
		if !b.Status.BlocksCalendar() {
			return invalidTransition("cannot assign a time to a %s booking", b.Status)
		}

		conflict, err := s.findConflict(ctx, tx, a.StylistID, a.Start, a.End, &b.ID)
		if err != nil {
			return err
		}
		if conflict != nil {
			return &ConflictError{BookingID: conflict.ID, CustomerName: conflict.CustomerName()}
		}

		start, end := a.Start, a.End
		stylistID := a.StylistID
		b.StylistID = &stylistID
		b.AssignedStartTime = &start
		b.AssignedEndTime = &end
		b.Time = start.Format("15:04")
		b.Status = models.BookingConfirmed
		if err := s.repos.Bookings.Update(ctx, tx, b); err != nil {
			return storage(err, "booking")
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("booking_id", bookingID.String()).
		Str("stylist_id", a.StylistID.String()).
		Time("start", a.Start).
		Msg("booking time assigned")
	return booking, nil
}

// Complete marks a confirmed booking as done so it can be invoiced.
func (s *BookingService) Complete(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	var booking *models.Booking
	err := runTx(ctx, s.repos.DB, func(tx *gorm.DB) error {
		b, err := s.repos.Bookings.FindByID(ctx, tx, bookingID)
		if err != nil {
			return storage(err, "booking")
		}
		if b.Status != models.BookingConfirmed {
			return invalidTransition("only confirmed bookings can be completed, booking is %s", b.Status)
		}
		b.Status = models.BookingCompleted
		if err := s.repos.Bookings.Update(ctx, tx, b); err != nil {
			return storage(err, "booking")
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}
