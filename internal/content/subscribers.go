package content

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/apperr"
	"parkadmin/app/internal/listing"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Subscribers have no semantic date; the date filters apply to the sign-up time.
func subscriberRow(s Subscriber) listing.Row {
	return listing.Row{
		Seq:       s.Seq,
		Title:     s.Email,
		Date:      s.CreatedAt.Format(time.RFC3339Nano),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (s *service) ListSubscribers(ctx context.Context, q Query) (ListResult[Subscriber], error) {
	var subscribers []Subscriber
	if err := s.repo.FindAll(ctx, &subscribers, "seq DESC"); err != nil {
		return ListResult[Subscriber]{}, s.fail(nil, err, "Failed to fetch subscribers")
	}

	return listRecords(subscribers, subscriberRow, s.anchor(q), listing.DefaultSort), nil
}

func (s *service) GetSubscriber(ctx context.Context, id string) (*Subscriber, error) {
	parsed, err := parseID(id, "subscriber")
	if err != nil {
		return nil, err
	}

	var subscriber Subscriber
	found, err := s.repo.FindByID(ctx, &subscriber, parsed)
	if err != nil {
		return nil, s.fail(logrus.Fields{"id": parsed}, err, "Failed to fetch subscriber")
	}
	if !found {
		return nil, apperr.NotFound("Subscriber not found")
	}

	return &subscriber, nil
}

func (s *service) CreateSubscriber(ctx context.Context, email string) (*Subscriber, error) {
	normalized, err := s.checkEmail(ctx, email, "")
	if err != nil {
		return nil, err
	}

	subscriber := Subscriber{Email: normalized}
	err = s.repo.CreateSequenced(ctx, ResourceSubscribers, &subscriber, func(seq int64) { subscriber.Seq = seq })
	if err != nil {
		if eris.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("Subscriber already exists")
		}
		return nil, s.fail(nil, err, "Failed to create subscriber")
	}
	s.recorder.SequenceAllocated(string(ResourceSubscribers))

	return &subscriber, nil
}

func (s *service) UpdateSubscriber(ctx context.Context, id, email string) (*Subscriber, error) {
	existing, err := s.GetSubscriber(ctx, id)
	if err != nil {
		return nil, err
	}

	normalized, err := s.checkEmail(ctx, email, existing.ID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Email = normalized
	found, err := s.repo.Update(ctx, &updated, existing.ID)
	if err != nil {
		if eris.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("Subscriber already exists")
		}
		return nil, s.fail(logrus.Fields{"id": existing.ID}, err, "Failed to update subscriber")
	}
	if !found {
		return nil, apperr.NotFound("Subscriber not found")
	}

	return &updated, nil
}

func (s *service) DeleteSubscribers(ctx context.Context, ids []string) (DeleteResult, error) {
	return deleteRecords(ctx, s, ResourceSubscribers, "subscriber", ids,
		func(sub Subscriber) string { return sub.ID },
		nil,
		func(ctx context.Context, ids []string) (int64, error) {
			return s.repo.DeleteByIDs(ctx, &Subscriber{}, ids)
		},
	)
}

// checkEmail validates the address and rejects one already used by another subscriber.
func (s *service) checkEmail(ctx context.Context, email, excludeID string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", apperr.Validation("Email is required")
	}
	if !emailPattern.MatchString(normalized) {
		return "", apperr.Validation("Invalid email format")
	}

	exists, err := s.repo.Exists(ctx, &Subscriber{}, "email", normalized, excludeID)
	if err != nil {
		return "", s.fail(nil, err, "Failed to create subscriber")
	}
	if exists {
		return "", apperr.Conflict("Subscriber already exists")
	}

	return normalized, nil
}
