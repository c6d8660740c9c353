package notify

import (
	"log/slog"
	"sync"
	"time"

	"ctrlbx/app/util"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/simonfxr/pubsub"
)

const (
	channel    = "notices"
	maxRecent  = 50
	serviceTag = "notify"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notice is a transient user facing message (a toast).
type Notice struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type Service struct {
	bus *pubsub.Bus

	mu     sync.Mutex
	recent []Notice
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	return &Service{
		bus: pubsub.NewBus(),
	}
}

func (s *Service) Subscribe(callback func(notice Notice)) *pubsub.Subscription {
	return s.bus.Subscribe(channel, func(message any) {
		if notice, ok := message.(Notice); ok {
			callback(notice)
		}
	})
}

func (s *Service) Unsubscribe(sub *pubsub.Subscription) {
	s.bus.Unsubscribe(sub)
}

func (s *Service) Publish(kind Kind, message string) {
	notice := Notice{
		Kind:    kind,
		Message: message,
		Time:    time.Now(),
	}

	s.mu.Lock()
	s.recent = append(s.recent, notice)
	if len(s.recent) > maxRecent {
		s.recent = s.recent[len(s.recent)-maxRecent:]
	}
	s.mu.Unlock()

	s.bus.Publish(channel, notice)
}

func (s *Service) Success(message string) {
	s.Publish(KindSuccess, message)
}

func (s *Service) Info(message string) {
	s.Publish(KindInfo, message)
}

func (s *Service) Warning(message string) {
	s.Publish(KindWarning, message)
}

func (s *Service) Error(message string) {
	s.Publish(KindError, message)
}

// Fail publishes an error notice for err, using its public message when set,
// and returns err unchanged.
func (s *Service) Fail(err error, fallback string) error {
	if err == nil {
		return nil
	}

	slog.Debug("Operation failed",
		slog.String("service", serviceTag),
		slog.String("kind", util.ErrorKind(err)),
		slog.Any("error", err),
	)

	s.Error(oops.GetPublic(err, fallback))

	return err
}

// Recent returns the last published notices, oldest first.
func (s *Service) Recent() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Notice, len(s.recent))
	copy(result, s.recent)

	return result
}
