package service

import (
	"context"
	"fmt"
	"time"

	"ai-deepsearch-be/internal/pkg/logger"
	"ai-deepsearch-be/internal/pkg/mailer"
	"ai-deepsearch-be/pkg/events"
	"ai-deepsearch-be/pkg/nats"
	"ai-deepsearch-be/pkg/research"
)

// IDeliveryService emails finished research reports. Requests ride the
// NATS work queue when it is available so a restart never loses one,
// otherwise they are handled inline.
type IDeliveryService interface {
	Start() error
	Request(sessionID, email string) error
}

type deliveryService struct {
	engine     *research.Engine
	mail       mailer.IEmailService
	publisher  *nats.Publisher
	subscriber *nats.Subscriber
	log        logger.ILogger
}

func NewDeliveryService(
	engine *research.Engine,
	mail mailer.IEmailService,
	publisher *nats.Publisher,
	subscriber *nats.Subscriber,
	log logger.ILogger,
) IDeliveryService {
	return &deliveryService{
		engine:     engine,
		mail:       mail,
		publisher:  publisher,
		subscriber: subscriber,
		log:        log,
	}
}

// Start attaches the durable delivery worker. No-op without NATS.
func (s *deliveryService) Start() error {
	if s.subscriber == nil {
		return nil
	}
	return s.subscriber.Subscribe(nats.Subject(events.TypeReportDelivery), "delivery-worker", s.handle)
}

func (s *deliveryService) Request(sessionID, email string) error {
	if _, err := s.engine.Get(sessionID); err != nil {
		return err
	}

	if s.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		event := events.NewSessionEvent(events.TypeReportDelivery, sessionID, map[string]interface{}{
			"email": email,
		})
		if err := s.publisher.Publish(ctx, event); err == nil {
			return nil
		} else {
			s.log.Warn("DeliveryService", "Queue publish failed, delivering inline", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}
	return s.send(sessionID, email)
}

func (s *deliveryService) handle(ctx context.Context, event events.Event) error {
	payload := event.Payload()
	sessionID, _ := payload["session_id"].(string)
	email, _ := payload["email"].(string)
	if sessionID == "" || email == "" {
		s.log.Warn("DeliveryService", "Dropping malformed delivery request", map[string]interface{}{
			"payload": payload,
		})
		return nil
	}
	return s.send(sessionID, email)
}

func (s *deliveryService) send(sessionID, email string) error {
	sess, err := s.engine.Get(sessionID)
	if err != nil {
		// The session expired from the store, retrying will not bring it
		// back.
		s.log.Warn("DeliveryService", "Session no longer available for delivery", map[string]interface{}{
			"session_id": sessionID,
		})
		return nil
	}

	report := research.FormatReport(sess)
	if err := s.mail.SendReport(email, sess.Query, report); err != nil {
		return fmt.Errorf("failed to send report for session %s: %w", sessionID, err)
	}
	s.log.Info("DeliveryService", "Report delivered", map[string]interface{}{
		"session_id": sessionID,
	})
	return nil
}
