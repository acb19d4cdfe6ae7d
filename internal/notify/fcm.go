package notify

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrMissingTopic is returned when no FCM topic is configured.
var ErrMissingTopic = errors.New("fcm topic is required")

// messageSender is the part of *messaging.Client FCM uses.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM publishes notifications to a Firebase Cloud Messaging topic that the
// managers' devices subscribe to.
type FCM struct {
	client messageSender
	topic  string
}

// NewFCM initializes a Firebase app from a credentials file. An empty path
// falls back to application default credentials.
func NewFCM(ctx context.Context, credentialsFile, topic string) (*FCM, error) {
	if topic == "" {
		return nil, ErrMissingTopic
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return &FCM{client: client, topic: topic}, nil
}

// Notify implements service.Notifier.
func (f *FCM) Notify(ctx context.Context, title, body string) error {
	_, err := f.client.Send(ctx, &messaging.Message{
		Topic: f.topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	if err != nil {
		return fmt.Errorf("fcm send to topic %q: %w", f.topic, err)
	}
	return nil
}
