package push

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"unilink-backend/pkg/logger"
)

// FirebaseProvider implements the Provider interface using Firebase Cloud
// Messaging. Covers Android, iOS (via the APNs bridge) and Web platforms.
type FirebaseProvider struct {
	app         *firebase.App
	client      *messaging.Client
	projectID   string
	initialized bool
}

// NewFirebaseProvider creates a new Firebase push notification provider.
// Credentials come from FIREBASE_CREDENTIALS_PATH (Docker secret) or
// GOOGLE_APPLICATION_CREDENTIALS; without them the provider falls back to
// mock behavior so local stacks run without a Firebase project.
func NewFirebaseProvider(projectID string) *FirebaseProvider {
	credentialsPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credentialsPath == "" {
		credentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if credentialsPath == "" {
		logger.Warn("FIREBASE_CREDENTIALS_PATH not set, creating mock provider")
		return &FirebaseProvider{projectID: projectID}
	}

	credentials, err := os.ReadFile(credentialsPath)
	if err != nil {
		logger.Error("Failed to read Firebase credentials file", zap.Error(err))
		return &FirebaseProvider{projectID: projectID}
	}

	if projectID == "" {
		var creds struct {
			ProjectID string `json:"project_id"`
		}
		if err := json.Unmarshal(credentials, &creds); err != nil {
			logger.Error("Failed to parse Firebase credentials", zap.Error(err))
			return &FirebaseProvider{}
		}
		projectID = creds.ProjectID
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentials))
	if err != nil {
		logger.Error("Failed to initialize Firebase app", zap.Error(err))
		return &FirebaseProvider{projectID: projectID}
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Error("Failed to get Firebase messaging client",
			zap.String("project_id", projectID),
			zap.Error(err))
		return &FirebaseProvider{projectID: projectID}
	}

	logger.Info("Firebase Admin SDK initialized", zap.String("project_id", projectID))

	return &FirebaseProvider{
		app:         app,
		client:      client,
		projectID:   projectID,
		initialized: true,
	}
}

// Send implements the Provider interface
func (f *FirebaseProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	if len(tokens) == 0 {
		return &SendResult{}, nil
	}

	if !f.initialized {
		logger.Debug("FirebaseProvider not initialized, using mock behavior",
			zap.Int("token_count", len(tokens)))
		return &SendResult{SuccessCount: len(tokens)}, nil
	}

	messages := make([]*messaging.Message, len(tokens))
	for i, token := range tokens {
		messages[i] = f.buildMessage(notification, token)
	}

	response, err := f.client.SendEach(ctx, messages)
	if err != nil {
		logger.Error("Failed to send Firebase messages",
			zap.String("project_id", f.projectID),
			zap.Int("token_count", len(tokens)),
			zap.Error(err))
		return &SendResult{
			FailureCount: len(tokens),
			Errors:       []error{err},
		}, err
	}

	result := &SendResult{}
	for i, resp := range response.Responses {
		if resp.Success {
			result.SuccessCount++
			continue
		}

		result.FailureCount++
		if resp.Error == nil {
			continue
		}

		errMsg := resp.Error.Error()
		if errMsg == "UNREGISTERED" || errMsg == "INVALID_ARGUMENT" || errMsg == "registration-token-not-registered" {
			if i < len(tokens) {
				result.InvalidTokens = append(result.InvalidTokens, tokens[i])
			}
		}
	}

	logger.Info("Firebase messages sent",
		zap.String("project_id", f.projectID),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
		zap.Int("invalid_tokens", len(result.InvalidTokens)))

	return result, nil
}

// buildMessage constructs a Firebase message from a notification
func (f *FirebaseProvider) buildMessage(notification *Notification, token string) *messaging.Message {
	data := make(map[string]string, len(notification.Data)+3)
	for k, v := range notification.Data {
		data[k] = v
	}
	data["title"] = notification.Title
	data["body"] = notification.Body
	data["timestamp"] = fmt.Sprintf("%d", time.Now().Unix())

	androidNotification := &messaging.AndroidNotification{
		Title: notification.Title,
		Body:  notification.Body,
	}
	if notification.Sound != "" {
		androidNotification.Sound = notification.Sound
	}

	androidConfig := &messaging.AndroidConfig{
		Notification: androidNotification,
		Data:         data,
	}
	if notification.Priority != "" {
		androidConfig.Priority = notification.Priority
	}

	aps := &messaging.Aps{
		Alert: &messaging.ApsAlert{
			Title: notification.Title,
			Body:  notification.Body,
		},
	}
	if notification.Sound != "" {
		aps.Sound = notification.Sound
	}
	if notification.Category != "" {
		aps.Category = notification.Category
	}

	webpushConfig := &messaging.WebpushConfig{
		Notification: &messaging.WebpushNotification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: data,
	}

	return &messaging.Message{
		Data:    data,
		Android: androidConfig,
		APNS:    &messaging.APNSConfig{Payload: &messaging.APNSPayload{Aps: aps}},
		Webpush: webpushConfig,
		Token:   token,
	}
}

// IsInitialized reports whether the provider holds a live messaging client
func (f *FirebaseProvider) IsInitialized() bool {
	return f.initialized
}
