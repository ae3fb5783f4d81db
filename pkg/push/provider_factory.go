package push

import (
	"fmt"

	"go.uber.org/zap"

	"unilink-backend/pkg/env"
	"unilink-backend/pkg/logger"
)

// ProviderType represents the type of push notification provider
type ProviderType string

const (
	ProviderTypeMock     ProviderType = "mock"
	ProviderTypeFirebase ProviderType = "firebase"
	ProviderTypeAPNs     ProviderType = "apns"
)

// NewProvider creates a push notification provider from the PUSH_PROVIDER
// environment variable. Unknown values fall back to the mock provider so a
// misconfigured deployment still serves calls, just without pushes.
func NewProvider() (Provider, error) {
	providerType := ProviderType(env.GetString("PUSH_PROVIDER", "mock"))

	logger.Info("Initializing push notification provider",
		zap.String("provider_type", string(providerType)))

	switch providerType {
	case ProviderTypeFirebase:
		return NewFirebaseProvider(env.GetString("FIREBASE_PROJECT_ID", "")), nil
	case ProviderTypeAPNs:
		return newAPNsProvider()
	case ProviderTypeMock:
		return &MockProvider{}, nil
	default:
		logger.Warn("Unknown push provider type, falling back to mock",
			zap.String("provider_type", string(providerType)))
		return &MockProvider{}, nil
	}
}

// newAPNsProvider creates a new APNs provider from environment configuration
func newAPNsProvider() (Provider, error) {
	bundleID := env.GetString("APNS_BUNDLE_ID", "")
	if bundleID == "" {
		return nil, fmt.Errorf("APNS_BUNDLE_ID environment variable is required for APNs provider")
	}

	config := &APNsConfig{
		BundleID:            bundleID,
		KeyPath:             env.GetString("APNS_KEY_PATH", ""),
		KeyID:               env.GetString("APNS_KEY_ID", ""),
		TeamID:              env.GetString("APNS_TEAM_ID", ""),
		CertificatePath:     env.GetString("APNS_CERT_PATH", ""),
		CertificatePassword: env.GetString("APNS_CERT_PASSWORD", ""),
		Production:          env.GetBool("APNS_PRODUCTION", false),
	}

	return NewAPNsProvider(config)
}
