// ABOUTME: Kubernetes Secret-based OAuth2TokenRepository implementation
// ABOUTME: One Secret per account holds the JSON token and its plain fields

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"greader-sync/models"
)

const (
	annotationLastUpdated  = "greader-sync/last-updated"
	annotationTokenVersion = "greader-sync/token-version"
	annotationAccount      = "greader-sync/account-id"
)

// KubernetesSecretRepository implements OAuth2TokenRepository using Kubernetes Secrets
type KubernetesSecretRepository struct {
	clientset  kubernetes.Interface
	namespace  string
	secretName string
	accountID  string
	logger     *slog.Logger
}

// NewKubernetesSecretRepository stores the token of accountID in namespace/secretName
func NewKubernetesSecretRepository(
	clientset kubernetes.Interface,
	namespace, secretName, accountID string,
	logger *slog.Logger,
) *KubernetesSecretRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &KubernetesSecretRepository{
		clientset:  clientset,
		namespace:  namespace,
		secretName: secretName,
		accountID:  accountID,
		logger:     logger,
	}
}

// GetCurrentToken retrieves the current OAuth2 token from Kubernetes Secret
func (r *KubernetesSecretRepository) GetCurrentToken(ctx context.Context) (*models.OAuth2Token, error) {
	secret, err := r.clientset.CoreV1().Secrets(r.namespace).Get(ctx, r.secretName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, ErrTokenNotFound
		}
		r.logger.Error("Failed to retrieve secret from Kubernetes",
			"error", err,
			"namespace", r.namespace,
			"secret_name", r.secretName)
		return nil, fmt.Errorf("failed to retrieve token secret: %w", err)
	}

	tokenData, exists := secret.Data["token_data"]
	if !exists {
		r.logger.Warn("Token data not found in secret", "secret_name", r.secretName)
		return nil, ErrTokenNotFound
	}

	var token models.OAuth2Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid token data in secret: %w", err)
	}

	r.logger.Debug("Retrieved OAuth2 token from Kubernetes Secret",
		"account_id", r.accountID,
		"expires_at", token.ExpiresAt,
		"is_expired", token.IsExpired())

	return &token, nil
}

// SaveToken creates the secret or replaces its data
func (r *KubernetesSecretRepository) SaveToken(ctx context.Context, token *models.OAuth2Token) error {
	if token == nil || token.AccessToken == "" {
		return ErrInvalidToken
	}

	tokenBytes, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}

	data := map[string][]byte{
		"token_data":    tokenBytes,
		"access_token":  []byte(token.AccessToken),
		"refresh_token": []byte(token.RefreshToken),
		"expires_at":    []byte(token.ExpiresAt.Format(time.RFC3339)),
	}

	current, err := r.clientset.CoreV1().Secrets(r.namespace).Get(ctx, r.secretName, metav1.GetOptions{})
	switch {
	case apierrors.IsNotFound(err):
		return r.createSecret(ctx, data)
	case err != nil:
		return fmt.Errorf("failed to get current secret for update: %w", err)
	default:
		return r.updateSecret(ctx, current, data)
	}
}

// DeleteToken removes the secret; a missing secret is not an error
func (r *KubernetesSecretRepository) DeleteToken(ctx context.Context) error {
	err := r.clientset.CoreV1().Secrets(r.namespace).Delete(ctx, r.secretName, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		r.logger.Error("Failed to delete secret", "error", err)
		return fmt.Errorf("failed to delete token secret: %w", err)
	}
	r.logger.Info("Deleted OAuth2 token secret", "account_id", r.accountID)
	return nil
}

func (r *KubernetesSecretRepository) createSecret(ctx context.Context, data map[string][]byte) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      r.secretName,
			Namespace: r.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "greader-sync",
				"app.kubernetes.io/component":  "oauth2-token",
				"app.kubernetes.io/managed-by": "greader-sync",
			},
			Annotations: map[string]string{
				annotationLastUpdated:  time.Now().Format(time.RFC3339),
				annotationTokenVersion: "1",
				annotationAccount:      r.accountID,
			},
		},
		Type: corev1.SecretTypeOpaque,
		Data: data,
	}

	if _, err := r.clientset.CoreV1().Secrets(r.namespace).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
		r.logger.Error("Failed to create secret", "error", err)
		return fmt.Errorf("failed to create token secret: %w", err)
	}

	r.logger.Info("Created OAuth2 token secret", "account_id", r.accountID)
	return nil
}

func (r *KubernetesSecretRepository) updateSecret(ctx context.Context, current *corev1.Secret, data map[string][]byte) error {
	current.Data = data
	if current.Annotations == nil {
		current.Annotations = make(map[string]string)
	}
	current.Annotations[annotationLastUpdated] = time.Now().Format(time.RFC3339)
	current.Annotations[annotationAccount] = r.accountID

	version, _ := strconv.Atoi(current.Annotations[annotationTokenVersion])
	current.Annotations[annotationTokenVersion] = strconv.Itoa(version + 1)

	if _, err := r.clientset.CoreV1().Secrets(r.namespace).Update(ctx, current, metav1.UpdateOptions{}); err != nil {
		r.logger.Error("Failed to update secret", "error", err)
		return fmt.Errorf("failed to update token secret: %w", err)
	}

	r.logger.Info("Updated OAuth2 token secret",
		"account_id", r.accountID,
		"version", current.Annotations[annotationTokenVersion])
	return nil
}

// IsHealthy checks that the Kubernetes API answers; a missing secret is fine
func (r *KubernetesSecretRepository) IsHealthy(ctx context.Context) error {
	_, err := r.clientset.CoreV1().Secrets(r.namespace).Get(ctx, r.secretName, metav1.GetOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("kubernetes API connectivity check failed: %w", err)
	}
	return nil
}
