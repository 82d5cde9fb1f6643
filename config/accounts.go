// ABOUTME: Per-account configuration read from a YAML accounts file
// ABOUTME: Falls back to a single account described by GREADER_* environment variables

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"greader-sync/models"
)

var accountIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// Token stores an OAuth account can persist its tokens to
const (
	TokenStoreDatabase   = "database"
	TokenStoreKubernetes = "kubernetes"
	TokenStoreEnvFile    = "env_file"
	TokenStoreRedis      = "redis"
	TokenStoreRemote     = "remote"
)

const defaultQuotaSafetyPercent = 10

// AccountConfig describes one Google Reader API account
type AccountConfig struct {
	ID       string `yaml:"id" validate:"required,max=64"`
	Provider string `yaml:"provider" validate:"omitempty,oneof=freshrss inoreader theoldreader the-old-reader bazqux reedah other greader"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordFile is read instead of Password when set
	PasswordFile string `yaml:"password_file"`

	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenStore   string `yaml:"token_store" validate:"omitempty,oneof=database kubernetes env_file redis remote"`
	// TokenSecret names the Kubernetes secret or env file holding the tokens
	TokenSecret string `yaml:"token_secret"`

	UnreadOnly        bool          `yaml:"unread_only"`
	IntelligentSync   *bool         `yaml:"intelligent_sync"`
	NewerThan         time.Duration `yaml:"newer_than" validate:"min=0"`
	BatchSize         int           `yaml:"batch_size" validate:"min=0"`
	ItemContentsBatch int           `yaml:"item_contents_batch" validate:"min=0,max=1000"`
	GlobalThreshold   float64       `yaml:"global_threshold" validate:"gte=0,lte=1"`
	WantIcons         bool          `yaml:"want_icons"`
	// QuotaSafetyPercent of the provider's read quota is kept in reserve
	QuotaSafetyPercent int `yaml:"quota_safety_percent" validate:"min=0,max=99"`
}

type accountsFile struct {
	Accounts []AccountConfig `yaml:"accounts"`
}

// ProviderKind parses the configured provider name
func (a AccountConfig) ProviderKind() models.Provider {
	p, _ := models.ParseProvider(a.Provider)
	return p
}

// Spec returns the provider table entry for the account
func (a AccountConfig) Spec() models.ProviderSpec {
	return models.SpecFor(a.ProviderKind())
}

// UsesIntelligentSync defaults to true when unset
func (a AccountConfig) UsesIntelligentSync() bool {
	return a.IntelligentSync == nil || *a.IntelligentSync
}

// EffectiveBaseURL returns the configured URL or the provider default
func (a AccountConfig) EffectiveBaseURL() string {
	if a.BaseURL != "" {
		return a.BaseURL
	}
	return a.Spec().DefaultBaseURL
}

// TokenSecretName returns the secret holding this account's OAuth tokens
func (a AccountConfig) TokenSecretName() string {
	if a.TokenSecret != "" {
		return a.TokenSecret
	}
	return "greader-sync-" + a.ID + "-token"
}

func (a AccountConfig) validate() error {
	if !accountIDPattern.MatchString(a.ID) {
		return fmt.Errorf("account id %q may only contain letters, digits, '-' and '_'", a.ID)
	}
	if _, err := models.ParseProvider(a.Provider); err != nil {
		return err
	}
	if a.EffectiveBaseURL() == "" {
		return fmt.Errorf("base_url is required for provider %s", a.ProviderKind())
	}
	if a.Spec().UsesOAuth() {
		if a.ClientID == "" || a.ClientSecret == "" {
			return fmt.Errorf("client_id and client_secret are required for provider %s", a.ProviderKind())
		}
		return nil
	}
	if a.Username == "" || a.Password == "" {
		return fmt.Errorf("username and password are required for provider %s", a.ProviderKind())
	}
	return nil
}

// ParseAccounts decodes and validates an accounts document
func ParseAccounts(data []byte) ([]AccountConfig, error) {
	var doc accountsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	validate := validator.New()
	for i := range doc.Accounts {
		account := &doc.Accounts[i]
		if account.PasswordFile != "" {
			secret, err := os.ReadFile(account.PasswordFile)
			if err != nil {
				return nil, fmt.Errorf("account %s: failed to read password file: %w", account.ID, err)
			}
			account.Password = strings.TrimSpace(string(secret))
		}
		if account.TokenStore == "" {
			account.TokenStore = TokenStoreDatabase
		}
		if account.QuotaSafetyPercent == 0 {
			account.QuotaSafetyPercent = defaultQuotaSafetyPercent
		}
		if err := validate.Struct(account); err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
	}
	return doc.Accounts, nil
}

func loadAccounts(path string) ([]AccountConfig, error) {
	if path == "" {
		return accountFromEnv(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	return ParseAccounts(data)
}

// accountFromEnv builds the single "default" account, or none when GREADER_PROVIDER is unset
func accountFromEnv() []AccountConfig {
	provider := os.Getenv("GREADER_PROVIDER")
	if provider == "" {
		return nil
	}
	return []AccountConfig{{
		ID:                 getEnvOrDefault("GREADER_ACCOUNT_ID", "default"),
		Provider:           provider,
		BaseURL:            os.Getenv("GREADER_URL"),
		Username:           os.Getenv("GREADER_USERNAME"),
		Password:           GetSecretOrEnv("GREADER_PASSWORD_FILE", "GREADER_PASSWORD"),
		ClientID:           os.Getenv("GREADER_CLIENT_ID"),
		ClientSecret:       GetSecretOrEnv("GREADER_CLIENT_SECRET_FILE", "GREADER_CLIENT_SECRET"),
		TokenStore:         getEnvOrDefault("GREADER_TOKEN_STORE", TokenStoreDatabase),
		UnreadOnly:         getEnvBool("GREADER_UNREAD_ONLY", false),
		BatchSize:          getEnvInt("GREADER_BATCH_SIZE", 0),
		WantIcons:          getEnvBool("GREADER_WANT_ICONS", true),
		QuotaSafetyPercent: getEnvInt("GREADER_QUOTA_SAFETY_PERCENT", defaultQuotaSafetyPercent),
	}}
}
