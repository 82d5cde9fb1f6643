package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"greader-sync/bootstrap"
	"greader-sync/service"
	"greader-sync/utils"
)

// Health states, worst last
const (
	healthHealthy   = "healthy"
	healthDegraded  = "degraded"
	healthUnhealthy = "unhealthy"
)

// accountProbe reads the health signals of one account
type accountProbe struct {
	id      string
	breaker func() utils.CircuitBreakerStats
	// tokens is nil for password accounts
	tokens func(ctx context.Context) (service.TokenStatus, error)
}

// HealthCheckService checks the database and every configured account
type HealthCheckService struct {
	version             string
	logger              *slog.Logger
	databaseHealthCheck func(ctx context.Context) error
	accounts            []accountProbe
	now                 func() time.Time
}

// NewHealthCheckService creates a health check over the wired dependencies
func NewHealthCheckService(deps *bootstrap.Dependencies, version string) *HealthCheckService {
	hcs := &HealthCheckService{
		version:             version,
		logger:              deps.Logger,
		databaseHealthCheck: deps.Ping,
		now:                 time.Now,
	}
	for _, a := range deps.Accounts {
		probe := accountProbe{id: a.Config.ID, breaker: a.Sync.BreakerStats}
		if a.Tokens != nil {
			probe.tokens = a.Tokens.Status
		}
		hcs.accounts = append(hcs.accounts, probe)
	}
	return hcs
}

// PerformHealthCheck performs a comprehensive health check. A database failure
// makes the service unhealthy; an open breaker or a missing OAuth token only
// degrades it.
func (hcs *HealthCheckService) PerformHealthCheck(ctx context.Context) map[string]interface{} {
	result := map[string]interface{}{
		"status":    healthHealthy,
		"timestamp": hcs.now().UTC().Format(time.RFC3339),
		"version":   hcs.version,
	}

	var problems []string
	status := healthHealthy

	if err := hcs.databaseHealthCheck(ctx); err != nil {
		result["database"] = "unreachable"
		problems = append(problems, fmt.Sprintf("database: %v", err))
		status = healthUnhealthy
	} else {
		result["database"] = "ok"
	}

	accounts := map[string]interface{}{}
	for _, probe := range hcs.accounts {
		breaker := probe.breaker()
		entry := map[string]interface{}{"breaker": breaker.State.String()}
		if breaker.State == utils.StateOpen {
			problems = append(problems, fmt.Sprintf("%s: circuit breaker open", probe.id))
			status = worse(status, healthDegraded)
		}

		if probe.tokens != nil {
			tokenStatus, err := probe.tokens(ctx)
			switch {
			case err != nil:
				entry["oauth_authorized"] = false
				problems = append(problems, fmt.Sprintf("%s: token store: %v", probe.id, err))
				status = worse(status, healthDegraded)
			case !tokenStatus.Authorized:
				entry["oauth_authorized"] = false
				problems = append(problems, fmt.Sprintf("%s: OAuth authorization missing", probe.id))
				status = worse(status, healthDegraded)
			default:
				entry["oauth_authorized"] = true
			}
		}
		accounts[probe.id] = entry
	}
	result["accounts"] = accounts

	result["status"] = status
	if len(problems) > 0 {
		result["error_details"] = problems
		hcs.logger.Warn("Health check found problems", "status", status, "problems", len(problems))
	}
	return result
}

func worse(current, candidate string) string {
	rank := map[string]int{healthHealthy: 0, healthDegraded: 1, healthUnhealthy: 2}
	if rank[candidate] > rank[current] {
		return candidate
	}
	return current
}

// probeServer asks a running instance for its /healthz status
func probeServer(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the database, accounts and tokens",
	Long: `Check the database connection, the circuit breaker of every account and
whether OAuth accounts hold a token. With --url, probe the /healthz endpoint of
a running server instead, e.g. from a container health check.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if url, _ := cmd.Flags().GetString("url"); url != "" {
			if err := probeServer(ctx, url); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		}

		deps, cleanup, err := buildDependencies(ctx)
		if err != nil {
			_ = writeOutput(cmd.OutOrStdout(), "json", map[string]string{"status": healthUnhealthy, "error": err.Error()})
			return err
		}
		defer cleanup()

		result := NewHealthCheckService(deps, cfg.ServiceVersion).PerformHealthCheck(ctx)
		if err := writeOutput(cmd.OutOrStdout(), "json", result); err != nil {
			return err
		}
		if result["status"] != healthHealthy {
			return errors.New("service is " + result["status"].(string))
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("url", "", "base URL of a running server to probe")
	rootCmd.AddCommand(healthCmd)
}
