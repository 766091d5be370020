package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
)

// ForecastNotificationMessage is the wire contract consumed by the
// email/notification dispatcher service.
type ForecastNotificationMessage struct {
	ID              int             `json:"id"`
	TenantId        string          `json:"tenant_id"`
	AdminUserId     int             `json:"admin_user_id"`
	AdminEmail      string          `json:"admin_email"`
	ProductId       int             `json:"product_id"`
	VariationId     *int            `json:"variation_id"`
	RiskLevel       string          `json:"risk_level"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	AvgDailySales   float64         `json:"avg_daily_sales"`
	ReorderPoint    decimal.Decimal `json:"reorder_point"`
	SafetyStock     decimal.Decimal `json:"safety_stock"`
	DaysToStockout  float64         `json:"days_to_stockout"`
	ForecastedAt    time.Time       `json:"forecasted_at"`
	CorrelationId   string          `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

// getPubSubClient returns a Pub/Sub client, initializing with retries if needed.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	if pubsubClient != nil {
		c := pubsubClient
		pubsubClientMu.Unlock()
		return c, nil
	}
	pubsubClientMu.Unlock()

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var attempt int
	for {
		attempt++
		var opts []option.ClientOption
		if credJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
		}
		client, err := pubsub.NewClient(ctx, projectID, opts...)
		if err == nil {
			pubsubClientMu.Lock()
			pubsubClient = client
			pubsubClientMu.Unlock()
			return client, nil
		}
		if attempt >= 5 {
			return nil, err
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 4))
		log.Printf("failed to create pubsub client (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// PublishForecastNotificationWithResult publishes one notification message and
// waits for the server-assigned message id. Best-effort: callers log failures
// and never roll back the persisted forecast snapshot.
func PublishForecastNotificationWithResult(ctx context.Context, tenantId string, msg ForecastNotificationMessage) (string, error) {
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	topicName := os.Getenv("FORECAST_NOTIFICATION_TOPIC")
	if topicName == "" {
		return "", errors.New("FORECAST_NOTIFICATION_TOPIC is required")
	}

	t := client.Topic(topicName)
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := t.Publish(ctx, &pubsub.Message{
		Data: msgJSON,
		Attributes: map[string]string{
			"tenant_id":  tenantId,
			"risk_level": msg.RiskLevel,
		},
	})

	id, err := result.Get(ctx)
	return id, err
}
