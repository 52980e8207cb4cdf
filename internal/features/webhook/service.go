package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-estimate/internal/common/models"
	"go-estimate/internal/features/audit"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"
)

type WebhookService interface {
	CreateWebhook(ctx context.Context, webhook *Webhook) error
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	GetWebhook(ctx context.Context, id string) (*Webhook, error)
	UpdateWebhook(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteWebhook(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, webhookID string) ([]WebhookLog, error)

	// Trigger delivers the event to every active subscription, each in its
	// own goroutine.
	Trigger(ctx context.Context, event string, payload models.WebhookPayload)
}

type WebhookServiceImpl struct {
	Repo         WebhookRepository
	LogRepo      WebhookLogRepository
	AuditService audit.AuditService
	Logger       *zap.Logger
	HttpClient   *http.Client
}

func NewWebhookService(repo WebhookRepository, logRepo WebhookLogRepository, auditService audit.AuditService, logger *zap.Logger) WebhookService {
	return &WebhookServiceImpl{
		Repo:         repo,
		LogRepo:      logRepo,
		AuditService: auditService,
		Logger:       logger,
		HttpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WebhookServiceImpl) CreateWebhook(ctx context.Context, webhook *Webhook) error {
	if webhook.Transform != "" {
		if err := validateTransform(webhook.Transform); err != nil {
			return fmt.Errorf("transform script: %w", err)
		}
	}

	err := s.Repo.Create(ctx, webhook)
	if err == nil {
		s.AuditService.LogChange(ctx, models.AuditActionWebhook, "webhooks", webhook.ID.Hex(), map[string]models.Change{
			"webhook": {New: webhook.URL},
		})
	}
	return err
}

func (s *WebhookServiceImpl) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	return s.Repo.List(ctx)
}

func (s *WebhookServiceImpl) GetWebhook(ctx context.Context, id string) (*Webhook, error) {
	return s.Repo.Get(ctx, id)
}

func (s *WebhookServiceImpl) UpdateWebhook(ctx context.Context, id string, updates map[string]interface{}) error {
	if script, ok := updates["transform"].(string); ok && script != "" {
		if err := validateTransform(script); err != nil {
			return fmt.Errorf("transform script: %w", err)
		}
	}

	oldWebhook, _ := s.GetWebhook(ctx, id)

	err := s.Repo.Update(ctx, id, updates)
	if err == nil {
		s.AuditService.LogChange(ctx, models.AuditActionWebhook, "webhooks", id, map[string]models.Change{
			"webhook": {Old: oldWebhook, New: updates},
		})
	}
	return err
}

func (s *WebhookServiceImpl) DeleteWebhook(ctx context.Context, id string) error {
	oldWebhook, _ := s.GetWebhook(ctx, id)

	err := s.Repo.Delete(ctx, id)
	if err == nil {
		name := id
		if oldWebhook != nil {
			name = oldWebhook.URL
		}
		s.AuditService.LogChange(ctx, models.AuditActionWebhook, "webhooks", name, map[string]models.Change{
			"webhook": {Old: oldWebhook, New: "DELETED"},
		})
	}
	return err
}

func (s *WebhookServiceImpl) ListDeliveries(ctx context.Context, webhookID string) ([]WebhookLog, error) {
	return s.LogRepo.ListByWebhookID(ctx, webhookID)
}

func (s *WebhookServiceImpl) Trigger(ctx context.Context, event string, payload models.WebhookPayload) {
	webhooks, err := s.Repo.ListByEvent(ctx, event)
	if err != nil {
		s.Logger.Warn("webhook trigger: subscription lookup failed",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	for _, wh := range webhooks {
		go s.deliver(wh, payload)
	}
}

func (s *WebhookServiceImpl) deliver(wh Webhook, payload models.WebhookPayload) {
	started := time.Now()
	entry := &WebhookLog{
		TenantID:  wh.TenantID,
		WebhookID: wh.ID,
		URL:       wh.URL,
		Event:     payload.Event,
	}

	var body []byte
	var err error
	if wh.Transform != "" {
		body, err = s.transform(wh.Transform, payload)
	} else {
		body, err = json.Marshal(payload)
	}
	if err != nil {
		entry.Response = err.Error()
		s.finishDelivery(entry, started)
		return
	}
	entry.Request = string(body)

	req, err := http.NewRequest("POST", wh.URL, bytes.NewBuffer(body))
	if err != nil {
		entry.Response = err.Error()
		s.finishDelivery(entry, started)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Go-Estimate-Webhook")
	req.Header.Set("X-Estimate-Event", payload.Event)
	req.Header.Set("X-Estimate-Delivery", fmt.Sprintf("%d", time.Now().UnixNano()))

	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}

	if wh.Secret != "" {
		mac := hmac.New(sha256.New, []byte(wh.Secret))
		mac.Write(body)
		signature := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-Estimate-Signature", "sha256="+signature)
	}

	resp, err := s.HttpClient.Do(req)
	if err != nil {
		entry.Response = err.Error()
		s.finishDelivery(entry, started)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	entry.StatusCode = resp.StatusCode
	entry.Response = string(respBody)
	entry.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	s.finishDelivery(entry, started)
}

func (s *WebhookServiceImpl) finishDelivery(entry *WebhookLog, started time.Time) {
	entry.Duration = time.Since(started).Milliseconds()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.LogRepo.Create(ctx, entry); err != nil {
		s.Logger.Warn("webhook delivery log failed",
			zap.String("url", entry.URL),
			zap.Error(err))
	}
	if !entry.Success {
		s.Logger.Warn("webhook delivery failed",
			zap.String("url", entry.URL),
			zap.String("event", entry.Event),
			zap.Int("status", entry.StatusCode))
	}
}

// transform runs the subscription's script over the payload. The script sees
// `payload` as a map and must assign the reshaped value to `out`.
func (s *WebhookServiceImpl) transform(scriptContent string, payload models.WebhookPayload) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return nil, err
	}

	script := tengo.NewScript([]byte("out := payload\n" + scriptContent))
	if err := script.Add("payload", asMap); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	compiled, err := script.RunContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run script: %w", err)
	}

	out := compiled.Get("out").Value()
	return json.Marshal(out)
}

func validateTransform(scriptContent string) error {
	script := tengo.NewScript([]byte("out := payload\n" + scriptContent))
	if err := script.Add("payload", map[string]interface{}{}); err != nil {
		return err
	}
	if _, err := script.Compile(); err != nil {
		return fmt.Errorf("failed to compile script: %w", err)
	}
	return nil
}
