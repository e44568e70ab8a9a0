package lark

import (
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// DefaultRequestTimeout bounds a single notification push
const DefaultRequestTimeout = 10 * time.Second

// Config holds the credentials of the Lark app that sends case notifications
type Config struct {
	AppID          string
	AppSecret      string
	RequestTimeout time.Duration
	Debug          bool
}

// SDKClient wraps the Lark SDK client used for outbound IM messages
type SDKClient struct {
	client  *lark.Client
	appID   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	level := larkcore.LogLevelWarn
	if cfg.Debug {
		level = larkcore.LogLevelDebug
	}

	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(level),
		lark.WithEnableTokenCache(true),
		lark.WithReqTimeout(timeout),
	)

	logger.Info("Lark notification channel configured",
		zap.String("app_id", cfg.AppID),
		zap.Duration("request_timeout", timeout))

	return &SDKClient{
		client:  client,
		appID:   cfg.AppID,
		timeout: timeout,
		logger:  logger,
	}
}

// messages returns the IM message API the messenger sends through
func (c *SDKClient) messages() messageCreator {
	return c.client.Im.Message
}

// RequestTimeout returns the per-request timeout applied to pushes
func (c *SDKClient) RequestTimeout() time.Duration {
	return c.timeout
}
