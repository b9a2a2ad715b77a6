// Package platform talks to the learning platform's REST API for sessions,
// awarded achievements and achievement details.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/lingoquest/internal/domain/model"
	"github.com/okian/lingoquest/pkg/logger"
	"github.com/okian/lingoquest/pkg/metrics"
	"github.com/okian/lingoquest/pkg/tracing"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "lingoquest-notifier"
	maxErrorBody     = 512
)

// Client is a REST client for the platform API.
type Client struct {
	base      *url.URL
	http      *http.Client
	timeout   time.Duration
	token     string
	userAgent string

	tracer trace.Tracer
	logger logger.Logger
}

// NewClient creates a client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		base:      u,
		http:      &http.Client{},
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		tracer:    tracing.Tracer(),
		logger:    logger.Get().Named("platform"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CurrentUserID returns the signed-in user, or ErrNoSession.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	var me meResponse
	err := c.getJSON(ctx, "platform.current_user", &me, "auth", "me")
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "", ErrNoSession
	case err != nil:
		return "", err
	case me.ID == "":
		return "", ErrNoSession
	}
	return me.ID, nil
}

// ListUserAchievements returns every achievement awarded to userID, in
// server order.
func (c *Client) ListUserAchievements(ctx context.Context, userID string) ([]model.UserAchievement, error) {
	var dtos []userAchievementDTO
	if err := c.getJSON(ctx, "platform.list_user_achievements", &dtos, "users", userID, "achievements"); err != nil {
		return nil, err
	}

	out := make([]model.UserAchievement, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toModel())
	}
	return out, nil
}

// GetAchievement returns the display record of one achievement.
func (c *Client) GetAchievement(ctx context.Context, id string) (model.Achievement, error) {
	var dto achievementDTO
	if err := c.getJSON(ctx, "platform.get_achievement", &dto, "achievements", id); err != nil {
		return model.Achievement{}, err
	}
	if dto.ID == "" {
		dto.ID = id
	}
	return dto.toModel(), nil
}

// getJSON issues a GET for the path built from elems below the base URL and
// decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, op string, out any, elems ...string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base.JoinPath(elems...).String()
	ctx, span := c.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", endpoint),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent("platform", "transport")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug(ctx, "platform request",
		logger.String("op", op),
		logger.String("request_id", requestID),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.RecordErrorByComponent("platform", "status_"+statusClass(resp.StatusCode))
		return fmt.Errorf("%s: %w %d: %s", op, ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrDecode, err)
	}
	return nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
