package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kisan-ai-pipeline/internal/config"
	"kisan-ai-pipeline/internal/models"
	"kisan-ai-pipeline/internal/pkg/logger"
)

// SessionService is the append-only observability sink: one hash per
// session plus a capped stream of ordered progress thoughts. The manager
// only ever writes; the sessions endpoint reads back for debugging.
type SessionService struct {
	client  *redis.Client
	logger  *logger.Logger
	session config.SessionConfig
}

func NewSessionService(redisCfg config.RedisConfig, sessionCfg config.SessionConfig, log *logger.Logger) (*SessionService, error) {
	opt, err := redis.ParseURL(redisCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	configureRedisOptions(opt, redisCfg)

	service := &SessionService{
		client:  redis.NewClient(opt),
		logger:  log,
		session: sessionCfg,
	}

	if err := service.testConnection(); err != nil {
		return nil, fmt.Errorf("connection to Redis failed: %w", err)
	}

	log.Info("Session service initialized",
		"redis_url", redisCfg.URL,
		"session_ttl", sessionCfg.TTL,
		"pool_size", redisCfg.PoolSize)

	return service, nil
}

func configureRedisOptions(opt *redis.Options, cfg config.RedisConfig) {
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.DialTimeout = cfg.DialTimeout
}

func (service *SessionService) testConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := service.client.Ping(ctx).Err(); err != nil {
		return err
	}

	service.logger.Info("Redis connection tested successfully")
	return nil
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

func thoughtsKey(sessionID string) string {
	return "session:" + sessionID + ":thoughts"
}

// CreateSession allocates a session id and writes the initial record.
func (service *SessionService) CreateSession(ctx context.Context, userID string, input map[string]interface{}) (string, error) {
	sessionID := models.GenerateSessionID()
	startTime := time.Now()

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", models.NewInternalError("SESSION_MARSHAL", "failed to marshal session input").WithCause(err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	pipe := service.client.Pipeline()
	pipe.HSet(ctx, sessionKey(sessionID), map[string]interface{}{
		"user_id":    userID,
		"status":     string(models.SessionStatusProcessing),
		"input_data": string(inputJSON),
		"created_at": now,
		"updated_at": now,
	})
	pipe.Expire(ctx, sessionKey(sessionID), service.session.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		service.logger.LogSession(sessionID, userID, "create_session", time.Since(startTime), err)
		return "", models.WrapExternalError("REDIS", err)
	}

	service.logger.LogSession(sessionID, userID, "create_session", time.Since(startTime), nil)
	return sessionID, nil
}

// AddThought appends one progress event to the session's capped stream.
// Per-session ordering follows call order; cross-session ordering is not
// guaranteed and not needed.
func (service *SessionService) AddThought(ctx context.Context, sessionID, thought string) error {
	err := service.client.XAdd(ctx, &redis.XAddArgs{
		Stream: thoughtsKey(sessionID),
		MaxLen: service.session.ThoughtsMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"thought":   thought,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return models.WrapExternalError("REDIS", err)
	}

	pipe := service.client.Pipeline()
	pipe.Expire(ctx, thoughtsKey(sessionID), service.session.TTL)
	pipe.HSet(ctx, sessionKey(sessionID), "updated_at", time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		service.logger.WithError(err).Warn("failed to refresh session after thought",
			"session_id", sessionID)
	}
	return nil
}

// SaveAgentResponse stores the specialist's last response under its name.
func (service *SessionService) SaveAgentResponse(ctx context.Context, sessionID, agentName string, response *models.AgentResponse) error {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return models.NewInternalError("SESSION_MARSHAL", "failed to marshal agent response").WithCause(err)
	}

	err = service.client.HSet(ctx, sessionKey(sessionID),
		"agent:"+agentName, string(responseJSON),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return models.WrapExternalError("REDIS", err)
	}
	return nil
}

// UpdateStatus moves the session to a terminal (or intermediate) status.
func (service *SessionService) UpdateStatus(ctx context.Context, sessionID string, status models.SessionStatus, finalMessage string) error {
	fields := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if finalMessage != "" {
		fields["final_response"] = finalMessage
	}

	if err := service.client.HSet(ctx, sessionKey(sessionID), fields).Err(); err != nil {
		return models.WrapExternalError("REDIS", err)
	}
	return nil
}

// GetSession reads the full session record back, thoughts included.
func (service *SessionService) GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	data, err := service.client.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, models.WrapExternalError("REDIS", err)
	}
	if len(data) == 0 {
		return nil, models.ErrSessionNotFound
	}

	record := &models.SessionRecord{
		ID:             sessionID,
		UserID:         data["user_id"],
		Status:         models.SessionStatus(data["status"]),
		FinalMessage:   data["final_response"],
		AgentResponses: map[string]*models.AgentResponse{},
	}
	record.CreatedAt = parseSessionTime(data["created_at"])
	record.UpdatedAt = parseSessionTime(data["updated_at"])

	if raw, ok := data["input_data"]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &record.InputData); err != nil {
			service.logger.WithError(err).Warn("failed to parse session input data",
				"session_id", sessionID)
		}
	}

	for field, value := range data {
		if len(field) > 6 && field[:6] == "agent:" {
			var response models.AgentResponse
			if err := json.Unmarshal([]byte(value), &response); err != nil {
				service.logger.WithError(err).Warn("failed to parse stored agent response",
					"session_id", sessionID,
					"field", field)
				continue
			}
			record.AgentResponses[field[6:]] = &response
		}
	}

	entries, err := service.client.XRange(ctx, thoughtsKey(sessionID), "-", "+").Result()
	if err != nil {
		service.logger.WithError(err).Warn("failed to read session thoughts",
			"session_id", sessionID)
	} else {
		for _, entry := range entries {
			thought := models.SessionThought{}
			if text, ok := entry.Values["thought"].(string); ok {
				thought.Thought = text
			}
			if stamp, ok := entry.Values["timestamp"].(string); ok {
				thought.Timestamp = parseSessionTime(stamp)
			}
			record.Thoughts = append(record.Thoughts, thought)
		}
	}

	return record, nil
}

func parseSessionTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func (service *SessionService) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := service.client.Ping(probeCtx).Err(); err != nil {
		return models.WrapExternalError("REDIS", err)
	}
	return nil
}

func (service *SessionService) Close() error {
	service.logger.Info("Closing session service")
	if err := service.client.Close(); err != nil {
		return fmt.Errorf("error closing Redis connection: %w", err)
	}
	return nil
}

// Client exposes the underlying connection for services sharing it.
func (service *SessionService) Client() *redis.Client {
	return service.client
}
