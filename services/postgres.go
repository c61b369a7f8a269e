package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/answerhive/answerhive_api/model"
)

type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	database string
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "answerhive_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		timezone := os.Getenv("DB_TIMEZONE")
		if timezone == "" {
			timezone = "UTC"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, user, password, dbname, port, sslmode, timezone)
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	// Retry connection with exponential backoff
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})

		if err == nil {
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				pingErr := sqlDB.Ping()
				if pingErr == nil {
					log.Println("Successfully connected to database")
					break
				}
				err = pingErr
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	models := []interface{}{
		&model.User{},
		&model.Conversation{},
		&model.QueryAndResponse{},
	}

	err = ds.db.AutoMigrate(models...)
	if err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
	sqlDB, err := ds.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound // 404
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict // 409
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest // 400
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError // 500
		errorType = "TRANSACTION_ERROR"
	default:
		// Check for PostgreSQL-specific errors
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			statusCode = http.StatusConflict // 409
			errorType = "UNIQUE_CONSTRAINT"
		} else if strings.Contains(err.Error(), "relation") && strings.Contains(err.Error(), "does not exist") {
			statusCode = http.StatusInternalServerError // 500
			errorType = "SCHEMA_ERROR"
		} else if strings.Contains(err.Error(), "connection refused") {
			statusCode = http.StatusServiceUnavailable // 503
			errorType = "DATABASE_CONNECTION_ERROR"
		} else {
			statusCode = http.StatusInternalServerError // 500
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return fmt.Errorf("%s: %w", errorType, err)
}

// IsDuplicateKeyError picks out the unique-constraint case so callers can
// retry a find-or-create race instead of failing the request.
func IsDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// ==================== USER METHODS ====================

func (ds *PostgresService) CreateUser(user *model.User) (*model.User, error) {
	if user.ID == "" {
		id, _ := uuid.NewV7()
		user.ID = id.String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	if err := ds.db.Create(user).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return user, nil
}

func (ds *PostgresService) GetUser(userID string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &user, nil
}

func (ds *PostgresService) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &user, nil
}

func (ds *PostgresService) UpdateUser(user *model.User) error {
	user.UpdatedAt = time.Now()
	if err := ds.db.Save(user).Error; err != nil {
		return ds.HandleError(err)
	}
	return nil
}

// DecrementQueries atomically takes one query from the allowance. Returns
// false when nothing was decremented, meaning the quota was already spent
// by a concurrent request.
func (ds *PostgresService) DecrementQueries(userID string) (bool, error) {
	result := ds.db.Model(&model.User{}).
		Where("id = ? AND queries_remaining > 0", userID).
		Updates(map[string]interface{}{
			"queries_remaining": gorm.Expr("queries_remaining - 1"),
			"updated_at":        time.Now(),
		})

	if result.Error != nil {
		return false, ds.HandleError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (ds *PostgresService) ResetQueries(userID string, limit int) error {
	err := ds.db.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"queries_remaining": limit,
		"updated_at":        time.Now(),
	}).Error
	return ds.HandleError(err)
}

func (ds *PostgresService) UpdateSubscription(userID, planCode, status string) error {
	err := ds.db.Model(&model.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"plan_code":           planCode,
		"subscription_status": status,
		"updated_at":          time.Now(),
	}).Error
	return ds.HandleError(err)
}

// ==================== CONVERSATION METHODS ====================

// FindOrCreateConversation relies on the (unique_identifier, user_id) unique
// index for the concurrent case: two first-message requests both miss the
// read, one insert wins, the loser re-reads the winner's row.
func (ds *PostgresService) FindOrCreateConversation(userID, uniqueIdentifier string) (*model.Conversation, error) {
	var conversation model.Conversation
	err := ds.db.Where("user_id = ? AND unique_identifier = ?", userID, uniqueIdentifier).
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ds.HandleError(err)
	}

	id, _ := uuid.NewV7()
	conversation = model.Conversation{
		ID:               id.String(),
		UserID:           userID,
		UniqueIdentifier: uniqueIdentifier,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := ds.db.Create(&conversation).Error; err != nil {
		if IsDuplicateKeyError(err) {
			var existing model.Conversation
			if readErr := ds.db.Where("user_id = ? AND unique_identifier = ?", userID, uniqueIdentifier).
				First(&existing).Error; readErr != nil {
				return nil, ds.HandleError(readErr)
			}
			return &existing, nil
		}
		return nil, ds.HandleError(err)
	}

	return &conversation, nil
}

func (ds *PostgresService) GetConversation(id string) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := ds.db.Where("id = ?", id).First(&conversation).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &conversation, nil
}

// GetConversationByUniqueIdentifier backs the public last-messages endpoint,
// where only the widget session identifier is known.
func (ds *PostgresService) GetConversationByUniqueIdentifier(uniqueIdentifier string) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := ds.db.Where("unique_identifier = ?", uniqueIdentifier).First(&conversation).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return &conversation, nil
}

// GetConversationTurns returns the full history oldest first, used to build
// the upstream message list and the idle summary.
func (ds *PostgresService) GetConversationTurns(conversationID string) ([]model.QueryAndResponse, error) {
	var turns []model.QueryAndResponse
	if err := ds.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Find(&turns).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return turns, nil
}

// GetLastTurns returns up to limit most recent turns in chronological order.
func (ds *PostgresService) GetLastTurns(conversationID string, limit int) ([]model.QueryAndResponse, error) {
	var turns []model.QueryAndResponse
	if err := ds.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Limit(limit).Find(&turns).Error; err != nil {
		return nil, ds.HandleError(err)
	}

	// Newest-first from the query, oldest-first for the caller.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AppendTurn persists one turn and bumps the conversation's last-message
// timestamp, which the idle-summary debounce keys off.
func (ds *PostgresService) AppendTurn(conversationID, userQuery, assistantResponse string) (*model.QueryAndResponse, error) {
	id, _ := uuid.NewV7()
	turn := model.QueryAndResponse{
		ID:                id.String(),
		ConversationID:    conversationID,
		UserQuery:         userQuery,
		AssistantResponse: assistantResponse,
		CreatedAt:         time.Now(),
	}

	err := ds.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&turn).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).Where("id = ?", conversationID).Updates(map[string]interface{}{
			"last_message_at": turn.CreatedAt,
			"updated_at":      time.Now(),
		}).Error
	})
	if err != nil {
		return nil, ds.HandleError(err)
	}

	return &turn, nil
}

func (ds *PostgresService) UpdateConversationTitle(id, title string) error {
	err := ds.db.Model(&model.Conversation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"title":      title,
		"updated_at": time.Now(),
	}).Error
	return ds.HandleError(err)
}

func (ds *PostgresService) UpdateConversationSummary(id, summary string) error {
	err := ds.db.Model(&model.Conversation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"summary":    summary,
		"updated_at": time.Now(),
	}).Error
	return ds.HandleError(err)
}

// FlagConversationForReview sets the flag once. Returns true only for the
// transition, so the notification mail goes out a single time per
// conversation no matter how many turns trip the check.
func (ds *PostgresService) FlagConversationForReview(id string) (bool, error) {
	result := ds.db.Model(&model.Conversation{}).
		Where("id = ? AND flagged_for_review = ?", id, false).
		Updates(map[string]interface{}{
			"flagged_for_review": true,
			"updated_at":         time.Now(),
		})

	if result.Error != nil {
		return false, ds.HandleError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FlagConversations is the manual path: the owner marks conversations for
// follow-up from the console. Clears any prior resolution.
func (ds *PostgresService) FlagConversations(userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := ds.db.Model(&model.Conversation{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]interface{}{
			"flagged_for_review": true,
			"resolved_at":        nil,
			"dismissed_at":       nil,
			"updated_at":         time.Now(),
		}).Error
	return ds.HandleError(err)
}

func (ds *PostgresService) ResolveConversations(userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	err := ds.db.Model(&model.Conversation{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]interface{}{
			"resolved_at": &now,
			"updated_at":  now,
		}).Error
	return ds.HandleError(err)
}

func (ds *PostgresService) DismissConversations(userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()
	err := ds.db.Model(&model.Conversation{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]interface{}{
			"dismissed_at": &now,
			"updated_at":   now,
		}).Error
	return ds.HandleError(err)
}

func (ds *PostgresService) DeleteConversations(userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return ds.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id IN ?", ids).Delete(&model.QueryAndResponse{}).Error; err != nil {
			return ds.HandleError(err)
		}
		if err := tx.Where("user_id = ? AND id IN ?", userID, ids).Delete(&model.Conversation{}).Error; err != nil {
			return ds.HandleError(err)
		}
		return nil
	})
}

func (ds *PostgresService) ListConversations(userID string, search string, page, limit int) ([]model.Conversation, int64, error) {
	if limit <= 0 {
		limit = 25
	}
	if page <= 0 {
		page = 1
	}

	query := ds.db.Model(&model.Conversation{}).Where("conversations.user_id = ?", userID)

	if search != "" {
		term := "%" + strings.ToLower(search) + "%"
		query = query.
			Joins("JOIN query_and_responses ON query_and_responses.conversation_id = conversations.id").
			Where("conversations.title ILIKE ? OR query_and_responses.user_query ILIKE ? OR query_and_responses.assistant_response ILIKE ?",
				term, term, term).
			Distinct("conversations.*")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, ds.HandleError(err)
	}

	var conversations []model.Conversation
	if err := query.Order("conversations.last_message_at DESC NULLS LAST").
		Limit(limit).Offset((page - 1) * limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, ds.HandleError(err)
	}

	return conversations, total, nil
}

func (ds *PostgresService) GetConversationsForReview(userID string) ([]model.Conversation, error) {
	var conversations []model.Conversation
	if err := ds.db.
		Where("user_id = ? AND flagged_for_review = ? AND resolved_at IS NULL AND dismissed_at IS NULL", userID, true).
		Order("last_message_at DESC NULLS LAST").
		Preload("QueryAndResponses", func(db *gorm.DB) *gorm.DB {
			return db.Order("query_and_responses.created_at ASC")
		}).
		Find(&conversations).Error; err != nil {
		return nil, ds.HandleError(err)
	}
	return conversations, nil
}
