package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/servimarket/api/models"
)

// ConversationKey is the canonical (client, root company) pair that
// identifies a thread. All lookups go through it, so a conversation
// started by a client, a root company or any of its employees lands on
// the same row.
type ConversationKey struct {
	ClientID  uint
	CompanyID uint
}

// SendResult carries everything the live layer needs after a send:
// the durable message plus the user ids the event fans out to.
type SendResult struct {
	Conversation models.Conversation
	Message      models.Message
	Recipients   []uint
}

type ChatService struct {
	db  *gorm.DB
	dir *DirectoryService
	log zerolog.Logger
}

func NewChatService(db *gorm.DB, dir *DirectoryService, log zerolog.Logger) *ChatService {
	return &ChatService{db: db, dir: dir, log: log}
}

// Normalize computes the canonical pair for an initiator/counterpart
// relationship. Whichever side is the client keeps its own id; the
// company side collapses to its root company. Pairs without exactly one
// client and one company-side account have no canonical form.
func Normalize(initiator, counterpart models.User) (ConversationKey, error) {
	switch {
	case initiator.Role == models.RoleClient && counterpart.Role.CompanySide():
		root, err := RootCompanyOf(counterpart)
		if err != nil {
			return ConversationKey{}, err
		}
		return ConversationKey{ClientID: initiator.ID, CompanyID: root}, nil
	case initiator.Role.CompanySide() && counterpart.Role == models.RoleClient:
		root, err := RootCompanyOf(initiator)
		if err != nil {
			return ConversationKey{}, err
		}
		return ConversationKey{ClientID: counterpart.ID, CompanyID: root}, nil
	}
	return ConversationKey{}, fmt.Errorf("no client/company pairing between %s and %s: %w",
		initiator.Role, counterpart.Role, ErrForbiddenPair)
}

// GetOrCreate returns the conversation for a canonical pair, creating
// it when absent. The lookup+insert runs in one transaction and the
// pair carries a unique index; losing a race surfaces as a duplicate
// key, recovered by re-reading the winner's row.
func (s *ChatService) GetOrCreate(key ConversationKey) (models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("client_id = ? AND company_id = ?", key.ClientID, key.CompanyID).
			First(&conv).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		conv = models.Conversation{
			ClientID:      key.ClientID,
			CompanyID:     key.CompanyID,
			LastMessageAt: time.Now(),
		}
		return tx.Create(&conv).Error
	})
	if err == nil {
		return conv, nil
	}
	if !isDuplicateKey(err) {
		return models.Conversation{}, err
	}
	var existing models.Conversation
	if rerr := s.db.Where("client_id = ? AND company_id = ?", key.ClientID, key.CompanyID).
		First(&existing).Error; rerr != nil {
		return models.Conversation{}, fmt.Errorf("conversation (%d,%d): %w", key.ClientID, key.CompanyID, ErrConflict)
	}
	return existing, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

// AppendMessage inserts a message and bumps the parent conversation's
// last-message timestamp in the same transaction.
func (s *ChatService) AppendMessage(conversationID, senderID uint, body string) (models.Message, error) {
	var msg models.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, conversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("conversation %d: %w", conversationID, ErrConversationNotFound)
			}
			return err
		}
		msg = models.Message{
			ConversationID: conv.ID,
			SenderID:       senderID,
			Body:           body,
			SentAt:         time.Now(),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&conv).Update("last_message_at", msg.SentAt).Error
	})
	if err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// hasAccess reports whether the user's normalized identity matches one
// of the conversation's stored parties. Employees and child companies
// authorize transitively through their root company.
func hasAccess(user models.User, conv models.Conversation) bool {
	switch user.Role {
	case models.RoleClient:
		return conv.ClientID == user.ID
	case models.RoleCompany, models.RoleCompanyEmployee:
		root, err := RootCompanyOf(user)
		if err != nil {
			return false
		}
		return conv.CompanyID == root
	case models.RoleAdmin:
		return false
	}
	return false
}

// ListConversations returns the user's threads, newest activity first.
func (s *ChatService) ListConversations(userID uint) ([]models.Conversation, error) {
	user, err := s.dir.GetUser(userID)
	if err != nil {
		return nil, err
	}

	q := s.db.Preload("Client").Preload("Company").Order("last_message_at DESC")
	switch user.Role {
	case models.RoleClient:
		q = q.Where("client_id = ?", user.ID)
	case models.RoleCompany, models.RoleCompanyEmployee:
		root, err := RootCompanyOf(user)
		if err != nil {
			return nil, err
		}
		q = q.Where("company_id = ?", root)
	case models.RoleAdmin:
		return []models.Conversation{}, nil
	}

	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

// ListMessages returns a conversation's log in send order after the
// access check.
func (s *ChatService) ListMessages(conversationID, userID uint) ([]models.Message, error) {
	user, err := s.dir.GetUser(userID)
	if err != nil {
		return nil, err
	}

	var conv models.Conversation
	if err := s.db.First(&conv, conversationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrConversationNotFound)
		}
		return nil, err
	}
	if !hasAccess(user, conv) {
		return nil, fmt.Errorf("user %d on conversation %d: %w", userID, conversationID, ErrUnauthorized)
	}

	var msgs []models.Message
	err = s.db.Preload("Sender").
		Where("conversation_id = ?", conv.ID).
		Order("sent_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flags a message as read. Idempotent; any participant with
// access to the parent conversation may call it, the sender included.
func (s *ChatService) MarkRead(messageID, userID uint) (models.Message, error) {
	user, err := s.dir.GetUser(userID)
	if err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	if err := s.db.Preload("Conversation").First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Message{}, fmt.Errorf("message %d: %w", messageID, ErrNotFound)
		}
		return models.Message{}, err
	}
	if !hasAccess(user, msg.Conversation) {
		return models.Message{}, fmt.Errorf("user %d on message %d: %w", userID, messageID, ErrUnauthorized)
	}

	if !msg.Read {
		if err := s.db.Model(&msg).Update("read", true).Error; err != nil {
			return models.Message{}, err
		}
		msg.Read = true
	}
	return msg, nil
}

// Recipients computes the live fan-out set for a freshly appended
// message. A client's message reaches the root company and all of its
// employees; a company-side message reaches the client. The sender's
// own acknowledgment is the connection layer's concern, not part of
// this set.
func (s *ChatService) Recipients(sender models.User, conv models.Conversation) ([]uint, error) {
	if sender.Role == models.RoleClient {
		ids := []uint{conv.CompanyID}
		employees, err := s.dir.ListEmployees(conv.CompanyID)
		if err != nil {
			return nil, err
		}
		return append(ids, employees...), nil
	}
	return []uint{conv.ClientID}, nil
}

// SendMessage runs the full pipeline: validate, policy, normalize,
// get-or-create, append, recipient set. Any failure returns before the
// store mutates or anything fans out.
func (s *ChatService) SendMessage(sender models.User, counterpartID uint, body string) (SendResult, error) {
	if counterpartID == 0 || strings.TrimSpace(body) == "" {
		return SendResult{}, fmt.Errorf("counterpart id and body are required: %w", ErrInvalidInput)
	}
	counterpart, err := s.dir.GetUser(counterpartID)
	if err != nil {
		return SendResult{}, err
	}
	if !CanConverse(sender.Role, counterpart.Role) {
		return SendResult{}, fmt.Errorf("%s cannot message %s: %w", sender.Role, counterpart.Role, ErrForbiddenPair)
	}
	key, err := Normalize(sender, counterpart)
	if err != nil {
		return SendResult{}, err
	}
	conv, err := s.GetOrCreate(key)
	if err != nil {
		return SendResult{}, err
	}
	msg, err := s.AppendMessage(conv.ID, sender.ID, body)
	if err != nil {
		return SendResult{}, err
	}
	recipients, err := s.Recipients(sender, conv)
	if err != nil {
		return SendResult{}, err
	}

	s.log.Debug().
		Uint("conversation_id", conv.ID).
		Uint("sender_id", sender.ID).
		Int("recipients", len(recipients)).
		Msg("message appended")

	return SendResult{Conversation: conv, Message: msg, Recipients: recipients}, nil
}

// StartConversation is the HTTP entry point behind POST /conversations:
// policy + normalize + get-or-create, with both party profiles loaded
// for the response.
func (s *ChatService) StartConversation(initiator models.User, counterpartID uint) (models.Conversation, error) {
	if counterpartID == 0 {
		return models.Conversation{}, fmt.Errorf("counterpart id is required: %w", ErrInvalidInput)
	}
	counterpart, err := s.dir.GetUser(counterpartID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !CanConverse(initiator.Role, counterpart.Role) {
		return models.Conversation{}, fmt.Errorf("%s cannot message %s: %w", initiator.Role, counterpart.Role, ErrForbiddenPair)
	}
	key, err := Normalize(initiator, counterpart)
	if err != nil {
		return models.Conversation{}, err
	}
	conv, err := s.GetOrCreate(key)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := s.db.Preload("Client").Preload("Company").First(&conv, conv.ID).Error; err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}
