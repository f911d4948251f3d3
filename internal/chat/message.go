package chat

import (
	"sort"
	"time"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/store"
)

// ChatMessage is one posted utterance. The identifier is the message's child
// key in the store, assigned at write time and stable for the message's
// lifetime. Edits mutate Text only; every other field is immutable.
type ChatMessage struct {
	ID             string                   `json:"id,omitempty"`
	UserID         string                   `json:"userId"`
	UserName       string                   `json:"userName"`
	UserRole       domain.Role              `json:"userRole"`
	Text           string                   `json:"text"`
	Timestamp      time.Time                `json:"timestamp"`
	Tier           domain.SubscriptionTier  `json:"tier"`
	Level          domain.SubscriptionLevel `json:"level"`
	AdminColor     string                   `json:"adminColor,omitempty"`
	AdminAnimation string                   `json:"adminAnimation,omitempty"`
}

// decodeMessages turns a channel snapshot into messages in arrival order.
// The snapshot's child keys are the message identifiers.
func decodeMessages(snapshot any) ([]ChatMessage, error) {
	obj, ok := snapshot.(*store.Object)
	if !ok || obj == nil {
		return nil, nil
	}

	messages := make([]ChatMessage, 0, obj.Len())
	for _, key := range obj.Keys() {
		child, _ := obj.Get(key)
		var msg ChatMessage
		if err := store.Decode(child, &msg); err != nil {
			return nil, err
		}
		msg.ID = key
		messages = append(messages, msg)
	}
	return messages, nil
}

// sortMessages orders messages by timestamp ascending. Equal timestamps are
// broken by identifier ascending, which is stable across clients.
func sortMessages(messages []ChatMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp.Equal(messages[j].Timestamp) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
