package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Group describes one onboarded Telegram group chat: which topic carries
// receipts, which destination accounts are authorized, who administers the
// group, and where its house registry lives.
type Group struct {
	Name           string   `json:"name"`
	ChatID         int64    `json:"chat_id"`
	TopicID        int64    `json:"topic_id"`   // 0 means the whole chat is watched
	Category       string   `json:"category"`   // ledger partition key, e.g. "block-a"
	Beneficiaries  []string `json:"beneficiaries"`
	AdminIDs       []int64  `json:"admin_ids"`
	HousesFile     string   `json:"houses_file"` // optional CSV of house,owner pairs
	AmountOptional bool     `json:"amount_optional"`
}

// WatchesTopic reports whether a message posted in the given topic should be
// processed for this group.
func (g Group) WatchesTopic(topicID int64) bool {
	return g.TopicID == 0 || g.TopicID == topicID
}

// IsAdmin reports whether userID administers this group.
func (g Group) IsAdmin(userID int64) bool {
	for _, id := range g.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Registry holds all onboarded groups indexed by chat id.
type Registry struct {
	groups map[int64]Group
}

// LoadGroups reads the group registry JSON at path.
func LoadGroups(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read groups file: %w", err)
	}
	var groups []Group
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse groups file: %w", err)
	}
	return NewRegistry(groups)
}

// NewRegistry validates and indexes a group list.
func NewRegistry(groups []Group) (*Registry, error) {
	idx := make(map[int64]Group, len(groups))
	for _, g := range groups {
		if g.ChatID == 0 {
			return nil, fmt.Errorf("group %q: chat_id is required", g.Name)
		}
		if strings.TrimSpace(g.Category) == "" {
			return nil, fmt.Errorf("group %q: category is required", g.Name)
		}
		if _, dup := idx[g.ChatID]; dup {
			return nil, fmt.Errorf("duplicate chat_id %d", g.ChatID)
		}
		idx[g.ChatID] = g
	}
	return &Registry{groups: idx}, nil
}

// ByChat returns the group registered for chatID.
func (r *Registry) ByChat(chatID int64) (Group, bool) {
	g, ok := r.groups[chatID]
	return g, ok
}

// All returns every registered group.
func (r *Registry) All() []Group {
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	return out
}
