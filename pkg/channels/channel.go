package channels

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Kind is the closed set of external channel providers.
type Kind string

const (
	KindDingTalk       Kind = "dingtalk"
	KindWeCom          Kind = "wecom"
	KindEmail          Kind = "email"
	KindAliyunSMS      Kind = "aliyun_sms"
	KindTencentSMS     Kind = "tencent_sms"
	KindWeChatTemplate Kind = "wechat_template"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindDingTalk, KindWeCom, KindEmail, KindAliyunSMS, KindTencentSMS, KindWeChatTemplate}
}

func (k Kind) Valid() bool { return slices.Contains(Kinds(), k) }

// Scope narrows the audience a channel is meant for. It is informational:
// external channels announce to a room and are not filtered by recipient.
type Scope string

const (
	ScopeAll         Scope = "all"
	ScopeDepartments Scope = "departments"
	ScopeUsers       Scope = "users"
	ScopeRoles       Scope = "roles"
)

// PriorityFloor is the lowest message priority a channel accepts.
type PriorityFloor string

const (
	FloorAll    PriorityFloor = "all"
	FloorNormal PriorityFloor = "normal"
	FloorHigh   PriorityFloor = "high"
	FloorUrgent PriorityFloor = "urgent"
)

// Accepts reports whether p is at or above the floor. An empty floor accepts
// everything.
func (f PriorityFloor) Accepts(p notifications.Priority) bool {
	switch f {
	case FloorNormal:
		return p >= notifications.PriorityNormal
	case FloorHigh:
		return p >= notifications.PriorityHigh
	case FloorUrgent:
		return p >= notifications.PriorityUrgent
	}
	return true
}

func (f PriorityFloor) valid() bool {
	switch f {
	case "", FloorAll, FloorNormal, FloorHigh, FloorUrgent:
		return true
	}
	return false
}

// Channel is one configured external destination. Config holds the
// provider credentials and is never logged.
type Channel struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Kind          Kind            `json:"kind"`
	Enabled       bool            `json:"enabled"`
	Config        json.RawMessage `json:"-"`
	MessageTypes  []string        `json:"message_types,omitempty"`
	Scope         Scope           `json:"scope,omitempty"`
	ScopeIDs      []string        `json:"scope_ids,omitempty"`
	PriorityFloor PriorityFloor   `json:"priority_floor,omitempty"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Accepts applies the dispatch filters in order: enabled flag, message-type
// allow-list, then priority floor.
func (c Channel) Accepts(msg notifications.Message) bool {
	if !c.Enabled {
		return false
	}
	if !c.AcceptsType(msg.Type) {
		return false
	}
	return c.PriorityFloor.Accepts(msg.Priority)
}

// AcceptsType reports whether the allow-list admits t. An empty list or one
// containing "all" admits every type.
func (c Channel) AcceptsType(t string) bool {
	if len(c.MessageTypes) == 0 {
		return true
	}
	for _, mt := range c.MessageTypes {
		if mt == "all" || mt == t {
			return true
		}
	}
	return false
}

// Validate checks the non-credential fields.
func (c Channel) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidChannel)
	case !c.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidChannel, c.Kind)
	case !c.PriorityFloor.valid():
		return fmt.Errorf("%w: unknown priority floor %q", ErrInvalidChannel, c.PriorityFloor)
	}
	switch c.Scope {
	case "", ScopeAll, ScopeDepartments, ScopeUsers, ScopeRoles:
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidChannel, c.Scope)
	}
	if len(c.Config) > 0 && !json.Valid(c.Config) {
		return fmt.Errorf("%w: config is not valid JSON", ErrInvalidChannel)
	}
	return nil
}

// LogValue omits Config.
func (c Channel) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", c.ID),
		slog.String("name", c.Name),
		slog.String("kind", string(c.Kind)),
		slog.Bool("enabled", c.Enabled),
	)
}

// Seed is the YAML shape of a channel in a seed file. Config is a free-form
// map converted to JSON.
type Seed struct {
	ID            string         `yaml:"id"`
	Name          string         `yaml:"name"`
	Kind          Kind           `yaml:"kind"`
	Enabled       bool           `yaml:"enabled"`
	MessageTypes  []string       `yaml:"message_types"`
	Scope         Scope          `yaml:"scope"`
	ScopeIDs      []string       `yaml:"scope_ids"`
	PriorityFloor PriorityFloor  `yaml:"priority_floor"`
	Config        map[string]any `yaml:"config"`
}

// SeedFile is the root of a channel seed document.
type SeedFile struct {
	Channels []Seed `yaml:"channels"`
}

// Channel converts the seed into a Channel stamped with now.
func (s Seed) Channel(now time.Time) (Channel, error) {
	cfg := json.RawMessage("{}")
	if len(s.Config) > 0 {
		b, err := json.Marshal(s.Config)
		if err != nil {
			return Channel{}, fmt.Errorf("%w: channel %q: %w", ErrInvalidChannel, s.Name, err)
		}
		cfg = b
	}
	ch := Channel{
		ID:            s.ID,
		Name:          s.Name,
		Kind:          s.Kind,
		Enabled:       s.Enabled,
		Config:        cfg,
		MessageTypes:  s.MessageTypes,
		Scope:         s.Scope,
		ScopeIDs:      s.ScopeIDs,
		PriorityFloor: s.PriorityFloor,
		CreatedBy:     "seed",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return ch, ch.Validate()
}
