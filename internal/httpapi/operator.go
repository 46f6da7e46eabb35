package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrymomot/notifykit/handler"
	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/deliverylog"
)

type deliveryLogRequest struct {
	ChannelID string             `query:"channel_id"`
	MessageID string             `query:"message_id"`
	Status    deliverylog.Status `query:"status"`
	Since     *time.Time         `query:"since"`
	Until     *time.Time         `query:"until"`
	Limit     int                `query:"limit"`
	Offset    int                `query:"offset"`
}

func (a *api) deliveryLogs(ctx Context, req deliveryLogRequest) handler.Response {
	verr := handler.NewValidationError()
	if req.Status != "" && !req.Status.Valid() {
		verr.Add("status", "must be pending, success or failed")
	}
	if req.Limit < 0 || req.Offset < 0 {
		verr.Add("limit", "must not be negative")
	}
	if !verr.IsEmpty() {
		return handler.JSONError(verr)
	}

	c := deliverylog.Criteria{
		ChannelID: req.ChannelID,
		MessageID: req.MessageID,
		Status:    req.Status,
		Limit:     min(orDefault(req.Limit, defaultPageSize), maxPageSize),
		Offset:    req.Offset,
	}
	if req.Since != nil {
		c.Since = *req.Since
	}
	if req.Until != nil {
		c.Until = *req.Until
	}

	entries, err := a.deps.Audit.Query(ctx, c)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(entries, handler.WithJSONMeta(map[string]any{"limit": c.Limit, "offset": c.Offset}))
}

func (a *api) listChannels(ctx Context, _ struct{}) handler.Response {
	list, err := a.deps.Channels.List(ctx)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(list)
}

// channelRequest mirrors channels.Channel with a writable config.
type channelRequest struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Kind          channels.Kind          `json:"kind"`
	Enabled       bool                   `json:"enabled"`
	Config        json.RawMessage        `json:"config"`
	MessageTypes  []string               `json:"message_types"`
	Scope         channels.Scope         `json:"scope"`
	ScopeIDs      []string               `json:"scope_ids"`
	PriorityFloor channels.PriorityFloor `json:"priority_floor"`
}

func (a *api) saveChannel(ctx Context, req channelRequest) handler.Response {
	ch := channels.Channel{
		ID:            req.ID,
		Name:          req.Name,
		Kind:          req.Kind,
		Enabled:       req.Enabled,
		Config:        req.Config,
		MessageTypes:  req.MessageTypes,
		Scope:         req.Scope,
		ScopeIDs:      req.ScopeIDs,
		PriorityFloor: req.PriorityFloor,
		CreatedBy:     ctx.Claims.UserID,
	}
	if ch.PriorityFloor == "" {
		ch.PriorityFloor = channels.FloorAll
	}
	if err := ch.Validate(); err != nil {
		return handler.JSONError(fmt.Errorf("%w: %v", handler.ErrUnprocessableEntity, err))
	}

	saved, err := a.deps.Channels.Save(ctx, ch)
	if errors.Is(err, channels.ErrInvalidChannel) {
		return handler.JSONError(fmt.Errorf("%w: %v", handler.ErrUnprocessableEntity, err))
	}
	if err != nil {
		return handler.JSONError(err)
	}
	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	return handler.JSON(saved, handler.WithJSONStatus(status))
}

func (a *api) deleteChannel(ctx Context, req idRequest) handler.Response {
	err := a.deps.Channels.Delete(ctx, req.ID)
	if errors.Is(err, channels.ErrChannelNotFound) {
		return handler.JSONError(handler.ErrNotFound)
	}
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.Empty()
}

// orDefault returns n, or def when n is zero.
func orDefault(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}
