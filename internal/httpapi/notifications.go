package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/notifykit/handler"
	"github.com/dmitrymomot/notifykit/pkg/fanout"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// notifyRequest embeds fanout.Request so the JSON body decodes through its
// UnmarshalJSON; Wait comes from the query string.
type notifyRequest struct {
	fanout.Request
	Wait bool `query:"wait"`
}

type notifyResponse struct {
	MessageID  string          `json:"message_id"`
	Recipients int             `json:"recipients"`
	Broadcast  bool            `json:"broadcast"`
	Pushed     int             `json:"pushed"`
	Channels   []channelResult `json:"channels,omitempty"`
}

type channelResult struct {
	ChannelID string `json:"channel_id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Delivered int    `json:"delivered"`
	Attempted int    `json:"attempted"`
	Error     string `json:"error,omitempty"`
}

func (a *api) notify(ctx Context, req notifyRequest) handler.Response {
	// Only trusted services may relay status events to another operator.
	if req.CreatedBy == "" || ctx.Claims.Role != roleSystem {
		req.CreatedBy = ctx.Claims.UserID
	}

	sum, err := a.deps.Service.Notify(ctx, req.Request)
	switch {
	case errors.Is(err, fanout.ErrInvalidRequest):
		return handler.JSONError(fmt.Errorf("%w: %v", handler.ErrUnprocessableEntity, err))
	case errors.Is(err, fanout.ErrClosed):
		return handler.JSONError(handler.ErrServiceUnavailable)
	case err != nil:
		a.logger.LogAttrs(ctx, slog.LevelError, "notify failed",
			logger.Component("httpapi"),
			logger.UserID(ctx.Claims.UserID),
			logger.MessageType(req.Type),
			logger.Error(err),
		)
		return handler.JSONError(err)
	}

	resp := notifyResponse{
		MessageID:  sum.MessageID,
		Recipients: len(sum.Recipients),
		Broadcast:  sum.Broadcast,
		Pushed:     sum.Pushed,
	}
	if !req.Wait {
		return handler.JSON(resp, handler.WithJSONStatus(http.StatusAccepted))
	}

	outcomes, err := sum.Wait(ctx)
	if err != nil {
		// The caller went away; dispatch carries on regardless.
		return handler.JSON(resp, handler.WithJSONStatus(http.StatusAccepted))
	}
	resp.Channels = make([]channelResult, 0, len(outcomes))
	for _, o := range outcomes {
		cr := channelResult{
			ChannelID: o.Channel.ID,
			Kind:      string(o.Channel.Kind),
			Name:      o.Channel.Name,
			Success:   o.OK(),
			Delivered: o.Result.Delivered,
			Attempted: o.Result.Attempted,
		}
		if o.Err != nil {
			cr.Error = o.Entry.Error
		}
		resp.Channels = append(resp.Channels, cr)
	}
	return handler.JSON(resp)
}

type listRequest struct {
	Limit  int        `query:"limit"`
	Offset int        `query:"offset"`
	Unread bool       `query:"unread"`
	Types  []string   `query:"type"`
	Since  *time.Time `query:"since"`
}

func (a *api) listNotifications(ctx Context, req listRequest) handler.Response {
	if req.Limit < 0 || req.Offset < 0 {
		verr := handler.NewValidationError()
		verr.Add("limit", "must not be negative")
		return handler.JSONError(verr)
	}
	limit := min(orDefault(req.Limit, defaultPageSize), maxPageSize)

	items, err := a.deps.Service.List(ctx, ctx.Claims.UserID, notifications.ListOptions{
		Limit:      limit,
		Offset:     req.Offset,
		OnlyUnread: req.Unread,
		Types:      req.Types,
		Since:      req.Since,
	})
	if err != nil {
		return handler.JSONError(err)
	}
	unread, err := a.deps.Service.CountUnread(ctx, ctx.Claims.UserID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(items, handler.WithJSONMeta(map[string]any{
		"limit":  limit,
		"offset": req.Offset,
		"unread": unread,
	}))
}

func (a *api) unreadCount(ctx Context, _ struct{}) handler.Response {
	n, err := a.deps.Service.CountUnread(ctx, ctx.Claims.UserID)
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.JSON(realtime.UnreadCount{Count: n})
}

type idRequest struct {
	ID string `path:"id"`
}

func (a *api) markRead(ctx Context, req idRequest) handler.Response {
	err := a.deps.Service.MarkRead(ctx, ctx.Claims.UserID, req.ID)
	if errors.Is(err, notifications.ErrNotFound) {
		return handler.JSONError(handler.ErrNotFound)
	}
	if err != nil {
		return handler.JSONError(err)
	}
	n, err := a.deps.Service.CountUnread(ctx, ctx.Claims.UserID)
	if err != nil {
		return handler.JSONError(err)
	}
	a.pushUnread(ctx.Claims.UserID, n)
	return handler.JSON(realtime.UnreadCount{Count: n})
}

func (a *api) markAllRead(ctx Context, _ struct{}) handler.Response {
	changed, err := a.deps.Service.MarkAllRead(ctx, ctx.Claims.UserID)
	if err != nil {
		return handler.JSONError(err)
	}
	a.pushUnread(ctx.Claims.UserID, 0)
	return handler.JSON(map[string]int{"updated": changed})
}

func (a *api) deleteNotification(ctx Context, req idRequest) handler.Response {
	err := a.deps.Service.Delete(ctx, req.ID)
	if errors.Is(err, notifications.ErrNotFound) {
		return handler.JSONError(handler.ErrNotFound)
	}
	if err != nil {
		return handler.JSONError(err)
	}
	return handler.Empty()
}

// pushUnread keeps the user's open websocket sessions in step with reads
// made over HTTP.
func (a *api) pushUnread(userID string, n int) {
	if a.deps.Pusher == nil {
		return
	}
	frame, err := realtime.Encode(realtime.EventUnreadCount, realtime.UnreadCount{Count: n})
	if err != nil {
		return
	}
	a.deps.Pusher.PublishUser(userID, frame)
}
