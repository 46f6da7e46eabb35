package fanout_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/deliverylog"
	"github.com/dmitrymomot/notifykit/pkg/fanout"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/realtime"
	"github.com/dmitrymomot/notifykit/pkg/recipients"
	"github.com/dmitrymomot/notifykit/pkg/webhook"
)

type adapterFunc struct {
	kind channels.Kind
	fn   func(ctx context.Context, ch channels.Channel, msg notifications.Message) (channels.Result, error)
}

func (a adapterFunc) Kind() channels.Kind { return a.kind }

func (a adapterFunc) Send(ctx context.Context, ch channels.Channel, msg notifications.Message) (channels.Result, error) {
	return a.fn(ctx, ch, msg)
}

func okAdapter(kind channels.Kind, calls *atomic.Int32) channels.Adapter {
	return adapterFunc{kind: kind, fn: func(context.Context, channels.Channel, notifications.Message) (channels.Result, error) {
		calls.Add(1)
		return channels.Result{Response: "ok", Attempted: 1, Delivered: 1}, nil
	}}
}

// recorder captures published frames per user.
type recorder struct {
	mu     sync.Mutex
	users  map[string][][]byte
	all    [][]byte
	online map[string]int
}

func newRecorder(online map[string]int) *recorder {
	return &recorder{users: map[string][][]byte{}, online: online}
}

func (r *recorder) PublishUser(userID string, frame []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = append(r.users[userID], frame)
	return r.online[userID]
}

func (r *recorder) PublishAll(frame []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, frame)
	n := 0
	for _, c := range r.online {
		n += c
	}
	return n
}

func (r *recorder) events(userID string) []realtime.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]realtime.Frame, 0, len(r.users[userID]))
	for _, b := range r.users[userID] {
		f, err := realtime.Decode(b)
		if err == nil {
			out = append(out, f)
		}
	}
	return out
}

type fixture struct {
	coord    *fanout.Coordinator
	messages *notifications.MemoryStorage
	logs     *deliverylog.MemoryStorage
	pusher   *recorder
}

func accounts() *recipients.MemoryAccountStore {
	return recipients.NewMemoryAccountStore(
		recipients.Record{ID: "a1", Role: "admin", Department: "ops", Status: "active"},
		recipients.Record{ID: "a2", Role: "admin", Department: "sales", Status: 1},
		recipients.Record{ID: "x1", Role: "auditor", Department: "ops", Status: "disabled"},
		recipients.Record{ID: "s1", Role: "sales", Department: "sales", Status: true},
	)
}

func newFixture(t *testing.T, chs []channels.Channel, adapters []channels.Adapter, opts ...fanout.Option) *fixture {
	t.Helper()
	f := &fixture{
		messages: notifications.NewMemoryStorage(),
		logs:     deliverylog.NewMemoryStorage(),
		pusher:   newRecorder(map[string]int{"a1": 2, "op": 1}),
	}
	coord, err := fanout.New(fanout.Deps{
		Resolver: recipients.NewResolver(accounts()),
		Storage:  f.messages,
		Pusher:   f.pusher,
		Channels: channels.NewMemoryStore(chs...),
		Sender:   channels.NewRegistry(adapters...),
		Audit:    deliverylog.NewLogger(f.logs),
	}, opts...)
	require.NoError(t, err)
	f.coord = coord
	t.Cleanup(func() { _ = coord.Shutdown(context.Background()) })
	return f
}

func wait(t *testing.T, sum *fanout.Summary) []fanout.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := sum.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestNotify_StoresOneMessageForAllRecipients(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	sum, err := f.coord.Notify(ctx, fanout.Request{
		Type:      "order_shipped",
		Title:     "Order shipped",
		Body:      "SO-1 left the warehouse",
		Targeting: recipients.Roles("admin", "auditor", "admin"),
		Priority:  notifications.PriorityNormal,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2"}, sum.Recipients)
	assert.True(t, sum.Persisted)
	assert.Equal(t, 2, sum.PushAttempts)
	assert.Equal(t, 2, sum.Pushed, "a1 has two devices, a2 is offline")

	for _, u := range []string{"a1", "a2"} {
		items, err := f.messages.List(ctx, u, notifications.ListOptions{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, sum.MessageID, items[0].ID)
		assert.Equal(t, []string{"a1", "a2"}, items[0].Recipients)
	}
	items, err := f.messages.List(ctx, "x1", notifications.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)

	frames := f.pusher.events("a1")
	require.Len(t, frames, 1)
	assert.Equal(t, realtime.EventNewMessage, frames[0].Event)
	var nm realtime.NewMessage
	require.NoError(t, json.Unmarshal(frames[0].Data, &nm))
	assert.Equal(t, sum.MessageID, nm.ID)
	assert.Equal(t, "SO-1 left the warehouse", nm.Content)
	assert.False(t, nm.IsRead)
}

func TestNotify_BroadcastStoresUnaddressedMessage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	sum, err := f.coord.Notify(ctx, fanout.Request{
		Type:      "maintenance",
		Title:     "Maintenance tonight",
		Targeting: recipients.Broadcast(),
	})
	require.NoError(t, err)
	assert.True(t, sum.Broadcast)
	assert.True(t, sum.Persisted)
	assert.Empty(t, sum.Recipients)
	assert.Equal(t, 1, sum.PushAttempts)
	assert.Equal(t, 3, sum.Pushed)
	assert.Len(t, f.pusher.all, 1)

	n, err := f.messages.CountUnread(ctx, "anyone")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNotify_EmptyResolutionStillDispatches(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	f := newFixture(t,
		[]channels.Channel{{ID: "bot", Name: "ops bot", Kind: channels.KindDingTalk, Enabled: true}},
		[]channels.Adapter{okAdapter(channels.KindDingTalk, &calls)},
	)

	sum, err := f.coord.Notify(context.Background(), fanout.Request{
		Type:      "order_created",
		Title:     "New order",
		Targeting: recipients.Users("ghost"),
	})
	require.NoError(t, err)
	assert.False(t, sum.Persisted)
	assert.Zero(t, sum.PushAttempts)

	out := wait(t, sum)
	require.Len(t, out, 1)
	assert.True(t, out[0].OK())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, f.logs.Len())
}

func TestNotify_ChannelFilters(t *testing.T) {
	t.Parallel()

	var typed, floored, disabled, open atomic.Int32
	chs := []channels.Channel{
		{ID: "typed", Name: "typed", Kind: channels.KindDingTalk, Enabled: true, MessageTypes: []string{"order_shipped"}},
		{ID: "floored", Name: "floored", Kind: channels.KindWeCom, Enabled: true, PriorityFloor: channels.FloorHigh},
		{ID: "disabled", Name: "disabled", Kind: channels.KindEmail, Enabled: false},
		{ID: "open", Name: "open", Kind: channels.KindAliyunSMS, Enabled: true, MessageTypes: []string{"all"}},
	}
	adapters := []channels.Adapter{
		okAdapter(channels.KindDingTalk, &typed),
		okAdapter(channels.KindWeCom, &floored),
		okAdapter(channels.KindEmail, &disabled),
		okAdapter(channels.KindAliyunSMS, &open),
	}

	tests := []struct {
		name     string
		typ      string
		priority notifications.Priority
		want     map[string]bool
	}{
		{"type mismatch and low priority", "order_created", notifications.PriorityNormal, map[string]bool{"open": true}},
		{"type match", "order_shipped", notifications.PriorityLow, map[string]bool{"typed": true, "open": true}},
		{"high passes floor", "order_created", notifications.PriorityHigh, map[string]bool{"floored": true, "open": true}},
		{"urgent passes floor", "order_shipped", notifications.PriorityUrgent, map[string]bool{"typed": true, "floored": true, "open": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, chs, adapters)
			sum, err := f.coord.Notify(context.Background(), fanout.Request{
				Type:      tt.typ,
				Title:     "t",
				Targeting: recipients.AllActive(),
				Priority:  tt.priority,
			})
			require.NoError(t, err)

			got := map[string]bool{}
			for _, o := range wait(t, sum) {
				got[o.Channel.ID] = true
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), f.logs.Len(), "skips are not logged")
		})
	}
	assert.Zero(t, disabled.Load())
}

func TestNotify_OneFailingChannelDoesNotAffectAnother(t *testing.T) {
	t.Parallel()

	ding := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":310000,"errmsg":"keywords not in content"}`))
	}))
	defer ding.Close()
	wecom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer wecom.Close()

	sender := webhook.NewSender()
	chs := []channels.Channel{
		{ID: "ding", Name: "ding", Kind: channels.KindDingTalk, Enabled: true,
			Config: json.RawMessage(`{"webhook_url":"` + ding.URL + `"}`)},
		{ID: "wecom", Name: "wecom", Kind: channels.KindWeCom, Enabled: true,
			Config: json.RawMessage(`{"webhook_url":"` + wecom.URL + `"}`)},
	}
	f := newFixture(t, chs, []channels.Adapter{
		channels.NewDingTalkAdapter(sender),
		channels.NewWeComAdapter(sender),
	})

	sum, err := f.coord.Notify(context.Background(), fanout.Request{
		Type:      "order_shipped",
		Title:     "Order shipped",
		Targeting: recipients.Users("a1"),
		Priority:  notifications.PriorityHigh,
		CreatedBy: "op",
	})
	require.NoError(t, err, "channel failures never reach the caller")

	out := wait(t, sum)
	require.Len(t, out, 2)
	byID := map[string]fanout.Outcome{}
	for _, o := range out {
		byID[o.Channel.ID] = o
	}
	assert.ErrorIs(t, byID["ding"].Err, channels.ErrProviderRejected)
	assert.NoError(t, byID["wecom"].Err)

	failed, err := f.logs.Query(context.Background(), deliverylog.Criteria{Status: deliverylog.StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "ding", failed[0].ChannelID)
	assert.Equal(t, "keywords not in content", failed[0].Error)

	ok, err := f.logs.Query(context.Background(), deliverylog.Criteria{Status: deliverylog.StatusSuccess})
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.Equal(t, "wecom", ok[0].ChannelID)

	statuses := f.pusher.events("op")
	require.Len(t, statuses, 2)
	seen := map[string]bool{}
	for _, fr := range statuses {
		assert.Equal(t, realtime.EventNotificationStatus, fr.Event)
		var st realtime.NotificationStatus
		require.NoError(t, json.Unmarshal(fr.Data, &st))
		seen[st.ChannelName] = st.Success
	}
	assert.Equal(t, map[string]bool{"ding": false, "wecom": true}, seen)
}

func TestNotify_DispatchOutlivesCallerContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := adapterFunc{kind: channels.KindEmail, fn: func(ctx context.Context, _ channels.Channel, _ notifications.Message) (channels.Result, error) {
		select {
		case <-release:
			return channels.Result{Response: "accepted", Attempted: 1, Delivered: 1}, nil
		case <-ctx.Done():
			return channels.Result{}, ctx.Err()
		}
	}}
	f := newFixture(t,
		[]channels.Channel{{ID: "mail", Name: "mail", Kind: channels.KindEmail, Enabled: true}},
		[]channels.Adapter{slow},
	)

	ctx, cancel := context.WithCancel(context.Background())
	sum, err := f.coord.Notify(ctx, fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")})
	require.NoError(t, err)
	cancel()
	close(release)

	out := wait(t, sum)
	require.Len(t, out, 1)
	assert.NoError(t, out[0].Err)
}

func TestNotify_AdapterTimeout(t *testing.T) {
	t.Parallel()

	hang := adapterFunc{kind: channels.KindWeChatTemplate, fn: func(ctx context.Context, _ channels.Channel, _ notifications.Message) (channels.Result, error) {
		<-ctx.Done()
		return channels.Result{}, ctx.Err()
	}}
	var calls atomic.Int32
	f := newFixture(t,
		[]channels.Channel{
			{ID: "hang", Name: "hang", Kind: channels.KindWeChatTemplate, Enabled: true},
			{ID: "fast", Name: "fast", Kind: channels.KindTencentSMS, Enabled: true},
		},
		[]channels.Adapter{hang, okAdapter(channels.KindTencentSMS, &calls)},
		fanout.WithDispatchTimeout(20*time.Millisecond),
	)

	sum, err := f.coord.Notify(context.Background(), fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")})
	require.NoError(t, err)
	out := wait(t, sum)
	require.Len(t, out, 2)
	assert.ErrorIs(t, out[0].Err, context.DeadlineExceeded)
	assert.NoError(t, out[1].Err)
	assert.Equal(t, 2, f.logs.Len())
}

func TestNotify_PanickingAdapterIsRecorded(t *testing.T) {
	t.Parallel()

	boom := adapterFunc{kind: channels.KindDingTalk, fn: func(context.Context, channels.Channel, notifications.Message) (channels.Result, error) {
		panic("boom")
	}}
	f := newFixture(t,
		[]channels.Channel{{ID: "bot", Name: "bot", Kind: channels.KindDingTalk, Enabled: true}},
		[]channels.Adapter{boom},
	)

	sum, err := f.coord.Notify(context.Background(), fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")})
	require.NoError(t, err)
	out := wait(t, sum)
	require.Len(t, out, 1)
	assert.Error(t, out[0].Err)
	assert.Equal(t, "bot", out[0].Channel.ID)
	assert.Equal(t, 1, f.logs.Len())
}

func TestNotify_UnsupportedKindIsLoggedAsFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t,
		[]channels.Channel{{ID: "sms", Name: "sms", Kind: channels.KindTencentSMS, Enabled: true}},
		nil,
	)

	sum, err := f.coord.Notify(context.Background(), fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")})
	require.NoError(t, err)
	out := wait(t, sum)
	require.Len(t, out, 1)
	assert.ErrorIs(t, out[0].Err, channels.ErrUnsupportedKind)
	assert.Equal(t, deliverylog.StatusFailed, out[0].Entry.Status)
}

func TestNotify_Hooks(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	var notified, outcomes atomic.Int32
	f := newFixture(t,
		[]channels.Channel{{ID: "bot", Name: "bot", Kind: channels.KindDingTalk, Enabled: true}},
		[]channels.Adapter{okAdapter(channels.KindDingTalk, &calls)},
		fanout.WithNotifyHook(func(*fanout.Summary) { notified.Add(1) }),
		fanout.WithOutcomeHook(func(fanout.Outcome) { outcomes.Add(1) }),
	)

	sum, err := f.coord.Notify(context.Background(), fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")})
	require.NoError(t, err)
	wait(t, sum)
	assert.Equal(t, int32(1), notified.Load())
	assert.Equal(t, int32(1), outcomes.Load())
}

func TestNotify_PanickingOutcomeHookRecordsOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	f := newFixture(t,
		[]channels.Channel{{ID: "bot", Name: "bot", Kind: channels.KindDingTalk, Enabled: true}},
		[]channels.Adapter{okAdapter(channels.KindDingTalk, &calls)},
		fanout.WithOutcomeHook(func(fanout.Outcome) { panic("hook exploded") }),
	)

	sum, err := f.coord.Notify(context.Background(), fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")})
	require.NoError(t, err)
	out := wait(t, sum)
	require.Len(t, out, 1)
	assert.NoError(t, out[0].Err, "the delivery itself succeeded")
	assert.Equal(t, deliverylog.StatusSuccess, out[0].Entry.Status)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, f.logs.Len(), "one audit entry per attempt")
}

type failingResolver struct{ err error }

func (r failingResolver) Resolve(context.Context, recipients.Targeting) ([]string, error) {
	return nil, r.err
}

type failingStorage struct {
	notifications.Storage
	err error
}

func (s failingStorage) Create(context.Context, notifications.Message) error { return s.err }

func TestNotify_PropagatesInfrastructureErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	req := fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")}
	boom := errors.New("db down")

	coord, err := fanout.New(fanout.Deps{
		Resolver: failingResolver{err: boom},
		Storage:  notifications.NewMemoryStorage(),
	})
	require.NoError(t, err)
	_, err = coord.Notify(ctx, req)
	assert.ErrorIs(t, err, fanout.ErrResolve)
	assert.ErrorIs(t, err, boom)

	coord, err = fanout.New(fanout.Deps{
		Resolver: recipients.NewResolver(accounts()),
		Storage:  failingStorage{Storage: notifications.NewMemoryStorage(), err: boom},
	})
	require.NoError(t, err)
	_, err = coord.Notify(ctx, req)
	assert.ErrorIs(t, err, fanout.ErrPersist)
	assert.ErrorIs(t, err, boom)
}

func TestNotify_RejectsInvalidRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil, nil)

	_, err := f.coord.Notify(context.Background(), fanout.Request{Title: "t", Targeting: recipients.Users("a1")})
	assert.ErrorIs(t, err, fanout.ErrInvalidRequest)

	_, err = f.coord.Notify(context.Background(), fanout.Request{Type: "t", Title: "t", Targeting: recipients.Targeting{Kind: "teams"}})
	assert.ErrorIs(t, err, fanout.ErrInvalidRequest)
	assert.ErrorIs(t, err, recipients.ErrUnknownTargeting)
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := fanout.New(fanout.Deps{Storage: notifications.NewMemoryStorage()})
	assert.ErrorIs(t, err, fanout.ErrMissingDependency)

	_, err = fanout.New(fanout.Deps{
		Resolver: recipients.NewResolver(accounts()),
		Storage:  notifications.NewMemoryStorage(),
		Channels: channels.NewMemoryStore(),
	})
	assert.ErrorIs(t, err, fanout.ErrMissingDependency)
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := adapterFunc{kind: channels.KindEmail, fn: func(context.Context, channels.Channel, notifications.Message) (channels.Result, error) {
		<-release
		return channels.Result{Response: "accepted"}, nil
	}}
	f := newFixture(t,
		[]channels.Channel{{ID: "mail", Name: "mail", Kind: channels.KindEmail, Enabled: true}},
		[]channels.Adapter{slow},
	)
	req := fanout.Request{Type: "t", Title: "t", Targeting: recipients.Users("a1")}
	_, err := f.coord.Notify(context.Background(), req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.coord.Shutdown(ctx), context.DeadlineExceeded)

	_, err = f.coord.Notify(context.Background(), req)
	assert.ErrorIs(t, err, fanout.ErrClosed)

	close(release)
	require.NoError(t, f.coord.Shutdown(context.Background()))
	assert.Equal(t, 1, f.logs.Len())
}

func TestRequest_UnmarshalDefaultsPriority(t *testing.T) {
	t.Parallel()

	var r fanout.Request
	require.NoError(t, json.Unmarshal([]byte(`{"type":"t","title":"x","targeting":{"kind":"roles","ids":["admin"]}}`), &r))
	assert.Equal(t, notifications.PriorityNormal, r.Priority)
	assert.Equal(t, recipients.KindRoles, r.Targeting.Kind)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"t","title":"x","priority":"urgent","targeting":{"kind":"all"}}`), &r))
	assert.Equal(t, notifications.PriorityUrgent, r.Priority)
}
