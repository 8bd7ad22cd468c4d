// Package view contains the Datastar SSE handlers of the event map page.
package view

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geo-events/internal/humastar"
	"github.com/joeblew999/geo-events/internal/loader"
	"github.com/joeblew999/geo-events/internal/mapview"
	"github.com/joeblew999/geo-events/internal/session"
	"github.com/joeblew999/geo-events/internal/templates"
)

// DateLayout is the date picker's value format.
const DateLayout = "2006-01-02"

// Handler serves the view stream and the page's actions.
type Handler struct {
	humastar.Handler
	sessions *session.Registry
	logger   *slog.Logger
}

// NewHandler creates a view handler.
func NewHandler(sessions *session.Registry, renderer *templates.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/view/stream", h.Stream, huma.OperationTags("view"))
	huma.Post(api, "/api/v1/view/date", h.Date, huma.OperationTags("view"))
	huma.Post(api, "/api/v1/view/categories", h.Category, huma.OperationTags("view"))
	huma.Post(api, "/api/v1/view/categories/all", h.AllCategories, huma.OperationTags("view"))
	huma.Post(api, "/api/v1/view/popup", h.Popup, huma.OperationTags("view"))
}

// SessionInput carries the session cookie set by the page.
type SessionInput struct {
	Session string `cookie:"geo_events_session" doc:"Session id set by the page"`
}

func (h *Handler) session(in SessionInput) (*session.Session, error) {
	if !session.ValidID(in.Session) {
		return nil, huma.Error400BadRequest("missing or invalid session cookie")
	}
	return h.sessions.Get(in.Session), nil
}

// Stream pushes the session's view and every later change until the client
// disconnects. The first stream of a session starts its initial load.
func (h *Handler) Stream(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	if !session.ValidID(input.Session) {
		return nil, huma.Error400BadRequest("missing or invalid session cookie")
	}
	bus := h.sessions.Bus()

	return h.Handler.Stream(func(ctx context.Context, sse humastar.SSE) {
		sess, release := h.sessions.Attach(input.Session)
		defer release()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)

		sess.Start()
		if err := h.pushAll(sse, sess); err != nil {
			h.logger.Debug("view stream closed", "session", sess.ID, "err", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if ev.Resource != session.ResourceView || ev.ID != sess.ID {
					continue
				}
				if err := h.push(sse, sess, mapview.Change(ev.Action)); err != nil {
					h.logger.Debug("view stream closed", "session", sess.ID, "err", err)
					return
				}
			}
		}
	}), nil
}

func (h *Handler) pushAll(sse humastar.SSE, sess *session.Session) error {
	if err := h.pushStatus(sse, sess.View.Status()); err != nil {
		return err
	}
	if err := h.pushLegend(sse, sess.View.Legend()); err != nil {
		return err
	}
	st := sess.View.State()
	if st.Layer == nil {
		return nil
	}
	return sse.Call("eventMap.showLayer", h.layerPayload(st))
}

func (h *Handler) push(sse humastar.SSE, sess *session.Session, c mapview.Change) error {
	switch c {
	case mapview.ChangeStatus:
		return h.pushStatus(sse, sess.View.Status())
	case mapview.ChangeLayer:
		return h.pushAll(sse, sess)
	case mapview.ChangeLegend:
		if err := h.pushLegend(sse, sess.View.Legend()); err != nil {
			return err
		}
		return sse.Call("eventMap.setVisibility", visibility(sess.View.Layer()))
	case mapview.ChangeVisibility:
		return sse.Call("eventMap.setVisibility", visibility(sess.View.Layer()))
	}
	return nil
}

func (h *Handler) pushStatus(sse humastar.SSE, st mapview.Status) error {
	return sse.Signals(map[string]any{"status": st})
}

func (h *Handler) pushLegend(sse humastar.SSE, rows []mapview.LegendRow) error {
	items := make([]any, len(rows))
	for i, r := range rows {
		items[i] = r
	}
	return sse.Patch(h.RenderList("legend-row", items, "No events"), "#legend-content")
}

// DateInput carries the date picker's signals.
type DateInput struct {
	SessionInput
	RawBody []byte
}

// Date loads the events of the picked day. Outcomes reach the page through
// the stream's status signal.
func (h *Handler) Date(ctx context.Context, input *DateInput) (*struct{}, error) {
	sess, err := h.session(input.SessionInput)
	if err != nil {
		return nil, err
	}
	signals, err := (&humastar.SignalsInput{RawBody: input.RawBody}).MustParse()
	if err != nil {
		return nil, err
	}

	var day time.Time
	if v := signals.String("date"); v != "" {
		day, err = time.ParseInLocation(DateLayout, v, time.Local)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid date: " + v)
		}
	}

	err = sess.Load(context.WithoutCancel(ctx), day)
	switch {
	case err == nil, errors.Is(err, loader.ErrStale), errors.Is(err, loader.ErrNoDate):
	default:
		h.logger.Debug("load from date picker failed", "session", sess.ID, "err", err)
	}
	return &struct{}{}, nil
}

// CategoryInput toggles one legend checkbox.
type CategoryInput struct {
	SessionInput
	Category string `query:"category" required:"true" doc:"Normalised category key"`
	Checked  bool   `query:"checked" doc:"New checkbox state"`
}

func (h *Handler) Category(ctx context.Context, input *CategoryInput) (*struct{}, error) {
	sess, err := h.session(input.SessionInput)
	if err != nil {
		return nil, err
	}
	sess.Toggle(input.Category, input.Checked)
	return &struct{}{}, nil
}

// AllCategoriesInput drives the select-all checkbox.
type AllCategoriesInput struct {
	SessionInput
	Checked bool `query:"checked" doc:"New checkbox state"`
}

func (h *Handler) AllCategories(ctx context.Context, input *AllCategoriesInput) (*struct{}, error) {
	sess, err := h.session(input.SessionInput)
	if err != nil {
		return nil, err
	}
	sess.ToggleAll(input.Checked)
	return &struct{}{}, nil
}

// PopupInput reports a marker popup opening or closing in the page.
type PopupInput struct {
	SessionInput
	Marker string `query:"marker" required:"true" doc:"Marker id"`
	Open   bool   `query:"open" doc:"Whether the popup opened"`
}

// PopupOutput tells the page whether the popup may stay open.
type PopupOutput struct {
	Body struct {
		Open bool `json:"open" doc:"False when the marker is hidden and the popup must close"`
	}
}

func (h *Handler) Popup(ctx context.Context, input *PopupInput) (*PopupOutput, error) {
	sess, err := h.session(input.SessionInput)
	if err != nil {
		return nil, err
	}
	out := &PopupOutput{}
	out.Body.Open = sess.Popup(input.Marker, input.Open) && input.Open
	return out, nil
}
