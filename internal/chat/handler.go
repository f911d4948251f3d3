package chat

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nstlabs/prepdesk/internal/domain"
	"github.com/nstlabs/prepdesk/internal/middleware"
	"github.com/nstlabs/prepdesk/internal/settings"
	"github.com/nstlabs/prepdesk/internal/store"
)

// Handler exposes the chat module over JSON endpoints. Live updates flow over
// the WebSocket push path; these endpoints cover initial loads and writes.
type Handler struct {
	sender   *Sender
	adapter  *Adapter
	settings *settings.Service
	sessions *SessionList
}

// NewHandler creates the chat HTTP handler.
func NewHandler(sender *Sender, adapter *Adapter, sys *settings.Service, sessions *SessionList) *Handler {
	return &Handler{sender: sender, adapter: adapter, settings: sys, sessions: sessions}
}

// channelView is the JSON shape of a channel.
type channelView struct {
	Type      string `json:"type"`
	StudentID string `json:"studentId,omitempty"`
}

func viewOf(ch Channel) channelView {
	if ch.IsPublic() {
		return channelView{Type: "public"}
	}
	return channelView{Type: "private", StudentID: ch.StudentID()}
}

// selectionResponse is the JSON shape of a routed Selection.
type selectionResponse struct {
	Active     *channelView  `json:"active,omitempty"`
	Selectable []channelView `json:"selectable"`
	InboxView  bool          `json:"inboxView,omitempty"`
}

// choiceFromQuery reads the caller's requested view from query parameters.
func choiceFromQuery(c echo.Context) Choice {
	return Choice{
		Private:   c.QueryParam("private") == "true",
		StudentID: c.QueryParam("student"),
	}
}

// resolve routes the request to a concrete channel. Fails when the routed
// view has no active channel (the admin inbox).
func (h *Handler) resolve(user *domain.User, choice Choice) (Channel, error) {
	sel := Route(user, h.settings.Current().ChatMode, choice)
	if sel.Active.IsZero() {
		return Channel{}, echo.NewHTTPError(http.StatusBadRequest, "no active channel, pick a student session")
	}
	return sel.Active, nil
}

// GetSelection returns the channels the user may open right now.
func (h *Handler) GetSelection(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	sel := Route(user, h.settings.Current().ChatMode, choiceFromQuery(c))
	resp := selectionResponse{InboxView: sel.InboxView}
	for _, ch := range sel.Selectable {
		resp.Selectable = append(resp.Selectable, viewOf(ch))
	}
	if !sel.Active.IsZero() {
		v := viewOf(sel.Active)
		resp.Active = &v
	}
	return c.JSON(http.StatusOK, resp)
}

// GetMessages returns the routed channel's full history, sorted.
func (h *Handler) GetMessages(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	ch, err := h.resolve(user, choiceFromQuery(c))
	if err != nil {
		return err
	}
	messages, err := h.adapter.History(c.Request().Context(), ch)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load messages")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"channel":  viewOf(ch),
		"messages": messages,
	})
}

// sendRequest is the body for posting and confirming a message.
type sendRequest struct {
	Text             string `json:"text"`
	Private          bool   `json:"private"`
	Student          string `json:"student"`
	Confirm          bool   `json:"confirm"`
	EnableAutoDeduct bool   `json:"enableAutoDeduct"`
	AdminColor       string `json:"adminColor"`
	AdminAnimation   string `json:"adminAnimation"`
	ReplyToAuthor    string `json:"replyToAuthor"`
	ReplyToText      string `json:"replyToText"`
}

// PostMessage runs the send pipeline. A 402 response asks the caller to
// confirm the credit charge and retry with confirm set.
func (h *Handler) PostMessage(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ch, err := h.resolve(user, Choice{Private: req.Private, StudentID: req.Student})
	if err != nil {
		return err
	}

	text := req.Text
	if req.ReplyToAuthor != "" {
		text = quoteReply(req.ReplyToAuthor, req.ReplyToText) + text
	}
	flair := Flair{Color: req.AdminColor, Animation: req.AdminAnimation}

	var result SendResult
	if req.Confirm {
		result, err = h.sender.Confirm(c.Request().Context(), user, ch, text, flair, req.EnableAutoDeduct)
	} else {
		result, err = h.sender.Send(c.Request().Context(), user, ch, text, flair)
	}
	if err != nil {
		return sendErrorResponse(c, err)
	}
	if result.NeedsConfirmation {
		return c.JSON(http.StatusPaymentRequired, result)
	}
	return c.JSON(http.StatusOK, result)
}

// editRequest is the body for editing a message.
type editRequest struct {
	Text    string `json:"text"`
	Private bool   `json:"private"`
	Student string `json:"student"`
}

// EditMessage replaces a message's text.
func (h *Handler) EditMessage(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	var req editRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ch, err := h.resolve(user, Choice{Private: req.Private, StudentID: req.Student})
	if err != nil {
		return err
	}

	err = h.adapter.Edit(c.Request().Context(), user, ch, c.Param("id"), req.Text)
	if err != nil {
		return mutationErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteMessage removes a message. Deleting an already gone message is fine.
func (h *Handler) DeleteMessage(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}

	ch, err := h.resolve(user, choiceFromQuery(c))
	if err != nil {
		return err
	}

	err = h.adapter.Remove(c.Request().Context(), user, ch, c.Param("id"))
	if err != nil {
		return mutationErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSessions returns the admin inbox.
func (h *Handler) GetSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"sessions": h.sessions.Sessions(),
	})
}

func sendErrorResponse(c echo.Context, err error) error {
	var denied *AccessDeniedError
	switch {
	case errors.As(err, &denied):
		return c.JSON(http.StatusForbidden, map[string]string{"error": denied.Reason})
	case errors.Is(err, ErrSendInFlight):
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "A message is already being sent."})
	case errors.Is(err, domain.ErrInsufficientCredits):
		return c.JSON(http.StatusPaymentRequired, map[string]string{"error": "Insufficient credits."})
	case errors.Is(err, store.ErrWrite):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to send message."})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send message")
	}
}

func mutationErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrNotMessageAuthor):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "You can only modify your own messages."})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Message not found."})
	case errors.Is(err, store.ErrWrite):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to update message."})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update message")
	}
}
