/*
telegram.go - Telegram Bot API notifier

PURPOSE:
  Delivers booking and moderation events to humans through the studio's
  Telegram bot: the operator chat hears about new bookings and member
  cancellations; members hear about admin cancellations and account
  approval. Delivery is best-effort — the engine has already committed
  by the time any of this runs.

TRANSPORT:
  Plain HTTPS POSTs to the Bot API sendMessage method. The bot token is
  part of the URL, per Telegram's API shape.
*/
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bandroom/studio-scheduler/schedule"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram implements schedule.Notifier over the Bot API.
type Telegram struct {
	client         *http.Client
	apiBase        string
	token          string
	operatorChatID int64
	accounts       schedule.AccountStore
}

// Option configures a Telegram notifier.
type Option func(*Telegram)

// WithAPIBase overrides the Bot API base URL (tests point it at a
// local httptest server).
func WithAPIBase(base string) Option {
	return func(t *Telegram) { t.apiBase = strings.TrimSuffix(base, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Telegram) { t.client = c }
}

// NewTelegram creates a notifier for the given bot token. The operator
// chat receives booking announcements and member cancellations;
// accounts is used to resolve affected members' chat ids for admin
// cancellations.
func NewTelegram(token string, operatorChatID int64, accounts schedule.AccountStore, opts ...Option) *Telegram {
	t := &Telegram{
		client:         &http.Client{Timeout: 10 * time.Second},
		apiBase:        defaultAPIBase,
		token:          token,
		operatorChatID: operatorChatID,
		accounts:       accounts,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NotifyBooking announces a new booking to the operator chat.
func (t *Telegram) NotifyBooking(ctx context.Context, ev schedule.BookingEvent) error {
	msg := fmt.Sprintf("👨‍💻: @%s забронировал репетицию 📅:%s 🕓:%s",
		ev.Actor.DisplayName(), dotDate(ev.Day), joinHours(ev.Hours))
	return t.send(ctx, t.operatorChatID, msg)
}

// NotifyCancellation routes cancellation notices per the responsibility
// split: an admin canceled on members' behalf and must inform each of
// them; a member canceled their own slots and the operator is told once.
func (t *Telegram) NotifyCancellation(ctx context.Context, ev schedule.CancellationEvent) error {
	if !ev.ByAdmin {
		msg := fmt.Sprintf("👨‍💻: @%s отменил репетицию 📅:%s 🕓:%s",
			ev.Actor.DisplayName(), dotDate(ev.Day), joinHours(ev.Hours))
		return t.send(ctx, t.operatorChatID, msg)
	}

	msg := fmt.Sprintf("Ваша репетиция 📅:%s 🕓:%s была отменена администратором",
		dotDate(ev.Day), joinHours(ev.Hours))
	var firstErr error
	for _, id := range ev.AffectedAccounts {
		account, err := t.accounts.GetAccount(ctx, id)
		if err != nil || account == nil {
			if firstErr == nil && err != nil {
				firstErr = err
			}
			continue
		}
		if err := t.send(ctx, account.TelegramID, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotifyAccessRequest tells the operator a new member wants to book.
func (t *Telegram) NotifyAccessRequest(ctx context.Context, account schedule.Account) error {
	msg := fmt.Sprintf("@%s запрашивает доступ к бронированию.", account.DisplayName())
	return t.send(ctx, t.operatorChatID, msg)
}

// NotifyApproval tells a freshly promoted member they can now book.
func (t *Telegram) NotifyApproval(ctx context.Context, account schedule.Account) error {
	msg := "Авторизация подтверждена, теперь вы можете бронировать репетиции"
	return t.send(ctx, account.TelegramID, msg)
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage: status %d", resp.StatusCode)
	}
	return nil
}

func dotDate(day schedule.DayKey) string {
	return strings.ReplaceAll(day.String(), "/", ".")
}

func joinHours(hours []schedule.Hour) string {
	labels := make([]string, len(hours))
	for i, h := range hours {
		labels[i] = string(h)
	}
	return strings.Join(labels, ",")
}
