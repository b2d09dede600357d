package handlers

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/csv"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"crm-gin/internal/bot"
	"crm-gin/internal/cache"
	"crm-gin/internal/channel"
	"crm-gin/internal/dto"
	apperrors "crm-gin/internal/errors"
	"crm-gin/internal/metrics"
	"crm-gin/internal/models"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ===========================================================================
// Telegram Handler
// Webhook of the tenant bots. Telegram retries any non-200 answer, so every
// update that passed the secret check is acknowledged with {ok:true} even
// when processing failed.
// ===========================================================================

const (
	SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	outcomeReplied = "replied"
	outcomeIgnored = "ignored"
	outcomeDenied  = "denied"
	outcomeLimited = "limited"
	outcomeCommand = "command"
	outcomeFailed  = "failed"
)

const (
	msgNotAllowed = "Désolé, vous n'êtes pas autorisé à utiliser cet assistant."
	msgRateLimit  = "Vous envoyez trop de messages, merci de patienter une minute."
	msgFailure    = "Désolé, une erreur est survenue. Réessayez dans un instant."
	msgReset      = "Conversation réinitialisée."
	msgNoUnpaid   = "Aucune facture impayée, tout est à jour."
	msgHelp       = `Je suis l'assistant de votre CRM. Écrivez-moi naturellement, par exemple:
- "Crée une facture pour Dupont: 10 heures à 80 €"
- "Quelles factures sont en retard ?"
- "Rappelle-moi demain 15h d'appeler Martin"
Vous pouvez aussi envoyer un message vocal ou une photo.

Commandes:
/help affiche cette aide
/reset oublie la conversation
/export envoie les factures impayées en CSV`
)

// TelegramConfig tunes the webhook processing
type TelegramConfig struct {
	RatePerMinute  int
	TypingInterval time.Duration
	ReplyTimeout   time.Duration
}

type TelegramHandler struct {
	tenants   repositories.TenantRepository
	settings  services.SettingsService
	invoices  services.InvoiceService
	assistant bot.Assistant
	messenger channel.Messenger
	limiter   *chatLimiter
	clock     cache.Clock
	cfg       TelegramConfig
	logger    *zap.Logger
}

func NewTelegramHandler(
	tenants repositories.TenantRepository,
	settings services.SettingsService,
	invoices services.InvoiceService,
	assistant bot.Assistant,
	messenger channel.Messenger,
	clock cache.Clock,
	cfg TelegramConfig,
	logger *zap.Logger,
) *TelegramHandler {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 20
	}
	if cfg.TypingInterval <= 0 {
		cfg.TypingInterval = 4 * time.Second
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 50 * time.Second
	}
	if clock == nil {
		clock = cache.SystemClock
	}
	return &TelegramHandler{
		tenants:   tenants,
		settings:  settings,
		invoices:  invoices,
		assistant: assistant,
		messenger: messenger,
		limiter:   newChatLimiter(cfg.RatePerMinute, 4096),
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Webhook
// POST /api/telegram/webhook/:tenant
func (h *TelegramHandler) Webhook(c *gin.Context) {
	slug := c.Param("tenant")

	tenant, err := h.tenants.FindBySlug(c.Request.Context(), slug)
	if err != nil {
		if !repositories.IsNotFound(err) {
			h.logger.Error("telegram tenant lookup failed", zap.String("tenant", slug), zap.Error(err))
		}
		h.ack(c, outcomeIgnored)
		return
	}

	settings, err := h.settings.Get(c.Request.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("telegram settings load failed", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
		h.ack(c, outcomeFailed)
		return
	}
	tg := settings.Telegram

	if tg.WebhookSecret != "" &&
		subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretTokenHeader)), []byte(tg.WebhookSecret)) != 1 {
		metrics.RecordTelegramUpdate(outcomeDenied)
		c.JSON(http.StatusForbidden, dto.Error("FORBIDDEN", "Secret invalide"))
		return
	}
	if !tg.Enabled || tg.BotToken == "" {
		h.ack(c, outcomeIgnored)
		return
	}

	var update channel.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn("telegram update decode failed", zap.Error(err))
		h.ack(c, outcomeIgnored)
		return
	}
	msg, ok := channel.Normalize(&update)
	if !ok {
		h.ack(c, outcomeIgnored)
		return
	}

	// the update is ours from here on; finish it even if Telegram hangs up
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.cfg.ReplyTimeout)
	defer cancel()

	h.ack(c, h.handle(ctx, tenant, tg, msg))
}

func (h *TelegramHandler) ack(c *gin.Context, outcome string) {
	metrics.RecordTelegramUpdate(outcome)
	c.JSON(http.StatusOK, dto.OKResponse{OK: true})
}

func (h *TelegramHandler) handle(ctx context.Context, tenant *models.Tenant, tg models.TelegramSettings, msg *channel.InboundMessage) string {
	logger := h.logger.With(
		zap.String("tenant_id", tenant.ID.String()),
		zap.Int64("chat_id", msg.ChatID),
		zap.Int64("sender_id", msg.SenderID),
	)

	if !tg.IsAllowed(msg.SenderID) {
		logger.Warn("telegram sender not allowed", zap.String("sender", msg.SenderName))
		h.send(ctx, tg.BotToken, msg.ChatID, msgNotAllowed, logger)
		return outcomeDenied
	}

	if !h.limiter.Allow(msg.ChatID) {
		h.send(ctx, tg.BotToken, msg.ChatID, msgRateLimit, logger)
		return outcomeLimited
	}

	switch msg.Command() {
	case "/start", "/help":
		h.send(ctx, tg.BotToken, msg.ChatID, msgHelp, logger)
		return outcomeCommand
	case "/reset":
		if err := h.assistant.Reset(ctx, msg.ChatID); err != nil {
			logger.Error("conversation reset failed", zap.Error(err))
			h.send(ctx, tg.BotToken, msg.ChatID, msgFailure, logger)
			return outcomeFailed
		}
		h.send(ctx, tg.BotToken, msg.ChatID, msgReset, logger)
		return outcomeCommand
	case "/export":
		if err := h.exportUnpaid(ctx, tenant.ID, tg.BotToken, msg.ChatID); err != nil {
			logger.Error("unpaid export failed", zap.Error(err))
			h.send(ctx, tg.BotToken, msg.ChatID, apperrors.Message(err, msgFailure), logger)
			return outcomeFailed
		}
		return outcomeCommand
	}

	stop := channel.KeepTyping(ctx, h.messenger, tg.BotToken, msg.ChatID, h.cfg.TypingInterval)
	start := time.Now()
	reply, err := h.reply(ctx, tenant.ID, tg.BotToken, msg)
	stop()
	metrics.AssistantReplyDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("assistant reply failed", zap.Error(err))
		h.send(ctx, tg.BotToken, msg.ChatID, apperrors.Message(err, msgFailure), logger)
		return outcomeFailed
	}

	h.send(ctx, tg.BotToken, msg.ChatID, reply.Text, logger)
	return outcomeReplied
}

// reply downloads attached media then asks the assistant
func (h *TelegramHandler) reply(ctx context.Context, tenantID uuid.UUID, token string, msg *channel.InboundMessage) (*bot.Reply, error) {
	in := bot.Message{TenantID: tenantID, ChatID: msg.ChatID, Text: msg.Text}

	if msg.FileID != "" {
		data, filePath, err := h.messenger.DownloadFile(ctx, token, msg.FileID)
		if err != nil {
			return nil, apperrors.External("Telegram", err)
		}
		media := &bot.Media{Filename: path.Base(filePath), Data: data}
		switch msg.ContentType {
		case channel.ContentVoice:
			if path.Ext(media.Filename) == "" {
				media.Filename += ".ogg"
			}
			in.Voice = media
		case channel.ContentPhoto:
			in.Image = media
		}
	}

	return h.assistant.Reply(ctx, in)
}

func (h *TelegramHandler) send(ctx context.Context, token string, chatID int64, text string, logger *zap.Logger) {
	if err := h.messenger.SendMessage(ctx, token, chatID, text); err != nil {
		logger.Error("telegram send failed", zap.Error(err))
	}
}

// ===========================================================================
// /export
// ===========================================================================

func (h *TelegramHandler) exportUnpaid(ctx context.Context, tenantID uuid.UUID, token string, chatID int64) error {
	invoices, err := h.invoices.ListUnpaid(ctx, tenantID)
	if err != nil {
		return err
	}
	if len(invoices) == 0 {
		return h.messenger.SendMessage(ctx, token, chatID, msgNoUnpaid)
	}

	data, err := UnpaidInvoicesCSV(invoices)
	if err != nil {
		return err
	}

	var total float64
	for _, inv := range invoices {
		total += inv.TotalTTC
	}
	now := h.clock.Now()
	filename := fmt.Sprintf("factures-impayees-%s.csv", now.Format("2006-01-02"))
	caption := fmt.Sprintf("%d facture(s) impayée(s), %.2f € TTC", len(invoices), total)
	return h.messenger.SendDocument(ctx, token, chatID, filename, data, caption)
}

// UnpaidInvoicesCSV renders invoices as a semicolon separated file that
// spreadsheet software opens with French locale settings
func UnpaidInvoicesCSV(invoices []models.Invoice) ([]byte, error) {
	var buf bytes.Buffer
	// BOM so accented client names survive spreadsheet import
	buf.WriteString("\ufeff")

	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write([]string{"Numéro", "Client", "Date", "Échéance", "Total HT", "Total TTC", "Statut"}); err != nil {
		return nil, err
	}
	for _, inv := range invoices {
		client := ""
		if inv.Client != nil {
			client = inv.Client.DisplayName()
		}
		due := ""
		if inv.DueDate != nil {
			due = inv.DueDate.Format("02/01/2006")
		}
		if err := w.Write([]string{
			inv.Number,
			client,
			inv.IssueDate.Format("02/01/2006"),
			due,
			frenchAmount(inv.SubtotalHT),
			frenchAmount(inv.TotalTTC),
			string(inv.Status),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func frenchAmount(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', 2, 64), ".", ",", 1)
}

// ===========================================================================
// Rate limiting
// One token bucket per chat, least recently used chats are evicted
// ===========================================================================

type chatLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache
	limit    rate.Limit
	burst    int
}

func newChatLimiter(perMinute, capacity int) *chatLimiter {
	l, err := lru.New(capacity)
	if err != nil {
		panic(err)
	}
	return &chatLimiter{
		limiters: l,
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
	}
}

func (l *chatLimiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.limiters.Get(chatID); ok {
		return v.(*rate.Limiter).Allow()
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(chatID, lim)
	return lim.Allow()
}

func (h *TelegramHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/telegram/webhook/:tenant", h.Webhook)
}
