package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"ai-anchor-studio/internal/anchor"
	"ai-anchor-studio/internal/mediagroup"
	"ai-anchor-studio/internal/studio"
	"ai-anchor-studio/internal/telegram"
)

type Options struct {
	Telegram  *telegram.Client
	Generator studio.Generator
	Templates *anchor.Store
	Logger    *slog.Logger
}

type Handler struct {
	tg         *telegram.Client
	sessions   *stateStore
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	newSession := func() *studio.Session {
		return studio.NewSession(studio.SessionOptions{
			Templates: opts.Templates,
			Generator: opts.Generator,
			Logger:    logger,
		})
	}

	return &Handler{
		tg:       opts.Telegram,
		sessions: newStateStore(newSession),
		logger:   logger,
	}
}

func (h *Handler) SetAlbumAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}

	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, msg)
	}

	if msg.Text != "" {
		return h.handleText(chatID, userID, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(chatID int64, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"🎙 AI Anchor Studio\n\n"+
				"Design a virtual TV presenter and generate their portrait.\n\n"+
				"Commands:\n"+
				"/anchor - open the presenter designer\n"+
				"/templates - manage saved presets\n"+
				"/cancel - cancel pending input\n"+
				"/help - help",
		)
	case "help":
		return h.tg.SendText(chatID,
			"🎙 Help\n\n"+
				"/anchor opens a menu where every attribute of the presenter "+
				"(gender, hair, clothing, background, ...) can be picked.\n"+
				"Send a photo while the designer is open to use that face as a reference.\n"+
				"Press Generate to create the portrait.\n"+
				"Presets can be saved, loaded and deleted under Templates.",
		)
	case "anchor":
		_, _ = h.sessions.update(chatID, userID, func(ui *uiState) {
			ui.Menu = "main"
			ui.Awaiting = awaitNothing
			ui.PendingSave = ""
		})
		return h.renderUI(chatID, userID, 0, false)
	case "templates":
		_, _ = h.sessions.update(chatID, userID, func(ui *uiState) {
			ui.Menu = "templates"
			ui.Awaiting = awaitNothing
			ui.PendingSave = ""
		})
		return h.renderUI(chatID, userID, 0, false)
	case "cancel":
		_, _ = h.sessions.update(chatID, userID, func(ui *uiState) {
			ui.Awaiting = awaitNothing
			ui.PendingSave = ""
		})
		return h.tg.SendText(chatID, "✅ Cancelled.")
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Try /help.")
	}
}

// handleText consumes plain text when the wizard is waiting for a template
// name, a free-text description or clothing details.
func (h *Handler) handleText(chatID int64, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sess, ui := h.sessions.get(chatID, userID)

	switch ui.Awaiting {
	case awaitName:
		return h.saveTemplateAs(chatID, userID, sess, text)
	case awaitPrompt:
		sess.UpdateOptions(func(o *anchor.Options) { o.Prompt = text })
		h.sessions.update(chatID, userID, func(ui *uiState) { ui.Awaiting = awaitNothing })
		return h.renderUI(chatID, userID, 0, true)
	case awaitDetails:
		sess.UpdateOptions(func(o *anchor.Options) { o.ClothingDetails = text })
		h.sessions.update(chatID, userID, func(ui *uiState) { ui.Awaiting = awaitNothing })
		return h.renderUI(chatID, userID, 0, true)
	}

	return h.tg.SendText(chatID, "Use /anchor to design a presenter, or /help.")
}

func (h *Handler) saveTemplateAs(chatID int64, userID int64, sess *studio.Session, name string) error {
	err := sess.SaveTemplate(name, false)
	switch {
	case errors.Is(err, anchor.ErrReservedName):
		h.sessions.update(chatID, userID, func(ui *uiState) { ui.Awaiting = awaitNothing })
		return h.tg.SendText(chatID, "❌ Built-in presets cannot be overwritten. Pick another name.")
	case errors.Is(err, anchor.ErrNameExists):
		_, _ = h.sessions.update(chatID, userID, func(ui *uiState) {
			ui.Awaiting = awaitNothing
			ui.PendingSave = name
		})
		kb := tgbotapi.NewInlineKeyboardMarkup(
			[]tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("Overwrite", cb(userID, "tpl_overwrite")),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", cb(userID, "tpl_cancel")),
			},
		)
		_, err := h.tg.SendTextWithKeyboard(chatID, "A preset named "+strings.TrimSpace(name)+" already exists. Overwrite it?", kb)
		return err
	case errors.Is(err, anchor.ErrEmptyName):
		return h.tg.SendText(chatID, "❌ The name is empty. Send another name or /cancel.")
	case err != nil:
		h.logger.Error("template save failed", "err", err)
		return h.tg.SendText(chatID, "❌ Saving failed. Try again.")
	}

	h.sessions.update(chatID, userID, func(ui *uiState) {
		ui.Awaiting = awaitNothing
		ui.Menu = "templates"
	})
	if err := h.tg.SendText(chatID, "✅ Preset saved as "+strings.TrimSpace(name)+"."); err != nil {
		return err
	}
	return h.renderUI(chatID, userID, 0, true)
}

// handlePhoto sets the reference face. Albums are debounced first so the
// whole burst is seen at once.
func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			MediaGroupID: msg.MediaGroupID,
			FileID:       photo.FileID,
		})
		return nil
	}

	return h.setFaceFromFiles(ctx, chatID, userID, []string{photo.FileID})
}

// HandleAlbum resolves a completed photo album into a single reference face.
func (h *Handler) HandleAlbum(ctx context.Context, album mediagroup.Album) {
	if err := h.setFaceFromFiles(ctx, album.ChatID, album.UserID, album.FileIDs); err != nil {
		h.logger.Error("album face intake failed", "err", err)
	}
}

// setFaceFromFiles downloads the candidate photos in parallel and keeps the
// largest payload as the reference face.
func (h *Handler) setFaceFromFiles(ctx context.Context, chatID int64, userID int64, fileIDs []string) error {
	type downloaded struct {
		data []byte
		mime string
	}

	downloads := make([]downloaded, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i := i
		fileID := fileID
		eg.Go(func() error {
			data, mimeType, err := h.tg.DownloadFile(egCtx, fileID)
			if err != nil {
				return err
			}
			downloads[i] = downloaded{data: data, mime: mimeType}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Downloading the photo failed.")
	}

	best := downloads[0]
	for _, d := range downloads[1:] {
		if len(d.data) > len(best.data) {
			best = d
		}
	}

	sess, _ := h.sessions.get(chatID, userID)
	if err := sess.SetFace(best.data, best.mime); err != nil {
		if errors.Is(err, studio.ErrNotAnImage) {
			return h.tg.SendText(chatID, "❌ That file is not an image.")
		}
		return err
	}

	if err := h.tg.SendText(chatID, "✅ Reference face saved. It will guide the next generation."); err != nil {
		return err
	}
	return h.renderUI(chatID, userID, 0, true)
}
