package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-anchor-studio/internal/anchor"
	"ai-anchor-studio/internal/studio"
)

const callbackPrefix = "ac"

// fieldSpec binds one enumerated presenter attribute to its catalog and to
// the options record, so menus and callbacks can be generated uniformly.
type fieldSpec struct {
	key     string
	label   string
	choices func() []string
	get     func(anchor.Options) string
	set     func(*anchor.Options, string)
}

func fieldSpecs() []fieldSpec {
	return []fieldSpec{
		{
			key: "gender", label: "Gender", choices: anchor.Genders,
			get: func(o anchor.Options) string { return o.Gender },
			set: func(o *anchor.Options, v string) { o.Gender = v },
		},
		{
			key: "ethnicity", label: "Ethnicity", choices: anchor.Ethnicities,
			get: func(o anchor.Options) string { return o.Ethnicity },
			set: func(o *anchor.Options, v string) { o.Ethnicity = v },
		},
		{
			key: "age", label: "Age", choices: anchor.Ages,
			get: func(o anchor.Options) string { return o.Age },
			set: func(o *anchor.Options, v string) { o.Age = v },
		},
		{
			key: "expression", label: "Expression", choices: anchor.Expressions,
			get: func(o anchor.Options) string { return o.Expression },
			set: func(o *anchor.Options, v string) { o.Expression = v },
		},
		{
			key: "hairstyle", label: "Hair style", choices: anchor.HairStyles,
			get: func(o anchor.Options) string { return o.HairStyle },
			set: func(o *anchor.Options, v string) { o.HairStyle = v },
		},
		{
			key: "haircolor", label: "Hair color", choices: anchor.HairColors,
			get: func(o anchor.Options) string { return o.HairColor },
			set: func(o *anchor.Options, v string) { o.HairColor = v },
		},
		{
			key: "eyestyle", label: "Eye style", choices: anchor.EyeStyles,
			get: func(o anchor.Options) string { return o.EyeStyle },
			set: func(o *anchor.Options, v string) { o.EyeStyle = v },
		},
		{
			key: "eyecolor", label: "Eye color", choices: anchor.EyeColors,
			get: func(o anchor.Options) string { return o.EyeColor },
			set: func(o *anchor.Options, v string) { o.EyeColor = v },
		},
		{
			key: "clothing", label: "Clothing", choices: anchor.ClothingStyles,
			get: func(o anchor.Options) string { return o.Clothing },
			set: func(o *anchor.Options, v string) { o.Clothing = v },
		},
		{
			key: "background", label: "Background", choices: anchor.Backgrounds,
			get: func(o anchor.Options) string { return o.Background },
			set: func(o *anchor.Options, v string) { o.Background = v },
		},
		{
			key: "aspect", label: "Aspect ratio", choices: anchor.AspectRatios,
			get: func(o anchor.Options) string { return o.AspectRatio },
			set: func(o *anchor.Options, v string) { o.AspectRatio = v },
		},
	}
}

func findField(key string) (fieldSpec, bool) {
	for _, f := range fieldSpecs() {
		if f.key == key {
			return f, true
		}
	}
	return fieldSpec{}, false
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, callbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu belongs to someone else.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	sess, _ := h.sessions.update(chatID, ownerID, func(ui *uiState) {
		ui.MessageID = msgID

		switch action {
		case "menu":
			if len(args) >= 1 {
				ui.Menu = args[0]
			}
		case "set":
			ui.Menu = "main"
		case "note":
			ui.Awaiting = awaitPrompt
			ui.Menu = "main"
		case "details":
			ui.Awaiting = awaitDetails
			ui.Menu = "main"
		case "tpl_save":
			ui.Awaiting = awaitName
			ui.Menu = "templates"
		case "tpl_cancel":
			ui.PendingSave = ""
			ui.Menu = "templates"
		case "close":
			ui.Awaiting = awaitNothing
			ui.PendingSave = ""
			ui.Menu = "main"
		}
	})

	switch action {
	case "set":
		if len(args) >= 2 {
			if field, ok := findField(args[0]); ok {
				if idx, err := strconv.Atoi(args[1]); err == nil {
					choices := field.choices()
					if idx >= 0 && idx < len(choices) {
						sess.UpdateOptions(func(o *anchor.Options) { field.set(o, choices[idx]) })
					}
				}
			}
		}
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	case "note":
		_ = h.tg.AnswerCallback(q.ID, "Send the description text (or /cancel).", false)
		_ = h.tg.SendText(chatID, "📝 Send the free-text description for the presenter (or /cancel).")
	case "details":
		_ = h.tg.AnswerCallback(q.ID, "Send the clothing details (or /cancel).", false)
		_ = h.tg.SendText(chatID, "📝 Send the clothing details (or /cancel).")
	case "face_clear":
		sess.ClearFace()
		_ = h.tg.AnswerCallback(q.ID, "Reference face removed.", false)
	case "reset":
		sess.SetOptions(anchor.DefaultOptions())
		sess.ClearFace()
		_ = h.tg.AnswerCallback(q.ID, "Back to defaults.", false)
	case "generate":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		if err := h.generate(ctx, chatID, ownerID, sess); err != nil {
			return err
		}
	case "tpl_save":
		_ = h.tg.AnswerCallback(q.ID, "Send a name for the preset.", false)
		_ = h.tg.SendText(chatID, "📝 Send a name for the preset (or /cancel).")
	case "tpl_load":
		if len(args) >= 1 {
			if err := h.loadTemplateAt(chatID, ownerID, sess, args[0]); err != nil {
				return err
			}
		}
		_ = h.tg.AnswerCallback(q.ID, "Preset loaded.", false)
	case "tpl_del":
		if len(args) >= 1 {
			h.deleteTemplateAt(q.ID, sess, args[0])
		}
	case "tpl_overwrite":
		h.confirmPendingSave(q.ID, chatID, ownerID, sess)
	case "tpl_cancel":
		_ = h.tg.AnswerCallback(q.ID, "Not saved.", false)
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	}

	return h.renderUI(chatID, ownerID, msgID, true)
}

func (h *Handler) loadTemplateAt(chatID int64, userID int64, sess *studio.Session, rawIdx string) error {
	idx, err := strconv.Atoi(rawIdx)
	if err != nil {
		return nil
	}
	templates := sess.Templates()
	if idx < 0 || idx >= len(templates) {
		return nil
	}

	if err := sess.LoadTemplate(templates[idx].Name); err != nil {
		if errors.Is(err, anchor.ErrTemplateNotFound) {
			return h.tg.SendText(chatID, "❌ That preset no longer exists.")
		}
		return err
	}
	return nil
}

func (h *Handler) deleteTemplateAt(callbackID string, sess *studio.Session, rawIdx string) {
	idx, err := strconv.Atoi(rawIdx)
	if err != nil {
		return
	}
	templates := sess.Templates()
	if idx < 0 || idx >= len(templates) {
		return
	}

	switch err := sess.DeleteTemplate(templates[idx].Name); {
	case errors.Is(err, anchor.ErrReservedName):
		_ = h.tg.AnswerCallback(callbackID, "Built-in presets cannot be deleted.", true)
	case err != nil:
		h.logger.Error("template delete failed", "err", err)
		_ = h.tg.AnswerCallback(callbackID, "Deleting failed.", true)
	default:
		_ = h.tg.AnswerCallback(callbackID, "Preset deleted.", false)
	}
}

func (h *Handler) confirmPendingSave(callbackID string, chatID int64, userID int64, sess *studio.Session) {
	_, ui := h.sessions.get(chatID, userID)
	name := strings.TrimSpace(ui.PendingSave)
	if name == "" {
		_ = h.tg.AnswerCallback(callbackID, "Nothing to overwrite.", false)
		return
	}

	if err := sess.SaveTemplate(name, true); err != nil {
		h.logger.Error("template overwrite failed", "err", err)
		_ = h.tg.AnswerCallback(callbackID, "Saving failed.", true)
		return
	}

	h.sessions.update(chatID, userID, func(ui *uiState) {
		ui.PendingSave = ""
		ui.Menu = "templates"
	})
	_ = h.tg.AnswerCallback(callbackID, "Preset overwritten.", false)
}

func (h *Handler) generate(ctx context.Context, chatID int64, userID int64, sess *studio.Session) error {
	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, "🎨 Generating the presenter portrait, this can take a moment...")

	state, err := sess.Generate(ctx)
	if errors.Is(err, studio.ErrBusy) {
		return h.tg.SendText(chatID, "⏳ A generation is already running, please wait for it to finish.")
	}

	switch state.Phase {
	case studio.PhaseDone:
		return h.tg.SendPhotoDataURL(chatID, state.ImageURL, "✅ Your presenter is ready!")
	case studio.PhaseFailed:
		return h.tg.SendText(chatID, "❌ "+state.Error)
	}
	return nil
}

func (h *Handler) renderUI(chatID int64, userID int64, messageID int, edit bool) error {
	sess, ui := h.sessions.get(chatID, userID)
	if messageID == 0 {
		messageID = ui.MessageID
	}

	view := sess.Snapshot()
	text := wizardText(view, ui, sess.Templates())
	kb := wizardKeyboard(userID, view, ui, sess.Templates())

	if edit && messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.sessions.update(chatID, userID, func(ui *uiState) { ui.MessageID = msgID })
	return nil
}

func wizardText(view studio.View, ui uiState, templates []anchor.Template) string {
	o := view.Options

	var b strings.Builder
	b.WriteString("🎙 AI Anchor Studio\n\n")
	fmt.Fprintf(&b, "Gender: %s, %s, %s\n", o.Gender, o.Ethnicity, o.Age)
	fmt.Fprintf(&b, "Hair: %s, %s\n", o.HairStyle, o.HairColor)
	fmt.Fprintf(&b, "Eyes: %s, %s\n", o.EyeStyle, o.EyeColor)
	fmt.Fprintf(&b, "Clothing: %s\n", o.Clothing)
	if o.ClothingDetails != "" {
		fmt.Fprintf(&b, "Details: %s\n", truncateLine(o.ClothingDetails, 80))
	}
	fmt.Fprintf(&b, "Background: %s\n", o.Background)
	fmt.Fprintf(&b, "Expression: %s\n", o.Expression)
	fmt.Fprintf(&b, "Aspect: %s\n", o.AspectRatio)
	if o.Prompt != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncateLine(o.Prompt, 120))
	}

	if view.HasFace {
		b.WriteString("Reference face: saved ✅\n")
	} else {
		b.WriteString("Reference face: none, send a photo to add one\n")
	}

	if view.MatchedName != "" {
		fmt.Fprintf(&b, "Preset: %s\n", view.MatchedName)
	}

	switch view.State.Phase {
	case studio.PhaseGenerating:
		b.WriteString("\n⏳ Generation in progress…\n")
	case studio.PhaseFailed:
		fmt.Fprintf(&b, "\n❌ Last attempt: %s\n", view.State.Error)
	}

	switch ui.Awaiting {
	case awaitName:
		b.WriteString("\n📝 Now send a name for the preset (or /cancel).\n")
	case awaitPrompt:
		b.WriteString("\n📝 Now send the description text (or /cancel).\n")
	case awaitDetails:
		b.WriteString("\n📝 Now send the clothing details (or /cancel).\n")
	}

	if ui.Menu == "templates" {
		b.WriteString("\nPresets:\n")
		for i, t := range templates {
			fmt.Fprintf(&b, "%d) %s\n", i+1, t.Name)
		}
	}

	return strings.TrimSpace(b.String())
}

func wizardKeyboard(ownerID int64, view studio.View, ui uiState, templates []anchor.Template) tgbotapi.InlineKeyboardMarkup {
	if ui.Menu == "templates" {
		return templatesKeyboard(ownerID, templates)
	}
	if field, ok := findField(ui.Menu); ok {
		return choicesKeyboard(ownerID, field, view.Options)
	}
	return mainKeyboard(ownerID, view)
}

func mainKeyboard(ownerID int64, view studio.View) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("Gender", cb(ownerID, "menu", "gender")),
			tgbotapi.NewInlineKeyboardButtonData("Ethnicity", cb(ownerID, "menu", "ethnicity")),
			tgbotapi.NewInlineKeyboardButtonData("Age", cb(ownerID, "menu", "age")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Hair", cb(ownerID, "menu", "hairstyle")),
			tgbotapi.NewInlineKeyboardButtonData("Hair color", cb(ownerID, "menu", "haircolor")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Eyes", cb(ownerID, "menu", "eyestyle")),
			tgbotapi.NewInlineKeyboardButtonData("Eye color", cb(ownerID, "menu", "eyecolor")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Clothing", cb(ownerID, "menu", "clothing")),
			tgbotapi.NewInlineKeyboardButtonData("Details", cb(ownerID, "details")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Background", cb(ownerID, "menu", "background")),
			tgbotapi.NewInlineKeyboardButtonData("Expression", cb(ownerID, "menu", "expression")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Aspect", cb(ownerID, "menu", "aspect")),
			tgbotapi.NewInlineKeyboardButtonData("Description", cb(ownerID, "note")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("Templates", cb(ownerID, "menu", "templates")),
		},
	}

	if view.HasFace {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🗑 Remove face", cb(ownerID, "face_clear")),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb(ownerID, "generate")),
		})
	} else {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🎨 Generate", cb(ownerID, "generate")),
		})
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
		tgbotapi.NewInlineKeyboardButtonData("Close", cb(ownerID, "close")),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func choicesKeyboard(ownerID int64, field fieldSpec, options anchor.Options) tgbotapi.InlineKeyboardMarkup {
	current := field.get(options)

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, choice := range field.choices() {
		label := choice
		if choice == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "set", field.key, strconv.Itoa(i))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func templatesKeyboard(ownerID int64, templates []anchor.Template) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, t := range templates {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(truncateLine(t.Name, 28), cb(ownerID, "tpl_load", strconv.Itoa(i))),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cb(ownerID, "tpl_del", strconv.Itoa(i))),
		})
	}

	rows = append(rows,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("💾 Save current", cb(ownerID, "tpl_save")),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅ Back", cb(ownerID, "menu", "main")),
		},
	)

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
