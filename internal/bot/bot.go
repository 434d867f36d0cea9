package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/memo-desk/internal/models"
	"github.com/xaenox/memo-desk/internal/notebook"
	"github.com/xaenox/memo-desk/internal/rules"
	"github.com/xaenox/memo-desk/internal/storage"
	"go.uber.org/zap"
)

const (
	historySize    = 5
	folderListSize = 10
)

// Sender is the part of the Telegram API the bot replies through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api           *tgbotapi.BotAPI
	sender        Sender
	notes         *notebook.Service
	allowedUserID int64
	logger        *zap.Logger
}

// New connects to Telegram. allowedUserID of 0 lets anyone use the bot.
func New(token string, notes *notebook.Service, allowedUserID int64, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, notes, allowedUserID, logger)
	b.api = api
	return b, nil
}

func newBot(sender Sender, notes *notebook.Service, allowedUserID int64, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		sender:        sender,
		notes:         notes,
		allowedUserID: allowedUserID,
		logger:        logger,
	}
}

// Start receives updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}
	if b.allowedUserID != 0 && message.From.ID != b.allowedUserID {
		b.logger.Warn("Rejected message from unknown user", zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, "Sorry, this bot is private.")
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		b.sendMessage(message.Chat.ID, "Send me some text and I'll save it as a note.")
		return
	}

	note, err := b.notes.CreateNote(ctx, notebook.NoteInput{Content: notebook.TextContent(content)})
	if err != nil {
		b.logger.Error("Failed to save note",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save your note. Please try again.")
		return
	}

	folders, err := b.notes.FoldersForNote(ctx, note.ID)
	if err != nil {
		b.logger.Error("Failed to resolve folders",
			zap.Error(err),
			zap.String("note_id", note.ID))
	}
	b.sendNoteResponse(message.Chat.ID, message.MessageID, note, folders)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "tags":
		b.handleTags(ctx, message)
	case "folders":
		b.handleFolders(ctx, message)
	case "folder":
		b.handleFolder(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	case "summary":
		b.handleSummary(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to MemoDesk! 📝
Send me any text and I'll save it as a note with a title and tags.
Smart folders pick up your notes automatically.

Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/tags - Show your tags
/folders - Show your folders
/folder <name> - Show notes in a folder
/history - Show your latest notes
/summary <note id> - Summarize a note`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleTags(ctx context.Context, message *tgbotapi.Message) {
	tags, err := b.notes.ListTags(ctx)
	if err != nil {
		b.logger.Error("Failed to list tags", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve your tags. Please try again later.")
		return
	}

	if len(tags) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any tags yet.")
		return
	}

	response := "*Your tags:*\n"
	for _, tag := range tags {
		response += escapeMarkdown(hashtag(tag)) + "\n"
	}
	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleFolders(ctx context.Context, message *tgbotapi.Message) {
	counts, err := b.notes.FolderCounts(ctx)
	if err != nil {
		b.logger.Error("Failed to count folders", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, failed to retrieve your folders. Please try again later.")
		return
	}

	if len(counts) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any folders yet.")
		return
	}

	response := "*Your folders:*\n"
	for _, c := range counts {
		response += fmt.Sprintf("%s %s: %d\n",
			escapeMarkdown(c.Folder.Name),
			escapeMarkdown("("+string(c.Folder.Kind)+")"),
			c.Count)
	}
	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleFolder(ctx context.Context, message *tgbotapi.Message) {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		b.sendMessage(message.Chat.ID, "Usage: /folder <name>")
		return
	}

	folder, err := b.notes.FindFolder(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("No folder named %q.", name))
		return
	}
	if err != nil {
		b.logger.Error("Failed to find folder", zap.Error(err), zap.String("name", name))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't open that folder.")
		return
	}

	members, err := b.notes.FolderMembers(ctx, folder.ID)
	if err != nil {
		b.logger.Error("Failed to list folder members",
			zap.Error(err),
			zap.String("folder_id", folder.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't open that folder.")
		return
	}

	if len(members) == 0 {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("%s is empty.", folder.Name))
		return
	}

	response := fmt.Sprintf("*%s* \\(%d\\)\n\n", escapeMarkdown(folder.Name), len(members))
	for i, note := range members {
		if i == folderListSize {
			response += escapeMarkdown(fmt.Sprintf("...and %d more", len(members)-folderListSize)) + "\n"
			break
		}
		response += fmt.Sprintf("%s `%s`\n", escapeMarkdown(note.Title), shortID(note.ID))
	}
	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	notes, err := b.notes.ListNotes(ctx)
	if err != nil {
		b.logger.Error("Failed to list notes", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your note history.")
		return
	}

	if len(notes) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any notes yet.")
		return
	}
	if len(notes) > historySize {
		notes = notes[:historySize]
	}

	response := "*Your recent notes:*\n\n"
	for _, note := range notes {
		response += fmt.Sprintf("*%s* `%s`\n", escapeMarkdown(note.Title), shortID(note.ID))
		response += fmt.Sprintf("_%s_\n", escapeMarkdown(preview(note.Content)))
		if len(note.Tags) > 0 {
			response += fmt.Sprintf("Tags: %s\n", formatTags(note.Tags))
		}
		response += "\n"
	}
	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleSummary(ctx context.Context, message *tgbotapi.Message) {
	prefix := strings.TrimSpace(message.CommandArguments())
	if prefix == "" {
		b.sendMessage(message.Chat.ID, "Usage: /summary <note id>")
		return
	}

	note, err := b.findNote(ctx, prefix)
	if err != nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("No note matches %q.", prefix))
		return
	}

	summary, err := b.notes.Summarize(ctx, note.ID)
	if errors.Is(err, notebook.ErrAIDisabled) {
		b.sendMessage(message.Chat.ID, "Summaries need the AI service, which is turned off.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to summarize note",
			zap.Error(err),
			zap.String("note_id", note.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't summarize that note.")
		return
	}

	b.sendMarkdown(message.Chat.ID, fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(note.Title), escapeMarkdown(summary)))
}

// findNote resolves a unique note id prefix.
func (b *Bot) findNote(ctx context.Context, prefix string) (*models.Note, error) {
	notes, err := b.notes.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	var found *models.Note
	for i := range notes {
		if strings.HasPrefix(notes[i].ID, prefix) {
			if found != nil {
				return nil, fmt.Errorf("prefix %q is ambiguous", prefix)
			}
			found = &notes[i]
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (b *Bot) sendNoteResponse(chatID int64, replyToID int, note *models.Note, folders []models.Folder) {
	text := fmt.Sprintf("*Saved:* %s `%s`\n", escapeMarkdown(note.Title), shortID(note.ID))
	if len(note.Tags) > 0 {
		text += fmt.Sprintf("*Tags:* %s\n", formatTags(note.Tags))
	}
	if len(folders) > 0 {
		names := make([]string, len(folders))
		for i, f := range folders {
			names[i] = escapeMarkdown(f.Name)
		}
		text += fmt.Sprintf("*Folders:* %s\n", strings.Join(names, ", "))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = replyToID

	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send note response",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func formatTags(tags []string) string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = escapeMarkdown(hashtag(tag))
	}
	return strings.Join(out, " ")
}

func hashtag(tag string) string {
	return "#" + strings.ReplaceAll(tag, " ", "_")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func preview(content string) string {
	text := strings.Join(strings.Fields(rules.PlainText(content)), " ")
	runes := []rune(text)
	if len(runes) > 80 {
		return string(runes[:80]) + "…"
	}
	return text
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
